// Package analysis partitions signals into threads and derives the per-thread
// facts the metric calculators consume: incidents, ticket resolution pairs,
// severity escalations and email reply pairs.
package analysis

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Options control incident splitting inside a thread.
type Options struct {
	// ReopenGap starts a new incident when a ticket_created or email_received
	// arrives this long after a resolution.
	ReopenGap time.Duration
	// IncidentGap starts a new incident after any silence this long.
	IncidentGap time.Duration
}

// DefaultOptions are 7 and 14 days.
func DefaultOptions() Options {
	return Options{ReopenGap: 7 * 24 * time.Hour, IncidentGap: 14 * 24 * time.Hour}
}

// Thread is a group of signals concerning the same underlying topic.
type Thread struct {
	ID        string
	Label     string
	Singleton bool
	Events    []models.SignalEvent
	FirstSeen time.Time
	LastSeen  time.Time

	Incidents   []Incident
	Pairs       []Pair
	Pending     *models.SignalEvent
	Orphans     int
	Escalations []Escalation
	Replies     []Reply
	Proactive   []models.SignalEvent
	Unanswered  []models.SignalEvent
}

// Incident is one occurrence of a thread's underlying problem. Index 0 is the
// first occurrence; every later index is a recurrence of it.
type Incident struct {
	Index  int
	Start  time.Time
	Events []models.SignalEvent
}

// Pair is a ticket opening matched with the resolution that closed it.
type Pair struct {
	Opened   models.SignalEvent
	Resolved models.SignalEvent
	Track    string
}

// Hours is the resolution duration.
func (p Pair) Hours() float64 {
	return p.Resolved.OccurredAt.Sub(p.Opened.OccurredAt).Hours()
}

// Escalation is a move to a strictly higher severity than the thread had
// reached so far.
type Escalation struct {
	From  models.Severity
	To    models.Severity
	At    time.Time
	Event models.SignalEvent
}

// Label renders "medium→high".
func (e Escalation) Label() string { return string(e.From) + "→" + string(e.To) }

// Reply is an outbound message matched with the next inbound one.
type Reply struct {
	Outbound models.SignalEvent
	Inbound  models.SignalEvent
}

// LagHours is the time the vendor took to answer.
func (r Reply) LagHours() float64 {
	return r.Inbound.OccurredAt.Sub(r.Outbound.OccurredAt).Hours()
}

// ThreadKey returns the clustering key for e: thread_key, then issue_key, then
// topic. An empty key means the event stands alone.
func ThreadKey(e models.SignalEvent) string {
	for _, k := range []string{models.MetaThreadKey, models.MetaIssueKey, models.MetaTopic} {
		if v := e.Metadata.String(k); v != "" {
			return k + ":" + v
		}
	}
	return ""
}

// Cluster partitions time-ordered events into threads. Every event lands in
// exactly one thread. Threads are sorted by FirstSeen, then ID.
// Returns empty slice for empty input (never nil).
func Cluster(events []models.SignalEvent, opts Options) []Thread {
	if len(events) == 0 {
		return []Thread{}
	}

	type clusterState struct {
		key       string
		label     string
		singleton bool
		events    []models.SignalEvent
	}

	groups := make(map[string]*clusterState)
	order := make([]*clusterState, 0)

	for i, e := range events {
		key := ThreadKey(e)
		singleton := key == ""
		if singleton {
			key = fmt.Sprintf("event:%s:%d", e.ID, i)
		}
		cs, exists := groups[key]
		if !exists {
			cs = &clusterState{key: key, label: threadLabel(e), singleton: singleton}
			groups[key] = cs
			order = append(order, cs)
		}
		cs.events = append(cs.events, e)
	}

	threads := make([]Thread, 0, len(order))
	for _, cs := range order {
		sort.SliceStable(cs.events, func(i, j int) bool {
			return cs.events[i].OccurredAt.Before(cs.events[j].OccurredAt)
		})
		th := Thread{
			ID:        Fingerprint(cs.key),
			Label:     cs.label,
			Singleton: cs.singleton,
			Events:    cs.events,
			FirstSeen: cs.events[0].OccurredAt,
			LastSeen:  cs.events[len(cs.events)-1].OccurredAt,
		}
		th.Incidents = SplitIncidents(cs.events, opts)
		th.Pairs, th.Pending, th.Orphans = PairTickets(cs.events)
		th.Escalations = DetectEscalations(cs.events)
		th.Replies, th.Proactive, th.Unanswered = PairReplies(cs.events)
		threads = append(threads, th)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if !threads[i].FirstSeen.Equal(threads[j].FirstSeen) {
			return threads[i].FirstSeen.Before(threads[j].FirstSeen)
		}
		return threads[i].ID < threads[j].ID
	})

	return threads
}

// SplitIncidents cuts a thread's events into incidents. A reopen always starts
// a new incident; so does a new ticket or inbound email ReopenGap after a
// resolution, and any gap of IncidentGap or more.
func SplitIncidents(events []models.SignalEvent, opts Options) []Incident {
	if len(events) == 0 {
		return nil
	}

	current := []models.SignalEvent{events[0]}
	resolved := events[0].IsResolution()
	var incidents []Incident

	flush := func() {
		incidents = append(incidents, Incident{
			Index:  len(incidents),
			Start:  current[0].OccurredAt,
			Events: current,
		})
	}

	for _, e := range events[1:] {
		gap := e.OccurredAt.Sub(current[len(current)-1].OccurredAt)
		split := false
		switch {
		case e.EventType == models.EventTicketReopened:
			split = true
		case resolved && (e.EventType == models.EventTicketCreated || e.EventType == models.EventEmailReceived) && gap >= opts.ReopenGap:
			split = true
		case gap >= opts.IncidentGap:
			split = true
		}

		if split {
			flush()
			current = []models.SignalEvent{e}
			resolved = e.IsResolution()
			continue
		}
		current = append(current, e)
		if e.IsResolution() {
			resolved = true
		}
	}
	flush()
	return incidents
}

// PairTickets walks the thread's lifecycle events in order. An opening
// (created or reopened) becomes pending, replacing any earlier pending one;
// a resolution closes the pending opening. Resolutions with nothing pending
// are counted as orphans. The last unresolved opening is returned as pending.
func PairTickets(events []models.SignalEvent) (pairs []Pair, pending *models.SignalEvent, orphans int) {
	for i := range events {
		e := events[i]
		switch {
		case e.IsLifecycleOpen():
			pending = &events[i]
		case e.IsResolution():
			if pending == nil {
				orphans++
				continue
			}
			pairs = append(pairs, Pair{Opened: *pending, Resolved: e, Track: classify.TicketTrack(*pending)})
			pending = nil
		}
	}
	return pairs, pending, orphans
}

// DetectEscalations records every event whose severity exceeds the highest
// severity the thread had reached before it. Events without a known severity
// are skipped.
func DetectEscalations(events []models.SignalEvent) []Escalation {
	var out []Escalation
	var peak models.Severity
	for _, e := range events {
		if !e.Severity.Valid() {
			continue
		}
		if peak == "" {
			peak = e.Severity
			continue
		}
		if e.Severity.Rank() > peak.Rank() {
			out = append(out, Escalation{From: peak, To: e.Severity, At: e.OccurredAt, Event: e})
			peak = e.Severity
		}
	}
	return out
}

// PairReplies matches outbound emails first-in first-out with the next inbound
// email in the thread. An inbound with nothing outstanding is proactive;
// outbounds left over are unanswered.
func PairReplies(events []models.SignalEvent) (replies []Reply, proactive, unanswered []models.SignalEvent) {
	var queue []models.SignalEvent
	for _, e := range events {
		switch direction(e) {
		case models.DirectionOutbound:
			queue = append(queue, e)
		case models.DirectionInbound:
			if len(queue) == 0 {
				proactive = append(proactive, e)
				continue
			}
			out := queue[0]
			queue = queue[1:]
			if e.OccurredAt.Before(out.OccurredAt) {
				proactive = append(proactive, e)
				continue
			}
			replies = append(replies, Reply{Outbound: out, Inbound: e})
		}
	}
	return replies, proactive, queue
}

func direction(e models.SignalEvent) string {
	if d := e.Direction(); d != "" {
		return d
	}
	return classify.Direction(e.EventType)
}

// Fingerprint computes a stable SHA-256 identifier for a thread key.
func Fingerprint(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:8])
}

func threadLabel(e models.SignalEvent) string {
	label := classify.NormalizeTitle(e.Title)
	if label == "" {
		label = e.Metadata.String(models.MetaTopic)
	}
	return truncateString(label, 80)
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
