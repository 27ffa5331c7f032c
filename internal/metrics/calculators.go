package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
	"github.com/syntheticfinds/vendor-software-integration/internal/window"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

const maxExamples = 3

// span is the data visible to one window evaluation.
type span struct {
	win     window.Window
	events  []models.SignalEvent
	threads []analysis.Thread
}

func (s span) in(t time.Time) bool { return s.win.Contains(t) }

// upTo reports whether t happened on or before the window's last day.
func (s span) upTo(t time.Time) bool { return t.Before(s.win.Until()) }

// active returns threads with at least one event inside the window.
func (s span) active() []analysis.Thread {
	var out []analysis.Thread
	for _, th := range s.threads {
		if th.LastSeen.Before(s.win.Start) || !th.FirstSeen.Before(s.win.Until()) {
			continue
		}
		for _, e := range th.Events {
			if s.in(e.OccurredAt) {
				out = append(out, th)
				break
			}
		}
	}
	return out
}

type calculator struct {
	defaultWindow int
	lowerIsBetter bool
	at            func(span) Point
	primary       func(Point) (float64, bool)
	describe      func(Trend, []Point, int) string
}

// trackSet lists the secondary series of a metric that get their own trend.
type trackSet struct {
	values   map[string]func(Point) (float64, bool)
	describe func(map[string]Trend, []Point) string
}

var tracks = map[Name]trackSet{
	ResolutionTime: {
		values: map[string]func(Point) (float64, bool){
			classify.TrackIssue:   byValue("issue_median_hours"),
			classify.TrackFeature: byValue("feature_median_hours"),
		},
		describe: describeFeatureTrack,
	},
}

var calculators map[Name]calculator

func init() {
	calculators = map[Name]calculator{
		IssueRate:      {7, false, issueRateAt, byCount, describeIssueRate},
		RecurrenceRate: {30, true, recurrenceAt, byRate, describeRate("Recurrence rate", "recurring threads")},
		EscalationRate: {30, true, escalationAt, byRate, describeRate("Escalation rate", "escalations")},
		ResolutionTime: {30, true, resolutionAt, byValue("issue_median_hours"), describeResolution},
		Responsiveness: {30, true, responsivenessAt, byValue("median_lag_hours"), describeResponsiveness},
		Reliability:    {30, true, reliabilityAt, byRate, describeReliability},
		Performance:    {30, true, performanceAt, byCount, describePerformance},
		Fitness:        {30, true, fitnessAt, byRate, describeRate("Feature request share", "feature requests")},
		CorePeripheral: {30, true, corePeripheralAt, byRate, describeRate("Peripheral effort share", "peripheral signals")},
	}
}

func byCount(p Point) (float64, bool) { return float64(p.Count), true }
func byRate(p Point) (float64, bool)  { return p.Rate, true }

func byValue(key string) func(Point) (float64, bool) {
	return func(p Point) (float64, bool) {
		v, ok := p.Values[key]
		return v, ok
	}
}

func ratePct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return analysis.Round1(float64(num) / float64(den) * 100)
}

// examples returns up to three distinct normalized titles, newest first.
func examples(events []models.SignalEvent) []string {
	var out []string
	seen := make(map[string]bool)
	for i := len(events) - 1; i >= 0 && len(out) < maxExamples; i-- {
		label := classify.NormalizeTitle(events[i].Title)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func topLabels(counts map[string]int) []string {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > maxExamples {
		labels = labels[:maxExamples]
	}
	return labels
}

// --- issue rate ---

func isIssue(e models.SignalEvent) bool {
	return e.EventType != models.EventTicketResolved
}

func issueRateAt(s span) Point {
	var issues []models.SignalEvent
	negative := 0
	for _, e := range s.events {
		if !isIssue(e) {
			continue
		}
		issues = append(issues, e)
		if e.Valence() == models.ValenceNegative {
			negative++
		}
	}
	return Point{
		Count:    len(issues),
		Total:    len(s.events),
		Rate:     float64(len(issues)),
		Values:   map[string]float64{"negative_count": float64(negative)},
		Examples: examples(issues),
	}
}

// --- recurrence ---

func recurrenceAt(s span) Point {
	active := s.active()
	recurring := make(map[string]int)
	for _, th := range active {
		for _, inc := range th.Incidents[1:] {
			if s.in(inc.Start) {
				recurring[th.Label]++
				break
			}
		}
	}
	n := len(recurring)
	return Point{
		Count:    n,
		Total:    len(active),
		Rate:     ratePct(n, len(active)),
		Examples: topLabels(recurring),
	}
}

// --- escalation ---

func escalationAt(s span) Point {
	active := s.active()
	transitions := 0
	escalating := 0
	labels := make(map[string]int)
	for _, th := range active {
		found := false
		for _, esc := range th.Escalations {
			if !s.in(esc.At) {
				continue
			}
			transitions++
			found = true
			labels[th.Label+" ("+esc.Label()+")"]++
		}
		if found {
			escalating++
		}
	}
	severitySignals := 0
	for _, e := range s.events {
		if e.Severity.Valid() {
			severitySignals++
		}
	}
	return Point{
		Count: transitions,
		Total: len(active),
		Rate:  ratePct(transitions, len(active)),
		Values: map[string]float64{
			"escalating_threads": float64(escalating),
			"severity_signals":   float64(severitySignals),
		},
		Examples: topLabels(labels),
	}
}

// --- resolution time ---

func resolutionAt(s span) Point {
	hours := map[string][]float64{classify.TrackIssue: nil, classify.TrackFeature: nil}
	open := map[string]int{}
	var closed []analysis.Pair
	orphans := 0

	for _, th := range s.threads {
		for _, pair := range th.Pairs {
			if s.in(pair.Resolved.OccurredAt) {
				hours[pair.Track] = append(hours[pair.Track], pair.Hours())
				closed = append(closed, pair)
			}
			if s.upTo(pair.Opened.OccurredAt) && !s.upTo(pair.Resolved.OccurredAt) {
				open[pair.Track]++
			}
		}
		if th.Pending != nil && s.upTo(th.Pending.OccurredAt) {
			open[classify.TicketTrack(*th.Pending)]++
		}
		orphans += th.Orphans
	}

	// Ascending, since examples reads from the end and should name the longest waits.
	sort.SliceStable(closed, func(i, j int) bool { return closed[i].Hours() < closed[j].Hours() })
	slow := make([]models.SignalEvent, len(closed))
	for i, pair := range closed {
		slow[i] = pair.Opened
	}

	values := map[string]float64{}
	resolved := 0
	for _, track := range []string{classify.TrackIssue, classify.TrackFeature} {
		sample := hours[track]
		resolved += len(sample)
		values[track+"_resolved"] = float64(len(sample))
		values[track+"_open"] = float64(open[track])
		if len(sample) > 0 {
			values[track+"_median_hours"] = analysis.Round1(analysis.Median(sample))
			values[track+"_p90_hours"] = analysis.Round1(analysis.Percentile(sample, 90))
		}
	}
	if orphans > 0 {
		values["orphan_resolutions"] = float64(orphans)
	}
	openTotal := open[classify.TrackIssue] + open[classify.TrackFeature]

	return Point{
		Count:    resolved,
		Total:    resolved + openTotal,
		Rate:     values["issue_median_hours"],
		Values:   values,
		Examples: examples(slow),
	}
}

// --- vendor responsiveness ---

func responsivenessAt(s span) Point {
	var lags []float64
	var slow []models.SignalEvent
	proactive, unanswered := 0, 0

	for _, th := range s.threads {
		for _, r := range th.Replies {
			if s.in(r.Inbound.OccurredAt) {
				lags = append(lags, r.LagHours())
				slow = append(slow, r.Outbound)
			}
			if s.upTo(r.Outbound.OccurredAt) && !s.upTo(r.Inbound.OccurredAt) {
				unanswered++
			}
		}
		for _, e := range th.Proactive {
			if s.in(e.OccurredAt) {
				proactive++
			}
		}
		for _, e := range th.Unanswered {
			if s.upTo(e.OccurredAt) {
				unanswered++
			}
		}
	}

	values := map[string]float64{
		"proactive_count":  float64(proactive),
		"unanswered_count": float64(unanswered),
	}
	rate := 0.0
	if len(lags) > 0 {
		rate = analysis.Round1(analysis.Median(lags))
		values["median_lag_hours"] = rate
		values["p90_lag_hours"] = analysis.Round1(analysis.Percentile(lags, 90))
	}
	return Point{
		Count:    len(lags),
		Total:    len(lags) + unanswered,
		Rate:     rate,
		Values:   values,
		Examples: examples(slow),
	}
}

// --- reliability ---

func reliabilityAt(s span) Point {
	var incidents []models.SignalEvent
	density := 0.0
	downtime, haveDowntime := 0.0, false
	uptime, haveUptime := 0.0, false

	for _, e := range s.events {
		if nums := e.Metadata.Map(models.MetaReliabilityNumbers); nums != nil {
			if v, ok := nums.Float("downtime_hours"); ok {
				downtime += v
				haveDowntime = true
			}
			if v, ok := nums.Float("uptime_pct"); ok {
				uptime, haveUptime = v, true
			}
		}
		if classify.IsIncident(e) {
			incidents = append(incidents, e)
			density += e.Severity.Weight()
		}
	}

	values := map[string]float64{}
	if len(incidents) >= 2 {
		gaps := 0.0
		for i := 1; i < len(incidents); i++ {
			gaps += incidents[i].OccurredAt.Sub(incidents[i-1].OccurredAt).Hours()
		}
		values["mtbf_hours"] = analysis.Round1(gaps / float64(len(incidents)-1))
	}
	if haveDowntime {
		values["downtime_hours"] = analysis.Round1(downtime)
	}
	if haveUptime {
		values["uptime_pct"] = uptime
	}

	return Point{
		Count:    len(incidents),
		Total:    len(s.events),
		Rate:     math.Round(density*100) / 100,
		Values:   values,
		Examples: examples(incidents),
	}
}

// --- performance ---

func performanceAt(s span) Point {
	var hits []models.SignalEvent
	latency, rateLimit := 0, 0
	for _, e := range s.events {
		lat, rl := classify.PerformanceTags(e)
		if lat {
			latency++
		}
		if rl {
			rateLimit++
		}
		if lat || rl {
			hits = append(hits, e)
		}
	}
	return Point{
		Count: len(hits),
		Total: len(s.events),
		Rate:  ratePct(len(hits), len(s.events)),
		Values: map[string]float64{
			"latency_count":    float64(latency),
			"rate_limit_count": float64(rateLimit),
		},
		Examples: examples(hits),
	}
}

// --- fitness for purpose ---

func isFeatureRequest(e models.SignalEvent) bool {
	return e.EventType == models.EventFeatureRequest || e.Subject() == models.SubjectVendorRequest
}

func fitnessAt(s span) Point {
	var requests []models.SignalEvent
	for _, e := range s.events {
		if isFeatureRequest(e) {
			requests = append(requests, e)
		}
	}

	repeat, threads, fulfilled := 0, 0, 0
	for _, th := range s.threads {
		asked, inWindow, done := 0, false, false
		for _, e := range th.Events {
			if !s.upTo(e.OccurredAt) {
				break
			}
			if isFeatureRequest(e) {
				asked++
				if s.in(e.OccurredAt) {
					inWindow = true
				}
			}
			if asked > 0 && e.IsResolution() {
				done = true
			}
		}
		if asked == 0 {
			continue
		}
		threads++
		if done {
			fulfilled++
		}
		if asked > 1 && inWindow {
			repeat++
		}
	}

	values := map[string]float64{"repeat_count": float64(repeat)}
	if threads > 0 {
		values["fulfillment_rate"] = ratePct(fulfilled, threads)
	}
	return Point{
		Count:    len(requests),
		Total:    len(s.events),
		Rate:     ratePct(len(requests), len(s.events)),
		Values:   values,
		Examples: examples(requests),
	}
}

// --- core vs peripheral ---

func corePeripheralAt(s span) Point {
	categories := make(map[string]int)
	peripheral := 0
	for _, e := range s.events {
		ok, cat := classify.Peripheral(e)
		if !ok {
			continue
		}
		peripheral++
		if cat != "" {
			categories[cat]++
		}
	}
	return Point{
		Count: peripheral,
		Total: len(s.events),
		Rate:  ratePct(peripheral, len(s.events)),
		Values: map[string]float64{
			"core_count":       float64(len(s.events) - peripheral),
			"peripheral_count": float64(peripheral),
		},
		Examples: topLabels(categories),
	}
}
