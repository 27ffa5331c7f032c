// Package window turns an irregular signal stream into calendar days and
// trailing rolling windows. All days are UTC midnights.
package window

import (
	"sort"
	"time"

	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// MaxDays bounds window and lookback sizes.
const MaxDays = 365

const day = 24 * time.Hour

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Trailing returns the window of days days ending on (and including) end.
func Trailing(end time.Time, days int) Window {
	end = Day(end)
	return Window{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

// Contains reports whether t falls on a day inside w.
func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Until is the exclusive upper instant of the window.
func (w Window) Until() time.Time { return w.End.Add(day) }

// Range lists every day from min(earliest, today-lookback) through today.
func Range(earliest, today time.Time, lookback int) []time.Time {
	today = Day(today)
	start := today.AddDate(0, 0, -lookback)
	if !earliest.IsZero() && Day(earliest).Before(start) {
		start = Day(earliest)
	}
	n := int(today.Sub(start)/day) + 1
	days := make([]time.Time, 0, n)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Timeline is a time-ordered signal list with malformed events removed.
type Timeline struct {
	Events   []models.SignalEvent
	Excluded int
}

// NewTimeline drops events without an occurred_at and sorts the rest by time.
// The input slice is not modified.
func NewTimeline(events []models.SignalEvent) Timeline {
	tl := Timeline{Events: make([]models.SignalEvent, 0, len(events))}
	for _, e := range events {
		if !e.HasTimestamp() {
			tl.Excluded++
			continue
		}
		tl.Events = append(tl.Events, e)
	}
	sort.SliceStable(tl.Events, func(i, j int) bool {
		return tl.Events[i].OccurredAt.Before(tl.Events[j].OccurredAt)
	})
	return tl
}

// Len returns the number of usable events.
func (tl Timeline) Len() int { return len(tl.Events) }

// Earliest returns the first event time, or zero when empty.
func (tl Timeline) Earliest() time.Time {
	if len(tl.Events) == 0 {
		return time.Time{}
	}
	return tl.Events[0].OccurredAt
}

// Latest returns the last event time, or zero when empty.
func (tl Timeline) Latest() time.Time {
	if len(tl.Events) == 0 {
		return time.Time{}
	}
	return tl.Events[len(tl.Events)-1].OccurredAt
}

// Between returns the events that fall on a day inside w. The result shares
// the timeline's backing array.
func (tl Timeline) Between(w Window) []models.SignalEvent {
	lo := sort.Search(len(tl.Events), func(i int) bool {
		return !tl.Events[i].OccurredAt.Before(w.Start)
	})
	until := w.Until()
	hi := sort.Search(len(tl.Events), func(i int) bool {
		return !tl.Events[i].OccurredAt.Before(until)
	})
	return tl.Events[lo:hi]
}

// Filter returns a timeline holding only events that satisfy keep.
func (tl Timeline) Filter(keep func(models.SignalEvent) bool) Timeline {
	out := Timeline{Excluded: tl.Excluded}
	for _, e := range tl.Events {
		if keep(e) {
			out.Events = append(out.Events, e)
		}
	}
	return out
}
