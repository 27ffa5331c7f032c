// Package metrics computes the nine rolling-window signal metrics. Every
// metric runs through the same engine: filter by stage, cluster into threads,
// evaluate one trailing window per day, classify the trend and, optionally,
// attach a peer series.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/internal/window"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var (
	ErrInvalidWindow = errors.New("window_days must be between 1 and 365")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrInvalidStage  = errors.New("unknown stage_topic")
)

// Name identifies one metric.
type Name string

const (
	IssueRate      Name = "issue_rate"
	RecurrenceRate Name = "recurrence_rate"
	EscalationRate Name = "escalation_rate"
	ResolutionTime Name = "resolution_time"
	Responsiveness Name = "vendor_responsiveness"
	Reliability    Name = "reliability"
	Performance    Name = "performance"
	Fitness        Name = "fitness_for_purpose"
	CorePeripheral Name = "core_peripheral"
)

// Names lists every metric in display order.
var Names = []Name{
	IssueRate, RecurrenceRate, EscalationRate, ResolutionTime, Responsiveness,
	Reliability, Performance, Fitness, CorePeripheral,
}

// ParseName validates a metric name from user input.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Point is one day's aggregate over the trailing window ending that day.
// Values holds metric-specific numbers; a key is omitted when the window had
// no data for it (for example no resolved tickets for a median).
type Point struct {
	Date     string             `json:"date"`
	Count    int                `json:"count"`
	Total    int                `json:"total"`
	Rate     float64            `json:"rate"`
	Values   map[string]float64 `json:"values,omitempty"`
	Examples []string           `json:"examples,omitempty"`
}

// Commentary is the trend tag plus a short template sentence.
// Tracks holds the trend of each sub-series for metrics that report more
// than one, keyed by track name.
type Commentary struct {
	Trend   Trend            `json:"trend"`
	Message string           `json:"message"`
	Tracks  map[string]Trend `json:"tracks,omitempty"`
}

// PeerPoint is the peer average for one day.
type PeerPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PeerSeries compares a metric against same-category peers.
type PeerSeries struct {
	Category  string      `json:"category"`
	PeerCount int         `json:"peer_count"`
	Points    []PeerPoint `json:"points"`
}

// Result is the full output of one metric computation.
type Result struct {
	Metric     Name        `json:"metric"`
	WindowDays int         `json:"window_days"`
	StageTopic string      `json:"stage_topic,omitempty"`
	Points     []Point     `json:"points"`
	Commentary Commentary  `json:"commentary"`
	Peer       *PeerSeries `json:"peer"`
	Excluded   int         `json:"excluded"`

	days []time.Time
}

// Latest returns the point for the window ending today.
func (r Result) Latest() (Point, bool) {
	if len(r.Points) == 0 {
		return Point{}, false
	}
	return r.Points[len(r.Points)-1], true
}

// LatestValue returns the primary value of the latest point, if any.
func (r Result) LatestValue() (float64, bool) {
	p, ok := r.Latest()
	if !ok {
		return 0, false
	}
	return r.Value(p)
}

// Value returns the primary value of p under the result's metric. It reports
// false when the point has no defined value, such as a percentile over an
// empty window.
func (r Result) Value(p Point) (float64, bool) {
	return calculators[r.Metric].primary(p)
}

// Params control one computation. Zero fields take defaults.
type Params struct {
	Today        time.Time
	WindowDays   int
	LookbackDays int
	StageTopic   string
	DeadZone     float64
	Incidents    analysis.Options
}

const (
	DefaultLookbackDays = 30
	DefaultDeadZone     = 0.10
)

func (p Params) resolve(name Name) (Params, error) {
	if p.WindowDays == 0 {
		p.WindowDays = calculators[name].defaultWindow
	}
	if p.WindowDays < 1 || p.WindowDays > window.MaxDays {
		return p, fmt.Errorf("%w: got %d", ErrInvalidWindow, p.WindowDays)
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = DefaultLookbackDays
	}
	if p.LookbackDays < 1 || p.LookbackDays > window.MaxDays {
		return p, fmt.Errorf("%w: lookback %d", ErrInvalidWindow, p.LookbackDays)
	}
	if p.StageTopic != "" && !models.Stage(p.StageTopic).Valid() {
		return p, fmt.Errorf("%w: %q", ErrInvalidStage, p.StageTopic)
	}
	if p.DeadZone <= 0 {
		p.DeadZone = DefaultDeadZone
	}
	if p.Incidents == (analysis.Options{}) {
		p.Incidents = analysis.DefaultOptions()
	}
	if p.Today.IsZero() {
		p.Today = time.Now()
	}
	return p, nil
}

// dataset is the prepared input shared by every day of one computation.
type dataset struct {
	timeline window.Timeline
	threads  []analysis.Thread
}

func prepare(events []models.SignalEvent, p Params) dataset {
	tl := window.NewTimeline(events)
	if p.StageTopic != "" {
		stage := models.Stage(p.StageTopic)
		tl = tl.Filter(func(e models.SignalEvent) bool { return e.Stage() == stage })
	}
	return dataset{timeline: tl, threads: analysis.Cluster(tl.Events, p.Incidents)}
}

// Compute runs one metric over a software's signals. Zero signals yield an
// empty point list; otherwise there is one point per day from
// min(earliest signal, today-lookback) through today.
func Compute(name Name, events []models.SignalEvent, p Params) (Result, error) {
	calc, ok := calculators[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	p, err := p.resolve(name)
	if err != nil {
		return Result{}, err
	}

	res := Result{Metric: name, WindowDays: p.WindowDays, StageTopic: p.StageTopic, Points: []Point{}}
	if len(events) == 0 {
		res.Commentary = Commentary{Trend: TrendStable, Message: "No signals recorded yet."}
		return res, nil
	}

	ds := prepare(events, p)
	res.Excluded = ds.timeline.Excluded
	res.days = window.Range(ds.timeline.Earliest(), p.Today, p.LookbackDays)
	res.Points = series(calc, ds, res.days, p.WindowDays)

	trend := Classify(collect(calc.primary, res.Points), p.DeadZone, calc.lowerIsBetter)
	res.Commentary = Commentary{Trend: trend, Message: calc.describe(trend, res.Points, p.WindowDays)}
	if set, ok := tracks[name]; ok {
		res.Commentary.Tracks = make(map[string]Trend, len(set.values))
		for track, value := range set.values {
			res.Commentary.Tracks[track] = Classify(collect(value, res.Points), p.DeadZone, calc.lowerIsBetter)
		}
		res.Commentary.Message += set.describe(res.Commentary.Tracks, res.Points)
	}
	return res, nil
}

// ComputeAll runs every metric with the same parameters. WindowDays applies
// only when set; otherwise each metric uses its own default.
func ComputeAll(events []models.SignalEvent, p Params) (map[Name]Result, error) {
	out := make(map[Name]Result, len(Names))
	for _, n := range Names {
		r, err := Compute(n, events, p)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", n, err)
		}
		out[n] = r
	}
	return out, nil
}

// Aggregate evaluates a metric once over a single window spanning every
// usable event, instead of per day. Returns false when no event has a
// timestamp.
func Aggregate(name Name, events []models.SignalEvent, opts analysis.Options) (Point, bool) {
	calc, ok := calculators[name]
	if !ok {
		return Point{}, false
	}
	if opts == (analysis.Options{}) {
		opts = analysis.DefaultOptions()
	}
	ds := prepare(events, Params{Incidents: opts})
	if ds.timeline.Len() == 0 {
		return Point{}, false
	}
	w := window.Window{Start: window.Day(ds.timeline.Earliest()), End: window.Day(ds.timeline.Latest())}
	return evaluate(calc, ds, w), true
}

func series(calc calculator, ds dataset, days []time.Time, windowDays int) []Point {
	points := make([]Point, len(days))
	for i, d := range days {
		points[i] = evaluate(calc, ds, window.Trailing(d, windowDays))
	}
	return points
}

func evaluate(calc calculator, ds dataset, w window.Window) Point {
	s := span{
		win:     w,
		events:  ds.timeline.Between(w),
		threads: ds.threads,
	}
	p := calc.at(s)
	p.Date = w.End.Format(time.DateOnly)
	return p
}

func collect(value func(Point) (float64, bool), points []Point) []float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if v, ok := value(p); ok {
			values = append(values, v)
		}
	}
	return values
}
