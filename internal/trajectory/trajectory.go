// Package trajectory places a software's signals on the five-stage adoption
// timeline, scores how smoothly each stage went and flags regressions.
package trajectory

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
	"github.com/syntheticfinds/vendor-software-integration/internal/window"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Status of a stage relative to the current one.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCurrent   Status = "current"
	StatusUpcoming  Status = "upcoming"
)

// Smoothness dimensions.
const (
	DimFriction   = "friction"
	DimRecurrence = "recurrence"
	DimEscalation = "escalation"
	DimResolution = "resolution"
	DimEffort     = "effort"
)

// Dimensions lists the smoothness dimensions in report order.
var Dimensions = []string{DimFriction, DimRecurrence, DimEscalation, DimResolution, DimEffort}

const neutral = 75.0

var stageWeights = map[models.Stage]map[string]float64{
	models.StageOnboarding:    {DimFriction: 0.35, DimRecurrence: 0.10, DimEscalation: 0.15, DimResolution: 0.30, DimEffort: 0.10},
	models.StageIntegration:   {DimFriction: 0.30, DimRecurrence: 0.15, DimEscalation: 0.15, DimResolution: 0.25, DimEffort: 0.15},
	models.StageStabilization: {DimFriction: 0.25, DimRecurrence: 0.20, DimEscalation: 0.20, DimResolution: 0.20, DimEffort: 0.15},
	models.StageProductive:    {DimFriction: 0.20, DimRecurrence: 0.25, DimEscalation: 0.15, DimResolution: 0.15, DimEffort: 0.25},
	models.StageOptimization:  {DimFriction: 0.20, DimRecurrence: 0.25, DimEscalation: 0.15, DimResolution: 0.15, DimEffort: 0.25},
}

var concernLabels = map[string]string{
	DimFriction:   "high issue friction",
	DimRecurrence: "recurring issues",
	DimEscalation: "escalating severity",
	DimResolution: "slow resolution",
	DimEffort:     "high peripheral effort",
}

// Options tune stage inference.
type Options struct {
	// VoteSignals is how many of the most recent signals vote on the
	// current stage.
	VoteSignals int
	// RegressionMinSignals is how many negative signals an earlier stage
	// needs after the current stage began to count as resurfacing.
	RegressionMinSignals int
	DevelopingSignals    int
	SolidSignals         int
	Incidents            analysis.Options
}

// DefaultOptions mirrors the built-in thresholds.
func DefaultOptions() Options {
	return Options{
		VoteSignals:          10,
		RegressionMinSignals: 2,
		DevelopingSignals:    5,
		SolidSignals:         15,
		Incidents:            analysis.DefaultOptions(),
	}
}

// Dimension is one 0-100 smoothness sub-score. Low confidence means there was
// no data and the neutral default was used.
type Dimension struct {
	Score      float64           `json:"score"`
	Confidence models.Confidence `json:"confidence"`
}

// DateRange spans a stage's first and last signal.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Stage is one step of the trajectory.
type Stage struct {
	Name        models.Stage         `json:"name"`
	Status      Status               `json:"status"`
	SignalCount int                  `json:"signal_count"`
	Smoothness  *float64             `json:"smoothness_score"`
	DateRange   *DateRange           `json:"date_range"`
	Explanation string               `json:"explanation"`
	Dimensions  map[string]Dimension `json:"metrics,omitempty"`
}

// Trajectory is the full stage timeline for one software.
type Trajectory struct {
	CurrentStage       models.Stage          `json:"current_stage,omitempty"`
	Stages             []Stage               `json:"stages"`
	RegressionDetected bool                  `json:"regression_detected"`
	RegressionDetail   string                `json:"regression_detail,omitempty"`
	OverallSmoothness  *float64              `json:"overall_smoothness"`
	Confidence         models.ConfidenceTier `json:"confidence"`
	Excluded           int                   `json:"excluded"`
}

// Classify builds the trajectory from a software's full signal history.
// Signals without a timestamp are excluded. With no usable signals every
// stage is upcoming and there is no current stage.
func Classify(events []models.SignalEvent, opts Options) Trajectory {
	tl := window.NewTimeline(events)
	out := Trajectory{
		Stages:     make([]Stage, 0, len(models.Stages)),
		Confidence: models.TierFor(tl.Len(), opts.DevelopingSignals, opts.SolidSignals),
		Excluded:   tl.Excluded,
	}
	if tl.Len() == 0 {
		for _, name := range models.Stages {
			out.Stages = append(out.Stages, Stage{Name: name, Status: StatusUpcoming, Explanation: "Not reached yet."})
		}
		return out
	}

	byStage := make(map[models.Stage][]models.SignalEvent)
	for _, e := range tl.Events {
		byStage[e.Stage()] = append(byStage[e.Stage()], e)
	}
	current := currentStage(tl.Events, opts.VoteSignals)
	out.CurrentStage = current

	sc := newContext(tl.Events, opts.Incidents)
	weightedSum, weightTotal := 0.0, 0
	for _, name := range models.Stages {
		members := byStage[name]
		st := Stage{Name: name, Status: statusOf(name, current), SignalCount: len(members)}
		if len(members) == 0 {
			st.Explanation = fmt.Sprintf("No signals classified as %s.", name)
			out.Stages = append(out.Stages, st)
			continue
		}
		st.DateRange = &DateRange{Start: members[0].OccurredAt, End: members[len(members)-1].OccurredAt}
		st.Dimensions = sc.dimensions(name, members)
		score := combine(name, st.Dimensions)
		st.Smoothness = &score
		st.Explanation = explain(name, st.Dimensions, score, len(members))
		if st.Status != StatusUpcoming {
			weightedSum += score * float64(len(members))
			weightTotal += len(members)
		}
		out.Stages = append(out.Stages, st)
	}
	if weightTotal > 0 {
		overall := analysis.Round1(weightedSum / float64(weightTotal))
		out.OverallSmoothness = &overall
	}

	out.RegressionDetected, out.RegressionDetail = detectRegression(byStage, current, opts.RegressionMinSignals)
	return out
}

func statusOf(name, current models.Stage) Status {
	switch {
	case name == current:
		return StatusCurrent
	case name.Index() < current.Index():
		return StatusCompleted
	default:
		return StatusUpcoming
	}
}

// currentStage is a recency-weighted vote over the last n signals.
// internal_impl signals count double.
func currentStage(events []models.SignalEvent, n int) models.Stage {
	if n <= 0 || n > len(events) {
		n = len(events)
	}
	recent := events[len(events)-n:]
	votes := make(map[models.Stage]float64)
	for i, e := range recent {
		w := 1.0
		if e.Subject() == models.SubjectInternalImpl {
			w = 2.0
		}
		votes[e.Stage()] += w * (1 + float64(i)*0.1)
	}
	best, bestVotes := models.StageOnboarding, -1.0
	for _, s := range models.Stages {
		if v, ok := votes[s]; ok && v > bestVotes {
			best, bestVotes = s, v
		}
	}
	return best
}

// detectRegression flags a current stage behind the furthest stage reached,
// or an earlier stage whose negative signals resurfaced after the current
// stage began.
func detectRegression(byStage map[models.Stage][]models.SignalEvent, current models.Stage, minSignals int) (bool, string) {
	peak := current
	for _, s := range models.Stages {
		if len(byStage[s]) > 0 && s.Index() > peak.Index() {
			peak = s
		}
	}
	if peak != current {
		return true, fmt.Sprintf("Integration appears to have regressed from %s to %s. Recent signals show %s-type activity.",
			peak, current, current)
	}

	if minSignals < 1 {
		minSignals = 1
	}
	since := byStage[current][0].OccurredAt
	var resurfaced []string
	for _, s := range models.Stages[:current.Index()] {
		n := 0
		for _, e := range byStage[s] {
			if e.OccurredAt.After(since) && e.Valence() == models.ValenceNegative {
				n++
			}
		}
		if n >= minSignals {
			resurfaced = append(resurfaced, fmt.Sprintf("%s (%d)", s, n))
		}
	}
	if len(resurfaced) == 0 {
		return false, ""
	}
	return true, fmt.Sprintf("Earlier-stage issues resurfaced during %s: %s negative signals since %s.",
		current, strings.Join(resurfaced, ", "), since.Format(time.DateOnly))
}

// stageContext holds the cross-stage facts every stage's dimensions read from.
type stageContext struct {
	threads []analysis.Thread
	paired  map[uuid.UUID]bool
}

func newContext(events []models.SignalEvent, opts analysis.Options) stageContext {
	c := stageContext{threads: analysis.Cluster(events, opts), paired: make(map[uuid.UUID]bool)}
	for _, th := range c.threads {
		for _, p := range th.Pairs {
			c.paired[p.Opened.ID] = true
		}
	}
	return c
}

func (c stageContext) dimensions(stage models.Stage, members []models.SignalEvent) map[string]Dimension {
	return map[string]Dimension{
		DimFriction:   friction(members),
		DimRecurrence: c.recurrence(stage),
		DimEscalation: c.escalation(stage, members),
		DimResolution: c.resolution(members),
		DimEffort:     effort(members),
	}
}

func measured(score float64) Dimension {
	return Dimension{Score: analysis.Round1(analysis.Clamp(score, 0, 100)), Confidence: models.ConfidenceHigh}
}

func unmeasured() Dimension {
	return Dimension{Score: neutral, Confidence: models.ConfidenceLow}
}

func friction(members []models.SignalEvent) Dimension {
	for _, e := range members {
		if v := e.Valence(); v == models.ValenceNegative || v == models.ValencePositive {
			return measured(analysis.Impact(members))
		}
	}
	return unmeasured()
}

// recurrence is the share of the stage's threads that recurred with a
// later incident inside the stage.
func (c stageContext) recurrence(stage models.Stage) Dimension {
	total, recurring := 0, 0
	for _, th := range c.threads {
		if !hasStage(th.Events, stage) {
			continue
		}
		total++
		for _, inc := range th.Incidents[1:] {
			if hasStage(inc.Events, stage) {
				recurring++
				break
			}
		}
	}
	if total == 0 {
		return unmeasured()
	}
	return measured(100 - float64(recurring)/float64(total)*100)
}

func (c stageContext) escalation(stage models.Stage, members []models.SignalEvent) Dimension {
	withSeverity := 0
	for _, e := range members {
		if e.Severity.Valid() {
			withSeverity++
		}
	}
	if withSeverity < 2 {
		return unmeasured()
	}
	escalations := 0
	for _, th := range c.threads {
		for _, esc := range th.Escalations {
			if esc.Event.Stage() == stage {
				escalations++
			}
		}
	}
	return measured(100 - float64(escalations)/float64(withSeverity-1)*100)
}

func (c stageContext) resolution(members []models.SignalEvent) Dimension {
	created, matched := 0, 0
	for _, e := range members {
		if e.EventType != models.EventTicketCreated {
			continue
		}
		created++
		if c.paired[e.ID] {
			matched++
		}
	}
	if created == 0 {
		return unmeasured()
	}
	return measured(float64(matched) / float64(created) * 100)
}

func effort(members []models.SignalEvent) Dimension {
	peripheral := 0
	for _, e := range members {
		if ok, _ := classify.Peripheral(e); ok {
			peripheral++
		}
	}
	return measured(100 - float64(peripheral)/float64(len(members))*100)
}

func hasStage(events []models.SignalEvent, stage models.Stage) bool {
	for _, e := range events {
		if e.Stage() == stage {
			return true
		}
	}
	return false
}

func combine(stage models.Stage, dims map[string]Dimension) float64 {
	weights := stageWeights[stage]
	sum := 0.0
	for _, d := range Dimensions {
		sum += dims[d].Score * weights[d]
	}
	return analysis.Round1(sum)
}

func explain(stage models.Stage, dims map[string]Dimension, score float64, signals int) string {
	quality := "rough"
	switch {
	case score >= 70:
		quality = "smooth"
	case score >= 40:
		quality = "moderate"
	}
	plural := "s"
	if signals == 1 {
		plural = ""
	}
	msg := fmt.Sprintf("%s was %s (%d signal%s). ", titleCase(string(stage)), quality, signals, plural)
	if score >= 70 {
		return msg + "No major concerns."
	}
	worst, worstScore := "", math.Inf(1)
	for _, d := range Dimensions {
		if dims[d].Score < worstScore {
			worst, worstScore = d, dims[d].Score
		}
	}
	return msg + "Main concern: " + concernLabels[worst] + "."
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
