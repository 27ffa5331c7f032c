// Package health turns a scoring window of signals into a HealthScore: four
// category sub-scores, a weighted composite, per-category confidence and a
// confidence tier for the whole snapshot.
package health

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/analysis"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/internal/window"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// ErrNoSignals is returned when the scoring window holds no usable signal.
// No score is produced in that case.
var ErrNoSignals = errors.New("no signals in scoring window")

// Neutral is the score of a category, or sub-score, with nothing to measure.
const Neutral = 75.0

// Categories lists the scored categories in report order.
var Categories = []string{
	models.CategoryReliability,
	models.CategoryPerformance,
	models.CategoryFitness,
	models.CategorySupportQuality,
}

const maxHighlights = 5

// Options tune the scorer.
type Options struct {
	Weights            map[string]float64
	DevelopingSignals  int
	SolidSignals       int
	CategoryMinSignals int
	Incidents          analysis.Options
}

// DefaultOptions mirrors the built-in thresholds.
func DefaultOptions() Options {
	return Options{
		Weights: map[string]float64{
			models.CategoryReliability:    0.30,
			models.CategoryPerformance:    0.30,
			models.CategoryFitness:        0.25,
			models.CategorySupportQuality: 0.15,
		},
		DevelopingSignals:  5,
		SolidSignals:       15,
		CategoryMinSignals: 2,
		Incidents:          analysis.DefaultOptions(),
	}
}

// Category is one scored category with the sub-scores behind it.
type Category struct {
	Name       string             `json:"name"`
	Score      float64            `json:"score"`
	Confidence models.Confidence  `json:"confidence"`
	Signals    int                `json:"signals"`
	Sub        map[string]float64 `json:"sub_scores"`
}

// Report is the scorer output. Score is ready to persist once the caller
// sets its IDs.
type Report struct {
	Score          models.HealthScore `json:"score"`
	Categories     []Category         `json:"categories"`
	SeverityCounts map[string]int     `json:"severity_counts"`
	WhatWorks      []string           `json:"what_works"`
	WhatDoesnt     []string           `json:"what_doesnt"`
}

// Tier maps a signal count to a confidence tier.
func Tier(signals int, opts Options) models.ConfidenceTier {
	return models.TierFor(signals, opts.DevelopingSignals, opts.SolidSignals)
}

// Score computes a health snapshot from the signals inside w.
func Score(events []models.SignalEvent, w window.Window, softwareName string, opts Options) (Report, error) {
	inWindow := window.NewTimeline(events).Between(w)
	if len(inWindow) == 0 {
		return Report{}, ErrNoSignals
	}

	paired := make(map[uuid.UUID]bool)
	for _, th := range analysis.Cluster(inWindow, opts.Incidents) {
		for _, p := range th.Pairs {
			paired[p.Opened.ID] = true
		}
	}

	var cats []Category
	for _, name := range Categories {
		var members []models.SignalEvent
		for _, e := range inWindow {
			if e.InCategory(name) {
				members = append(members, e)
			}
		}
		var c Category
		if name == models.CategorySupportQuality {
			c = scoreSupport(members, opts.Incidents)
		} else {
			c = scoreCategory(members, paired)
		}
		c.Name = name
		c.Signals = len(members)
		c.Confidence = models.ConfidenceLow
		if len(members) >= opts.CategoryMinSignals {
			c.Confidence = models.ConfidenceHigh
		}
		cats = append(cats, c)
	}

	breakdown := make(map[string]int, len(cats))
	confidence := make(map[string]models.Confidence, len(cats))
	weighted, totalWeight := 0.0, 0.0
	for _, c := range cats {
		breakdown[c.Name] = int(math.Round(c.Score))
		confidence[c.Name] = c.Confidence
		wt := opts.Weights[c.Name]
		weighted += c.Score * wt
		totalWeight += wt
	}
	composite := Neutral
	if totalWeight > 0 {
		composite = weighted / totalWeight
	}

	severities, works, doesnt := highlights(inWindow)
	return Report{
		Score: models.HealthScore{
			Score:              int(math.Round(analysis.Clamp(composite, 0, 100))),
			CategoryBreakdown:  breakdown,
			CategoryConfidence: confidence,
			SignalSummary:      summary(softwareName, len(inWindow), severities, works, doesnt),
			SignalCount:        len(inWindow),
			ConfidenceTier:     Tier(len(inWindow), opts),
			ScoringWindowStart: w.Start,
			ScoringWindowEnd:   w.End,
		},
		Categories:     cats,
		SeverityCounts: severities,
		WhatWorks:      works,
		WhatDoesnt:     doesnt,
	}, nil
}

// scoreCategory blends impact (0.5), resolution (0.3) and trend (0.2).
func scoreCategory(members []models.SignalEvent, paired map[uuid.UUID]bool) Category {
	if len(members) == 0 {
		return neutralCategory("impact", "resolution", "trend")
	}
	impact := analysis.Impact(members)
	resolution := resolutionRate(members, paired)
	trend := burdenTrend(members)
	return Category{
		Score: analysis.Round1(analysis.Clamp(impact*0.5+resolution*0.3+trend*0.2, 0, 100)),
		Sub: map[string]float64{
			"impact":     analysis.Round1(impact),
			"resolution": analysis.Round1(resolution),
			"trend":      analysis.Round1(trend),
		},
	}
}

func neutralCategory(keys ...string) Category {
	sub := make(map[string]float64, len(keys))
	for _, k := range keys {
		sub[k] = Neutral
	}
	return Category{Score: Neutral, Sub: sub}
}

func resolutionRate(members []models.SignalEvent, paired map[uuid.UUID]bool) float64 {
	created, matched := 0, 0
	for _, e := range members {
		if e.EventType != models.EventTicketCreated {
			continue
		}
		created++
		if paired[e.ID] {
			matched++
		}
	}
	if created == 0 {
		return Neutral
	}
	return float64(matched) / float64(created) * 100
}

// burdenTrend compares mean negative severity weight in the recent half of
// the members against the earlier half. Fewer than four signals is neutral.
func burdenTrend(members []models.SignalEvent) float64 {
	if len(members) < 4 {
		return Neutral
	}
	mid := len(members) / 2
	earlier := negativeBurden(members[:mid])
	recent := negativeBurden(members[mid:])
	switch {
	case earlier == 0 && recent == 0:
		return Neutral
	case earlier == 0:
		return math.Max(0, Neutral-recent*10)
	default:
		return analysis.Clamp(Neutral+(1-recent/earlier)*25, 0, 100)
	}
}

func negativeBurden(events []models.SignalEvent) float64 {
	sum := 0.0
	for _, e := range events {
		if e.Valence() == models.ValenceNegative {
			sum += e.Severity.Weight()
		}
	}
	return sum / float64(len(events))
}

// scoreSupport averages a response sub-score, driven by median vendor reply
// lag and unanswered messages, with a resolution-speed sub-score.
func scoreSupport(members []models.SignalEvent, incidents analysis.Options) Category {
	response, speed := Neutral, Neutral
	if p, ok := metrics.Aggregate(metrics.Responsiveness, members, incidents); ok {
		if lag, ok := p.Values["median_lag_hours"]; ok {
			response = 100 * 24 / (24 + lag)
		}
		response = analysis.Clamp(response-10*p.Values["unanswered_count"], 0, 100)
	}
	if p, ok := metrics.Aggregate(metrics.ResolutionTime, members, incidents); ok {
		if median, ok := p.Values["issue_median_hours"]; ok {
			speed = 100 * 72 / (72 + median)
		}
	}
	return Category{
		Score: analysis.Round1((response + speed) / 2),
		Sub: map[string]float64{
			"response":   analysis.Round1(response),
			"resolution": analysis.Round1(speed),
		},
	}
}

// highlights counts severities (missing counts as medium) and collects the
// first distinct positive and medium-or-worse negative titles.
func highlights(events []models.SignalEvent) (map[string]int, []string, []string) {
	counts := map[string]int{}
	for _, s := range models.Severities {
		counts[string(s)] = 0
	}
	var works, doesnt []string
	seen := map[string]bool{}
	for _, e := range events {
		sev := e.Severity
		if !sev.Valid() {
			sev = models.SeverityMedium
		}
		counts[string(sev)]++

		label := e.Title
		if label == "" {
			label = e.EventType
		}
		if seen[label] {
			continue
		}
		switch {
		case e.Valence() == models.ValencePositive && len(works) < maxHighlights:
			works = append(works, label)
			seen[label] = true
		case e.Valence() == models.ValenceNegative && sev.Rank() >= models.SeverityMedium.Rank() && len(doesnt) < maxHighlights:
			doesnt = append(doesnt, label)
			seen[label] = true
		}
	}
	return counts, works, doesnt
}

func summary(name string, total int, severities map[string]int, works, doesnt []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Over the analysis window, %d signal events were recorded for %s. ", total, name)
	fmt.Fprintf(&b, "Severity breakdown: %d critical, %d high, %d medium, %d low.",
		severities[string(models.SeverityCritical)], severities[string(models.SeverityHigh)],
		severities[string(models.SeverityMedium)], severities[string(models.SeverityLow)])
	if len(works) > 0 {
		b.WriteString(" What works: " + strings.Join(works, "; ") + ".")
	}
	if len(doesnt) > 0 {
		b.WriteString(" What doesn't: " + strings.Join(doesnt, "; ") + ".")
	}
	return b.String()
}
