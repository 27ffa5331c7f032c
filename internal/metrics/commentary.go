package metrics

import (
	"fmt"
	"strings"

	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
)

func trendPhrase(t Trend) string {
	switch t {
	case TrendIncreasing:
		return "rising"
	case TrendDeclining:
		return "falling"
	case TrendImproving:
		return "improving"
	case TrendWorsening:
		return "getting worse"
	default:
		return "holding steady"
	}
}

func latest(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	return points[len(points)-1]
}

func withExamples(msg string, p Point) string {
	if len(p.Examples) == 0 {
		return msg
	}
	return msg + " Most recent: " + strings.Join(p.Examples, "; ") + "."
}

func describeIssueRate(t Trend, points []Point, windowDays int) string {
	p := latest(points)
	msg := fmt.Sprintf("Issue volume is %s: %d issue signals in the last %d days.", trendPhrase(t), p.Count, windowDays)
	return withExamples(msg, p)
}

func describeRate(label, noun string) func(Trend, []Point, int) string {
	return func(t Trend, points []Point, windowDays int) string {
		p := latest(points)
		msg := fmt.Sprintf("%s is %s at %.1f%% (%d %s across %d in the last %d days).",
			label, trendPhrase(t), p.Rate, p.Count, noun, p.Total, windowDays)
		return withExamples(msg, p)
	}
}

func describeResolution(t Trend, points []Point, windowDays int) string {
	p := latest(points)
	median, ok := p.Values["issue_median_hours"]
	if !ok {
		return fmt.Sprintf("No issues were resolved in the last %d days; %d remain open.",
			windowDays, int(p.Values["issue_open"]))
	}
	return withExamples(fmt.Sprintf("Issue resolution time is %s: median %s, p90 %s, %d still open.",
		trendPhrase(t), formatHours(median), formatHours(p.Values["issue_p90_hours"]), int(p.Values["issue_open"])), p)
}

// describeFeatureTrack adds the feature-request track to the resolution
// commentary when the latest window resolved any feature request.
func describeFeatureTrack(tracks map[string]Trend, points []Point) string {
	p := latest(points)
	median, ok := p.Values["feature_median_hours"]
	if !ok {
		return ""
	}
	return fmt.Sprintf(" Feature request resolution is %s: median %s, %d still open.",
		trendPhrase(tracks[classify.TrackFeature]), formatHours(median), int(p.Values["feature_open"]))
}

func describeResponsiveness(t Trend, points []Point, windowDays int) string {
	p := latest(points)
	median, ok := p.Values["median_lag_hours"]
	if !ok {
		return fmt.Sprintf("No vendor replies in the last %d days; %d messages are waiting on an answer.",
			windowDays, int(p.Values["unanswered_count"]))
	}
	return fmt.Sprintf("Vendor responsiveness is %s: median reply %s, %d proactive updates, %d unanswered.",
		trendPhrase(t), formatHours(median), int(p.Values["proactive_count"]), int(p.Values["unanswered_count"]))
}

func describeReliability(t Trend, points []Point, windowDays int) string {
	p := latest(points)
	msg := fmt.Sprintf("Reliability is %s: %d incidents in the last %d days (weighted density %.2f).",
		trendPhrase(t), p.Count, windowDays, p.Rate)
	if mtbf, ok := p.Values["mtbf_hours"]; ok {
		msg += fmt.Sprintf(" Mean time between incidents %s.", formatHours(mtbf))
	}
	return withExamples(msg, p)
}

func describePerformance(t Trend, points []Point, windowDays int) string {
	p := latest(points)
	msg := fmt.Sprintf("Performance complaints are %s: %d latency and %d rate-limit signals in the last %d days.",
		trendPhrase(t), int(p.Values["latency_count"]), int(p.Values["rate_limit_count"]), windowDays)
	return withExamples(msg, p)
}

func formatHours(h float64) string {
	switch {
	case h < 1:
		return fmt.Sprintf("%.0fm", h*60)
	case h < 48:
		return fmt.Sprintf("%.1fh", h)
	default:
		return fmt.Sprintf("%.1fd", h/24)
	}
}
