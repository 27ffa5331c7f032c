// Package classify is the deterministic keyword tagger. It backfills the
// metadata tags an upstream classifier normally supplies (valence, subject,
// stage_topic, health_categories, topic, direction) and answers the keyword
// fallbacks the metric calculators use when a tag is missing.
package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var (
	replyPrefix  = regexp.MustCompile(`(?i)^((re|fwd|fw):\s*)+`)
	ticketPrefix = regexp.MustCompile(`^\[[A-Za-z]+-\d+\]\s*`)
	spaces       = regexp.MustCompile(`\s+`)
)

// NormalizeTitle strips reply/forward and [ABC-123] prefixes, lowercases and
// collapses whitespace. Used as a thread key for topic backfill.
func NormalizeTitle(title string) string {
	s := strings.TrimSpace(title)
	s = strings.TrimSpace(replyPrefix.ReplaceAllString(s, ""))
	s = strings.TrimSpace(ticketPrefix.ReplaceAllString(s, ""))
	s = spaces.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Valence classifies an event as positive, negative or neutral.
func Valence(eventType, text string) string {
	switch eventType {
	case models.EventTicketResolved:
		return models.ValencePositive
	case models.EventTicketCreated, models.EventTicketReopened:
		return models.ValenceNegative
	}
	if containsAny(text, positiveKeywords) {
		return models.ValencePositive
	}
	if containsAny(text, negativeKeywords) {
		return models.ValenceNegative
	}
	return models.ValenceNeutral
}

// Subject classifies who or what the signal is about.
func Subject(eventType, text string) string {
	switch {
	case containsAny(text, internalImplKeywords):
		return models.SubjectInternalImpl
	case containsAny(text, vendorIssueKeywords):
		return models.SubjectVendorIssue
	case containsAny(text, vendorRequestKeywords), eventType == models.EventFeatureRequest:
		return models.SubjectVendorRequest
	default:
		return models.SubjectVendorComm
	}
}

// StageTopic infers the lifecycle stage from keywords with a mild prior from
// how long the software has been registered.
func StageTopic(text string, daysSinceRegistration int) models.Stage {
	scores := make(map[string]float64, len(stageKeywordTable))
	for _, row := range stageKeywordTable {
		for _, kw := range row.keywords {
			if strings.Contains(text, kw) {
				scores[row.stage]++
			}
		}
	}

	prior := stageForAge(daysSinceRegistration)
	if daysSinceRegistration >= 180 {
		scores[string(models.StageOptimization)] += 0.3
		scores[string(models.StageProductive)] += 0.3
	} else {
		scores[string(prior)] += 0.5
	}

	best, bestScore := "", 0.0
	for _, row := range stageKeywordTable {
		if scores[row.stage] > bestScore {
			best, bestScore = row.stage, scores[row.stage]
		}
	}
	if best == "" {
		return prior
	}
	return models.Stage(best)
}

func stageForAge(days int) models.Stage {
	switch {
	case days < 14:
		return models.StageOnboarding
	case days < 45:
		return models.StageIntegration
	case days < 90:
		return models.StageStabilization
	case days < 180:
		return models.StageProductive
	default:
		return models.StageOptimization
	}
}

// HealthCategories returns the multi-label health categories for a signal.
func HealthCategories(eventType, subject, text string) []string {
	var cats []string
	if containsAny(text, reliabilityKeywords) {
		cats = append(cats, models.CategoryReliability)
	}
	if containsAny(text, performanceKeywords) {
		cats = append(cats, models.CategoryPerformance)
	}
	if containsAny(text, fitnessKeywords) || subject == models.SubjectVendorRequest {
		cats = append(cats, models.CategoryFitness)
	}
	if containsAny(text, supportKeywords) || isEmail(eventType) {
		cats = append(cats, models.CategorySupportQuality)
	}

	if len(cats) == 0 {
		switch {
		case subject == models.SubjectVendorRequest || eventType == models.EventFeatureRequest:
			cats = append(cats, models.CategoryFitness)
		case subject == models.SubjectVendorIssue:
			cats = append(cats, models.CategoryReliability)
		case eventType == models.EventTicketCreated || eventType == models.EventTicketResolved:
			cats = append(cats, models.CategoryReliability)
		}
	}
	return cats
}

func isEmail(eventType string) bool {
	switch eventType {
	case models.EventEmailReceived, models.EventEmailSent, models.EventSupportEmail, models.EventVendorEmail:
		return true
	}
	return false
}

// Direction reports whether an email event flowed company→vendor (outbound)
// or vendor→company (inbound). Non-email events return "".
func Direction(eventType string) string {
	switch eventType {
	case models.EventEmailSent:
		return models.DirectionOutbound
	case models.EventEmailReceived, models.EventSupportEmail, models.EventVendorEmail:
		return models.DirectionInbound
	}
	return ""
}

// IsIncident reports whether the event is a reliability incident. An
// upstream is_incident flag wins over keyword matching.
func IsIncident(e models.SignalEvent) bool {
	if e.Metadata.Has(models.MetaIncident) {
		return e.Metadata.Bool(models.MetaIncident)
	}
	return containsAny(e.Text(), IncidentKeywords)
}

// PerformanceTags returns (latency, rate limit) for the event, preferring the
// upstream performance_tags object. Rows the upstream never tagged fall back
// to keyword matching.
func PerformanceTags(e models.SignalEvent) (latency, rateLimit bool) {
	if tags := e.Metadata.Map(models.MetaPerformanceTags); tags != nil {
		return tags.Bool("has_latency"), tags.Bool("has_rate_limit")
	}
	text := e.Text()
	return containsAny(text, latencyKeywords), containsAny(text, rateLimitKeywords)
}

// Peripheral reports whether the signal concerns ecosystem friction rather
// than the product itself, and the matched category name. An upstream
// effort_scope wins; untagged rows fall back to keyword matching.
func Peripheral(e models.SignalEvent) (bool, string) {
	switch e.Metadata.String(models.MetaEffortScope) {
	case models.EffortPeripheral:
		return true, e.Metadata.String(models.MetaPeripheralCategory)
	case models.EffortCore:
		return false, ""
	}
	text := e.Text()
	for _, cat := range PeripheralCategories {
		if containsAny(text, cat.Keywords) {
			return true, cat.Name
		}
	}
	return false, ""
}

// Ticket tracks kept apart by resolution-time reporting.
const (
	TrackIssue   = "issue"
	TrackFeature = "feature"
)

// TicketTrack classifies an opening ticket event as an issue or a feature request.
func TicketTrack(e models.SignalEvent) string {
	switch e.Subject() {
	case models.SubjectVendorIssue:
		return TrackIssue
	case models.SubjectInternalImpl, models.SubjectVendorRequest:
		return TrackFeature
	}
	if e.Valence() == models.ValenceNegative {
		return TrackIssue
	}
	if e.EventType == models.EventFeatureRequest {
		return TrackFeature
	}
	return TrackIssue
}

// Tokenize splits free text into lowercase words, dropping stop words and
// words of two characters or fewer.
func Tokenize(text string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) > 2 && !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

// Backfill fills metadata tags that are missing on e. Present tags are never
// overwritten. registeredAt and now drive the stage prior.
func Backfill(e *models.SignalEvent, registeredAt, now time.Time) {
	if e.Metadata == nil {
		e.Metadata = models.Metadata{}
	}
	m := e.Metadata
	text := e.Text()

	if m.String(models.MetaValence) == "" {
		m[models.MetaValence] = Valence(e.EventType, text)
	}
	if m.String(models.MetaSubject) == "" {
		m[models.MetaSubject] = Subject(e.EventType, text)
	}
	if m.String(models.MetaStageTopic) == "" {
		ref := now
		if e.HasTimestamp() {
			ref = e.OccurredAt
		}
		days := int(ref.Sub(registeredAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		m[models.MetaStageTopic] = string(StageTopic(text, days))
	}
	if !m.Has(models.MetaHealthCategories) {
		m[models.MetaHealthCategories] = HealthCategories(e.EventType, m.String(models.MetaSubject), text)
	}
	if m.String(models.MetaDirection) == "" {
		if d := Direction(e.EventType); d != "" {
			m[models.MetaDirection] = d
		}
	}
	if m.String(models.MetaTopic) == "" && m.String(models.MetaThreadKey) == "" && m.String(models.MetaIssueKey) == "" {
		if e.SourceType == models.SourceJira && e.SourceID != nil && *e.SourceID != "" {
			m[models.MetaIssueKey] = jiraIssueKey(*e.SourceID)
		} else if norm := NormalizeTitle(e.Title); norm != "" {
			m[models.MetaTopic] = norm
		}
	}
}

// Jira source ids look like "ABC-123" or "ABC-123:<event suffix>".
func jiraIssueKey(sourceID string) string {
	if i := strings.IndexByte(sourceID, ':'); i > 0 {
		return sourceID[:i]
	}
	return sourceID
}
