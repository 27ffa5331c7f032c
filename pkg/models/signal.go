package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source types.
const (
	SourceEmail  = "email"
	SourceJira   = "jira"
	SourceDrive  = "drive"
	SourceManual = "manual"
)

// Event types emitted by connectors.
const (
	EventTicketCreated  = "ticket_created"
	EventTicketReopened = "ticket_reopened"
	EventTicketResolved = "ticket_resolved"
	EventTicketUpdated  = "ticket_updated"
	EventCommentAdded   = "comment_added"
	EventEmailReceived  = "email_received"
	EventEmailSent      = "email_sent"
	EventSupportEmail   = "support_email_received"
	EventVendorEmail    = "vendor_email"
	EventFeatureRequest = "feature_request"
)

// Severity is the upstream-assigned severity of a signal. The empty value
// means the signal carried no severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the known severities from lowest to highest.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Severity weights used for incident density and friction impact.
const (
	WeightCritical = 4.0
	WeightHigh     = 2.5
	WeightMedium   = 1.0
	WeightLow      = 0.3
)

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Rank orders severities low=0 .. critical=3. Unknown or empty returns -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Weight returns the severity weight. Signals without a severity weigh as medium.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return WeightLow
	case SeverityHigh:
		return WeightHigh
	case SeverityCritical:
		return WeightCritical
	default:
		return WeightMedium
	}
}

// Metadata keys written by the upstream classification step.
const (
	MetaValence            = "valence"
	MetaSubject            = "subject"
	MetaStageTopic         = "stage_topic"
	MetaHealthCategories   = "health_categories"
	MetaTopic              = "topic"
	MetaThreadKey          = "thread_key"
	MetaIssueKey           = "issue_key"
	MetaDirection          = "direction"
	MetaPerformanceTags    = "performance_tags"
	MetaReliabilityNumbers = "reliability_numbers"
	MetaIncident           = "is_incident"
	MetaEffortScope        = "effort_scope"
	MetaPeripheralCategory = "peripheral_category"
)

const (
	ValencePositive = "positive"
	ValenceNegative = "negative"
	ValenceNeutral  = "neutral"
)

const (
	SubjectInternalImpl  = "internal_impl"
	SubjectVendorIssue   = "vendor_issue"
	SubjectVendorRequest = "vendor_request"
	SubjectVendorComm    = "vendor_comm"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	EffortCore       = "core"
	EffortPeripheral = "peripheral"
)

// Stage is one step of the integration lifecycle.
type Stage string

const (
	StageOnboarding    Stage = "onboarding"
	StageIntegration   Stage = "integration"
	StageStabilization Stage = "stabilization"
	StageProductive    Stage = "productive"
	StageOptimization  Stage = "optimization"
)

// Stages lists the lifecycle in order.
var Stages = []Stage{StageOnboarding, StageIntegration, StageStabilization, StageProductive, StageOptimization}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known lifecycle stage.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// Health categories scored by the health scorer.
const (
	CategoryReliability    = "reliability"
	CategoryPerformance    = "performance"
	CategoryFitness        = "fitness_for_purpose"
	CategorySupportQuality = "support_quality"
)

// Metadata is the opaque key-value bag attached to a signal. The typed
// accessors tolerate the shapes JSON decoding produces.
type Metadata map[string]any

// String returns the string value at key, or "".
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Strings returns the string list at key. Non-string members are skipped.
func (m Metadata) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Bool returns the boolean at key. Missing keys are false.
func (m Metadata) Bool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// Float returns the number at key and whether it was present.
func (m Metadata) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Map returns the nested object at key, or nil.
func (m Metadata) Map(key string) Metadata {
	switch v := m[key].(type) {
	case map[string]any:
		return Metadata(v)
	case Metadata:
		return v
	}
	return nil
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// SignalEvent is one immutable operational fact about a vendor-software
// relationship. A zero OccurredAt means the connector could not supply a
// parseable event time.
type SignalEvent struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	CompanyID  uuid.UUID `db:"company_id"  json:"company_id"`
	SoftwareID uuid.UUID `db:"software_id" json:"software_id"`
	SourceType string    `db:"source_type" json:"source_type"`
	SourceID   *string   `db:"source_id"   json:"source_id,omitempty"`
	EventType  string    `db:"event_type"  json:"event_type"`
	Severity   Severity  `db:"severity"    json:"severity,omitempty"`
	Title      string    `db:"title"       json:"title"`
	Body       string    `db:"body"        json:"body,omitempty"`
	Metadata   Metadata  `db:"metadata"    json:"metadata"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

func (e SignalEvent) HasTimestamp() bool { return !e.OccurredAt.IsZero() }

func (e SignalEvent) Valence() string    { return e.Metadata.String(MetaValence) }
func (e SignalEvent) Subject() string    { return e.Metadata.String(MetaSubject) }
func (e SignalEvent) StageTopic() string { return e.Metadata.String(MetaStageTopic) }
func (e SignalEvent) Direction() string  { return e.Metadata.String(MetaDirection) }

// HealthCategories returns the health categories assigned upstream.
func (e SignalEvent) HealthCategories() []string {
	return e.Metadata.Strings(MetaHealthCategories)
}

// InCategory reports whether the signal was tagged with the health category.
func (e SignalEvent) InCategory(category string) bool {
	for _, c := range e.HealthCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// Text is the lowercased title and body, used by keyword matching.
func (e SignalEvent) Text() string {
	return strings.ToLower(strings.TrimSpace(e.Title + " " + e.Body))
}

// IsLifecycleOpen reports whether the event opens a ticket cycle.
func (e SignalEvent) IsLifecycleOpen() bool {
	return e.EventType == EventTicketCreated || e.EventType == EventTicketReopened
}

// IsResolution reports whether the event closes a ticket cycle.
func (e SignalEvent) IsResolution() bool {
	return e.EventType == EventTicketResolved
}

// Stage returns the lifecycle stage tagged upstream. Untagged or unknown
// stages count as productive.
func (e SignalEvent) Stage() Stage {
	if s := Stage(e.StageTopic()); s.Valid() {
		return s
	}
	return StageProductive
}
