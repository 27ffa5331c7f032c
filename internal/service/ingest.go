package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// MaxIngestBatch caps one ingest request.
const MaxIngestBatch = 1000

var sourceTypes = map[string]bool{
	models.SourceEmail:  true,
	models.SourceJira:   true,
	models.SourceDrive:  true,
	models.SourceManual: true,
}

// SignalInput is one signal as submitted by a connector. OccurredAt is
// RFC3339; an empty or unparseable value stores the signal untimed.
type SignalInput struct {
	SourceType string         `json:"source_type"`
	SourceID   *string        `json:"source_id,omitempty"`
	EventType  string         `json:"event_type"`
	Severity   string         `json:"severity,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt string         `json:"occurred_at"`
}

// IngestResult reports what happened to a batch.
type IngestResult struct {
	Received   int `json:"received"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Untimed    int `json:"untimed"`
}

// IngestService validates, tags and stores incoming signals.
type IngestService struct {
	store store.Store
	clock Clock
}

// NewIngestService creates an IngestService. A nil clock uses SystemClock.
func NewIngestService(st store.Store, clock Clock) *IngestService {
	return &IngestService{store: st, clock: orSystem(clock)}
}

// Ingest stores inputs for the software. The batch is rejected as a whole
// when any input is invalid. Tags missing from metadata are backfilled by the
// keyword tagger; a signal already stored under the same source id is skipped.
func (s *IngestService) Ingest(ctx context.Context, companyID, softwareID uuid.UUID, inputs []SignalInput) (*IngestResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no signals in request", ErrInvalidSignal)
	}
	if len(inputs) > MaxIngestBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d", ErrInvalidSignal, len(inputs), MaxIngestBatch)
	}

	sw, err := s.store.GetSoftware(ctx, softwareID, companyID)
	if err != nil {
		return nil, fmt.Errorf("get software: %w", err)
	}

	now := s.clock()
	res := &IngestResult{Received: len(inputs)}
	events := make([]models.SignalEvent, 0, len(inputs))
	for i, in := range inputs {
		e, err := toEvent(in)
		if err != nil {
			return nil, fmt.Errorf("%w: signals[%d]: %v", ErrInvalidSignal, i, err)
		}
		e.CompanyID = companyID
		e.SoftwareID = softwareID
		if !e.HasTimestamp() {
			res.Untimed++
		}
		classify.Backfill(&e, sw.CreatedAt, now)
		events = append(events, e)
	}

	inserted, err := s.store.InsertSignals(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("insert signals: %w", err)
	}
	res.Inserted = inserted
	res.Duplicates = len(events) - inserted

	slog.Info("signals ingested", "software_id", softwareID, "received", res.Received,
		"inserted", res.Inserted, "duplicates", res.Duplicates, "untimed", res.Untimed)
	return res, nil
}

func toEvent(in SignalInput) (models.SignalEvent, error) {
	if !sourceTypes[in.SourceType] {
		return models.SignalEvent{}, fmt.Errorf("unknown source_type %q", in.SourceType)
	}
	if strings.TrimSpace(in.EventType) == "" {
		return models.SignalEvent{}, fmt.Errorf("event_type is required")
	}
	sev := models.Severity(strings.ToLower(in.Severity))
	if sev != "" && !sev.Valid() {
		return models.SignalEvent{}, fmt.Errorf("unknown severity %q", in.Severity)
	}
	if in.SourceID != nil && *in.SourceID == "" {
		in.SourceID = nil
	}

	e := models.SignalEvent{
		ID:         uuid.New(),
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		EventType:  in.EventType,
		Severity:   sev,
		Title:      in.Title,
		Body:       in.Body,
		Metadata:   models.Metadata(in.Metadata),
	}
	if ts, err := time.Parse(time.RFC3339, in.OccurredAt); err == nil {
		e.OccurredAt = ts.UTC()
	}
	return e, nil
}
