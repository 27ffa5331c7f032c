package analysis

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntheticfinds/vendor-software-integration/internal/classify"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func ev(topic, eventType string, sev models.Severity, offset time.Duration) models.SignalEvent {
	meta := models.Metadata{}
	if topic != "" {
		meta[models.MetaTopic] = topic
	}
	return models.SignalEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Severity:   sev,
		Title:      topic,
		Metadata:   meta,
		OccurredAt: t0.Add(offset),
	}
}

func TestThreadKey(t *testing.T) {
	tests := []struct {
		name string
		meta models.Metadata
		want string
	}{
		{"thread key wins", models.Metadata{models.MetaThreadKey: "t1", models.MetaIssueKey: "OPS-1", models.MetaTopic: "x"}, "thread_key:t1"},
		{"issue key", models.Metadata{models.MetaIssueKey: "OPS-1", models.MetaTopic: "x"}, "issue_key:OPS-1"},
		{"topic", models.Metadata{models.MetaTopic: "x"}, "topic:x"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThreadKey(models.SignalEvent{Metadata: tt.meta}))
		})
	}
}

func TestCluster_Empty(t *testing.T) {
	got := Cluster(nil, DefaultOptions())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCluster_Partition(t *testing.T) {
	events := []models.SignalEvent{
		ev("login", models.EventTicketCreated, models.SeverityLow, 0),
		ev("", models.EventCommentAdded, "", time.Hour),
		ev("export", models.EventTicketCreated, models.SeverityMedium, 2*time.Hour),
		ev("login", models.EventTicketUpdated, models.SeverityHigh, 3*time.Hour),
		ev("", models.EventCommentAdded, "", 4*time.Hour),
	}

	threads := Cluster(events, DefaultOptions())
	require.Len(t, threads, 4, "two topic threads plus two singletons")

	seen := map[uuid.UUID]int{}
	for _, th := range threads {
		for _, e := range th.Events {
			seen[e.ID]++
		}
	}
	assert.Len(t, seen, len(events))
	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s appears in %d threads", id, n)
	}

	assert.Equal(t, "login", threads[0].Label)
	assert.Len(t, threads[0].Events, 2)
	assert.True(t, threads[1].Singleton)
	assert.Equal(t, t0, threads[0].FirstSeen)
	assert.Equal(t, t0.Add(3*time.Hour), threads[0].LastSeen)
}

func TestDetectEscalations(t *testing.T) {
	t.Run("medium medium high", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, models.SeverityMedium, 0),
			ev("a", models.EventCommentAdded, models.SeverityMedium, time.Hour),
			ev("a", models.EventTicketUpdated, models.SeverityHigh, 2*time.Hour),
		}
		got := DetectEscalations(events)
		require.Len(t, got, 1)
		assert.Equal(t, models.SeverityMedium, got[0].From)
		assert.Equal(t, models.SeverityHigh, got[0].To)
		assert.Equal(t, "medium→high", got[0].Label())
	})

	t.Run("de-escalation", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, models.SeverityHigh, 0),
			ev("a", models.EventTicketUpdated, models.SeverityMedium, time.Hour),
		}
		assert.Empty(t, DetectEscalations(events))
	})

	t.Run("running max", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, models.SeverityHigh, 0),
			ev("a", models.EventTicketUpdated, models.SeverityLow, time.Hour),
			ev("a", models.EventTicketUpdated, models.SeverityMedium, 2*time.Hour),
			ev("a", models.EventTicketUpdated, models.SeverityCritical, 3*time.Hour),
		}
		got := DetectEscalations(events)
		require.Len(t, got, 1)
		assert.Equal(t, "high→critical", got[0].Label())
	})

	t.Run("missing severities skipped", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, "", 0),
			ev("a", models.EventTicketUpdated, models.SeverityLow, time.Hour),
			ev("a", models.EventTicketUpdated, "", 2*time.Hour),
			ev("a", models.EventTicketUpdated, models.SeverityHigh, 3*time.Hour),
		}
		got := DetectEscalations(events)
		require.Len(t, got, 1)
		assert.Equal(t, "low→high", got[0].Label())
	})
}

func TestPairTickets(t *testing.T) {
	t.Run("created then resolved", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, models.SeverityMedium, 0),
			ev("a", models.EventTicketResolved, "", 26*time.Hour),
		}
		pairs, pending, orphans := PairTickets(events)
		require.Len(t, pairs, 1)
		assert.InDelta(t, 26.0, pairs[0].Hours(), 1e-9)
		assert.Nil(t, pending)
		assert.Zero(t, orphans)
	})

	t.Run("created only stays open", func(t *testing.T) {
		pairs, pending, _ := PairTickets([]models.SignalEvent{ev("a", models.EventTicketCreated, "", 0)})
		assert.Empty(t, pairs)
		require.NotNil(t, pending)
	})

	t.Run("reopen cycle", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, "", 0),
			ev("a", models.EventTicketResolved, "", 2*time.Hour),
			ev("a", models.EventTicketReopened, "", 10*time.Hour),
			ev("a", models.EventTicketResolved, "", 15*time.Hour),
		}
		pairs, pending, _ := PairTickets(events)
		require.Len(t, pairs, 2)
		assert.InDelta(t, 2.0, pairs[0].Hours(), 1e-9)
		assert.InDelta(t, 5.0, pairs[1].Hours(), 1e-9)
		assert.Nil(t, pending)
	})

	t.Run("orphan resolution", func(t *testing.T) {
		pairs, _, orphans := PairTickets([]models.SignalEvent{ev("a", models.EventTicketResolved, "", 0)})
		assert.Empty(t, pairs)
		assert.Equal(t, 1, orphans)
	})

	t.Run("track follows opener", func(t *testing.T) {
		opener := ev("a", models.EventFeatureRequest, "", 0)
		opener.EventType = models.EventTicketCreated
		opener.Metadata[models.MetaSubject] = models.SubjectVendorRequest
		pairs, _, _ := PairTickets([]models.SignalEvent{opener, ev("a", models.EventTicketResolved, "", time.Hour)})
		require.Len(t, pairs, 1)
		assert.Equal(t, classify.TrackFeature, pairs[0].Track)
	})
}

func TestSplitIncidents(t *testing.T) {
	day := 24 * time.Hour
	opts := DefaultOptions()

	t.Run("reopen starts incident", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, "", 0),
			ev("a", models.EventTicketResolved, "", day),
			ev("a", models.EventTicketReopened, "", 2*day),
		}
		got := SplitIncidents(events, opts)
		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0].Index)
		assert.Equal(t, 1, got[1].Index)
	})

	t.Run("new ticket a week after resolution", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, "", 0),
			ev("a", models.EventTicketResolved, "", day),
			ev("a", models.EventTicketCreated, "", 9*day),
		}
		assert.Len(t, SplitIncidents(events, opts), 2)
	})

	t.Run("comment after resolution stays", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventTicketCreated, "", 0),
			ev("a", models.EventTicketResolved, "", day),
			ev("a", models.EventCommentAdded, "", 9*day),
		}
		assert.Len(t, SplitIncidents(events, opts), 1)
	})

	t.Run("long silence", func(t *testing.T) {
		events := []models.SignalEvent{
			ev("a", models.EventCommentAdded, "", 0),
			ev("a", models.EventCommentAdded, "", 14*day),
		}
		assert.Len(t, SplitIncidents(events, opts), 2)
	})

	t.Run("exactly one first occurrence", func(t *testing.T) {
		var events []models.SignalEvent
		for i := 0; i < 6; i++ {
			events = append(events, ev("a", models.EventTicketReopened, "", time.Duration(i)*day))
		}
		got := SplitIncidents(events, opts)
		first := 0
		for _, inc := range got {
			if inc.Index == 0 {
				first++
			}
		}
		assert.Equal(t, 1, first)
		assert.Len(t, got, 6)
	})
}

func TestPairReplies(t *testing.T) {
	out := func(offset time.Duration) models.SignalEvent {
		e := ev("a", models.EventEmailSent, "", offset)
		e.Metadata[models.MetaDirection] = models.DirectionOutbound
		return e
	}
	in := func(offset time.Duration) models.SignalEvent {
		e := ev("a", models.EventEmailReceived, "", offset)
		e.Metadata[models.MetaDirection] = models.DirectionInbound
		return e
	}

	events := []models.SignalEvent{
		in(0),
		out(time.Hour),
		out(2 * time.Hour),
		in(5 * time.Hour),
		out(10 * time.Hour),
	}
	replies, proactive, unanswered := PairReplies(events)

	require.Len(t, replies, 1)
	assert.InDelta(t, 4.0, replies[0].LagHours(), 1e-9, "FIFO pairs the oldest outbound")
	assert.Len(t, proactive, 1)
	assert.Len(t, unanswered, 2)
}

func TestCluster_ReopenLeavesTicketPending(t *testing.T) {
	day := 24 * time.Hour
	events := []models.SignalEvent{
		ev("a", models.EventTicketCreated, "", 0),
		ev("a", models.EventTicketResolved, "", day),
		ev("a", models.EventTicketReopened, "", 3*day),
	}
	threads := Cluster(events, DefaultOptions())
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Pairs, 1)
	assert.NotNil(t, threads[0].Pending, "the reopen waits on a new resolution")
	assert.Len(t, threads[0].Incidents, 2)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abcdef", 3))
	assert.Equal(t, "héllo", truncateString("héllo", 10))
	assert.Equal(t, "h", truncateString("héllo", 2))
}
