package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vendor_signals_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool, connStr
}

func newStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	pool, _ := setupTestDB(t)
	return store.NewPostgresStore(pool)
}

// defaultCompanyID returns the UUID of the seeded default company.
func defaultCompanyID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	c, err := s.GetDefaultCompany(context.Background())
	require.NoError(t, err)
	return c.ID
}

func createSoftware(t *testing.T, s store.Store, companyID uuid.UUID, name, category, use string) *models.Software {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	sw := &models.Software{
		ID:           uuid.New(),
		CompanyID:    companyID,
		VendorName:   "Vendor",
		SoftwareName: name,
		IntendedUse:  use,
		AutoCategory: category,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateSoftware(context.Background(), sw))
	return sw
}

func strPtr(s string) *string { return &s }

// --- Company & migrations ---

func TestGetDefaultCompany(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)

	c, err := s.GetDefaultCompany(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", c.Name)
	assert.NotEqual(t, uuid.Nil, c.ID)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	_, connStr := setupTestDB(t)

	require.NoError(t, store.RunMigrations(connStr))
	version, dirty, err := store.MigrationVersion(connStr)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

// --- API Key Tests ---

func TestAPIKey_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      "ci-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "vsi_abcd",
		Scopes:    []string{models.ScopeIngest, models.ScopeRead},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	assert.ErrorIs(t, s.CreateAPIKey(ctx, key), store.ErrDuplicateKey)

	keys, err := s.GetAPIKeyByPrefix(ctx, "vsi_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{models.ScopeIngest, models.ScopeRead}, keys[0].Scopes)
	assert.Nil(t, keys[0].LastUsedAt)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
	keys, err = s.GetAPIKeyByPrefix(ctx, "vsi_abcd")
	require.NoError(t, err)
	require.NotNil(t, keys[0].LastUsedAt)

	listed, err := s.ListAPIKeys(ctx, companyID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, companyID))
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, companyID), store.ErrNotFound)

	keys, err = s.GetAPIKeyByPrefix(ctx, "vsi_abcd")
	require.NoError(t, err)
	assert.Empty(t, keys, "revoked keys are not returned")
}

// --- Software Tests ---

func TestSoftware_CreateGetList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)

	sw := createSoftware(t, s, companyID, "Desk", "helpdesk", "customer support ticketing")
	assert.Equal(t, models.SoftwareStatusActive, sw.Status)

	got, err := s.GetSoftware(ctx, sw.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, "Desk", got.SoftwareName)
	assert.Equal(t, "helpdesk", got.AutoCategory)

	_, err = s.GetSoftware(ctx, sw.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound, "software is scoped to its company")

	dup := *sw
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateSoftware(ctx, &dup), store.ErrDuplicateKey)

	list, err := s.ListSoftware(ctx, companyID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSoftware_Peers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)

	own := createSoftware(t, s, companyID, "Own", "crm", "sales pipeline")
	createSoftware(t, s, companyID, "Peer A", "crm", "sales pipeline tracking")
	createSoftware(t, s, companyID, "Peer B", "crm", "")
	createSoftware(t, s, companyID, "Other", "hr", "payroll")

	peers, err := s.ListPeerSoftware(ctx, "crm", own.ID, 20)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	for _, p := range peers {
		assert.NotEqual(t, own.ID, p.ID)
		assert.Equal(t, "crm", p.AutoCategory)
	}

	none, err := s.ListPeerSoftware(ctx, "", own.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, none)

	candidates, err := s.ListActiveSoftware(ctx, own.ID, 100)
	require.NoError(t, err)
	assert.Len(t, candidates, 2, "software without an intended use is not a candidate")
}

// --- Signal Tests ---

func TestSignals_InsertDedupAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)
	sw := createSoftware(t, s, companyID, "Desk", "helpdesk", "")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.SignalEvent{
		{CompanyID: companyID, SoftwareID: sw.ID, SourceType: models.SourceJira, SourceID: strPtr("DESK-1"),
			EventType: models.EventTicketCreated, Severity: models.SeverityHigh, Title: "Sync broken",
			Metadata: models.Metadata{models.MetaValence: models.ValenceNegative, models.MetaHealthCategories: []string{models.CategoryReliability}},
			OccurredAt: base.Add(48 * time.Hour)},
		{CompanyID: companyID, SoftwareID: sw.ID, SourceType: models.SourceEmail,
			EventType: models.EventEmailReceived, Title: "Renewal", OccurredAt: base},
		{CompanyID: companyID, SoftwareID: sw.ID, SourceType: models.SourceManual,
			EventType: models.EventCommentAdded, Title: "Untimed note"},
	}
	n, err := s.InsertSignals(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	again := []models.SignalEvent{{CompanyID: companyID, SoftwareID: sw.ID, SourceType: models.SourceJira,
		SourceID: strPtr("DESK-1"), EventType: models.EventTicketCreated, Title: "Sync broken", OccurredAt: base}}
	n, err = s.InsertSignals(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "same source id is deduplicated")

	count, err := s.CountSignals(ctx, companyID, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	all, err := s.ListSignals(ctx, store.SignalFilter{CompanyID: companyID, SoftwareID: sw.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Renewal", all[0].Title)
	assert.Equal(t, "Sync broken", all[1].Title)
	assert.True(t, all[2].OccurredAt.IsZero(), "untimed signals sort last")

	assert.Equal(t, models.SeverityHigh, all[1].Severity)
	assert.Equal(t, models.ValenceNegative, all[1].Valence())
	assert.True(t, all[1].InCategory(models.CategoryReliability))
	assert.Empty(t, all[0].Severity)

	filtered, err := s.ListSignals(ctx, store.SignalFilter{
		CompanyID: companyID, SoftwareID: sw.ID, Severity: models.SeverityHigh,
	})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	windowed, err := s.ListSignals(ctx, store.SignalFilter{
		CompanyID: companyID, SoftwareID: sw.ID, Since: base.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "Sync broken", windowed[0].Title)
}

func TestSignals_ListForSoftware(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)
	a := createSoftware(t, s, companyID, "A", "crm", "")
	b := createSoftware(t, s, companyID, "B", "crm", "")

	now := time.Now().UTC()
	_, err := s.InsertSignals(ctx, []models.SignalEvent{
		{CompanyID: companyID, SoftwareID: a.ID, SourceType: models.SourceManual, EventType: models.EventCommentAdded, OccurredAt: now},
		{CompanyID: companyID, SoftwareID: a.ID, SourceType: models.SourceManual, EventType: models.EventCommentAdded, OccurredAt: now},
		{CompanyID: companyID, SoftwareID: b.ID, SourceType: models.SourceManual, EventType: models.EventCommentAdded, OccurredAt: now},
	})
	require.NoError(t, err)

	grouped, err := s.ListSignalsForSoftware(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, grouped[a.ID], 2)
	assert.Len(t, grouped[b.ID], 1)

	empty, err := s.ListSignalsForSoftware(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// --- Health Score Tests ---

func TestHealthScores_History(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)
	sw := createSoftware(t, s, companyID, "Desk", "helpdesk", "")

	_, err := s.LatestHealthScore(ctx, companyID, sw.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []int{60, 72} {
		require.NoError(t, s.CreateHealthScore(ctx, &models.HealthScore{
			ID:                 uuid.New(),
			CompanyID:          companyID,
			SoftwareID:         sw.ID,
			Score:              score,
			CategoryBreakdown:  map[string]int{models.CategoryReliability: score},
			CategoryConfidence: map[string]models.Confidence{models.CategoryReliability: models.ConfidenceHigh},
			SignalSummary:      "summary",
			SignalCount:        10 + i,
			ConfidenceTier:     models.TierDeveloping,
			ScoringWindowStart: start,
			ScoringWindowEnd:   start.AddDate(0, 0, 30),
			CreatedAt:          start.Add(time.Duration(i) * time.Hour),
		}))
	}

	latest, err := s.LatestHealthScore(ctx, companyID, sw.ID)
	require.NoError(t, err)
	assert.Equal(t, 72, latest.Score)
	assert.Equal(t, 72, latest.CategoryBreakdown[models.CategoryReliability])
	assert.Equal(t, models.ConfidenceHigh, latest.CategoryConfidence[models.CategoryReliability])
	assert.Equal(t, models.TierDeveloping, latest.ConfidenceTier)

	history, err := s.ListHealthScores(ctx, companyID, sw.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 72, history[0].Score)
	assert.Equal(t, 60, history[1].Score)

	peers, err := s.LatestHealthScores(ctx, []uuid.UUID{sw.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, 72, peers[0].Score)
}

// --- Job Tests ---

func createJob(t *testing.T, s store.Store, companyID, softwareID uuid.UUID) *models.Job {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &models.Job{
		ID:         uuid.New(),
		CompanyID:  companyID,
		SoftwareID: softwareID,
		Type:       models.JobTypeHealthAnalysis,
		Status:     models.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)
	sw := createSoftware(t, s, companyID, "Desk", "", "")
	job := createJob(t, s, companyID, sw.ID)

	got, err := s.GetJob(ctx, job.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, sw.ID, got.SoftwareID)
	assert.Nil(t, got.StartedAt)

	_, err = s.GetJob(ctx, uuid.New(), companyID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_UpdateStatusTransitions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	ctx := context.Background()
	companyID := defaultCompanyID(t, s)
	sw := createSoftware(t, s, companyID, "Desk", "", "")

	t.Run("pending to completed is rejected", func(t *testing.T) {
		job := createJob(t, s, companyID, sw.ID)
		err := s.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted)
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
	})

	t.Run("running to completed with score", func(t *testing.T) {
		job := createJob(t, s, companyID, sw.ID)
		require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning))

		scoreID := uuid.New()
		now := time.Now().UTC()
		require.NoError(t, s.CreateHealthScore(ctx, &models.HealthScore{
			ID: scoreID, CompanyID: companyID, SoftwareID: sw.ID, Score: 80,
			CategoryBreakdown: map[string]int{}, CategoryConfidence: map[string]models.Confidence{},
			SignalCount: 1, ConfidenceTier: models.TierPreliminary,
			ScoringWindowStart: now.AddDate(0, 0, -30), ScoringWindowEnd: now, CreatedAt: now,
		}))
		require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, store.WithHealthScoreID(scoreID)))

		got, err := s.GetJob(ctx, job.ID, companyID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		require.NotNil(t, got.HealthScoreID)
		assert.Equal(t, scoreID, *got.HealthScoreID)
		assert.NotNil(t, got.StartedAt)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("running to failed with message", func(t *testing.T) {
		job := createJob(t, s, companyID, sw.ID)
		require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning))
		require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, store.WithErrorMessage("boom")))

		got, err := s.GetJob(ctx, job.ID, companyID)
		require.NoError(t, err)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "boom", *got.ErrorMessage)

		assert.ErrorIs(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning), store.ErrInvalidTransition)
	})

	t.Run("unknown job", func(t *testing.T) {
		assert.ErrorIs(t, s.UpdateJobStatus(ctx, uuid.New(), models.JobStatusRunning), store.ErrNotFound)
	})
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
