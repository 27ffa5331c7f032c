package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntheticfinds/vendor-software-integration/internal/api"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/handler"
	mw "github.com/syntheticfinds/vendor-software-integration/internal/api/middleware"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache/cachetest"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/internal/store/storetest"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// ─── test harness ────────────────────────────────────────────────────────────

var now = time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)

type testServer struct {
	server   *httptest.Server
	store    *storetest.Memory
	cache    *cachetest.Memory
	analysis *service.AnalysisService
	adminKey string
	readKey  string
}

func newTestServer(t *testing.T, requestsPerMin int) *testServer {
	t.Helper()

	ms := storetest.NewMemory()
	mc := cachetest.NewMemory()
	clock := func() time.Time { return now }
	th := config.DefaultThresholds()

	ts := &testServer{store: ms, cache: mc}
	ts.adminKey = ts.issueKey(t, models.ScopeRead, models.ScopeIngest, models.ScopeAdmin)
	ts.readKey = ts.issueKey(t, models.ScopeRead)

	ts.analysis = service.NewAnalysisService(ms, mc, th, time.Minute, clock)
	deps := api.NewDependencies(ms, mc, api.Services{
		Insights: service.NewInsightService(ms, mc, th, time.Hour, clock),
		Analyzer: ts.analysis,
		Ingester: service.NewIngestService(ms, clock),
	}, requestsPerMin)

	ts.server = httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) issueKey(t *testing.T, scopes ...string) string {
	t.Helper()
	key, raw, err := mw.NewAPIKey(ts.store.Company.ID, "test-"+uuid.NewString()[:4], scopes)
	require.NoError(t, err)
	ts.store.APIKeys[key.ID] = key
	return raw
}

func (ts *testServer) do(t *testing.T, key, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (ts *testServer) createSoftware(t *testing.T, name string) string {
	t.Helper()
	resp, body := ts.do(t, ts.adminKey, "POST", "/api/v1/software", map[string]any{
		"vendor_name":   "Acme",
		"software_name": name,
		"intended_use":  "customer support ticketing",
		"auto_category": "Helpdesk",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return data(body)["id"].(string)
}

func sampleSignals() map[string]any {
	return map[string]any{"signals": []map[string]any{
		{
			"source_type": "jira", "source_id": "DESK-1", "event_type": "ticket_created",
			"severity": "high", "title": "Webhook outage", "occurred_at": "2026-04-18T09:00:00Z",
			"metadata": map[string]any{"valence": "negative", "stage_topic": "integration"},
		},
		{
			"source_type": "email", "source_id": "msg-1", "event_type": "email_received",
			"title": "Re: Webhook outage", "occurred_at": "2026-04-19T09:00:00Z",
		},
	}}
}

// ─── health ──────────────────────────────────────────────────────────────────

func TestContract_Health(t *testing.T) {
	ts := newTestServer(t, 100)

	resp, body := ts.do(t, "", "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", data(body)["status"])

	ts.cache.PingErr = errors.New("redis down")
	resp, body = ts.do(t, "", "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DEGRADED", errCode(body))
}

// ─── software ────────────────────────────────────────────────────────────────

func TestContract_Software(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")

	resp, body := ts.do(t, ts.readKey, "GET", "/api/v1/software/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Desk", data(body)["software_name"])
	assert.Equal(t, "helpdesk", data(body)["auto_category"])
	assert.Equal(t, "active", data(body)["status"])

	resp, body = ts.do(t, ts.readKey, "GET", "/api/v1/software", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(1), body["meta"].(map[string]any)["count"])

	t.Run("duplicate", func(t *testing.T) {
		resp, body := ts.do(t, ts.adminKey, "POST", "/api/v1/software", map[string]any{
			"vendor_name": "Acme", "software_name": "Desk",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "ALREADY_EXISTS", errCode(body))
	})

	t.Run("missing name", func(t *testing.T) {
		resp, _ := ts.do(t, ts.adminKey, "POST", "/api/v1/software", map[string]any{"vendor_name": "Acme"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("read key cannot create", func(t *testing.T) {
		resp, body := ts.do(t, ts.readKey, "POST", "/api/v1/software", map[string]any{"software_name": "X"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "FORBIDDEN", errCode(body))
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		resp, body := ts.do(t, ts.readKey, "GET", "/api/v1/software/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "SOFTWARE_NOT_FOUND", errCode(body))

		resp, body = ts.do(t, ts.readKey, "GET", "/api/v1/software/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_SOFTWARE_ID", errCode(body))
	})
}

func TestContract_SoftwareIsCompanyScoped(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")

	other, raw, err := mw.NewAPIKey(uuid.New(), "other-company", []string{models.ScopeRead})
	require.NoError(t, err)
	require.NoError(t, ts.store.CreateAPIKey(context.Background(), other))

	resp, _ := ts.do(t, raw, "GET", "/api/v1/software/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── ingest ──────────────────────────────────────────────────────────────────

func TestContract_Ingest(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")
	path := "/api/v1/software/" + id + "/signals"

	resp, body := ts.do(t, ts.adminKey, "POST", path, sampleSignals())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), data(body)["inserted"])

	resp, body = ts.do(t, ts.adminKey, "POST", path, sampleSignals())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), data(body)["inserted"])
	assert.Equal(t, float64(2), data(body)["duplicates"])

	resp, body = ts.do(t, ts.adminKey, "POST", path, map[string]any{"signals": []map[string]any{
		{"source_type": "fax", "event_type": "ticket_created"},
	}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_SIGNAL", errCode(body))

	resp, body = ts.do(t, ts.adminKey, "POST", "/api/v1/software/"+uuid.NewString()+"/signals", sampleSignals())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SOFTWARE_NOT_FOUND", errCode(body))

	resp, _ = ts.do(t, ts.readKey, "POST", path, sampleSignals())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// ─── insights ────────────────────────────────────────────────────────────────

func TestContract_Metric(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")
	resp, _ := ts.do(t, ts.adminKey, "POST", "/api/v1/software/"+id+"/signals", sampleSignals())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	base := "/api/v1/software/" + id + "/metrics/"

	resp, body := ts.do(t, ts.readKey, "GET", base+"issue_rate?window_days=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := data(body)
	assert.Equal(t, "issue_rate", d["metric"])
	assert.Equal(t, float64(7), d["window_days"])
	assert.NotEmpty(t, d["points"])
	assert.Contains(t, d, "commentary")
	assert.Nil(t, d["peer"], "no peers registered")

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"unknown metric", "uptime", "UNKNOWN_METRIC"},
		{"non-numeric window", "issue_rate?window_days=week", "INVALID_WINDOW"},
		{"window too long", "issue_rate?window_days=400", "INVALID_WINDOW"},
		{"unknown stage", "issue_rate?stage_topic=retirement", "INVALID_STAGE_TOPIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, ts.readKey, "GET", base+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, errCode(body))
		})
	}

	resp, body = ts.do(t, ts.readKey, "GET", base+"issue_rate?stage_topic=integration", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "integration", data(body)["stage_topic"])
}

func TestContract_TrajectoryAndBenchmarks(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")
	ts.do(t, ts.adminKey, "POST", "/api/v1/software/"+id+"/signals", sampleSignals())

	resp, body := ts.do(t, ts.readKey, "GET", "/api/v1/software/"+id+"/trajectory", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data(body)["stages"], len(models.Stages))
	assert.NotEmpty(t, data(body)["current_stage"])

	resp, body = ts.do(t, ts.readKey, "GET", "/api/v1/software/"+id+"/benchmarks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), data(body)["peer_count"])
	assert.Nil(t, data(body)["trajectory"])
}

// ─── analysis, jobs and health ───────────────────────────────────────────────

func TestContract_AnalyzeThenReadHealth(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")
	sw := "/api/v1/software/" + id

	resp, body := ts.do(t, ts.readKey, "GET", sw+"/health", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NO_HEALTH_SCORE", errCode(body))

	ts.do(t, ts.adminKey, "POST", sw+"/signals", sampleSignals())

	resp, body = ts.do(t, ts.adminKey, "POST", sw+"/analyze", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "pending", data(body)["status"])
	jobID := data(body)["id"].(string)

	ts.analysis.Wait()

	resp, body = ts.do(t, ts.readKey, "GET", "/api/v1/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", data(body)["status"])
	assert.Equal(t, "scored", data(body)["outcome"])
	assert.Equal(t, "completed", ts.cache.JobStatus(uuid.MustParse(jobID)))

	resp, body = ts.do(t, ts.readKey, "GET", sw+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), data(body)["signal_count"])
	assert.Len(t, data(body)["category_breakdown"], 4)

	resp, body = ts.do(t, ts.readKey, "GET", sw+"/health/history?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(5), body["meta"].(map[string]any)["limit"])

	resp, _ = ts.do(t, ts.readKey, "GET", sw+"/health/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContract_AnalyzeWithoutSignals(t *testing.T) {
	ts := newTestServer(t, 100)
	id := ts.createSoftware(t, "Desk")

	resp, body := ts.do(t, ts.adminKey, "POST", "/api/v1/software/"+id+"/analyze", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	ts.analysis.Wait()

	resp, body = ts.do(t, ts.readKey, "GET", "/api/v1/jobs/"+data(body)["id"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no_signals", data(body)["outcome"])
	assert.NotContains(t, data(body), "health_score_id")
}

func TestContract_Jobs(t *testing.T) {
	ts := newTestServer(t, 100)

	resp, body := ts.do(t, ts.readKey, "GET", "/api/v1/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "JOB_NOT_FOUND", errCode(body))

	resp, body = ts.do(t, ts.readKey, "GET", "/api/v1/jobs/42", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_JOB_ID", errCode(body))

	resp, _ = ts.do(t, ts.adminKey, "POST", "/api/v1/software/"+uuid.NewString()+"/analyze", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── admin keys ──────────────────────────────────────────────────────────────

func TestContract_AdminKeys(t *testing.T) {
	ts := newTestServer(t, 100)

	resp, body := ts.do(t, ts.adminKey, "POST", "/api/v1/admin/keys", map[string]any{
		"name": "connector", "scopes": []string{"ingest"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw := data(body)["key"].(string)
	created := data(body)["api_key"].(map[string]any)
	assert.NotContains(t, created, "key_hash")
	assert.Equal(t, raw[:mw.KeyPrefixLen], created["key_prefix"])

	resp, _ = ts.do(t, raw, "GET", "/api/v1/software", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "new key authenticates")

	resp, body = ts.do(t, ts.adminKey, "GET", "/api/v1/admin/keys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 3)

	resp, _ = ts.do(t, ts.adminKey, "DELETE", "/api/v1/admin/keys/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = ts.do(t, ts.adminKey, "DELETE", "/api/v1/admin/keys/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "KEY_NOT_FOUND", errCode(body))

	resp, _ = ts.do(t, raw, "GET", "/api/v1/software", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked key is rejected")

	t.Run("validation", func(t *testing.T) {
		resp, _ := ts.do(t, ts.adminKey, "POST", "/api/v1/admin/keys", map[string]any{"scopes": []string{"read"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, body := ts.do(t, ts.adminKey, "POST", "/api/v1/admin/keys", map[string]any{"name": "x", "scopes": []string{"root"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_SCOPE", errCode(body))
	})

	t.Run("read key is forbidden", func(t *testing.T) {
		resp, _ := ts.do(t, ts.readKey, "GET", "/api/v1/admin/keys", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

// ─── rate limiting ───────────────────────────────────────────────────────────

func TestContract_RateLimit(t *testing.T) {
	ts := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := ts.do(t, ts.readKey, "GET", "/api/v1/software", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := ts.do(t, ts.readKey, "GET", "/api/v1/software", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errCode(body))

	resp, _ = ts.do(t, ts.adminKey, "GET", "/api/v1/software", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "limits are per key")
}

func TestValidateScopes(t *testing.T) {
	got, ok := handler.ValidateScopes(nil)
	assert.True(t, ok)
	assert.Equal(t, []string{models.ScopeRead}, got)

	_, ok = handler.ValidateScopes([]string{models.ScopeRead, "write"})
	assert.False(t, ok)
}
