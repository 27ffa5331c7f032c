package handler

import (
	"net/http"

	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

// Job outcomes reported once a job has completed.
const (
	OutcomeScored    = "scored"
	OutcomeNoSignals = "no_signals"
)

type jobResponse struct {
	*models.Job
	Outcome string `json:"outcome,omitempty"`
}

func newJobResponse(j *models.Job) jobResponse {
	out := jobResponse{Job: j}
	if j.Status == models.JobStatusCompleted {
		out.Outcome = OutcomeNoSignals
		if j.HealthScoreID != nil {
			out.Outcome = OutcomeScored
		}
	}
	return out
}

// NewAnalyzeHandler returns an http.HandlerFunc for
// POST /api/v1/software/{softwareID}/analyze. It answers 202 with the
// pending job; poll GET /api/v1/jobs/{jobID} for the outcome.
func NewAnalyzeHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}
		job, err := svc.TriggerAnalysis(r.Context(), cid, sid)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.Accepted(w, newJobResponse(job))
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "jobID", "INVALID_JOB_ID")
		if !ok {
			return
		}
		job, err := st.GetJob(r.Context(), id, cid)
		if err != nil {
			writeError(w, r, err, jobNotFound)
			return
		}
		response.JSON(w, newJobResponse(job))
	}
}
