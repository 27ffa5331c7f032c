package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
)

const maxIngestBody = 8 << 20

// NewIngestHandler returns an http.HandlerFunc for
// POST /api/v1/software/{softwareID}/signals. Signals already stored under the
// same source id are counted as duplicates, so connectors can resend safely.
func NewIngestHandler(svc Ingester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}

		var req struct {
			Signals []service.SignalInput `json:"signals"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		res, err := svc.Ingest(r.Context(), cid, sid, req.Signals)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.JSON(w, res)
	}
}
