package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

type createSoftwareRequest struct {
	VendorName   string `json:"vendor_name"`
	SoftwareName string `json:"software_name"`
	IntendedUse  string `json:"intended_use"`
	AutoCategory string `json:"auto_category"`
}

// NewCreateSoftwareHandler returns an http.HandlerFunc for POST /api/v1/software.
func NewCreateSoftwareHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		var req createSoftwareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.SoftwareName = strings.TrimSpace(req.SoftwareName)
		if req.SoftwareName == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "software_name is required", nil)
			return
		}

		now := time.Now().UTC()
		sw := &models.Software{
			ID:           uuid.New(),
			CompanyID:    cid,
			VendorName:   strings.TrimSpace(req.VendorName),
			SoftwareName: req.SoftwareName,
			IntendedUse:  strings.TrimSpace(req.IntendedUse),
			AutoCategory: strings.ToLower(strings.TrimSpace(req.AutoCategory)),
			Status:       models.SoftwareStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := st.CreateSoftware(r.Context(), sw); err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.Created(w, sw)
	}
}

// NewListSoftwareHandler returns an http.HandlerFunc for GET /api/v1/software.
func NewListSoftwareHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		list, err := st.ListSoftware(r.Context(), cid)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		if list == nil {
			list = []*models.Software{}
		}
		response.Collection(w, list, response.ListMeta{Count: len(list)})
	}
}

// NewGetSoftwareHandler returns an http.HandlerFunc for GET /api/v1/software/{softwareID}.
func NewGetSoftwareHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, sid, ok := scoped(w, r)
		if !ok {
			return
		}
		sw, err := st.GetSoftware(r.Context(), sid, cid)
		if err != nil {
			writeError(w, r, err, softwareNotFound)
			return
		}
		response.JSON(w, sw)
	}
}
