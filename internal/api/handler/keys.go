package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	mw "github.com/syntheticfinds/vendor-software-integration/internal/api/middleware"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/response"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var knownScopes = map[string]bool{
	models.ScopeRead:   true,
	models.ScopeIngest: true,
	models.ScopeAdmin:  true,
}

// ValidateScopes defaults an empty list to read-only and rejects unknown scopes.
func ValidateScopes(scopes []string) ([]string, bool) {
	if len(scopes) == 0 {
		return []string{models.ScopeRead}, true
	}
	for _, s := range scopes {
		if !knownScopes[s] {
			return nil, false
		}
	}
	return scopes, true
}

type createKeyResponse struct {
	Key    string         `json:"key"`
	APIKey *models.APIKey `json:"api_key"`
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears only in this response.
func NewCreateKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		scopes, ok := ValidateScopes(req.Scopes)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_SCOPE", "Unknown scope",
				map[string]any{"supported": []string{models.ScopeRead, models.ScopeIngest, models.ScopeAdmin}})
			return
		}

		key, raw, err := mw.NewAPIKey(cid, req.Name, scopes)
		if err != nil {
			writeError(w, r, err, keyNotFound)
			return
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			writeError(w, r, err, keyNotFound)
			return
		}
		response.Created(w, createKeyResponse{Key: raw, APIKey: key})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		keys, err := st.ListAPIKeys(r.Context(), cid)
		if err != nil {
			writeError(w, r, err, keyNotFound)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.Collection(w, keys, response.ListMeta{Count: len(keys)})
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "keyID", "INVALID_KEY_ID")
		if !ok {
			return
		}
		if err := st.RevokeAPIKey(r.Context(), id, cid); err != nil {
			writeError(w, r, err, keyNotFound)
			return
		}
		response.NoContent(w)
	}
}
