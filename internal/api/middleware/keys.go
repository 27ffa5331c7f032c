package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const rawKeyPrefix = "vsi_"

// NewAPIKey mints a key for companyID. The returned raw key is shown once;
// the model carries only its bcrypt hash and lookup prefix.
func NewAPIKey(companyID uuid.UUID, name string, scopes []string) (*models.APIKey, string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	raw := rawKeyPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash api key: %w", err)
	}

	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:KeyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, raw, nil
}
