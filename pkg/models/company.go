// Package models contains shared data models used across the vendor signal engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the customer organization. Every software registration, signal,
// API key and health score belongs to a company.
type Company struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	SoftwareStatusActive   = "active"
	SoftwareStatusArchived = "archived"
)

// Software is one vendor product a company has registered for monitoring.
// AutoCategory is assigned upstream and drives peer benchmarking.
type Software struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	CompanyID    uuid.UUID `db:"company_id"    json:"company_id"`
	VendorName   string    `db:"vendor_name"   json:"vendor_name"`
	SoftwareName string    `db:"software_name" json:"software_name"`
	IntendedUse  string    `db:"intended_use"  json:"intended_use,omitempty"`
	AutoCategory string    `db:"auto_category" json:"auto_category,omitempty"`
	Status       string    `db:"status"        json:"status"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

// DisplayName returns "Vendor Software" or just the software name when the
// vendor is already part of it.
func (s Software) DisplayName() string {
	if s.VendorName == "" || s.VendorName == s.SoftwareName {
		return s.SoftwareName
	}
	return s.VendorName + " " + s.SoftwareName
}
