package dto

import (
	"time"

	"github.com/receiptly/activation-api/internal/domain/license"
)

type CreateLicenseRequest struct {
	Duration int `json:"duration" binding:"required"`
}

type CreateLicenseResponse struct {
	Code    string `json:"code"`
	Expires string `json:"expires"`
}

// LicenseEntry mirrors the persisted record layout: expires is a
// YYYY-MM-DD date and deviceId is null until the code is bound.
type LicenseEntry struct {
	Valid    bool    `json:"valid"`
	Expires  string  `json:"expires"`
	DeviceID *string `json:"deviceId"`
	Used     bool    `json:"used"`
}

func NewLicenseEntry(lic *license.License) LicenseEntry {
	entry := LicenseEntry{
		Valid:   lic.Valid,
		Expires: lic.ExpiresAt.Format(time.DateOnly),
		Used:    lic.Used,
	}
	if lic.DeviceID.Valid {
		entry.DeviceID = &lic.DeviceID.String
	}
	return entry
}

type DeleteLicenseResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

type ValidateResponse struct {
	Status  license.ValidationStatus `json:"status"`
	Expires string                   `json:"expires,omitempty"`
}
