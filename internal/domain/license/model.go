package license

import (
	"database/sql"
	"time"
)

// ValidationStatus is the verdict returned to the extension for a
// validation attempt. It is an enumeration, never an error.
type ValidationStatus string

const (
	StatusValid               ValidationStatus = "valid"
	StatusExpired             ValidationStatus = "expired"
	StatusInvalid             ValidationStatus = "invalid"
	StatusUsedOnAnotherDevice ValidationStatus = "used_on_another_device"
)

// Allowed issuance durations, in days.
var AllowedDurations = []int{7, 30}

const (
	CodeLength   = 6
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// License is keyed by Code. DeviceID is set exactly once, together
// with Used, on the first successful validation. Valid only ever
// transitions true to false.
type License struct {
	Code      string         `db:"code"`
	Valid     bool           `db:"valid"`
	ExpiresAt time.Time      `db:"expires_at"`
	DeviceID  sql.NullString `db:"device_id"`
	Used      bool           `db:"used"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Expired reports whether the license is past its expiry date. The
// expiry date itself is still usable (inclusive upper bound); dates
// are compared at day granularity in UTC.
func (l *License) Expired(today time.Time) bool {
	return l.ExpiresAt.Before(today)
}

// BoundTo reports whether the license is already bound to the given device.
func (l *License) BoundTo(deviceID string) bool {
	return l.Used && l.DeviceID.Valid && l.DeviceID.String == deviceID
}

// Today returns the current date at midnight UTC, the reference point
// for all expiry comparisons.
func Today() time.Time {
	return Midnight(time.Now())
}

// Midnight truncates t to its UTC date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summary aggregates license counts for the admin dashboard. The
// expired and revoked buckets are derived, never persisted.
type Summary struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Activated int64 `json:"activated"`
	Expired   int64 `json:"expired"`
	Revoked   int64 `json:"revoked"`
}
