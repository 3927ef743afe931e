package license

import (
	"context"
	"time"
)

// Repository is the port the activation engine and the issuance API
// work against. Implementations must behave as a single serializable
// resource per code: Create fails on duplicates, and Bind is an atomic
// one-shot transition.
type Repository interface {
	// Create persists a new record; returns ierr.ErrCodeConflict if the
	// code is already taken.
	Create(ctx context.Context, lic *License) error
	// FindByCode returns ierr.ErrNotFound when the code was never issued.
	FindByCode(ctx context.Context, code string) (*License, error)
	List(ctx context.Context) ([]*License, error)
	// Delete removes the record entirely; ierr.ErrNotFound when absent.
	Delete(ctx context.Context, code string) error
	// Bind atomically sets used=true and device_id=deviceID if and only
	// if the record is still unused. It returns true when this call won
	// the binding. Losing callers must re-read the record to learn who did.
	Bind(ctx context.Context, code, deviceID string) (bool, error)
	// DeleteExpiredBefore removes records whose expiry date is strictly
	// before cutoff, returning the number removed.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Summary counts records by their status derived at the given date.
	Summary(ctx context.Context, today time.Time) (*Summary, error)
}
