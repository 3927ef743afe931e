package memstorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/ierr"
)

// LicenseRepository is a map-backed implementation of the license
// store, used by the tests. The single mutex gives the same per-code
// serialization guarantee the conditional UPDATE gives in Postgres.
type LicenseRepository struct {
	mu       sync.RWMutex
	licenses map[string]*license.License
}

func NewLicenseRepository() *LicenseRepository {
	return &LicenseRepository{
		licenses: make(map[string]*license.License),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.licenses[lic.Code]; exists {
		return fmt.Errorf("%w: %s", ierr.ErrCodeConflict, lic.Code)
	}

	stored := *lic
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.licenses[lic.Code] = &stored
	return nil
}

func (r *LicenseRepository) FindByCode(ctx context.Context, code string) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lic, ok := r.licenses[code]
	if !ok {
		return nil, ierr.ErrNotFound
	}

	licCopy := *lic
	return &licCopy, nil
}

func (r *LicenseRepository) List(ctx context.Context) ([]*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*license.License, 0, len(r.licenses))
	for _, lic := range r.licenses {
		licCopy := *lic
		out = append(out, &licCopy)
	}
	return out, nil
}

func (r *LicenseRepository) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.licenses[code]; !ok {
		return fmt.Errorf("%w: license %s", ierr.ErrNotFound, code)
	}
	delete(r.licenses, code)
	return nil
}

func (r *LicenseRepository) Bind(ctx context.Context, code, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[code]
	if !ok {
		return false, fmt.Errorf("%w: license %s", ierr.ErrNotFound, code)
	}
	if lic.Used {
		return false, nil
	}

	lic.Used = true
	lic.DeviceID.String = deviceID
	lic.DeviceID.Valid = true
	lic.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *LicenseRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for code, lic := range r.licenses {
		if lic.ExpiresAt.Before(cutoff) {
			delete(r.licenses, code)
			removed++
		}
	}
	return removed, nil
}

func (r *LicenseRepository) Summary(ctx context.Context, today time.Time) (*license.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s license.Summary
	for _, lic := range r.licenses {
		s.Total++
		switch {
		case !lic.Valid:
			s.Revoked++
		case lic.Expired(today):
			s.Expired++
		case lic.Used:
			s.Activated++
		default:
			s.Available++
		}
	}
	return &s, nil
}
