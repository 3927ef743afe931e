package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/ierr"
	"github.com/receiptly/activation-api/internal/storage/memstorage"
)

func TestCreateLicenseSetsExpiryFromDuration(t *testing.T) {
	for _, duration := range license.AllowedDurations {
		t.Run(fmt.Sprintf("%d days", duration), func(t *testing.T) {
			repo := memstorage.NewLicenseRepository()
			svc := NewLicenseService(repo, zap.NewNop())

			lic, err := svc.CreateLicense(context.Background(), duration)
			require.NoError(t, err)

			assert.Len(t, lic.Code, license.CodeLength)
			for _, ch := range lic.Code {
				assert.True(t, strings.ContainsRune(license.CodeAlphabet, ch), "unexpected character %q in code", ch)
			}

			wantExpiry := license.Today().AddDate(0, 0, duration)
			assert.True(t, lic.Valid)
			assert.False(t, lic.Used)
			assert.False(t, lic.DeviceID.Valid)
			assert.Equal(t, wantExpiry.Format(time.DateOnly), lic.ExpiresAt.Format(time.DateOnly))

			stored, err := repo.FindByCode(context.Background(), lic.Code)
			require.NoError(t, err)
			assert.Equal(t, lic.Code, stored.Code)
		})
	}
}

func TestCreateLicenseRejectsUnsupportedDuration(t *testing.T) {
	repo := memstorage.NewLicenseRepository()
	svc := NewLicenseService(repo, zap.NewNop())

	for _, duration := range []int{0, 1, 10, 14, 31, 365, -7} {
		lic, err := svc.CreateLicense(context.Background(), duration)
		require.ErrorIs(t, err, ierr.ErrInvalidDuration, "duration %d", duration)
		assert.Nil(t, lic)
	}

	// No record may be created on rejection.
	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

type conflictingRepo struct {
	license.Repository
	conflicts int
	attempts  int
}

func (r *conflictingRepo) Create(ctx context.Context, lic *license.License) error {
	r.attempts++
	if r.attempts <= r.conflicts {
		return fmt.Errorf("%w: %s", ierr.ErrCodeConflict, lic.Code)
	}
	return r.Repository.Create(ctx, lic)
}

func TestCreateLicenseRetriesOnCodeCollision(t *testing.T) {
	repo := &conflictingRepo{Repository: memstorage.NewLicenseRepository(), conflicts: 2}
	svc := NewLicenseService(repo, zap.NewNop())

	lic, err := svc.CreateLicense(context.Background(), 7)
	require.NoError(t, err)
	assert.NotEmpty(t, lic.Code)
	assert.Equal(t, 3, repo.attempts)
}

func TestCreateLicenseGivesUpAfterTooManyCollisions(t *testing.T) {
	repo := &conflictingRepo{Repository: memstorage.NewLicenseRepository(), conflicts: maxCodeAttempts + 1}
	svc := NewLicenseService(repo, zap.NewNop())

	lic, err := svc.CreateLicense(context.Background(), 7)
	require.ErrorIs(t, err, ierr.ErrInternalServer)
	assert.Nil(t, lic)
}

func TestDeleteLicense(t *testing.T) {
	repo := memstorage.NewLicenseRepository()
	licenseSvc := NewLicenseService(repo, zap.NewNop())
	activationSvc := NewActivationService(repo, zap.NewNop())
	ctx := context.Background()

	lic, err := licenseSvc.CreateLicense(ctx, 30)
	require.NoError(t, err)

	require.NoError(t, licenseSvc.DeleteLicense(ctx, lic.Code))

	// A deleted code validates as invalid forever after.
	verdict, err := activationSvc.Validate(ctx, lic.Code, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusInvalid, verdict.Status)

	// Deleting an unknown code is not-found with no side effects.
	err = licenseSvc.DeleteLicense(ctx, "NOSUCH")
	require.ErrorIs(t, err, ierr.ErrNotFound)
}

func TestGetSummaryDerivesStatuses(t *testing.T) {
	repo := memstorage.NewLicenseRepository()
	svc := NewLicenseService(repo, zap.NewNop())
	ctx := context.Background()

	today := license.Today()
	future := today.AddDate(0, 0, 7)
	past := today.AddDate(0, 0, -3)

	seeds := []*license.License{
		{Code: "AVAIL1", Valid: true, ExpiresAt: future},
		{Code: "AVAIL2", Valid: true, ExpiresAt: future},
		{Code: "BOUND1", Valid: true, ExpiresAt: future, Used: true, DeviceID: boundDevice("dev-9")},
		{Code: "EXPIR1", Valid: true, ExpiresAt: past},
		{Code: "REVOK1", Valid: false, ExpiresAt: future},
	}
	for _, lic := range seeds {
		require.NoError(t, repo.Create(ctx, lic))
	}

	summary, err := svc.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Total)
	assert.Equal(t, int64(2), summary.Available)
	assert.Equal(t, int64(1), summary.Activated)
	assert.Equal(t, int64(1), summary.Expired)
	assert.Equal(t, int64(1), summary.Revoked)
}
