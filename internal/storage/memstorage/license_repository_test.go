package memstorage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/ierr"
)

func TestCreateRejectsDuplicateCode(t *testing.T) {
	repo := NewLicenseRepository()
	ctx := context.Background()

	lic := &license.License{Code: "DUP001", Valid: true, ExpiresAt: license.Today().AddDate(0, 0, 7)}
	require.NoError(t, repo.Create(ctx, lic))

	err := repo.Create(ctx, &license.License{Code: "DUP001", Valid: true, ExpiresAt: lic.ExpiresAt})
	require.ErrorIs(t, err, ierr.ErrCodeConflict)
}

func TestFindByCodeReturnsCopy(t *testing.T) {
	repo := NewLicenseRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &license.License{Code: "COPY01", Valid: true, ExpiresAt: license.Today()}))

	first, err := repo.FindByCode(ctx, "COPY01")
	require.NoError(t, err)
	first.Used = true
	first.Valid = false

	second, err := repo.FindByCode(ctx, "COPY01")
	require.NoError(t, err)
	assert.False(t, second.Used, "mutating a returned record must not touch the store")
	assert.True(t, second.Valid)
}

func TestBindIsOneShot(t *testing.T) {
	repo := NewLicenseRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &license.License{Code: "BIND01", Valid: true, ExpiresAt: license.Today().AddDate(0, 0, 7)}))

	won, err := repo.Bind(ctx, "BIND01", "dev-1")
	require.NoError(t, err)
	assert.True(t, won)

	// The binding never changes once set, regardless of the caller.
	won, err = repo.Bind(ctx, "BIND01", "dev-2")
	require.NoError(t, err)
	assert.False(t, won)

	won, err = repo.Bind(ctx, "BIND01", "dev-1")
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindByCode(ctx, "BIND01")
	require.NoError(t, err)
	assert.True(t, stored.Used)
	assert.Equal(t, "dev-1", stored.DeviceID.String)
}

func TestBindUnknownCode(t *testing.T) {
	repo := NewLicenseRepository()

	won, err := repo.Bind(context.Background(), "GHOST1", "dev-1")
	require.ErrorIs(t, err, ierr.ErrNotFound)
	assert.False(t, won)
}

func TestConcurrentBindHasSingleWinner(t *testing.T) {
	const callers = 64

	repo := NewLicenseRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &license.License{Code: "RACE99", Valid: true, ExpiresAt: license.Today().AddDate(0, 0, 30)}))

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			won, err := repo.Bind(ctx, "RACE99", string(rune('A'+n%26)))
			if err == nil && won {
				atomic.AddInt64(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}

func TestDeleteExpiredBefore(t *testing.T) {
	repo := NewLicenseRepository()
	ctx := context.Background()
	today := license.Today()

	require.NoError(t, repo.Create(ctx, &license.License{Code: "ANCIEN", Valid: true, ExpiresAt: today.AddDate(0, 0, -120)}))
	require.NoError(t, repo.Create(ctx, &license.License{Code: "RECENT", Valid: true, ExpiresAt: today.AddDate(0, 0, -5)}))
	require.NoError(t, repo.Create(ctx, &license.License{Code: "ACTIVE", Valid: true, ExpiresAt: today.AddDate(0, 0, 7)}))

	removed, err := repo.DeleteExpiredBefore(ctx, today.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.FindByCode(ctx, "ANCIEN")
	require.ErrorIs(t, err, ierr.ErrNotFound)

	_, err = repo.FindByCode(ctx, "RECENT")
	require.NoError(t, err)
	_, err = repo.FindByCode(ctx, "ACTIVE")
	require.NoError(t, err)
}
