package tasks

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/ierr"
	"github.com/receiptly/activation-api/internal/storage/memstorage"
)

func TestPurgeExpiredHandlerRemovesOnlyStaleRecords(t *testing.T) {
	repo := memstorage.NewLicenseRepository()
	ctx := context.Background()
	today := license.Today()

	require.NoError(t, repo.Create(ctx, &license.License{Code: "STALE1", Valid: true, ExpiresAt: today.AddDate(0, 0, -120)}))
	require.NoError(t, repo.Create(ctx, &license.License{Code: "GRACE1", Valid: true, ExpiresAt: today.AddDate(0, 0, -10)}))
	require.NoError(t, repo.Create(ctx, &license.License{Code: "LIVE01", Valid: true, ExpiresAt: today.AddDate(0, 0, 7)}))

	task, err := NewLicensePurgeTask(90)
	require.NoError(t, err)

	handler := NewPurgeExpiredHandler(repo, zap.NewNop())
	require.NoError(t, handler.ProcessTask(ctx, task))

	_, err = repo.FindByCode(ctx, "STALE1")
	assert.ErrorIs(t, err, ierr.ErrNotFound)

	// Records inside the retention window survive, expired or not.
	_, err = repo.FindByCode(ctx, "GRACE1")
	assert.NoError(t, err)
	_, err = repo.FindByCode(ctx, "LIVE01")
	assert.NoError(t, err)
}

func TestPurgeExpiredHandlerRejectsForeignTask(t *testing.T) {
	handler := NewPurgeExpiredHandler(memstorage.NewLicenseRepository(), zap.NewNop())

	err := handler.ProcessTask(context.Background(), asynq.NewTask("some:other:task", nil))
	assert.Error(t, err)
}

func TestPurgeExpiredHandlerSkipsNonPositiveRetention(t *testing.T) {
	repo := memstorage.NewLicenseRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &license.License{Code: "KEEPME", Valid: true, ExpiresAt: license.Today().AddDate(0, 0, -500)}))

	task, err := NewLicensePurgeTask(0)
	require.NoError(t, err)

	handler := NewPurgeExpiredHandler(repo, zap.NewNop())
	require.NoError(t, handler.ProcessTask(ctx, task))

	_, err = repo.FindByCode(ctx, "KEEPME")
	assert.NoError(t, err)
}
