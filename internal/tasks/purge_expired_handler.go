package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/receiptly/activation-api/internal/domain/license"
	"go.uber.org/zap"
)

// PurgeExpiredHandler removes license records whose expiry date is
// further in the past than the retention window. Expiry itself is
// always derived at validation time and never persisted; this sweep is
// housekeeping on records nobody can activate anymore.
type PurgeExpiredHandler struct {
	repo   license.Repository
	logger *zap.Logger
}

func NewPurgeExpiredHandler(repo license.Repository, logger *zap.Logger) *PurgeExpiredHandler {
	return &PurgeExpiredHandler{
		repo:   repo,
		logger: logger.Named("PurgeExpiredHandler"),
	}
}

func (h *PurgeExpiredHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeLicensePurge {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p PurgeExpiredPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal purge task payload", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	if p.RetentionDays <= 0 {
		h.logger.Warn("Purge task with non-positive retention, skipping", zap.Int("retention_days", p.RetentionDays))
		return nil
	}

	cutoff := license.Today().AddDate(0, 0, -p.RetentionDays)

	removed, err := h.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		h.logger.Error("Failed to purge expired licenses", zap.Time("cutoff", cutoff), zap.Error(err))
		return fmt.Errorf("repository error purging expired licenses: %w", err)
	}

	h.logger.Info("License purge finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("removed", removed),
	)
	return nil
}
