package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/ierr"
	"github.com/receiptly/activation-api/internal/util"
	"go.uber.org/zap"
)

// maxCodeAttempts bounds the generate-and-insert retry loop. With a
// 36^6 namespace the loop practically never retries more than once.
const maxCodeAttempts = 10

type LicenseService struct {
	repo   license.Repository
	logger *zap.Logger
}

func NewLicenseService(repo license.Repository, logger *zap.Logger) *LicenseService {
	return &LicenseService{
		repo:   repo,
		logger: logger.Named("LicenseService"),
	}
}

// CreateLicense issues a new code valid for the given number of days.
// Only durations of 7 and 30 days are permitted. Uniqueness is enforced
// by inserting and retrying on conflict, never by a separate lookup.
func (s *LicenseService) CreateLicense(ctx context.Context, durationDays int) (*license.License, error) {
	if !slices.Contains(license.AllowedDurations, durationDays) {
		return nil, fmt.Errorf("%w: %d days", ierr.ErrInvalidDuration, durationDays)
	}

	expires := license.Today().AddDate(0, 0, durationDays)

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := util.GenerateLicenseCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate license code: %w", err)
		}

		newLicense := &license.License{
			Code:      code,
			Valid:     true,
			ExpiresAt: expires,
		}

		err = s.repo.Create(ctx, newLicense)
		if err == nil {
			s.logger.Info("License created",
				zap.String("code", code),
				zap.Int("duration_days", durationDays),
				zap.Time("expires_at", expires),
			)
			return newLicense, nil
		}

		if errors.Is(err, ierr.ErrCodeConflict) {
			s.logger.Debug("Generated code already taken, retrying", zap.Int("attempt", attempt))
			continue
		}

		s.logger.Error("Failed to create license via repository", zap.Error(err))
		return nil, fmt.Errorf("repository error during license creation: %w", err)
	}

	return nil, fmt.Errorf("%w: exhausted %d code generation attempts", ierr.ErrInternalServer, maxCodeAttempts)
}

func (s *LicenseService) ListLicenses(ctx context.Context) ([]*license.License, error) {
	licenses, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list licenses", zap.Error(err))
		return nil, fmt.Errorf("repository error listing licenses: %w", err)
	}
	return licenses, nil
}

// DeleteLicense removes the record entirely. This is a hard delete,
// not a soft-revoke: a deleted code validates as invalid forever after.
func (s *LicenseService) DeleteLicense(ctx context.Context, code string) error {
	err := s.repo.Delete(ctx, code)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			return err
		}
		s.logger.Error("Failed to delete license", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("repository error deleting license %s: %w", code, err)
	}

	s.logger.Info("License deleted", zap.String("code", code))
	return nil
}

func (s *LicenseService) GetSummary(ctx context.Context) (*license.Summary, error) {
	summary, err := s.repo.Summary(ctx, license.Today())
	if err != nil {
		s.logger.Error("Failed to aggregate license summary", zap.Error(err))
		return nil, fmt.Errorf("repository error aggregating summary: %w", err)
	}
	return summary, nil
}
