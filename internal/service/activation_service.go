package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/handler/dto"
	"github.com/receiptly/activation-api/internal/ierr"
	"github.com/receiptly/activation-api/internal/metrics"
	"go.uber.org/zap"
)

// ActivationService decides the verdict for a validation request and
// performs the one-time device binding. Revocation and expiry take
// precedence over device-mismatch reporting; the binding transition is
// the only mutating path and is serialized per code by the repository.
type ActivationService struct {
	repo   license.Repository
	logger *zap.Logger
}

func NewActivationService(repo license.Repository, logger *zap.Logger) *ActivationService {
	return &ActivationService{
		repo:   repo,
		logger: logger.Named("ActivationService"),
	}
}

// Validate runs the activation state machine for (code, deviceID).
// Verdict-level outcomes are folded into the response; only storage
// failures surface as errors, and a failed binding write is never
// reported as valid.
func (s *ActivationService) Validate(ctx context.Context, code, deviceID string) (*dto.ValidateResponse, error) {
	if code == "" || deviceID == "" {
		return s.verdict(license.StatusInvalid, nil), nil
	}

	lic, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			s.logger.Debug("Validation for unknown code", zap.String("code", code))
			return s.verdict(license.StatusInvalid, nil), nil
		}
		return nil, fmt.Errorf("storage error during validation lookup: %w", err)
	}

	if !lic.Valid {
		s.logger.Info("Validation for revoked code", zap.String("code", code))
		return s.verdict(license.StatusInvalid, nil), nil
	}

	today := license.Today()
	if lic.Expired(today) {
		return s.verdict(license.StatusExpired, nil), nil
	}

	if lic.Used {
		if lic.BoundTo(deviceID) {
			// Idempotent re-validation from the binding device.
			return s.verdict(license.StatusValid, lic), nil
		}
		return s.verdict(license.StatusUsedOnAnotherDevice, nil), nil
	}

	won, err := s.repo.Bind(ctx, code, deviceID)
	if err != nil {
		return nil, fmt.Errorf("storage error during device binding: %w", err)
	}

	if won {
		s.logger.Info("License bound to device", zap.String("code", code), zap.String("device_id", deviceID))
		return s.verdict(license.StatusValid, lic), nil
	}

	// Lost a concurrent first-binding race. Re-read to see who won;
	// the winner may still have been this device on another request.
	current, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			return s.verdict(license.StatusInvalid, nil), nil
		}
		return nil, fmt.Errorf("storage error re-reading license after lost binding race: %w", err)
	}

	if current.BoundTo(deviceID) {
		return s.verdict(license.StatusValid, current), nil
	}

	return s.verdict(license.StatusUsedOnAnotherDevice, nil), nil
}

func (s *ActivationService) verdict(status license.ValidationStatus, lic *license.License) *dto.ValidateResponse {
	metrics.ObserveValidation(string(status))

	resp := &dto.ValidateResponse{Status: status}
	if lic != nil {
		resp.Expires = lic.ExpiresAt.Format(time.DateOnly)
	}
	return resp
}
