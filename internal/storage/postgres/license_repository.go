package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/ierr"
	"go.uber.org/zap"
)

const uniqueViolationCode = "23505"

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) error {
	query := `
        INSERT INTO licenses (code, valid, expires_at, device_id, used)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.db.Exec(ctx, query,
		lic.Code,
		lic.Valid,
		lic.ExpiresAt,
		lic.DeviceID,
		lic.Used,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			r.logger.Debug("License code collision on insert", zap.String("code", lic.Code))
			return fmt.Errorf("%w: %s", ierr.ErrCodeConflict, lic.Code)
		}

		r.logger.Error("Failed to create license in database", zap.Error(err))
		return fmt.Errorf("database error on create license: %w", err)
	}

	return nil
}

func (r *LicenseRepository) FindByCode(ctx context.Context, code string) (*license.License, error) {
	query := `
        SELECT code, valid, expires_at, device_id, used, created_at, updated_at
        FROM licenses
        WHERE code = $1
    `

	row := r.db.QueryRow(ctx, query, code)
	return r.scanLicense(row)
}

func (r *LicenseRepository) List(ctx context.Context) ([]*license.License, error) {
	query := `
        SELECT code, valid, expires_at, device_id, used, created_at, updated_at
        FROM licenses
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query list of licenses", zap.Error(err))
		return nil, fmt.Errorf("database error on list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)

	for rows.Next() {
		var lic license.License
		err := rows.Scan(
			&lic.Code,
			&lic.Valid,
			&lic.ExpiresAt,
			&lic.DeviceID,
			&lic.Used,
			&lic.CreatedAt,
			&lic.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan license row during list", zap.Error(err))
			return nil, fmt.Errorf("database scan error during list: %w", err)
		}
		licenses = append(licenses, &lic)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, fmt.Errorf("database iteration error on list licenses: %w", err)
	}

	return licenses, nil
}

func (r *LicenseRepository) Delete(ctx context.Context, code string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM licenses WHERE code = $1`, code)
	if err != nil {
		r.logger.Error("Failed to delete license", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("database error on delete license: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: license %s", ierr.ErrNotFound, code)
	}

	r.logger.Info("License deleted", zap.String("code", code))
	return nil
}

// Bind is the single state-mutating transition of the activation flow.
// The conditional UPDATE serializes concurrent first validations on the
// same code: exactly one request flips used, the rest see zero rows.
func (r *LicenseRepository) Bind(ctx context.Context, code, deviceID string) (bool, error) {
	query := `
        UPDATE licenses
        SET used = TRUE, device_id = $2, updated_at = now()
        WHERE code = $1 AND used = FALSE
    `
	cmdTag, err := r.db.Exec(ctx, query, code, deviceID)
	if err != nil {
		r.logger.Error("Failed to bind license to device", zap.String("code", code), zap.Error(err))
		return false, fmt.Errorf("database error on bind license: %w", err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

func (r *LicenseRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM licenses WHERE expires_at < $1`, cutoff)
	if err != nil {
		r.logger.Error("Failed to purge expired licenses", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, fmt.Errorf("database error on purge expired licenses: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func (r *LicenseRepository) Summary(ctx context.Context, today time.Time) (*license.Summary, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE valid AND NOT used AND expires_at >= $1),
            COUNT(*) FILTER (WHERE valid AND used AND expires_at >= $1),
            COUNT(*) FILTER (WHERE valid AND expires_at < $1),
            COUNT(*) FILTER (WHERE NOT valid)
        FROM licenses
    `
	var s license.Summary
	err := r.db.QueryRow(ctx, query, today).Scan(
		&s.Total,
		&s.Available,
		&s.Activated,
		&s.Expired,
		&s.Revoked,
	)
	if err != nil {
		r.logger.Error("Failed to aggregate license summary", zap.Error(err))
		return nil, fmt.Errorf("database error on license summary: %w", err)
	}

	return &s, nil
}

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(
		&lic.Code,
		&lic.Valid,
		&lic.ExpiresAt,
		&lic.DeviceID,
		&lic.Used,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrNotFound
		}

		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return &lic, nil
}
