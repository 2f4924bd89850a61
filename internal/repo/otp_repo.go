package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/parichoy/server/internal/model"
)

// OtpRepo defines the interface for OTP repository operations.
// At most one row exists per phone; Upsert replaces any prior code in place.
type OtpRepo interface {
	GetByPhone(ctx context.Context, phone string) (model.OTP, error)
	Upsert(ctx context.Context, otp model.OTP) error
	IncrementAttempts(ctx context.Context, phone string) (newAttempts int, err error)
	Delete(ctx context.Context, phone string) error
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// GetByPhone retrieves the live OTP row for a phone number
func (r *otpRepo) GetByPhone(ctx context.Context, phone string) (model.OTP, error) {
	var otp model.OTP
	err := r.db.QueryRowContext(ctx, `
		SELECT phone, code, attempts, expires_at, created_at
		FROM otps
		WHERE phone = $1
	`, phone).Scan(&otp.Phone, &otp.Code, &otp.Attempts, &otp.ExpiresAt, &otp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OTP{}, fmt.Errorf("otp for phone: %w", ErrNotFound)
		}
		return model.OTP{}, fmt.Errorf("query otp: %w", err)
	}
	return otp, nil
}

// Upsert writes the OTP row for a phone, atomically replacing code, attempts,
// expiry and creation time when a row already exists. The phone primary key
// keeps concurrent requests down to a single live row.
func (r *otpRepo) Upsert(ctx context.Context, otp model.OTP) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otps (phone, code, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone) DO UPDATE
		SET code = EXCLUDED.code,
		    attempts = EXCLUDED.attempts,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`, otp.Phone, otp.Code, otp.Attempts, otp.ExpiresAt, otp.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

// IncrementAttempts bumps the attempt counter and returns the new value
func (r *otpRepo) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	var newAttempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otps
		SET attempts = attempts + 1
		WHERE phone = $1
		RETURNING attempts
	`, phone).Scan(&newAttempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("otp for phone: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return newAttempts, nil
}

// Delete removes the OTP row for a phone. Deleting an absent row is not an error.
func (r *otpRepo) Delete(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
