package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parichoy/server/internal/model"
)

// TokenRepo defines the interface for stored token repository operations
type TokenRepo interface {
	Create(ctx context.Context, authID uuid.UUID, token string, typ model.TokenType, deviceInfo *string, expiresAt time.Time) (model.Token, error)
	GetByToken(ctx context.Context, token string) (model.Token, error)
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (model.Token, error)
	Revoke(ctx context.Context, token string, typ model.TokenType) error
	TouchLastUsed(ctx context.Context, token string) error
}

type tokenRepo struct {
	db *sql.DB
}

// NewTokenRepo creates a new TokenRepo instance
func NewTokenRepo(db *sql.DB) TokenRepo {
	return &tokenRepo{db: db}
}

// Create inserts a new token row for an auth record
func (r *tokenRepo) Create(ctx context.Context, authID uuid.UUID, token string, typ model.TokenType, deviceInfo *string, expiresAt time.Time) (model.Token, error) {
	t := model.Token{
		AuthID:     authID,
		Token:      token,
		Type:       typ,
		DeviceInfo: deviceInfo,
		ExpiresAt:  expiresAt,
	}
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tokens (auth_id, token, type, device_info, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, last_used_at, created_at
	`, authID, token, typ, deviceInfo, expiresAt).Scan(&idStr, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		return model.Token{}, fmt.Errorf("insert token: %w", err)
	}

	t.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Token{}, fmt.Errorf("parse token ID: %w", err)
	}
	return t, nil
}

// GetByToken retrieves a token row by its opaque token string
func (r *tokenRepo) GetByToken(ctx context.Context, token string) (model.Token, error) {
	var t model.Token
	var idStr, authIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, auth_id, token, type, device_info, expires_at, revoked_at, last_used_at, created_at
		FROM tokens
		WHERE token = $1
	`, token).Scan(&idStr, &authIDStr, &t.Token, &t.Type, &t.DeviceInfo,
		&t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, fmt.Errorf("token: %w", ErrNotFound)
		}
		return model.Token{}, fmt.Errorf("query token: %w", err)
	}

	if t.ID, err = uuid.Parse(idStr); err != nil {
		return model.Token{}, fmt.Errorf("parse token ID: %w", err)
	}
	if t.AuthID, err = uuid.Parse(authIDStr); err != nil {
		return model.Token{}, fmt.Errorf("parse token auth ID: %w", err)
	}
	return t, nil
}

// Rotate atomically replaces a live refresh token's string and expiry in place.
// The WHERE clause re-checks type, revocation and expiry so concurrent rotations
// of the same token string cannot both succeed; the old string dies immediately.
func (r *tokenRepo) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (model.Token, error) {
	var t model.Token
	var idStr, authIDStr string
	err := r.db.QueryRowContext(ctx, `
		UPDATE tokens
		SET token = $2, expires_at = $3, last_used_at = now()
		WHERE token = $1
		  AND type = 'refresh_token'
		  AND revoked_at IS NULL
		  AND expires_at > now()
		RETURNING id, auth_id, token, type, device_info, expires_at, revoked_at, last_used_at, created_at
	`, oldToken, newToken, expiresAt).Scan(&idStr, &authIDStr, &t.Token, &t.Type,
		&t.DeviceInfo, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, fmt.Errorf("rotate token: %w", ErrNotFound)
		}
		return model.Token{}, fmt.Errorf("rotate token: %w", err)
	}

	if t.ID, err = uuid.Parse(idStr); err != nil {
		return model.Token{}, fmt.Errorf("parse token ID: %w", err)
	}
	if t.AuthID, err = uuid.Parse(authIDStr); err != nil {
		return model.Token{}, fmt.Errorf("parse token auth ID: %w", err)
	}
	return t, nil
}

// Revoke marks a token of the given type as revoked. Revoking a missing or
// already-revoked token is a no-op so logout stays idempotent.
func (r *tokenRepo) Revoke(ctx context.Context, token string, typ model.TokenType) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tokens
		SET revoked_at = now()
		WHERE token = $1 AND type = $2 AND revoked_at IS NULL
	`, token, typ)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// TouchLastUsed refreshes last_used_at for activity tracking
func (r *tokenRepo) TouchLastUsed(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET last_used_at = now() WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("touch token last_used_at: %w", err)
	}
	return nil
}
