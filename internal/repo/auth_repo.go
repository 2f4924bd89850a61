package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/parichoy/server/internal/model"
)

// AuthRepo defines the interface for auth record repository operations
type AuthRepo interface {
	GetOrCreateByPhone(ctx context.Context, phone string) (model.Auth, error)
	GetByPhone(ctx context.Context, phone string) (model.Auth, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Auth, error)
}

type authRepo struct {
	db *sql.DB
}

// NewAuthRepo creates a new AuthRepo instance
func NewAuthRepo(db *sql.DB) AuthRepo {
	return &authRepo{db: db}
}

// GetOrCreateByPhone retrieves the auth record for a phone number, creating it
// if none exists. The insert uses ON CONFLICT DO NOTHING so concurrent first
// logins for the same phone resolve to a single record.
func (r *authRepo) GetOrCreateByPhone(ctx context.Context, phone string) (model.Auth, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth (phone)
		VALUES ($1)
		ON CONFLICT (phone) DO NOTHING
	`, phone)
	if err != nil {
		return model.Auth{}, fmt.Errorf("insert auth: %w", err)
	}

	return r.GetByPhone(ctx, phone)
}

// GetByPhone retrieves an auth record by phone number
func (r *authRepo) GetByPhone(ctx context.Context, phone string) (model.Auth, error) {
	var a model.Auth
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, created_at
		FROM auth
		WHERE phone = $1
	`, phone).Scan(&idStr, &a.Phone, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Auth{}, fmt.Errorf("auth record for phone: %w", ErrNotFound)
		}
		return model.Auth{}, fmt.Errorf("query auth by phone: %w", err)
	}

	a.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Auth{}, fmt.Errorf("parse auth ID: %w", err)
	}
	return a, nil
}

// GetByID retrieves an auth record by ID
func (r *authRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Auth, error) {
	var a model.Auth
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, created_at
		FROM auth
		WHERE id = $1
	`, id).Scan(&idStr, &a.Phone, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Auth{}, fmt.Errorf("auth record %s: %w", id, ErrNotFound)
		}
		return model.Auth{}, fmt.Errorf("query auth by ID: %w", err)
	}

	a.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Auth{}, fmt.Errorf("parse auth ID: %w", err)
	}
	return a, nil
}
