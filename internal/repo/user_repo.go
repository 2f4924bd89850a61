package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/parichoy/server/internal/model"
)

// UserRepo defines the interface for user profile repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	Create(ctx context.Context, user model.User) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

// GetByID retrieves a user profile by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, gender, birth_year, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&idStr, &u.Name, &u.Gender, &u.BirthYear, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}

	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	return u, nil
}

// Create inserts a user profile sharing its primary key with the auth record.
// A duplicate profile or email maps to ErrConflict.
func (r *userRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, gender, birth_year, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, user.ID, user.Name, user.Gender, user.BirthYear, user.Email).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return model.User{}, fmt.Errorf("user %s: %w", user.ID, ErrConflict)
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}
