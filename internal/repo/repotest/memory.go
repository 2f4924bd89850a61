// Package repotest provides in-memory repository implementations for unit
// tests. They mirror the SQL repositories' contracts, including sentinel
// errors and the conditional-update semantics of token rotation.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo"
)

var (
	_ repo.AuthRepo  = (*MemAuthRepo)(nil)
	_ repo.UserRepo  = (*MemUserRepo)(nil)
	_ repo.OtpRepo   = (*MemOtpRepo)(nil)
	_ repo.TokenRepo = (*MemTokenRepo)(nil)
)

// MemAuthRepo is an in-memory repo.AuthRepo
type MemAuthRepo struct {
	mu    sync.Mutex
	auths map[string]model.Auth
}

// NewAuthRepo creates an empty in-memory auth repo
func NewAuthRepo() *MemAuthRepo {
	return &MemAuthRepo{auths: make(map[string]model.Auth)}
}

func (r *MemAuthRepo) GetOrCreateByPhone(_ context.Context, phone string) (model.Auth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auths[phone]; ok {
		return a, nil
	}
	a := model.Auth{ID: uuid.New(), Phone: phone, CreatedAt: time.Now()}
	r.auths[phone] = a
	return a, nil
}

func (r *MemAuthRepo) GetByPhone(_ context.Context, phone string) (model.Auth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auths[phone]
	if !ok {
		return model.Auth{}, fmt.Errorf("auth record for phone: %w", repo.ErrNotFound)
	}
	return a, nil
}

func (r *MemAuthRepo) GetByID(_ context.Context, id uuid.UUID) (model.Auth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.auths {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Auth{}, fmt.Errorf("auth record %s: %w", id, repo.ErrNotFound)
}

// Remove deletes an auth record, simulating an identity that no longer exists
func (r *MemAuthRepo) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, a := range r.auths {
		if a.ID == id {
			delete(r.auths, phone)
		}
	}
}

// Count returns the number of auth records
func (r *MemAuthRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.auths)
}

// MemUserRepo is an in-memory repo.UserRepo
type MemUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

// NewUserRepo creates an empty in-memory user repo
func NewUserRepo() *MemUserRepo {
	return &MemUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *MemUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, repo.ErrNotFound)
	}
	return u, nil
}

func (r *MemUserRepo) Create(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return model.User{}, fmt.Errorf("user %s: %w", user.ID, repo.ErrConflict)
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

// MemOtpRepo is an in-memory repo.OtpRepo
type MemOtpRepo struct {
	mu   sync.Mutex
	otps map[string]model.OTP
}

// NewOtpRepo creates an empty in-memory OTP repo
func NewOtpRepo() *MemOtpRepo {
	return &MemOtpRepo{otps: make(map[string]model.OTP)}
}

func (r *MemOtpRepo) GetByPhone(_ context.Context, phone string) (model.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[phone]
	if !ok {
		return model.OTP{}, fmt.Errorf("otp for phone: %w", repo.ErrNotFound)
	}
	return otp, nil
}

func (r *MemOtpRepo) Upsert(_ context.Context, otp model.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps[otp.Phone] = otp
	return nil
}

func (r *MemOtpRepo) IncrementAttempts(_ context.Context, phone string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[phone]
	if !ok {
		return 0, fmt.Errorf("otp for phone: %w", repo.ErrNotFound)
	}
	otp.Attempts++
	r.otps[phone] = otp
	return otp.Attempts, nil
}

func (r *MemOtpRepo) Delete(_ context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.otps, phone)
	return nil
}

// MemTokenRepo is an in-memory repo.TokenRepo
type MemTokenRepo struct {
	mu      sync.Mutex
	tokens  map[string]model.Token
	touches int
}

// NewTokenRepo creates an empty in-memory token repo
func NewTokenRepo() *MemTokenRepo {
	return &MemTokenRepo{tokens: make(map[string]model.Token)}
}

func (r *MemTokenRepo) Create(_ context.Context, authID uuid.UUID, token string, typ model.TokenType, deviceInfo *string, expiresAt time.Time) (model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	t := model.Token{
		ID:         uuid.New(),
		AuthID:     authID,
		Token:      token,
		Type:       typ,
		DeviceInfo: deviceInfo,
		ExpiresAt:  expiresAt,
		LastUsedAt: now,
		CreatedAt:  now,
	}
	r.tokens[token] = t
	return t, nil
}

func (r *MemTokenRepo) GetByToken(_ context.Context, token string) (model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return model.Token{}, fmt.Errorf("token: %w", repo.ErrNotFound)
	}
	return t, nil
}

func (r *MemTokenRepo) Rotate(_ context.Context, oldToken, newToken string, expiresAt time.Time) (model.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[oldToken]
	if !ok || t.Type != model.TokenTypeRefresh || t.RevokedAt != nil || !t.ExpiresAt.After(time.Now()) {
		return model.Token{}, fmt.Errorf("rotate token: %w", repo.ErrNotFound)
	}
	delete(r.tokens, oldToken)
	t.Token = newToken
	t.ExpiresAt = expiresAt
	t.LastUsedAt = time.Now()
	r.tokens[newToken] = t
	return t, nil
}

func (r *MemTokenRepo) Revoke(_ context.Context, token string, typ model.TokenType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Type != typ || t.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	t.RevokedAt = &now
	r.tokens[token] = t
	return nil
}

func (r *MemTokenRepo) TouchLastUsed(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok {
		t.LastUsedAt = time.Now()
		r.tokens[token] = t
	}
	r.touches++
	return nil
}

// Touches returns how many times TouchLastUsed was called
func (r *MemTokenRepo) Touches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touches
}

// Seed stores a token row directly, for tests that need full control over
// expiry and revocation state
func (r *MemTokenRepo) Seed(t model.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Token] = t
}
