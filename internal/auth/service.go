package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo"
)

// LoginResult carries the credentials issued after a successful OTP
// verification. Mobile logins fill JWT and RefreshToken; web logins fill
// SessionToken, which the handler sets as a cookie and never echoes.
type LoginResult struct {
	AuthID       uuid.UUID
	JWT          string
	RefreshToken string
	SessionToken string
}

// AuthService orchestrates OTP verification, identity resolution and
// credential issuance, rotation and revocation.
type AuthService struct {
	otp        *OTPService
	jwtService *JWTService
	authRepo   repo.AuthRepo
	tokenRepo  repo.TokenRepo
	logger     *zap.Logger
	refreshTTL time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	otp *OTPService,
	jwtService *JWTService,
	authRepo repo.AuthRepo,
	tokenRepo repo.TokenRepo,
	logger *zap.Logger,
	refreshTTL, sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		otp:        otp,
		jwtService: jwtService,
		authRepo:   authRepo,
		tokenRepo:  tokenRepo,
		logger:     logger,
		refreshTTL: refreshTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// VerifyOTPAndLogin verifies the code, resolves or creates the identity for
// the phone (first signup is merged into first login) and issues credentials
// for the declared platform.
func (s *AuthService) VerifyOTPAndLogin(ctx context.Context, phone, code string, platform model.Platform, deviceInfo *string) (LoginResult, error) {
	if err := s.otp.Verify(ctx, phone, code); err != nil {
		return LoginResult{}, err
	}

	authRec, err := s.authRepo.GetOrCreateByPhone(ctx, phone)
	if err != nil {
		return LoginResult{}, fmt.Errorf("resolve identity: %w", err)
	}

	switch platform {
	case model.PlatformMobile:
		return s.issueMobile(ctx, authRec, deviceInfo)
	case model.PlatformWeb:
		return s.issueWeb(ctx, authRec, deviceInfo)
	default:
		return LoginResult{}, fmt.Errorf("unsupported platform: %s", platform)
	}
}

func (s *AuthService) issueMobile(ctx context.Context, authRec model.Auth, deviceInfo *string) (LoginResult, error) {
	signed, err := s.jwtService.Sign(authRec.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue bearer credential: %w", err)
	}

	refreshToken, err := GenerateOpaqueToken()
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	expiresAt := s.now().Add(s.refreshTTL)
	if _, err := s.tokenRepo.Create(ctx, authRec.ID, refreshToken, model.TokenTypeRefresh, deviceInfo, expiresAt); err != nil {
		return LoginResult{}, fmt.Errorf("store refresh token: %w", err)
	}

	return LoginResult{AuthID: authRec.ID, JWT: signed, RefreshToken: refreshToken}, nil
}

func (s *AuthService) issueWeb(ctx context.Context, authRec model.Auth, deviceInfo *string) (LoginResult, error) {
	sessionToken, err := GenerateOpaqueToken()
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate session token: %w", err)
	}

	expiresAt := s.now().Add(s.sessionTTL)
	if _, err := s.tokenRepo.Create(ctx, authRec.ID, sessionToken, model.TokenTypeSession, deviceInfo, expiresAt); err != nil {
		return LoginResult{}, fmt.Errorf("store session token: %w", err)
	}

	return LoginResult{AuthID: authRec.ID, SessionToken: sessionToken}, nil
}

// RotateRefreshToken exchanges a live refresh token for a fresh bearer
// credential and a replacement token. The rotation is a single conditional
// update on the token string, so the presented string is single-use: once
// rotated it is invalid immediately, and concurrent rotations of the same
// string cannot both succeed.
func (s *AuthService) RotateRefreshToken(ctx context.Context, presented string) (jwt, newRefreshToken string, err error) {
	newToken, err := GenerateOpaqueToken()
	if err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}

	rotated, err := s.tokenRepo.Rotate(ctx, presented, newToken, s.now().Add(s.refreshTTL))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("rotate refresh token: %w", err)
	}

	// The owning identity must still exist to mint a credential for it.
	authRec, err := s.authRepo.GetByID(ctx, rotated.AuthID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("resolve identity: %w", err)
	}

	signed, err := s.jwtService.Sign(authRec.ID)
	if err != nil {
		return "", "", fmt.Errorf("issue bearer credential: %w", err)
	}
	return signed, newToken, nil
}

// RevokeToken marks a presented token of the given type as revoked. Absent,
// mismatched or already-revoked tokens are a silent no-op so logout stays
// idempotent and never leaks token validity.
func (s *AuthService) RevokeToken(ctx context.Context, token string, typ model.TokenType) error {
	if err := s.tokenRepo.Revoke(ctx, token, typ); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Identity looks up an auth record by ID
func (s *AuthService) Identity(ctx context.Context, id uuid.UUID) (model.Auth, error) {
	return s.authRepo.GetByID(ctx, id)
}

// AuthIDByToken resolves the identity owning a live token of the given type.
// Possession-based: used by profile creation, where the client is
// authenticated but may not yet have a profile to satisfy the gate.
func (s *AuthService) AuthIDByToken(ctx context.Context, token string, typ model.TokenType) (uuid.UUID, error) {
	t, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return uuid.Nil, ErrInvalidToken
		}
		return uuid.Nil, fmt.Errorf("look up token: %w", err)
	}
	if t.Type != typ || t.RevokedAt != nil || !t.ExpiresAt.After(s.now()) {
		return uuid.Nil, ErrInvalidToken
	}
	return t.AuthID, nil
}
