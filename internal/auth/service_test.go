package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo/repotest"
)

type serviceFixture struct {
	svc       *AuthService
	otpRepo   *repotest.MemOtpRepo
	authRepo  *repotest.MemAuthRepo
	tokenRepo *repotest.MemTokenRepo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	otpRepo := repotest.NewOtpRepo()
	authRepo := repotest.NewAuthRepo()
	tokenRepo := repotest.NewTokenRepo()

	otpSvc := NewOTPService(otpRepo, &recordingSender{}, zap.NewNop(), time.Minute, 5*time.Minute, 3)
	jwtSvc := NewJWTService("test-secret", 30*time.Minute)
	svc := NewAuthService(otpSvc, jwtSvc, authRepo, tokenRepo, zap.NewNop(), 30*24*time.Hour, 30*24*time.Hour)

	return &serviceFixture{svc: svc, otpRepo: otpRepo, authRepo: authRepo, tokenRepo: tokenRepo}
}

// login drives a full OTP request+verify for the given platform
func (f *serviceFixture) login(t *testing.T, phone string, platform model.Platform) LoginResult {
	t.Helper()
	ctx := context.Background()

	// Bypass the cooldown between repeated logins for the same phone
	f.svc.otp.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.NoError(t, f.svc.otp.Request(ctx, phone))
	otp, err := f.otpRepo.GetByPhone(ctx, phone)
	require.NoError(t, err)

	result, err := f.svc.VerifyOTPAndLogin(ctx, phone, otp.Code, platform, nil)
	require.NoError(t, err)
	return result
}

func TestLoginMobileIssuesJWTAndRefreshToken(t *testing.T) {
	f := newServiceFixture(t)

	result := f.login(t, testPhone, model.PlatformMobile)

	assert.NotEmpty(t, result.JWT)
	assert.Len(t, result.RefreshToken, OpaqueTokenLength)
	assert.Empty(t, result.SessionToken)

	stored, err := f.tokenRepo.GetByToken(context.Background(), result.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, model.TokenTypeRefresh, stored.Type)
	assert.Equal(t, result.AuthID, stored.AuthID)
}

func TestLoginWebIssuesSessionToken(t *testing.T) {
	f := newServiceFixture(t)

	result := f.login(t, testPhone, model.PlatformWeb)

	assert.Empty(t, result.JWT)
	assert.Empty(t, result.RefreshToken)
	assert.Len(t, result.SessionToken, OpaqueTokenLength)

	stored, err := f.tokenRepo.GetByToken(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, model.TokenTypeSession, stored.Type)
}

func TestLoginCreatesIdentityExactlyOnce(t *testing.T) {
	f := newServiceFixture(t)

	first := f.login(t, testPhone, model.PlatformMobile)
	second := f.login(t, testPhone, model.PlatformWeb)

	assert.Equal(t, first.AuthID, second.AuthID, "identity resolution must be idempotent")
	assert.Equal(t, 1, f.authRepo.Count())
}

func TestLoginWrongCodeIssuesNothing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.otp.Request(ctx, testPhone))
	otp, err := f.otpRepo.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "000001"
	}

	_, err = f.svc.VerifyOTPAndLogin(ctx, testPhone, wrong, model.PlatformMobile, nil)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Zero(t, f.authRepo.Count(), "no identity on failed verification")
}

func TestRotateRefreshTokenSingleUse(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.login(t, testPhone, model.PlatformMobile)

	jwt, rotated, err := f.svc.RotateRefreshToken(ctx, result.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, jwt)
	assert.Len(t, rotated, OpaqueTokenLength)
	assert.NotEqual(t, result.RefreshToken, rotated)

	// The old string is dead immediately
	_, _, err = f.svc.RotateRefreshToken(ctx, result.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The replacement works exactly once more
	_, again, err := f.svc.RotateRefreshToken(ctx, rotated)
	require.NoError(t, err)
	_, _, err = f.svc.RotateRefreshToken(ctx, rotated)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NotEqual(t, rotated, again)
}

func TestRotateRejectsSessionToken(t *testing.T) {
	f := newServiceFixture(t)

	result := f.login(t, testPhone, model.PlatformWeb)

	_, _, err := f.svc.RotateRefreshToken(context.Background(), result.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsRevokedToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.login(t, testPhone, model.PlatformMobile)
	require.NoError(t, f.svc.RevokeToken(ctx, result.RefreshToken, model.TokenTypeRefresh))

	_, _, err := f.svc.RotateRefreshToken(ctx, result.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateRejectsMissingIdentity(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.login(t, testPhone, model.PlatformMobile)
	f.authRepo.Remove(result.AuthID)

	_, _, err := f.svc.RotateRefreshToken(ctx, result.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeTokenIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.login(t, testPhone, model.PlatformMobile)

	require.NoError(t, f.svc.RevokeToken(ctx, result.RefreshToken, model.TokenTypeRefresh))
	first, err := f.tokenRepo.GetByToken(ctx, result.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, first.RevokedAt)

	// Second revocation is a no-op: the timestamp must not move
	require.NoError(t, f.svc.RevokeToken(ctx, result.RefreshToken, model.TokenTypeRefresh))
	second, err := f.tokenRepo.GetByToken(ctx, result.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.RevokedAt, second.RevokedAt)

	// Revoking an unknown token is also a no-op
	require.NoError(t, f.svc.RevokeToken(ctx, "does-not-exist", model.TokenTypeRefresh))
}

func TestAuthIDByToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.login(t, testPhone, model.PlatformMobile)

	authID, err := f.svc.AuthIDByToken(ctx, result.RefreshToken, model.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, result.AuthID, authID)

	// Wrong type
	_, err = f.svc.AuthIDByToken(ctx, result.RefreshToken, model.TokenTypeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Revoked
	require.NoError(t, f.svc.RevokeToken(ctx, result.RefreshToken, model.TokenTypeRefresh))
	_, err = f.svc.AuthIDByToken(ctx, result.RefreshToken, model.TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Unknown
	_, err = f.svc.AuthIDByToken(ctx, "does-not-exist", model.TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthIDByTokenExpired(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result := f.login(t, testPhone, model.PlatformMobile)

	f.svc.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	_, err := f.svc.AuthIDByToken(ctx, result.RefreshToken, model.TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
