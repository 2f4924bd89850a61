package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
	"github.com/parichoy/server/internal/middleware"
	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo/repotest"
)

const testPhone = "01712345678"

type noopSender struct{}

func (noopSender) Send(context.Context, string, string) error { return nil }

type handlerFixture struct {
	otpRepo   *repotest.MemOtpRepo
	authRepo  *repotest.MemAuthRepo
	tokenRepo *repotest.MemTokenRepo
	userRepo  *repotest.MemUserRepo

	authHandler  *AuthHandler
	usersHandler *UsersHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		otpRepo:   repotest.NewOtpRepo(),
		authRepo:  repotest.NewAuthRepo(),
		tokenRepo: repotest.NewTokenRepo(),
		userRepo:  repotest.NewUserRepo(),
	}

	logger := zap.NewNop()
	otpSvc := auth.NewOTPService(f.otpRepo, noopSender{}, logger, time.Minute, 5*time.Minute, 3)
	jwtSvc := auth.NewJWTService("test-secret", 30*time.Minute)
	authSvc := auth.NewAuthService(otpSvc, jwtSvc, f.authRepo, f.tokenRepo, logger, 30*24*time.Hour, 30*24*time.Hour)

	f.authHandler = NewAuthHandler(otpSvc, authSvc, logger, 30*24*time.Hour, false)
	f.usersHandler = NewUsersHandler(authSvc, f.userRepo, logger)
	return f
}

// seedToken stores an issued opaque token for an identity resolved from
// testPhone, skipping the OTP dance.
func (f *handlerFixture) seedToken(t *testing.T, typ model.TokenType) (string, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	a, err := f.authRepo.GetOrCreateByPhone(ctx, testPhone)
	require.NoError(t, err)
	token, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)
	_, err = f.tokenRepo.Create(ctx, a.ID, token, typ, nil, time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	return token, a.ID
}

func doJSON(t *testing.T, handler http.HandlerFunc, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

type envelope struct {
	OK      bool                   `json:"ok"`
	Data    map[string]interface{} `json:"data"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRequestOTPInvalidPhone(t *testing.T) {
	f := newHandlerFixture(t)

	for _, phone := range []string{"", "0171234567", "017123456789", "01012345678", "+8801712345678"} {
		rec := doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+phone+`"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "phone %q", phone)
		env := decodeEnvelope(t, rec)
		require.Len(t, env.Details, 1)
		assert.Equal(t, "phone", env.Details[0].Field)
	}
}

func TestRequestOTPSuccess(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+testPhone+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.OK)
	assert.Equal(t, "OTP sent", env.Data["message"])

	// The code is stored but never echoed
	otp, err := f.otpRepo.GetByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.NotContains(t, rec.Body.String(), otp.Code)
}

func TestRequestOTPCooldown(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+testPhone+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+testPhone+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Too many requests, try again later", env.Error)
}

func TestVerifyOTPValidation(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleVerifyOTP, `{"phone":"bad","code":"12","platform":"desktop"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Len(t, env.Details, 3)
	fields := []string{env.Details[0].Field, env.Details[1].Field, env.Details[2].Field}
	assert.ElementsMatch(t, []string{"phone", "code", "platform"}, fields)
}

func TestVerifyOTPMobile(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	rec := doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+testPhone+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	otp, err := f.otpRepo.GetByPhone(ctx, testPhone)
	require.NoError(t, err)

	rec = doJSON(t, f.authHandler.HandleVerifyOTP,
		`{"phone":"`+testPhone+`","code":"`+otp.Code+`","platform":"mobile"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.OK)
	assert.NotEmpty(t, env.Data["jwt"])
	assert.Len(t, env.Data["refreshToken"], auth.OpaqueTokenLength)
	assert.Nil(t, sessionCookie(t, rec), "mobile login must not set a cookie")
}

func TestVerifyOTPWeb(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	rec := doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+testPhone+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	otp, err := f.otpRepo.GetByPhone(ctx, testPhone)
	require.NoError(t, err)

	rec = doJSON(t, f.authHandler.HandleVerifyOTP,
		`{"phone":"`+testPhone+`","code":"`+otp.Code+`","platform":"web"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Logged in", env.Data["message"])
	assert.Empty(t, env.Data["jwt"], "session must travel only in the cookie")
	assert.Empty(t, env.Data["refreshToken"])

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	assert.Len(t, cookie.Value, auth.OpaqueTokenLength)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.False(t, cookie.Secure, "dev mode keeps the cookie non-secure")
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	rec := doJSON(t, f.authHandler.HandleRequestOTP, `{"phone":"`+testPhone+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	otp, err := f.otpRepo.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "000001"
	}

	rec = doJSON(t, f.authHandler.HandleVerifyOTP,
		`{"phone":"`+testPhone+`","code":"`+wrong+`","platform":"mobile"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Invalid OTP code", env.Error)
}

func TestVerifyOTPNoRow(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleVerifyOTP,
		`{"phone":"`+testPhone+`","code":"123456","platform":"mobile"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "No OTP found for this phone number", env.Error)
}

func TestRotateTokenBadLength(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleRotateToken, `{"refreshToken":"short"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Len(t, env.Details, 1)
	assert.Equal(t, "refreshToken", env.Details[0].Field)
}

func TestRotateTokenUnknown(t *testing.T) {
	f := newHandlerFixture(t)
	unknown, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)

	rec := doJSON(t, f.authHandler.HandleRotateToken, `{"refreshToken":"`+unknown+`"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Invalid or expired refresh token", env.Error)
}

func TestRotateTokenSuccess(t *testing.T) {
	f := newHandlerFixture(t)
	token, _ := f.seedToken(t, model.TokenTypeRefresh)

	rec := doJSON(t, f.authHandler.HandleRotateToken, `{"refreshToken":"`+token+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.NotEmpty(t, env.Data["jwt"])
	assert.Len(t, env.Data["refreshToken"], auth.OpaqueTokenLength)
	assert.NotEqual(t, token, env.Data["refreshToken"])

	// Presenting the consumed token again is rejected
	rec = doJSON(t, f.authHandler.HandleRotateToken, `{"refreshToken":"`+token+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithRefreshToken(t *testing.T) {
	f := newHandlerFixture(t)
	token, _ := f.seedToken(t, model.TokenTypeRefresh)

	rec := doJSON(t, f.authHandler.HandleLogout, `{"refreshToken":"`+token+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Logged out", env.Data["message"])

	stored, err := f.tokenRepo.GetByToken(context.Background(), token)
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt)

	// Idempotent: repeating is still 200
	rec = doJSON(t, f.authHandler.HandleLogout, `{"refreshToken":"`+token+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutBadTokenLength(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleLogout, `{"refreshToken":"short"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLogoutWithSessionCookie(t *testing.T) {
	f := newHandlerFixture(t)
	token, _ := f.seedToken(t, model.TokenTypeSession)

	rec := doJSON(t, f.authHandler.HandleLogout, `{}`,
		&http.Cookie{Name: middleware.SessionCookieName, Value: token})

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Logged out", env.Data["message"])

	stored, err := f.tokenRepo.GetByToken(context.Background(), token)
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt)

	cleared := sessionCookie(t, rec)
	require.NotNil(t, cleared, "logout must clear the session cookie")
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestLogoutNoCredentials(t *testing.T) {
	f := newHandlerFixture(t)

	rec := doJSON(t, f.authHandler.HandleLogout, ``)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Logged out", env.Data["message"])
}

func TestHandleMe(t *testing.T) {
	f := newHandlerFixture(t)
	a, err := f.authRepo.GetOrCreateByPhone(context.Background(), testPhone)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(middleware.WithAuthID(req.Context(), a.ID))
	rec := httptest.NewRecorder()
	f.authHandler.HandleMe(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, a.ID.String(), env.Data["id"])
	assert.Equal(t, testPhone, env.Data["phone"])
}
