package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
	"github.com/parichoy/server/internal/http/respond"
	"github.com/parichoy/server/internal/middleware"
	"github.com/parichoy/server/internal/model"
)

var (
	phoneRe = regexp.MustCompile(`^01[1-9]\d{8}$`)
	codeRe  = regexp.MustCompile(`^\d{6}$`)
)

// fieldError is a field-level validation failure in the 422 details list
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	otpService    *auth.OTPService
	authService   *auth.AuthService
	logger        *zap.Logger
	sessionTTL    time.Duration
	secureCookies bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(otpService *auth.OTPService, authService *auth.AuthService, logger *zap.Logger, sessionTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		otpService:    otpService,
		authService:   authService,
		logger:        logger,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

type requestOTPRequest struct {
	Phone string `json:"phone"`
}

// HandleRequestOTP handles POST /auth/otp/request
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.ValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if !phoneRe.MatchString(req.Phone) {
		respond.ValidationError(w, []fieldError{{Field: "phone", Message: "Invalid Bangladesh phone number format"}})
		return
	}

	if err := h.otpService.Request(r.Context(), req.Phone); err != nil {
		if errors.Is(err, auth.ErrRateLimited) {
			respond.TooManyRequests(w, "Too many requests, try again later")
			return
		}
		h.logger.Error("otp request failed", zap.String("phone", auth.MaskPhone(req.Phone)), zap.Error(err))
		respond.Internal(w)
		return
	}

	// The code itself is never echoed.
	respond.OK(w, map[string]string{"message": "OTP sent"})
}

type verifyOTPRequest struct {
	Phone      string  `json:"phone"`
	Code       string  `json:"code"`
	DeviceInfo *string `json:"deviceInfo"`
	Platform   string  `json:"platform"`
}

// HandleVerifyOTP handles POST /auth/otp/verify
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.ValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.Code = strings.TrimSpace(req.Code)

	var details []fieldError
	if !phoneRe.MatchString(req.Phone) {
		details = append(details, fieldError{Field: "phone", Message: "Invalid Bangladesh phone number format"})
	}
	if !codeRe.MatchString(req.Code) {
		details = append(details, fieldError{Field: "code", Message: "OTP must be 6 digits"})
	}
	platform := model.Platform(req.Platform)
	if platform != model.PlatformMobile && platform != model.PlatformWeb {
		details = append(details, fieldError{Field: "platform", Message: "Platform must be 'mobile' or 'web'"})
	}
	if details != nil {
		respond.ValidationError(w, details)
		return
	}

	result, err := h.authService.VerifyOTPAndLogin(r.Context(), req.Phone, req.Code, platform, req.DeviceInfo)
	if err != nil {
		h.respondVerifyError(w, req.Phone, err)
		return
	}

	if platform == model.PlatformMobile {
		respond.OK(w, map[string]string{
			"jwt":          result.JWT,
			"refreshToken": result.RefreshToken,
		})
		return
	}

	// Web: the session travels only in the cookie, never in the body.
	h.setSessionCookie(w, result.SessionToken)
	respond.OK(w, map[string]string{"message": "Logged in"})
}

func (h *AuthHandler) respondVerifyError(w http.ResponseWriter, phone string, err error) {
	switch {
	case errors.Is(err, auth.ErrOTPNotFound):
		respond.Unauthorized(w, "No OTP found for this phone number")
	case errors.Is(err, auth.ErrOTPExpired):
		respond.Unauthorized(w, "OTP has expired")
	case errors.Is(err, auth.ErrTooManyAttempts):
		respond.Unauthorized(w, "Too many failed attempts. Please request a new OTP.")
	case errors.Is(err, auth.ErrInvalidCode):
		respond.Unauthorized(w, "Invalid OTP code")
	default:
		h.logger.Error("otp verification failed", zap.String("phone", auth.MaskPhone(phone)), zap.Error(err))
		respond.Internal(w)
	}
}

type rotateTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleRotateToken handles POST /auth/token/rotate
func (h *AuthHandler) HandleRotateToken(w http.ResponseWriter, r *http.Request) {
	var req rotateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.ValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}
	if len(req.RefreshToken) != auth.OpaqueTokenLength {
		respond.ValidationError(w, []fieldError{{Field: "refreshToken", Message: "Invalid refresh token"}})
		return
	}

	jwt, newRefreshToken, err := h.authService.RotateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			respond.Unauthorized(w, "Invalid or expired refresh token")
			return
		}
		h.logger.Error("token rotation failed", zap.Error(err))
		respond.Internal(w)
		return
	}

	respond.OK(w, map[string]string{
		"jwt":          jwt,
		"refreshToken": newRefreshToken,
	})
}

type logoutRequest struct {
	RefreshToken *string `json:"refreshToken"`
}

// HandleLogout handles POST /auth/logout. Mobile clients present the refresh
// token in the body; web clients rely on the session cookie. Both branches
// are idempotent and always answer 200, so logout never reveals whether the
// presented token was live.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	// An empty or undecodable body simply falls through to the cookie branch.
	var req logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != nil {
		if len(*req.RefreshToken) != auth.OpaqueTokenLength {
			respond.ValidationError(w, []fieldError{{Field: "refreshToken", Message: "Invalid refresh token"}})
			return
		}
		if err := h.authService.RevokeToken(r.Context(), *req.RefreshToken, model.TokenTypeRefresh); err != nil {
			h.logger.Error("logout revocation failed", zap.Error(err))
			respond.Internal(w)
			return
		}
		respond.OK(w, map[string]string{"message": "Logged out"})
		return
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.RevokeToken(r.Context(), cookie.Value, model.TokenTypeSession); err != nil {
			h.logger.Error("logout revocation failed", zap.Error(err))
			respond.Internal(w)
			return
		}
		h.clearSessionCookie(w)
	}
	respond.OK(w, map[string]string{"message": "Logged out"})
}

// HandleMe handles GET /me (protected). Returns the authenticated identity.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	authID, ok := middleware.GetAuthID(r.Context())
	if !ok {
		respond.Unauthorized(w, "Unauthorized")
		return
	}

	identity, err := h.authService.Identity(r.Context(), authID)
	if err != nil {
		h.logger.Error("identity lookup failed", zap.Error(err))
		respond.Internal(w)
		return
	}
	respond.OK(w, map[string]string{
		"id":    identity.ID.String(),
		"phone": identity.Phone,
	})
}

// setSessionCookie applies the session cookie contract: HttpOnly, SameSite
// Strict, whole-path scope, Secure outside local development.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
