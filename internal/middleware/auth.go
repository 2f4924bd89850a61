package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
	"github.com/parichoy/server/internal/http/respond"
	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo"
)

// SessionCookieName is the cookie carrying the web session token.
const SessionCookieName = "session"

type contextKey string

const authIDKey contextKey = "auth_id"

// RequireAuth authenticates a request via exactly one of two modes, chosen by
// the presence of the Authorization header: a signed bearer credential
// (mobile) or the session cookie (web). There is no fallback between modes.
// Both modes additionally require a completed profile; a valid credential
// without one gets 409 so clients route to profile completion, not login.
// On success the resolved auth ID is placed on the request context.
func RequireAuth(jwtService *auth.JWTService, tokenRepo repo.TokenRepo, userRepo repo.UserRepo, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				authenticateBearer(w, r, next, authHeader, jwtService, userRepo, logger)
				return
			}
			authenticateSession(w, r, next, tokenRepo, userRepo, logger)
		})
	}
}

func authenticateBearer(w http.ResponseWriter, r *http.Request, next http.Handler, authHeader string, jwtService *auth.JWTService, userRepo repo.UserRepo, logger *zap.Logger) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		respond.Unauthorized(w, "Invalid or expired token")
		return
	}

	authID, err := jwtService.Verify(strings.TrimSpace(parts[1]))
	if err != nil {
		respond.Unauthorized(w, "Invalid or expired token")
		return
	}

	if !requireProfile(w, r, authID, userRepo, logger) {
		return
	}
	next.ServeHTTP(w, r.WithContext(WithAuthID(r.Context(), authID)))
}

func authenticateSession(w http.ResponseWriter, r *http.Request, next http.Handler, tokenRepo repo.TokenRepo, userRepo repo.UserRepo, logger *zap.Logger) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		respond.Unauthorized(w, "No session found")
		return
	}
	sessionToken := cookie.Value

	token, err := tokenRepo.GetByToken(r.Context(), sessionToken)
	if err != nil {
		respond.Unauthorized(w, "Invalid or expired session")
		return
	}
	if token.Type != model.TokenTypeSession || token.RevokedAt != nil || !token.ExpiresAt.After(time.Now()) {
		respond.Unauthorized(w, "Invalid or expired session")
		return
	}

	// Activity tracking happens off the request path; a failed touch never
	// blocks or fails an authenticated request.
	go func() {
		if err := tokenRepo.TouchLastUsed(context.Background(), sessionToken); err != nil {
			logger.Warn("session last_used_at touch failed", zap.Error(err))
		}
	}()

	if !requireProfile(w, r, token.AuthID, userRepo, logger) {
		return
	}
	next.ServeHTTP(w, r.WithContext(WithAuthID(r.Context(), token.AuthID)))
}

// requireProfile enforces profile existence and writes the response on
// failure. Returns true when the request may proceed.
func requireProfile(w http.ResponseWriter, r *http.Request, authID uuid.UUID, userRepo repo.UserRepo, logger *zap.Logger) bool {
	if _, err := userRepo.GetByID(r.Context(), authID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respond.Conflict(w, "Profile required")
			return false
		}
		logger.Error("profile lookup failed", zap.Error(err))
		respond.Internal(w)
		return false
	}
	return true
}

// WithAuthID places the authenticated identity ID on the context
func WithAuthID(ctx context.Context, authID uuid.UUID) context.Context {
	return context.WithValue(ctx, authIDKey, authID)
}

// GetAuthID extracts the authenticated identity ID from the request context
func GetAuthID(ctx context.Context) (uuid.UUID, bool) {
	authID, ok := ctx.Value(authIDKey).(uuid.UUID)
	return authID, ok
}
