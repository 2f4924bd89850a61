package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
	"github.com/parichoy/server/internal/http/handlers"
	"github.com/parichoy/server/internal/http/respond"
	"github.com/parichoy/server/internal/middleware"
	"github.com/parichoy/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	usersHandler *handlers.UsersHandler,
	healthHandler *handlers.HealthHandler,
	jwtService *auth.JWTService,
	tokenRepo repo.TokenRepo,
	userRepo repo.UserRepo,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.NotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Err(w, http.StatusMethodNotAllowed, respond.CodeBadRequest, "Method not allowed")
	})

	r.Get("/health", healthHandler.HandleCheck)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/otp/request", authHandler.HandleRequestOTP)
		r.Post("/otp/verify", authHandler.HandleVerifyOTP)
		r.Post("/token/rotate", authHandler.HandleRotateToken)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// Profile creation authenticates by token possession inside the handler;
	// the profile gate would reject callers who have no profile yet.
	r.Post("/users", usersHandler.HandleCreateProfile)

	// Protected routes (bearer credential or session cookie + complete profile)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, tokenRepo, userRepo, logger))
		r.Get("/me", authHandler.HandleMe)
	})

	return r
}
