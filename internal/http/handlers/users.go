package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
	"github.com/parichoy/server/internal/http/respond"
	"github.com/parichoy/server/internal/middleware"
	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minBirthYear = 1900

// UsersHandler handles profile endpoints
type UsersHandler struct {
	authService *auth.AuthService
	userRepo    repo.UserRepo
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(authService *auth.AuthService, userRepo repo.UserRepo, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		authService: authService,
		userRepo:    userRepo,
		logger:      logger,
	}
}

type createProfileRequest struct {
	Name         string  `json:"name"`
	Gender       string  `json:"gender"`
	BirthYear    int     `json:"birthYear"`
	Email        *string `json:"email"`
	RefreshToken *string `json:"refreshToken"`
}

type profileResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Gender    string  `json:"gender"`
	BirthYear int     `json:"birthYear"`
	Email     *string `json:"email,omitempty"`
}

// HandleCreateProfile handles POST /users. The caller is authenticated by
// token possession: a refresh token in the body (mobile) or the session
// cookie (web). The profile gate itself cannot be used here since the profile
// does not exist yet.
func (h *UsersHandler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.ValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	if details := validateProfile(&req); details != nil {
		respond.ValidationError(w, details)
		return
	}

	authID, ok := h.resolveAuthID(r, req.RefreshToken)
	if !ok {
		respond.Unauthorized(w, "Authentication required")
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), authID); err == nil {
		respond.Conflict(w, "Profile already exists")
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		h.logger.Error("profile lookup failed", zap.Error(err))
		respond.Internal(w)
		return
	}

	user := model.User{
		ID:        authID,
		Name:      req.Name,
		Gender:    model.Gender(req.Gender),
		BirthYear: req.BirthYear,
		Email:     req.Email,
	}
	created, err := h.userRepo.Create(r.Context(), user)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			respond.Conflict(w, "Profile already exists")
			return
		}
		h.logger.Error("profile creation failed", zap.Error(err))
		respond.Internal(w)
		return
	}

	respond.Created(w, profileResponse{
		ID:        created.ID.String(),
		Name:      created.Name,
		Gender:    string(created.Gender),
		BirthYear: created.BirthYear,
		Email:     created.Email,
	}, "Profile created")
}

func validateProfile(req *createProfileRequest) []fieldError {
	var details []fieldError

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		details = append(details, fieldError{Field: "name", Message: "Name is required"})
	}
	if g := model.Gender(req.Gender); g != model.GenderMale && g != model.GenderFemale {
		details = append(details, fieldError{Field: "gender", Message: "Gender must be male or female"})
	}
	if req.BirthYear < minBirthYear || req.BirthYear > time.Now().Year() {
		details = append(details, fieldError{Field: "birthYear", Message: "Invalid birth year"})
	}
	if req.Email != nil && !emailRe.MatchString(*req.Email) {
		details = append(details, fieldError{Field: "email", Message: "Invalid email address"})
	}
	if req.RefreshToken != nil && len(*req.RefreshToken) != auth.OpaqueTokenLength {
		details = append(details, fieldError{Field: "refreshToken", Message: "Invalid refresh token"})
	}
	return details
}

// resolveAuthID authenticates by token possession: refresh token when
// supplied, session cookie otherwise.
func (h *UsersHandler) resolveAuthID(r *http.Request, refreshToken *string) (uuid.UUID, bool) {
	if refreshToken != nil {
		authID, err := h.authService.AuthIDByToken(r.Context(), *refreshToken, model.TokenTypeRefresh)
		if err != nil {
			return uuid.Nil, false
		}
		return authID, true
	}

	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, false
	}
	authID, err := h.authService.AuthIDByToken(r.Context(), cookie.Value, model.TokenTypeSession)
	if err != nil {
		return uuid.Nil, false
	}
	return authID, true
}
