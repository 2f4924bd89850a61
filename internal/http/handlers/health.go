package handlers

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/parichoy/server/internal/db"
	"github.com/parichoy/server/internal/http/respond"
)

// HealthHandler reports liveness and store connectivity
type HealthHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(database *sql.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: database, logger: logger}
}

// HandleCheck handles GET /health
func (h *HealthHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	if err := db.Health(r.Context(), h.db); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		respond.ServiceUnavailable(w, "Database connection failed")
		return
	}
	respond.OK(w, map[string]string{"status": "healthy"})
}
