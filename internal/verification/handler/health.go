package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/docverify/docverify-backend/pkg/httputil"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Check reports the health of one backing dependency
type Check func(ctx context.Context) map[string]string

// HealthHandler reports which collaborators are configured and whether
// backing dependencies respond
type HealthHandler struct {
	services map[string]bool
	checks   map[string]Check
	now      func() time.Time
}

// NewHealthHandler creates a health handler. services maps a collaborator
// name to whether it is configured.
func NewHealthHandler(services map[string]bool, checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		services: services,
		checks:   checks,
		now:      time.Now,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	deps := make(map[string]map[string]string, len(h.checks))
	for name, check := range h.checks {
		res := check(r.Context())
		if res["status"] != "up" {
			status = "degraded"
		}
		deps[name] = res
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"timestamp":    h.now().UTC(),
		"services":     h.services,
		"dependencies": deps,
		"version":      Version,
	})
}
