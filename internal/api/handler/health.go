package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// defaultCheckTimeout bounds each dependency check.
const defaultCheckTimeout = 2 * time.Second

// HealthCheck reports whether a backing service (registry, history, object
// storage) is reachable.
type HealthCheck func(ctx context.Context) error

type HealthResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

// HealthHandler answers the liveness endpoints.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler running checks on GET /health.
// checks may be empty when the server runs without external services.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		checks:  checks,
		timeout: defaultCheckTimeout,
		logger:  logger,
	}
}

// Health handles GET /health.
// Every check runs; any failure answers 503 naming the failed services.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := make(map[string]string)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			failed[name] = err.Error()
			h.logger.Warn("health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(failed) > 0 {
		JSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Failed: failed,
		})
		return
	}

	JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Index handles GET /api/. It answers while the process serves requests and
// never touches the backing services, so players can poll it freely.
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
