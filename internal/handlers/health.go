package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/AnshRaj112/coursely-backend/internal/response"
)

// Pinger is anything whose reachability the health check reports.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// ServeHTTP reports 200 when every dependency answers and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	response.JSON(w, status, map[string]interface{}{
		"success":      status == http.StatusOK,
		"status":       map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"dependencies": results,
	})
}
