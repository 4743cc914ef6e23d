package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hackportal/portal/pkg/response"
)

// Checker reports whether a dependency is reachable
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	checks  map[string]Checker
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are skipped.
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	live := make(map[string]Checker, len(checks))
	for name, c := range checks {
		if c != nil {
			live[name] = c
		}
	}
	return &HealthHandler{checks: live, timeout: 2 * time.Second}
}

// Health handles liveness
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}

// Ready handles readiness: every dependency must answer
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			status[name] = err.Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, response.ErrorWithDetails(response.ErrCodeServiceUnavailable, "Service not ready", status))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ready", "checks": status}))
}
