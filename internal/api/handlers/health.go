package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tracuu-benhly/lookup/internal/health"
	"github.com/tracuu-benhly/lookup/internal/models"
)

type HealthReporter interface {
	Current(ctx context.Context) health.OverallHealth
}

type HealthHandler struct {
	reporter HealthReporter
	service  string
}

func NewHealthHandler(reporter HealthReporter, service string) *HealthHandler {
	return &HealthHandler{reporter: reporter, service: service}
}

// HandleHealth answers 200 when every dependency is up and 503 otherwise.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	report := h.reporter.Current(ctx)
	code := http.StatusOK
	if report.Status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	services := make(map[string]string, len(report.Services))
	for _, s := range report.Services {
		services[s.Name] = s.Status
	}

	c.JSON(code, models.HealthResponse{
		Status:    report.Status,
		Service:   h.service,
		Timestamp: time.Now().Format(time.RFC3339),
		Services:  services,
		Uptime:    report.Uptime,
	})
}
