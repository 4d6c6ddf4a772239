package health

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

var errNoCache = errors.New("health cache not configured")

// Probe checks one dependency. Check returns nil when it is reachable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Cache keeps the last report so /health does not hit every backend on
// each request.
type Cache interface {
	CacheSystemHealth(ctx context.Context, health interface{}, expiration time.Duration) error
	GetCachedSystemHealth(ctx context.Context, out interface{}) error
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

type Checker struct {
	probes  []Probe
	cache   Cache
	timeout time.Duration
	ttl     time.Duration
	started time.Time
	logger  *logrus.Logger
}

// NewChecker builds a checker over probes. cache may be nil.
func NewChecker(probes []Probe, cache Cache, logger *logrus.Logger) *Checker {
	return &Checker{
		probes:  probes,
		cache:   cache,
		timeout: 5 * time.Second,
		ttl:     30 * time.Second,
		started: time.Now(),
		logger:  logger,
	}
}

func (h *Checker) check(ctx context.Context, p Probe) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	result := ServiceHealth{
		Name:         p.Name,
		Status:       StatusHealthy,
		ResponseTime: time.Since(start).Milliseconds(),
		LastChecked:  time.Now().Format(time.RFC3339),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		h.logger.WithError(err).WithField("service", p.Name).Error("Health check failed")
	}
	return result
}

// CheckAll runs every probe and reports unhealthy if any of them fails.
func (h *Checker) CheckAll(ctx context.Context) OverallHealth {
	services := make([]ServiceHealth, 0, len(h.probes))
	overall := StatusHealthy
	for _, p := range h.probes {
		s := h.check(ctx, p)
		if s.Status != StatusHealthy {
			overall = StatusUnhealthy
		}
		services = append(services, s)
	}

	return OverallHealth{
		Status:   overall,
		Services: services,
		Uptime:   h.uptime(),
	}
}

// CheckCached returns cached health status if available
func (h *Checker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	if h.cache == nil {
		return nil, errNoCache
	}
	var report OverallHealth
	if err := h.cache.GetCachedSystemHealth(ctx, &report); err != nil {
		return nil, err
	}
	report.Uptime = h.uptime()
	return &report, nil
}

// Current serves the cached report when there is one and otherwise checks
// and caches a fresh one.
func (h *Checker) Current(ctx context.Context) OverallHealth {
	if cached, err := h.CheckCached(ctx); err == nil {
		return *cached
	}
	report := h.CheckAll(ctx)
	h.store(ctx, report, h.ttl)
	return report
}

func (h *Checker) store(ctx context.Context, report OverallHealth, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	if err := h.cache.CacheSystemHealth(ctx, report, ttl); err != nil {
		h.logger.WithError(err).Error("Failed to cache health status")
	}
}

func (h *Checker) uptime() string {
	return time.Since(h.started).Round(time.Second).String()
}

// PeriodicHealthCheck runs health checks periodically
func (h *Checker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := h.CheckAll(ctx)

			cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			h.store(cacheCtx, report, 2*interval)
			cancel()

			h.logger.WithField("status", report.Status).Debug("Periodic health check completed")
		}
	}
}
