package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

const healthCheckTimeout = 5 * time.Second

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Latency   string       `json:"latency,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Sessions   int                        `json:"sessions"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentHealth `json:"components"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type healthCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

type HealthService struct {
	checks   []healthCheck
	sessions func() int
	version  string
}

func NewHealthService(version string) *HealthService {
	if version == "" {
		version = "0.0.1"
	}
	return &HealthService{version: version}
}

// AddCheck registers a probe. A failing critical probe makes the service
// unhealthy; a failing optional one only degrades it.
func (s *HealthService) AddCheck(name string, critical bool, fn CheckFunc) *HealthService {
	s.checks = append(s.checks, healthCheck{name: name, critical: critical, fn: fn})
	return s
}

// WithSessionCount reports the number of open sessions.
func (s *HealthService) WithSessionCount(fn func() int) *HealthService {
	s.sessions = fn
	return s
}

// Names lists the registered probes.
func (s *HealthService) Names() []string {
	names := make([]string, 0, len(s.checks))
	for _, c := range s.checks {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:     HealthStatusHealthy,
		Version:    s.version,
		CheckedAt:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
	if s.sessions != nil {
		report.Sessions = s.sessions()
	}

	for _, c := range s.checks {
		h := runCheck(ctx, c.fn)
		report.Components[c.name] = h
		if h.Status == HealthStatusHealthy {
			continue
		}
		if c.critical {
			report.Status = HealthStatusUnhealthy
		} else if report.Status == HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
	}

	return report
}

// Component runs a single named probe.
func (s *HealthService) Component(ctx context.Context, name string) (ComponentHealth, bool) {
	for _, c := range s.checks {
		if c.name == name {
			return runCheck(ctx, c.fn), true
		}
	}
	return ComponentHealth{}, false
}

func runCheck(ctx context.Context, fn CheckFunc) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return ComponentHealth{
			Status:    HealthStatusUnhealthy,
			Message:   err.Error(),
			Latency:   time.Since(start).String(),
			CheckedAt: time.Now(),
		}
	}
	return ComponentHealth{
		Status:    HealthStatusHealthy,
		Latency:   time.Since(start).String(),
		CheckedAt: time.Now(),
	}
}

// DatabaseCheck pings the database and runs a trivial query.
func DatabaseCheck(db *gorm.DB) CheckFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database not initialized")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		var result int
		if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
			return fmt.Errorf("database query failed: %w", err)
		}
		return nil
	}
}

// RedisCheck pings redis.
func RedisCheck(client *redis.Client) CheckFunc {
	return func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("redis client not initialized")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// SimpleHealthCheck returns a simple health status for load balancers
func (s *HealthService) SimpleHealthCheck(ctx context.Context) (string, int) {
	report := s.CheckHealth(ctx)

	switch report.Status {
	case HealthStatusHealthy:
		return "ok", 200
	case HealthStatusDegraded:
		return "degraded", 200
	default:
		return "unhealthy", 503
	}
}
