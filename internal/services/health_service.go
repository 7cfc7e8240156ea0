package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"backfill/pkg/contracts"
)

// SessionCounter reports how many sessions are held
type SessionCounter interface {
	Len() int
}

// HealthService provides health check functionality
type HealthService struct {
	version     string
	buildTime   string
	sessions    SessionCounter
	maxSessions int
	startTime   time.Time
	logger      *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. sessions may be nil before
// the store is wired, in which case readiness reports not_ready.
func NewHealthService(version, buildTime string, sessions SessionCounter, maxSessions int, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:     version,
		buildTime:   buildTime,
		sessions:    sessions,
		maxSessions: maxSessions,
		startTime:   time.Now(),
		logger:      logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"sessions": hs.checkSessions(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "service not ready", slog.String("message", sh.Message))
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":         hs.version,
		"git_commit":      contracts.GitCommit,
		"workbook_layout": contracts.WorkbookLayout,
		"go_version":      runtime.Version(),
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
		"uptime":          time.Since(hs.startTime).Seconds(),
		"start_time":      hs.startTime.Format(time.RFC3339),
		"current_time":    time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkSessions() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{Status: "not_ready", Message: "session store not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: sessionsMessage(hs.sessions.Len(), hs.maxSessions),
		Uptime:  time.Since(hs.startTime).Round(time.Second).String(),
	}
}

func sessionsMessage(n, max int) string {
	if max <= 0 {
		return fmt.Sprintf("%d active sessions", n)
	}
	return fmt.Sprintf("%d of %d sessions in use", n, max)
}
