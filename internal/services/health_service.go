package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/miquelpairo/predictionsreport/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   contracts.VersionInfo
	store     DatasetStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

// VersionResponse is the payload of the version endpoint.
type VersionResponse struct {
	contracts.VersionInfo
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
}

// NewHealthService creates a health service reporting on store. A nil store
// is reported as not ready.
func NewHealthService(store DatasetStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	info := contracts.GetVersionInfo()
	logger.Info("HealthService initialized",
		slog.String("version", info.Version),
		slog.String("build_time", info.BuildTime),
		slog.String("git_commit", info.GitCommit))

	return &HealthService{
		version:   info,
		store:     store,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status, including readiness of the
// dataset store.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version.Version,
		Services: map[string]ServiceHealth{
			"dataset_store": hs.checkStore(),
		},
	}

	for _, service := range status.Services {
		if service.Status != "ready" {
			status.Status = "degraded"
			break
		}
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.Duration("uptime", time.Since(hs.startTime)))

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() VersionResponse {
	return VersionResponse{
		VersionInfo:   hs.version,
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		StartTime:     hs.startTime,
	}
}

func (hs *HealthService) checkStore() ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "dataset store not initialized",
		}
	}

	n := hs.store.Len()
	return ServiceHealth{
		Status: "ready",
		Count:  &n,
	}
}
