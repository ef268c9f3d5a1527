package service

import (
	"context"
	"sync"
	"time"

	"contentaugment/internal/application/common/slogger"
	"contentaugment/internal/application/dto"
	"contentaugment/internal/port/inbound"
	"contentaugment/internal/port/outbound"
)

// Configuration constants for health monitoring.
const (
	healthCacheTTL     = 5 * time.Second
	dependencyTimeout  = 2 * time.Second
	criticalDependency = "database"
)

// describer is implemented by checkers that can add detail to a healthy status.
type describer interface {
	Describe(ctx context.Context) string
}

// cacheEntry represents a cached health check result.
type cacheEntry struct {
	status    dto.DependencyStatus
	timestamp time.Time
}

// HealthServiceAdapter checks every registered dependency concurrently and
// caches each result briefly.
type HealthServiceAdapter struct {
	checkers []outbound.DependencyChecker
	version  string
	now      func() time.Time

	cacheMutex  sync.RWMutex
	healthCache map[string]*cacheEntry
}

// NewHealthServiceAdapter creates a HealthServiceAdapter.
func NewHealthServiceAdapter(version string, checkers ...outbound.DependencyChecker) inbound.HealthService {
	return &HealthServiceAdapter{
		checkers:    checkers,
		version:     version,
		now:         time.Now,
		healthCache: make(map[string]*cacheEntry),
	}
}

// GetHealth reports healthy when every dependency answers, degraded when a
// non-critical dependency fails, and unhealthy when the database fails.
func (h *HealthServiceAdapter) GetHealth(ctx context.Context) (*dto.HealthResponse, error) {
	response := &dto.HealthResponse{
		Status:       string(dto.HealthStatusHealthy),
		Timestamp:    h.now(),
		Version:      h.version,
		Dependencies: make(map[string]dto.DependencyStatus, len(h.checkers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c outbound.DependencyChecker) {
			defer wg.Done()
			status := h.checkDependency(ctx, c)
			mu.Lock()
			response.Dependencies[c.Name()] = status
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	for name, status := range response.Dependencies {
		if status.Status != string(dto.DependencyStatusUnhealthy) {
			continue
		}
		if name == criticalDependency {
			response.Status = string(dto.HealthStatusUnhealthy)
		} else if response.Status == string(dto.HealthStatusHealthy) {
			response.Status = string(dto.HealthStatusDegraded)
		}
	}

	return response, nil
}

func (h *HealthServiceAdapter) checkDependency(ctx context.Context, c outbound.DependencyChecker) dto.DependencyStatus {
	if cached, ok := h.cached(c.Name()); ok {
		return cached
	}

	checkCtx, cancel := context.WithTimeout(ctx, dependencyTimeout)
	defer cancel()

	status := dto.DependencyStatus{Status: string(dto.DependencyStatusHealthy)}
	if err := c.Check(checkCtx); err != nil {
		status = dto.DependencyStatus{
			Status:  string(dto.DependencyStatusUnhealthy),
			Message: err.Error(),
		}
		slogger.Warn(ctx, "Dependency health check failed", slogger.Fields2("dependency", c.Name(), "error", err.Error()))
	} else if d, ok := c.(describer); ok {
		status.Message = d.Describe(checkCtx)
	}

	h.cacheMutex.Lock()
	h.healthCache[c.Name()] = &cacheEntry{status: status, timestamp: h.now()}
	h.cacheMutex.Unlock()
	return status
}

func (h *HealthServiceAdapter) cached(name string) (dto.DependencyStatus, bool) {
	h.cacheMutex.RLock()
	defer h.cacheMutex.RUnlock()
	entry, ok := h.healthCache[name]
	if !ok || h.now().Sub(entry.timestamp) > healthCacheTTL {
		return dto.DependencyStatus{}, false
	}
	return entry.status, true
}
