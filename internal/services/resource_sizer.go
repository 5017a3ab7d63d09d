package services

import (
	"context"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

const (
	minPipelineWorkers = 2
	maxPipelineWorkers = 20
)

// SystemStats is the point-in-time resource snapshot exposed by the health
// endpoint.
type SystemStats struct {
	CPUCores      int     `json:"cpu_cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryGB      float64 `json:"memory_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// ResourceSizer derives the pipeline worker-pool size from system resources
// and serves system stats to the health endpoint.
type ResourceSizer struct {
	mu       sync.RWMutex
	cpuCores int
	memoryGB float64
	logger   *logrus.Logger
}

// NewResourceSizer creates a resource sizer, probing total memory once.
func NewResourceSizer(logger *logrus.Logger) *ResourceSizer {
	rs := &ResourceSizer{
		cpuCores: runtime.NumCPU(),
		logger:   logger,
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		rs.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		rs.logger.WithError(err).Warn("Could not get memory info, using default")
		rs.memoryGB = 8.0
	}

	rs.logger.WithFields(logrus.Fields{
		"cpu_cores": rs.cpuCores,
		"memory_gb": rs.memoryGB,
	}).Info("Resource sizer initialized")

	return rs
}

// WorkerCount returns the pipeline worker-pool size. A positive configured
// value wins; zero means size from CPU cores scaled down on small-memory
// hosts, bounded to [2, 20].
func (rs *ResourceSizer) WorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}

	rs.mu.RLock()
	cores := rs.cpuCores
	memoryGB := rs.memoryGB
	rs.mu.RUnlock()

	workers := cores * 2

	memoryFactor := 1.0
	if memoryGB < 4.0 {
		memoryFactor = 0.5
	} else if memoryGB < 8.0 {
		memoryFactor = 0.75
	}
	workers = int(float64(workers) * memoryFactor)

	if workers < minPipelineWorkers {
		workers = minPipelineWorkers
	}
	if workers > maxPipelineWorkers {
		workers = maxPipelineWorkers
	}
	return workers
}

// Stats samples current CPU and memory usage. The zero CPU interval reports
// usage since the previous call instead of blocking the health request.
func (rs *ResourceSizer) Stats(ctx context.Context) SystemStats {
	rs.mu.RLock()
	stats := SystemStats{
		CPUCores: rs.cpuCores,
		MemoryGB: rs.memoryGB,
	}
	rs.mu.RUnlock()

	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	} else if err != nil {
		rs.logger.WithError(err).Debug("Could not sample CPU usage")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
	} else {
		rs.logger.WithError(err).Debug("Could not sample memory usage")
	}

	stats.Goroutines = runtime.NumGoroutine()
	return stats
}
