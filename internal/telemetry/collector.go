// Package telemetry builds per-poll process samples and host-wide resource
// summaries on top of gopsutil, reconciling memory figures with the
// platform's private-working-set accounting where available.
package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gprocess "github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/perfguard/perfguard/internal/gpu"
)

const bytesPerGB = 1024.0 * 1024.0 * 1024.0

type procTimes struct {
	total     float64
	timestamp time.Time
}

// Collector owns the process-table state shared by all collection calls. One
// mutex guards every pass; concurrent callers serialize but cannot deadlock
// since no call acquires the lock twice.
type Collector struct {
	mu     sync.Mutex
	gpu    gpu.Estimator
	logger *zap.Logger

	prevProcessTimes map[int32]procTimes
	prevSystemTimes  []cpu.TimesStat
}

// NewCollector wires the collector to a GPU estimator.
func NewCollector(estimator gpu.Estimator, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		gpu:              estimator,
		logger:           logger,
		prevProcessTimes: make(map[int32]procTimes),
	}
}

// CollectProcesses enumerates the live process table and returns one sample
// per process, ordered by descending normalized CPU usage. The GPU estimator
// runs once per pass, not once per process. Terminated processes vanish from
// the result because the table is re-enumerated, never cached.
func (c *Collector) CollectProcesses(ctx context.Context) ([]ProcessSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	procs, err := gprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	cores := c.coreCount(ctx)
	totalMemory := c.totalMemory(ctx)
	gpuUsage := c.gpu.Estimate()
	now := time.Now()

	samples := make([]ProcessSample, 0, len(procs))
	seen := make(map[int32]struct{}, len(procs))

	for _, proc := range procs {
		pid := proc.Pid
		seen[pid] = struct{}{}

		name, err := proc.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}

		rawCPU := c.processCPUPercent(ctx, proc, now)

		sample := c.buildSample(ctx, proc, name, totalMemory)
		sample.CPUPercent = clampPercent(normalizeCPU(rawCPU, cores))
		sample.GPUPercent = gpuUsage[sample.PID]
		samples = append(samples, sample)
	}

	// Drop cached CPU baselines for processes that vanished.
	for pid := range c.prevProcessTimes {
		if _, ok := seen[pid]; !ok {
			delete(c.prevProcessTimes, pid)
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].CPUPercent > samples[j].CPUPercent
	})
	return samples, nil
}

// CollectSystemSummary refreshes the host-wide counters independently of the
// per-process pass; no GPU lookup is involved.
func (c *Collector) CollectSystemSummary(ctx context.Context) (SystemSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := SystemSnapshot{CPUCores: c.coreCount(ctx)}

	totalTimes, err := cpu.TimesWithContext(ctx, false)
	if err == nil && len(totalTimes) > 0 {
		if len(c.prevSystemTimes) > 0 {
			busy, total := cpuBusyAndTotal(totalTimes[0], c.prevSystemTimes[0])
			if total > 0 {
				snapshot.CPUPercent = clampPercent(busy / total * 100)
			}
		}
		c.prevSystemTimes = totalTimes
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snapshot, err
	}

	snapshot.TotalMemoryGB = float64(vm.Total) / bytesPerGB
	snapshot.UsedMemoryGB = float64(vm.Used) / bytesPerGB
	snapshot.AvailableMemoryGB = float64(vm.Available) / bytesPerGB
	snapshot.MemoryPercent = memoryPercent(vm.Used, vm.Total)
	return snapshot, nil
}

// CollectOne answers a targeted single-process query. The CPU figure stays in
// the raw per-core scale, unlike the normalized list pass. A pid that is gone
// yields (nil, nil).
func (c *Collector) CollectOne(ctx context.Context, pid uint32) (*ProcessSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proc, err := gprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, nil
	}

	name, err := proc.NameWithContext(ctx)
	if err != nil || name == "" {
		return nil, nil
	}

	totalMemory := c.totalMemory(ctx)
	gpuUsage := c.gpu.Estimate()

	sample := c.buildSample(ctx, proc, name, totalMemory)
	sample.CPUPercent = clampRawCPU(c.processCPUPercent(ctx, proc, time.Now()))
	sample.GPUPercent = gpuUsage[sample.PID]
	return &sample, nil
}

// buildSample fills the fields shared by the list and single-pid passes.
// Every field degrades independently: a failed query zeroes that field only.
func (c *Collector) buildSample(ctx context.Context, proc *gprocess.Process, name string, totalMemory uint64) ProcessSample {
	pid := uint32(proc.Pid)

	var fallback uint64
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		fallback = memInfo.RSS
	}
	memoryBytes := resolveMemory(pid, fallback)

	status := ""
	if states, err := proc.StatusWithContext(ctx); err == nil && len(states) > 0 {
		status = states[0]
	}

	var startTime int64
	if createMs, err := proc.CreateTimeWithContext(ctx); err == nil {
		startTime = createMs / 1000
	}

	exePath, err := proc.ExeWithContext(ctx)
	if err != nil {
		exePath = ""
	}

	return ProcessSample{
		PID:           pid,
		Name:          name,
		MemoryBytes:   memoryBytes,
		MemoryMB:      float64(memoryBytes) / (1024.0 * 1024.0),
		MemoryPercent: memoryPercent(memoryBytes, totalMemory),
		Status:        status,
		StartTime:     startTime,
		ExePath:       exePath,
	}
}

// processCPUPercent derives a per-core-scale CPU rate from the cached
// previous cputime baseline. A process seen for the first time has no
// baseline and reports zero for this pass.
func (c *Collector) processCPUPercent(ctx context.Context, proc *gprocess.Process, now time.Time) float64 {
	timesStat, err := proc.TimesWithContext(ctx)
	if err != nil {
		return 0
	}
	total := timesStat.User + timesStat.System

	prev, ok := c.prevProcessTimes[proc.Pid]
	c.prevProcessTimes[proc.Pid] = procTimes{total: total, timestamp: now}
	if !ok {
		return 0
	}

	elapsed := now.Sub(prev.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}

	percent := (total - prev.total) / elapsed * 100
	if percent < 0 {
		return 0
	}
	return percent
}

func (c *Collector) coreCount(ctx context.Context) int {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cores <= 0 {
		return 1
	}
	return cores
}

func (c *Collector) totalMemory(ctx context.Context) uint64 {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil || vm == nil {
		return 0
	}
	return vm.Total
}
