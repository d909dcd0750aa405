package telemetry

import "github.com/shirou/gopsutil/v3/cpu"

// normalizeCPU converts a per-core-scale percentage (0..100*cores) into a
// system-wide 0..100 figure.
func normalizeCPU(raw float64, cores int) float64 {
	if cores <= 0 {
		cores = 1
	}
	return raw / float64(cores)
}

// memoryPercent reports bytes as a fraction of total system memory. A zero
// total yields exactly zero, never a division by zero.
func memoryPercent(bytes, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(bytes) / float64(total) * 100
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clampRawCPU keeps the unnormalized figure non-negative without capping it
// at 100: a busy multi-threaded process legitimately exceeds one core.
func clampRawCPU(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func cpuBusyAndTotal(curr, prev cpu.TimesStat) (busy, total float64) {
	total = curr.Total() - prev.Total()
	idle := (curr.Idle - prev.Idle) + (curr.Iowait - prev.Iowait)
	if idle < 0 {
		idle = 0
	}
	busy = total - idle
	if busy < 0 {
		busy = 0
	}
	if total < 0 {
		total = 0
	}
	return busy, total
}
