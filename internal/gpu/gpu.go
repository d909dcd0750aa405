// Package gpu derives a best-effort per-process GPU usage mapping from
// whatever driver interface the platform offers. No backend reports true
// per-process utilization; the result is a documented approximation, and an
// empty mapping is the expected outcome on machines without a usable driver.
package gpu

import "go.uber.org/zap"

// Estimator produces a pid -> percent [0,100] mapping. Each call acquires and
// releases its own driver session; no handle persists between polls.
type Estimator interface {
	Estimate() map[uint32]float64
}

// NewEstimator selects the backend for the current platform. Platforms with
// no supported driver interface get the null estimator.
func NewEstimator(logger *zap.Logger) Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newPlatformEstimator(logger)
}

// nullEstimator is the first-class "no GPU source" variant.
type nullEstimator struct{}

func (nullEstimator) Estimate() map[uint32]float64 {
	return map[uint32]float64{}
}

// attributeShares folds the driver's process lists and aggregate device
// utilization into the per-process mapping. Compute processes are recorded at
// 0% because the interface exposes no per-process compute utilization;
// graphics processes split the aggregate figure evenly. With zero graphics
// processes nothing is distributed.
func attributeShares(compute, graphics []uint32, overallUtil float64) map[uint32]float64 {
	usage := make(map[uint32]float64, len(compute)+len(graphics))
	for _, pid := range compute {
		usage[pid] = 0
	}
	if len(graphics) == 0 {
		return usage
	}

	share := overallUtil / float64(len(graphics))
	for _, pid := range graphics {
		usage[pid] = share
	}
	return usage
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
