//go:build linux && cgo

package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/zap"
)

func newPlatformEstimator(logger *zap.Logger) Estimator {
	return &nvmlEstimator{logger: logger}
}

// nvmlEstimator queries the NVIDIA management library. The session is
// initialized and shut down on every call; at the ~2 s polling cadence the
// init cost is negligible and a stale handle cannot outlive a driver restart.
type nvmlEstimator struct {
	logger *zap.Logger
}

func (e *nvmlEstimator) Estimate() map[uint32]float64 {
	usage := map[uint32]float64{}

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		// No NVIDIA GPU or no driver: the normal case, not an error.
		return usage
	}
	defer func() {
		if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
			e.logger.Debug("nvml shutdown failed", zap.String("status", nvml.ErrorString(ret)))
		}
	}()

	// Only the primary device is queried.
	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		return usage
	}

	var compute, graphics []uint32
	if procs, ret := device.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
		for _, p := range procs {
			compute = append(compute, p.Pid)
		}
	}
	if procs, ret := device.GetGraphicsRunningProcesses(); ret == nvml.SUCCESS {
		for _, p := range procs {
			graphics = append(graphics, p.Pid)
		}
	}

	var overall float64
	if rates, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
		overall = float64(rates.Gpu)
	}

	return attributeShares(compute, graphics, overall)
}
