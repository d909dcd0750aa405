//go:build darwin

package gpu

import (
	"context"
	"time"

	powermetrics "github.com/BinSquare/powermetrics-go"
	"go.uber.org/zap"
)

const sampleWindow = time.Second

func newPlatformEstimator(logger *zap.Logger) Estimator {
	return &powermetricsEstimator{logger: logger}
}

// powermetricsEstimator runs one bounded powermetrics sampling window per
// call and reads the per-process GPU busy percentages it reports. A machine
// without the powermetrics binary (or without privileges to run it) yields an
// empty mapping.
type powermetricsEstimator struct {
	logger *zap.Logger
}

func (e *powermetricsEstimator) Estimate() map[uint32]float64 {
	usage := map[uint32]float64{}

	ctx, cancel := context.WithTimeout(context.Background(), sampleWindow+2*time.Second)
	defer cancel()

	parser := powermetrics.NewParser(powermetrics.Config{
		SampleWindow: sampleWindow,
		PowermetricsArgs: []string{
			"--samplers", "gpu_power",
			"--show-process-gpu",
			"-n", "1",
		},
	})

	metricsCh, err := parser.Run(ctx)
	if err != nil {
		e.logger.Debug("powermetrics unavailable", zap.Error(err))
		return usage
	}

	for metrics := range metricsCh {
		for _, sample := range metrics.GPUProcessSamples {
			if sample.PID < 0 {
				continue
			}
			usage[uint32(sample.PID)] = clampPercent(sample.BusyPercent)
		}
		// One window is enough; the context deadline tears the parser down.
		break
	}
	return usage
}
