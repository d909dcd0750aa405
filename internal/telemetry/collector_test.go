package telemetry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEstimator stands in for a GPU driver in tests.
type stubEstimator struct {
	usage map[uint32]float64
	calls int
}

func (s *stubEstimator) Estimate() map[uint32]float64 {
	s.calls++
	if s.usage == nil {
		return map[uint32]float64{}
	}
	return s.usage
}

func TestCollectProcessesOrderingAndBounds(t *testing.T) {
	ctx := context.Background()
	estimator := &stubEstimator{}
	c := NewCollector(estimator, nil)

	// First pass establishes CPU baselines; the second produces real rates.
	_, err := c.CollectProcesses(ctx)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	samples, err := c.CollectProcesses(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	for i, sample := range samples {
		assert.GreaterOrEqual(t, sample.CPUPercent, 0.0)
		assert.LessOrEqual(t, sample.CPUPercent, 100.0)
		assert.GreaterOrEqual(t, sample.MemoryPercent, 0.0)
		assert.LessOrEqual(t, sample.MemoryPercent, 100.0)
		assert.NotEmpty(t, sample.Name)
		if i > 0 {
			assert.GreaterOrEqual(t, samples[i-1].CPUPercent, sample.CPUPercent)
		}
	}

	// One estimation per collection pass, never one per process.
	assert.Equal(t, 2, estimator.calls)
}

func TestCollectProcessesAppliesGPUMapping(t *testing.T) {
	ctx := context.Background()
	self := uint32(os.Getpid())
	c := NewCollector(&stubEstimator{usage: map[uint32]float64{self: 42}}, nil)

	samples, err := c.CollectProcesses(ctx)
	require.NoError(t, err)

	var found bool
	for _, sample := range samples {
		if sample.PID == self {
			found = true
			assert.Equal(t, 42.0, sample.GPUPercent)
		} else {
			assert.Zero(t, sample.GPUPercent)
		}
	}
	assert.True(t, found, "own process should appear in the table")
}

func TestCollectOne(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(&stubEstimator{}, nil)

	sample, err := c.CollectOne(ctx, uint32(os.Getpid()))
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.EqualValues(t, os.Getpid(), sample.PID)
	assert.NotEmpty(t, sample.Name)

	// A pid that cannot exist resolves to no sample, not an error.
	missing, err := c.CollectOne(ctx, 1<<31)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCollectOneSeedsCPUBaseline(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(&stubEstimator{}, nil)

	// The first pass has no cputime baseline and cannot report a rate;
	// callers wanting a CPU figure must sample twice.
	first, err := c.CollectOne(ctx, uint32(os.Getpid()))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Zero(t, first.CPUPercent)

	time.Sleep(50 * time.Millisecond)
	second, err := c.CollectOne(ctx, uint32(os.Getpid()))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.GreaterOrEqual(t, second.CPUPercent, 0.0)
}

func TestCollectSystemSummary(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(&stubEstimator{}, nil)

	snapshot, err := c.CollectSystemSummary(ctx)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snapshot.CPUCores, 1)
	assert.Greater(t, snapshot.TotalMemoryGB, 0.0)
	assert.GreaterOrEqual(t, snapshot.MemoryPercent, 0.0)
	assert.LessOrEqual(t, snapshot.MemoryPercent, 100.0)
	assert.GreaterOrEqual(t, snapshot.CPUPercent, 0.0)
	assert.LessOrEqual(t, snapshot.CPUPercent, 100.0)
}
