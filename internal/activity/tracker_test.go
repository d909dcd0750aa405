package activity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestScoreTable(t *testing.T) {
	tests := []struct {
		name   string
		keys   uint32
		pixels uint32
		want   float64
	}{
		{"idle", 0, 0, 0},
		{"keyboard saturates alone", 12, 0, 100},
		{"mouse alone caps at half weight", 0, 800, 50},
		{"mixed", 6, 400, 75},
		{"saturation", 100, 10000, 100},
		{"single keystroke", 1, 0, 100.0 / 12.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, score(tt.keys, tt.pixels), 1e-9)
		})
	}
}

func TestDrainResetsCounters(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	for i := 0; i < 12; i++ {
		tr.recordKeyDown()
	}
	tr.recordMouseMove(100, 100)
	tr.recordMouseMove(900, 100)

	first := tr.DrainAndScore()
	assert.EqualValues(t, 12, first.KeyboardClicks)
	assert.EqualValues(t, 800, first.MousePixels)
	assert.Equal(t, 100.0, first.ActivityPercent)

	// Second drain in the same interval observes counters the first already
	// cleared.
	second := tr.DrainAndScore()
	assert.Zero(t, second.KeyboardClicks)
	assert.Zero(t, second.MousePixels)
	assert.Zero(t, second.ActivityPercent)
}

func TestFirstMousePositionIsReferenceOnly(t *testing.T) {
	tr := NewTracker(nil)

	// The first observed position establishes the reference point; even a far
	// corner of the screen contributes no distance.
	tr.recordMouseMove(1920, 1080)
	assert.Zero(t, tr.DrainAndScore().MousePixels)

	tr.recordMouseMove(1920, 1080)
	tr.recordMouseMove(1923, 1084)
	assert.EqualValues(t, 5, tr.DrainAndScore().MousePixels)
}

func TestMouseDistanceTruncatesToPixels(t *testing.T) {
	tr := NewTracker(nil)
	tr.recordMouseMove(10, 10)
	tr.recordMouseMove(11, 11) // sqrt(2) truncates to 1
	assert.EqualValues(t, 1, tr.DrainAndScore().MousePixels)
}

func TestConcurrentProducersLoseNoUpdates(t *testing.T) {
	tr := NewTracker(nil)

	const producers = 8
	const perProducer = 1000

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				tr.recordKeyDown()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, producers*perProducer, tr.DrainAndScore().KeyboardClicks)
}

func TestStartIsIdempotent(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.Start()
	tr.Start()
	assert.True(t, tr.started.Load())
}
