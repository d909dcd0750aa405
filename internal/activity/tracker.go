// Package activity tracks global keyboard and mouse activity through
// system-wide input hooks and answers foreground-process queries.
//
// One background capture goroutine feeds a pair of lock-free counters for the
// lifetime of the process; DrainAndScore is the single consumer that converts
// and resets them once per polling interval.
package activity

import (
	"math"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Scoring constants: 12 keystrokes per interval saturate the score on their
// own; 800 px of cursor travel add at most a half-weight bonus.
const (
	keysPerInterval   = 12.0
	pixelsPerInterval = 800.0
	mouseBonusCap     = 50.0
)

// Sample is the result of draining the activity counters once.
type Sample struct {
	ActivityPercent float64
	ForegroundPID   uint32
	HasForeground   bool
	KeyboardClicks  uint32
	MousePixels     uint32
}

// Tracker accumulates global input events into shared counters. All counter
// state is atomic; the capture goroutine and the polling caller never share a
// lock.
type Tracker struct {
	logger *zap.Logger

	keystrokes  atomic.Uint32
	mousePixels atomic.Uint32
	prevX       atomic.Int32
	prevY       atomic.Int32

	started atomic.Bool
}

// NewTracker returns a tracker with no capture running yet.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger}
}

// Start spawns the capture goroutine. On platforms with a low-level hook
// facility it installs the hooks and pumps messages until process exit; on
// other platforms capture is a no-op and every drain reports zero activity.
// Start is idempotent; there is no Stop, process exit is the only teardown.
func (t *Tracker) Start() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go runCapture(t)
}

// recordKeyDown is invoked by the keyboard hook on every key-down event,
// including extended/system key-downs.
func (t *Tracker) recordKeyDown() {
	t.keystrokes.Add(1)
}

// recordMouseMove is invoked by the mouse hook with absolute cursor
// coordinates. The first observed position (previous coordinates both zero)
// only establishes the reference point and contributes no distance.
func (t *Tracker) recordMouseMove(x, y int32) {
	prevX := t.prevX.Swap(x)
	prevY := t.prevY.Swap(y)
	if prevX == 0 && prevY == 0 {
		return
	}

	dx := float64(x - prevX)
	dy := float64(y - prevY)
	if dist := uint32(math.Sqrt(dx*dx + dy*dy)); dist > 0 {
		t.mousePixels.Add(dist)
	}
}

// DrainAndScore atomically clears both counters and converts whatever
// accumulated since the previous drain into a normalized activity score.
//
// This must be called exactly once per true polling interval: a second call
// within the same interval observes counters the first call already reset.
// Callers needing repeatable foreground checks should use IsAnyForeground.
func (t *Tracker) DrainAndScore() Sample {
	keys := t.keystrokes.Swap(0)
	pixels := t.mousePixels.Swap(0)

	pid, ok := foregroundPID()
	return Sample{
		ActivityPercent: score(keys, pixels),
		ForegroundPID:   pid,
		HasForeground:   ok,
		KeyboardClicks:  keys,
		MousePixels:     pixels,
	}
}

// IsAnyForeground reports whether any of the given pids owns input focus.
// It never touches the activity counters and is safe to call repeatedly
// within one interval.
func (t *Tracker) IsAnyForeground(pids []uint32) bool {
	pid, ok := foregroundPID()
	if !ok {
		return false
	}
	return lo.Contains(pids, pid)
}

func score(keys, pixels uint32) float64 {
	clickScore := math.Min(float64(keys)/keysPerInterval*100, 100)
	mouseScore := math.Min(float64(pixels)/pixelsPerInterval*mouseBonusCap, mouseBonusCap)
	return math.Min(clickScore+mouseScore, 100)
}
