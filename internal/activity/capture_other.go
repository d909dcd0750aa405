//go:build !windows

package activity

// Platforms without a low-level input hook facility get the non-capturing
// variant: the counters never advance, every drain scores zero, and no
// foreground window can be resolved. This is a legitimate degradation, not an
// error.
func runCapture(t *Tracker) {
	t.logger.Info("global input capture unavailable on this platform; activity reports zero")
}

func foregroundPID() (uint32, bool) {
	return 0, false
}
