// Package session folds per-poll telemetry into durable usage sessions keyed
// by the tracked-application whitelist. The aggregator owns the in-memory
// AppData document and the monotonic session id counter; the store only
// serializes what the aggregator hands it.
package session

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/perfguard/perfguard/internal/activity"
	"github.com/perfguard/perfguard/internal/store"
	"github.com/perfguard/perfguard/internal/telemetry"
)

// Aggregator turns raw samples into session history. It is not safe for
// concurrent use; the polling driver is the single caller.
type Aggregator struct {
	data   store.AppData
	logger *zap.Logger

	// app name -> index into data.Sessions for the open session
	active map[string]int
}

// NewAggregator adopts a loaded document. Sessions left marked current by an
// earlier run that never shut down cleanly are closed at their last observed
// timestamp, so at most one current session per app can ever exist afterward.
func NewAggregator(data store.AppData, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if data.NextSessionID <= 0 {
		data.NextSessionID = 1
	}

	a := &Aggregator{data: data, logger: logger, active: make(map[string]int)}
	for i := range a.data.Sessions {
		sess := &a.data.Sessions[i]
		if !sess.IsCurrent {
			continue
		}
		sess.IsCurrent = false
		end := sess.StartTime
		if n := len(sess.PerformanceHistory); n > 0 {
			end = sess.PerformanceHistory[n-1].Timestamp
		}
		sess.EndTime = &end
		logger.Info("closed stale session from previous run",
			zap.Int64("session_id", sess.ID), zap.String("app", sess.AppName))
	}
	return a
}

// Track adds an application to the whitelist. Duplicate names are rejected
// silently (the existing entry wins).
func (a *Aggregator) Track(name, exePath string, now time.Time) {
	if lo.ContainsBy(a.data.Whitelist, func(e store.WhitelistEntry) bool { return e.Name == name }) {
		return
	}

	entry := store.WhitelistEntry{
		ID:        nextWhitelistID(a.data.Whitelist),
		Name:      name,
		AddedDate: now.UTC().Format(time.RFC3339),
		IsTracked: true,
	}
	if exePath != "" {
		entry.ExePath = &exePath
	}
	a.data.Whitelist = append(a.data.Whitelist, entry)
}

// Untrack flips an application's tracked flag off without deleting its
// history.
func (a *Aggregator) Untrack(name string) {
	for i := range a.data.Whitelist {
		if a.data.Whitelist[i].Name == name {
			a.data.Whitelist[i].IsTracked = false
		}
	}
}

// Observe folds one poll cycle into the open sessions: it starts a session
// when a tracked application appears, appends one performance snapshot per
// cycle while it runs, and closes the session when it disappears.
func (a *Aggregator) Observe(procs []telemetry.ProcessSample, act activity.Sample, isForeground func(pids []uint32) bool, now time.Time) {
	for _, entry := range a.data.Whitelist {
		if !entry.IsTracked {
			continue
		}

		matched := matchProcesses(procs, entry)
		if len(matched) == 0 {
			a.closeSession(entry.Name, now)
			continue
		}

		snapshot := store.PerformanceSnapshot{
			Timestamp:           now.UTC().Format(time.RFC3339),
			UserActivityPercent: act.ActivityPercent,
		}
		for _, p := range matched {
			snapshot.CPUPercent += p.CPUPercent
			snapshot.MemoryMB += p.MemoryMB
			snapshot.MemoryPercent += p.MemoryPercent
			snapshot.GPUPercent += p.GPUPercent
		}
		if isForeground != nil {
			pids := lo.Map(matched, func(p telemetry.ProcessSample, _ int) uint32 { return p.PID })
			snapshot.IsForeground = isForeground(pids)
		}

		a.appendSnapshot(entry.Name, snapshot, now)
	}
}

// CloseAll finalizes every open session; called at shutdown before the last
// save.
func (a *Aggregator) CloseAll(now time.Time) {
	for name := range a.active {
		a.closeSession(name, now)
	}
}

// Snapshot returns the document in its current state for persistence.
func (a *Aggregator) Snapshot() store.AppData {
	return a.data
}

// ActiveSessions reports how many sessions are currently open.
func (a *Aggregator) ActiveSessions() int {
	return len(a.active)
}

func (a *Aggregator) appendSnapshot(appName string, snap store.PerformanceSnapshot, now time.Time) {
	idx, ok := a.active[appName]
	if !ok {
		sess := store.Session{
			ID:        a.data.NextSessionID,
			AppName:   appName,
			StartTime: now.UTC().Format(time.RFC3339),
			IsCurrent: true,
		}
		a.data.NextSessionID++
		a.data.Sessions = append(a.data.Sessions, sess)
		idx = len(a.data.Sessions) - 1
		a.active[appName] = idx
		a.logger.Info("session started", zap.Int64("session_id", sess.ID), zap.String("app", appName))
	}

	sess := &a.data.Sessions[idx]
	sess.PerformanceHistory = append(sess.PerformanceHistory, snap)

	n := float64(len(sess.PerformanceHistory))
	sess.AvgCPUPercent += (snap.CPUPercent - sess.AvgCPUPercent) / n
	sess.AvgMemoryMB += (snap.MemoryMB - sess.AvgMemoryMB) / n
	sess.AvgGPUPercent += (snap.GPUPercent - sess.AvgGPUPercent) / n
	sess.PeakCPUPercent = math.Max(sess.PeakCPUPercent, snap.CPUPercent)
	sess.PeakMemoryMB = math.Max(sess.PeakMemoryMB, snap.MemoryMB)
	sess.PeakGPUPercent = math.Max(sess.PeakGPUPercent, snap.GPUPercent)

	if start, err := time.Parse(time.RFC3339, sess.StartTime); err == nil {
		sess.DurationSeconds = int64(now.UTC().Sub(start).Seconds())
	}
}

func (a *Aggregator) closeSession(appName string, now time.Time) {
	idx, ok := a.active[appName]
	if !ok {
		return
	}
	delete(a.active, appName)

	sess := &a.data.Sessions[idx]
	end := now.UTC().Format(time.RFC3339)
	sess.EndTime = &end
	sess.IsCurrent = false
	a.logger.Info("session ended",
		zap.Int64("session_id", sess.ID),
		zap.String("app", appName),
		zap.Int64("duration_seconds", sess.DurationSeconds))
}

// matchProcesses selects the running processes belonging to a whitelist
// entry: an exact executable path match when the entry has one, otherwise a
// case-insensitive name match.
func matchProcesses(procs []telemetry.ProcessSample, entry store.WhitelistEntry) []telemetry.ProcessSample {
	return lo.Filter(procs, func(p telemetry.ProcessSample, _ int) bool {
		if entry.ExePath != nil && *entry.ExePath != "" && p.ExePath != "" {
			if strings.EqualFold(filepath.Clean(p.ExePath), filepath.Clean(*entry.ExePath)) {
				return true
			}
		}
		return strings.EqualFold(p.Name, entry.Name)
	})
}

func nextWhitelistID(entries []store.WhitelistEntry) int64 {
	var max int64
	for _, e := range entries {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}
