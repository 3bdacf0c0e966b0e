package metrics

import (
	"fmt"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	StartTime time.Time `json:"start_time"`
	UptimeSec int64     `json:"uptime_sec"`

	Ticks             int64 `json:"scheduler_ticks"`
	DefinitionsDue    int64 `json:"definitions_due"`
	DefinitionsFired  int64 `json:"definitions_fired"`
	QuotaSkips        int64 `json:"quota_skips"`
	ClaimConflicts    int64 `json:"claim_conflicts"`
	DispatchFailures  int64 `json:"dispatch_failures"`
	ScansLaunched     int64 `json:"scans_launched"`
	ScansCompleted    int64 `json:"scans_completed"`
	ScansFailed       int64 `json:"scans_failed"`
	ScansReaped       int64 `json:"scans_reaped"`
	TotalScanTimeMs   int64 `json:"total_scan_time_ms"`
	AvgScanTimeMs     int64 `json:"avg_scan_time_ms"`
	UsageResets       int64 `json:"usage_resets"`
	InFlightScans     int64 `json:"in_flight_scans"`
	DispatchQueueSize int64 `json:"dispatch_queue_size"`
}

// Tracker holds and manages engine metrics
type Tracker struct {
	mu          sync.Mutex
	clock       clock.Clock
	data        Snapshot
	finishCount int64
}

// NewTracker creates a new metrics tracker
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Tracker{
		clock: clk,
		data:  Snapshot{StartTime: clk.Now()},
	}
}

// RecordTick adds one scheduler pass and its outcome counts
func (t *Tracker) RecordTick(due, fired, skipped, conflicts, dispatchFailures int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Ticks++
	t.data.DefinitionsDue += int64(due)
	t.data.DefinitionsFired += int64(fired)
	t.data.QuotaSkips += int64(skipped)
	t.data.ClaimConflicts += int64(conflicts)
	t.data.DispatchFailures += int64(dispatchFailures)
}

// IncrementScansLaunched counts a scan handed to the dispatcher
func (t *Tracker) IncrementScansLaunched() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ScansLaunched++
	t.data.InFlightScans++
}

// RecordScanFinished counts a terminal scan and its duration
func (t *Tracker) RecordScanFinished(completed bool, duration time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if completed {
		t.data.ScansCompleted++
	} else {
		t.data.ScansFailed++
	}
	if t.data.InFlightScans > 0 {
		t.data.InFlightScans--
	}
	t.data.TotalScanTimeMs += duration.Milliseconds()
	t.finishCount++
}

// IncrementScansReaped counts a scan failed by the reaper
func (t *Tracker) IncrementScansReaped() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ScansReaped++
}

// AddUsageResets counts accounts reset by the monthly rollover
func (t *Tracker) AddUsageResets(n int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.UsageResets += n
}

// SetQueueSize records the current dispatcher backlog
func (t *Tracker) SetQueueSize(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DispatchQueueSize = int64(n)
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.UptimeSec = int64(t.clock.Since(t.data.StartTime).Seconds())
	if t.finishCount > 0 {
		snapshot.AvgScanTimeMs = t.data.TotalScanTimeMs / t.finishCount
	}
	return snapshot
}

// LogProgress summarises the counters on one line
func (t *Tracker) LogProgress() string {
	s := t.GetSnapshot()
	return fmt.Sprintf("Ticks: %d | Definitions: %d due, %d fired, %d skipped, %d conflicts | Scans: %d launched, %d completed, %d failed, %d reaped",
		s.Ticks,
		s.DefinitionsDue,
		s.DefinitionsFired,
		s.QuotaSkips,
		s.ClaimConflicts,
		s.ScansLaunched,
		s.ScansCompleted,
		s.ScansFailed,
		s.ScansReaped,
	)
}
