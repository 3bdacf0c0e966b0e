package scheduler_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	. "github.com/onsi/gomega"
	"github.com/tedsuo/ifrit"

	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/scan"
	"github.com/raysh454/comply/internal/scheduler"
	"github.com/raysh454/comply/internal/store"
	"github.com/raysh454/comply/internal/testutil"
	"github.com/raysh454/comply/internal/usage"
)

type reaperFixture struct {
	store  *store.SQLite
	clock  *fakeclock.FakeClock
	reaper *scheduler.Reaper
	sites  int

	mu     sync.Mutex
	events []dispatch.Event
}

func newReaperFixture(t *testing.T) *reaperFixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "reaper.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clk := fakeclock.NewFakeClock(start)
	if _, err := s.UpsertAccount(context.Background(), "acct-1", model.TierFree, clk.Now()); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	acc := usage.NewAccountant(s, clk, &testutil.DummyLogger{})

	f := &reaperFixture{store: s, clock: clk}
	f.reaper = scheduler.NewReaper(scheduler.ReaperConfig{
		Interval:        time.Minute,
		MaxScanDuration: 15 * time.Minute,
		MaxPendingAge:   time.Hour,
	}, s, acc, clk, &testutil.DummyLogger{}, nil)
	f.reaper.OnEvent(func(ev dispatch.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, ev)
	})
	return f
}

// createScan stores an on-demand record for a new site on every call.
func (f *reaperFixture) createScan(t *testing.T, begin bool) *model.ScanRecord {
	t.Helper()
	f.sites++
	rec, err := scan.New(scan.NewParams{
		URLRef:  fmt.Sprintf("site-%d", f.sites),
		OwnerID: "acct-1",
		URL:     "https://example.com",
		Options: model.DefaultScanOptions(),
		Now:     f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("scan.New: %v", err)
	}
	if err := f.store.CreateScan(context.Background(), rec); err != nil {
		t.Fatalf("CreateScan: %v", err)
	}
	if begin {
		if err := scan.Begin(rec, f.clock.Now()); err != nil {
			t.Fatalf("Begin: %v", err)
		}
		if err := f.store.UpdateScan(context.Background(), rec, model.ScanPending); err != nil {
			t.Fatalf("UpdateScan: %v", err)
		}
	}
	return rec
}

func (f *reaperFixture) scansThisMonth(t *testing.T) int {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return a.Usage.ScansThisMonth
}

func TestReaper_FailsOverdueScanningRecord(t *testing.T) {
	f := newReaperFixture(t)
	overdue := f.createScan(t, true)
	f.clock.Increment(10 * time.Minute)
	fresh := f.createScan(t, true)
	f.clock.Increment(6 * time.Minute)

	n, err := f.reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}

	got, err := f.store.GetScan(context.Background(), overdue.ID)
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if got.Status != model.ScanFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "timed out after 15m0s") {
		t.Fatalf("ErrorMessage = %q", got.ErrorMessage)
	}
	if got.ScanDurationMs != (16 * time.Minute).Milliseconds() {
		t.Fatalf("ScanDurationMs = %d", got.ScanDurationMs)
	}

	other, _ := f.store.GetScan(context.Background(), fresh.ID)
	if other.Status != model.ScanScanning {
		t.Fatalf("fresh scan status = %s, want scanning", other.Status)
	}
	if c := f.scansThisMonth(t); c != 1 {
		t.Fatalf("scans charged = %d, want 1", c)
	}

	// sweeping again does not charge twice
	if n, err := f.reaper.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("second sweep reaped %d, err %v", n, err)
	}
	if c := f.scansThisMonth(t); c != 1 {
		t.Fatalf("scans charged = %d after second sweep, want 1", c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) != 1 || f.events[0].ScanID != overdue.ID || f.events[0].Status != model.ScanFailed {
		t.Fatalf("unexpected events: %+v", f.events)
	}
}

func TestReaper_FailsStalePending(t *testing.T) {
	f := newReaperFixture(t)
	rec := f.createScan(t, false)
	f.clock.Increment(61 * time.Minute)

	n, err := f.reaper.Sweep(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	got, _ := f.store.GetScan(context.Background(), rec.ID)
	if got.Status != model.ScanFailed || got.StartedAt != nil {
		t.Fatalf("unexpected record: status=%s started=%v", got.Status, got.StartedAt)
	}
}

func TestReaper_LeavesTerminalRecords(t *testing.T) {
	f := newReaperFixture(t)
	rec := f.createScan(t, true)
	f.clock.Increment(time.Minute)
	if err := scan.Complete(rec, &model.CategoryResults{}, 60000, f.clock.Now()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := f.store.UpdateScan(context.Background(), rec, model.ScanScanning); err != nil {
		t.Fatalf("UpdateScan: %v", err)
	}
	f.clock.Increment(time.Hour)

	if n, err := f.reaper.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	got, _ := f.store.GetScan(context.Background(), rec.ID)
	if got.Status != model.ScanCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestReaper_RunSweepsOnInterval(t *testing.T) {
	g := NewWithT(t)
	f := newReaperFixture(t)
	rec := f.createScan(t, true)
	f.clock.Increment(15 * time.Minute)

	process := ifrit.Background(f.reaper)
	g.Eventually(process.Ready()).Should(BeClosed())
	defer func() {
		process.Signal(os.Interrupt)
		g.Eventually(process.Wait()).Should(Receive(BeNil()))
	}()

	f.clock.WaitForWatcherAndIncrement(time.Minute)
	g.Eventually(func() model.ScanStatus {
		got, err := f.store.GetScan(context.Background(), rec.ID)
		if err != nil {
			return ""
		}
		return got.Status
	}).Should(Equal(model.ScanFailed))
}
