package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	"github.com/tedsuo/ifrit"

	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/recurrence"
	"github.com/raysh454/comply/internal/scheduler"
	"github.com/raysh454/comply/internal/store"
	"github.com/raysh454/comply/internal/testutil"
	"github.com/raysh454/comply/internal/usage"
)

type fakeLauncher struct {
	mu   sync.Mutex
	err  error
	reqs []dispatch.LaunchRequest
}

func (f *fakeLauncher) Launch(_ context.Context, req dispatch.LaunchRequest) (*model.ScanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.ScanRecord{ID: uuid.New().String(), Status: model.ScanPending}, nil
}

func (f *fakeLauncher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeLauncher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fixture struct {
	store      *store.SQLite
	clock      *fakeclock.FakeClock
	accountant *usage.Accountant
	launcher   *fakeLauncher
	loop       *scheduler.Loop
}

// Monday 2024-01-01 08:00 UTC
var start = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, tier model.Tier) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clk := fakeclock.NewFakeClock(start)
	if _, err := s.UpsertAccount(context.Background(), "acct-1", tier, clk.Now()); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}

	f := &fixture{
		store:      s,
		clock:      clk,
		accountant: usage.NewAccountant(s, clk, &testutil.DummyLogger{}),
		launcher:   &fakeLauncher{},
	}
	f.loop = f.newLoop()
	return f
}

func (f *fixture) newLoop() *scheduler.Loop {
	return scheduler.NewLoop(scheduler.Config{PollInterval: time.Minute, BatchSize: 10},
		f.store, f.accountant, recurrence.New(time.UTC), f.launcher, f.clock, &testutil.DummyLogger{}, nil)
}

// createDaily stores a daily 09:00 definition due at its first firing.
func (f *fixture) createDaily(t *testing.T, id string) *model.ScanDefinition {
	t.Helper()
	def := &model.ScanDefinition{
		ID:          id,
		URLRef:      "site-" + id,
		ProjectRef:  "proj-1",
		OwnerID:     "acct-1",
		URL:         "https://example.com/" + id,
		Frequency:   model.FrequencyDaily,
		TimeOfDay:   "09:00",
		ScanOptions: model.DefaultScanOptions(),
		IsActive:    true,
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	next, err := recurrence.New(time.UTC).NextRun(def, f.clock.Now())
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	def.NextRun = next
	if err := f.store.CreateDefinition(context.Background(), def); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	return def
}

func (f *fixture) definition(t *testing.T, id string) *model.ScanDefinition {
	t.Helper()
	def, err := f.store.GetDefinition(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDefinition: %v", err)
	}
	return def
}

func TestLoop_FiresDailyDefinitionAtTimeOfDay(t *testing.T) {
	f := newFixture(t, model.TierFree)
	def := f.createDaily(t, "d1")
	if want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC); !def.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", def.NextRun, want)
	}

	sum := f.loop.Tick(context.Background())
	if sum.Due != 0 || f.launcher.calls() != 0 {
		t.Fatalf("nothing should fire before 09:00, got %+v", sum)
	}

	f.clock.Increment(time.Hour)
	sum = f.loop.Tick(context.Background())
	if sum.Due != 1 || sum.Fired != 1 {
		t.Fatalf("expected one firing at 09:00, got %+v", sum)
	}

	got := f.definition(t, "d1")
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !got.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", got.NextRun, want)
	}
	if got.LastRun == nil || !got.LastRun.Equal(f.clock.Now()) {
		t.Fatalf("LastRun = %v, want %v", got.LastRun, f.clock.Now())
	}

	f.launcher.mu.Lock()
	req := f.launcher.reqs[0]
	f.launcher.mu.Unlock()
	if req.DefinitionID != "d1" || req.URLRef != "site-d1" || req.OwnerID != "acct-1" || !req.Options.GDPR {
		t.Fatalf("unexpected launch request: %+v", req)
	}

	// the same cycle does not fire twice
	sum = f.loop.Tick(context.Background())
	if sum.Due != 0 || f.launcher.calls() != 1 {
		t.Fatalf("expected no second firing, got %+v", sum)
	}
}

func TestLoop_QuotaDeniedStillAdvances(t *testing.T) {
	f := newFixture(t, model.TierFree)
	f.createDaily(t, "d1")
	for i := 0; i < 10; i++ {
		if _, err := f.accountant.ChargeScan(context.Background(), "acct-1"); err != nil {
			t.Fatalf("ChargeScan: %v", err)
		}
	}

	f.clock.Increment(time.Hour)
	sum := f.loop.Tick(context.Background())
	if sum.Skipped != 1 || sum.Fired != 0 {
		t.Fatalf("expected a quota skip, got %+v", sum)
	}
	if f.launcher.calls() != 0 {
		t.Fatal("launcher must not be called when quota is exhausted")
	}

	got := f.definition(t, "d1")
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !got.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", got.NextRun, want)
	}
	if !strings.Contains(got.LastSkipReason, "Monthly scan limit of 10") {
		t.Fatalf("LastSkipReason = %q", got.LastSkipReason)
	}
	if got.LastRun != nil {
		t.Fatalf("LastRun must stay unset, got %v", got.LastRun)
	}
}

func TestLoop_QuotaResetsInNewMonth(t *testing.T) {
	f := newFixture(t, model.TierFree)
	f.createDaily(t, "d1")
	for i := 0; i < 10; i++ {
		if _, err := f.accountant.ChargeScan(context.Background(), "acct-1"); err != nil {
			t.Fatalf("ChargeScan: %v", err)
		}
	}

	f.clock.Increment(time.Hour)
	if sum := f.loop.Tick(context.Background()); sum.Skipped != 1 {
		t.Fatalf("expected January firing to be skipped, got %+v", sum)
	}

	// Feb 1 09:00: counters roll over before the guard reads them
	f.clock.Increment(31 * 24 * time.Hour)
	sum := f.loop.Tick(context.Background())
	if sum.Fired != 1 {
		t.Fatalf("expected firing after monthly reset, got %+v", sum)
	}
}

func TestLoop_DispatchFailureRestoresNextRun(t *testing.T) {
	f := newFixture(t, model.TierPro)
	def := f.createDaily(t, "d1")
	f.launcher.setErr(&model.DispatchError{Err: dispatch.ErrQueueFull})

	f.clock.Increment(time.Hour)
	sum := f.loop.Tick(context.Background())
	if sum.DispatchFailures != 1 || sum.Fired != 0 {
		t.Fatalf("expected a dispatch failure, got %+v", sum)
	}
	got := f.definition(t, "d1")
	if !got.NextRun.Equal(def.NextRun) {
		t.Fatalf("NextRun = %v, want restored %v", got.NextRun, def.NextRun)
	}

	f.launcher.setErr(nil)
	f.clock.Increment(time.Minute)
	sum = f.loop.Tick(context.Background())
	if sum.Fired != 1 {
		t.Fatalf("expected retry to fire, got %+v", sum)
	}
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !f.definition(t, "d1").NextRun.Equal(want) {
		t.Fatalf("NextRun not advanced after retry")
	}
}

func TestLoop_ConcurrentLoopsFireOnce(t *testing.T) {
	f := newFixture(t, model.TierEnterprise)
	for i := 0; i < 5; i++ {
		f.createDaily(t, uuid.New().String())
	}
	f.clock.Increment(time.Hour)

	loops := []*scheduler.Loop{f.loop, f.newLoop(), f.newLoop()}
	summaries := make([]scheduler.TickSummary, len(loops))
	var wg sync.WaitGroup
	for i, l := range loops {
		wg.Add(1)
		go func(i int, l *scheduler.Loop) {
			defer wg.Done()
			summaries[i] = l.Tick(context.Background())
		}(i, l)
	}
	wg.Wait()

	fired := 0
	for _, s := range summaries {
		fired += s.Fired
	}
	if fired != 5 {
		t.Fatalf("expected 5 firings across loops, got %d (%+v)", fired, summaries)
	}
	if f.launcher.calls() != 5 {
		t.Fatalf("expected 5 launches, got %d", f.launcher.calls())
	}
}

func TestLoop_InactiveDefinitionNeverFires(t *testing.T) {
	f := newFixture(t, model.TierPro)
	def := f.createDaily(t, "d1")
	def.IsActive = false
	if err := f.store.UpdateDefinition(context.Background(), def, def.NextRun); err != nil {
		t.Fatalf("UpdateDefinition: %v", err)
	}
	f.clock.Increment(48 * time.Hour)
	if sum := f.loop.Tick(context.Background()); sum.Due != 0 {
		t.Fatalf("inactive definition was due: %+v", sum)
	}
}

func TestLoop_NoCatchUpAfterDowntime(t *testing.T) {
	f := newFixture(t, model.TierPro)
	f.createDaily(t, "d1")

	// three missed days fire once, and the next run is computed from now
	f.clock.Increment(3*24*time.Hour + 2*time.Hour)
	sum := f.loop.Tick(context.Background())
	if sum.Fired != 1 {
		t.Fatalf("expected single firing, got %+v", sum)
	}
	if want := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC); !f.definition(t, "d1").NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", f.definition(t, "d1").NextRun, want)
	}
	if sum := f.loop.Tick(context.Background()); sum.Due != 0 {
		t.Fatalf("expected nothing due, got %+v", sum)
	}
}

func TestLoop_RunTicksOnInterval(t *testing.T) {
	g := NewWithT(t)
	f := newFixture(t, model.TierPro)
	f.createDaily(t, "d1")
	f.clock.Increment(time.Hour - time.Minute)

	process := ifrit.Background(f.loop)
	g.Eventually(process.Ready()).Should(BeClosed())
	defer func() {
		process.Signal(os.Interrupt)
		g.Eventually(process.Wait()).Should(Receive(BeNil()))
	}()

	f.clock.WaitForWatcherAndIncrement(time.Minute)
	g.Eventually(f.launcher.calls).Should(Equal(1))
}

func TestLoop_ValidationErrorKeepsAdvancedSchedule(t *testing.T) {
	f := newFixture(t, model.TierPro)
	f.createDaily(t, "d1")
	f.launcher.setErr(&model.ValidationError{Field: "scan_options", Reason: "at least one category must be selected"})

	f.clock.Increment(time.Hour)
	sum := f.loop.Tick(context.Background())
	if sum.Errors != 1 {
		t.Fatalf("expected an error, got %+v", sum)
	}
	got := f.definition(t, "d1")
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !got.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", got.NextRun, want)
	}
	if !strings.Contains(got.LastSkipReason, "scan_options") {
		t.Fatalf("expected skip reason to be recorded, got %q", got.LastSkipReason)
	}
}
