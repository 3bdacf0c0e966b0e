package app

import (
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/tedsuo/ifrit/grouper"

	"github.com/raysh454/comply/internal/analyzer"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/metrics"
	"github.com/raysh454/comply/internal/recurrence"
	"github.com/raysh454/comply/internal/registry"
	"github.com/raysh454/comply/internal/scheduler"
	"github.com/raysh454/comply/internal/store"
	"github.com/raysh454/comply/internal/usage"
)

// Application is the global runtime state container. It owns the store and
// the long-running components; Members exposes the latter as ifrit runners.
type Application struct {
	Config *Config
	Logger logging.Logger
	Clock  clock.Clock

	Store      *store.SQLite
	Registry   *registry.Registry
	Metrics    *metrics.Tracker
	Accountant *usage.Accountant
	Dispatcher *dispatch.Dispatcher
	Scheduler  *scheduler.Loop
	Reaper     *scheduler.Reaper
	Rollover   *usage.RolloverRunner
	Reporter   *metrics.Reporter
	Orch       *Orchestrator
}

// NewApplication opens the database and builds every component from cfg.
// A nil analyzer gets an HTTP analyzer for cfg.Analyzer; a nil clock gets
// the real clock.
func NewApplication(cfg *Config, logger logging.Logger, clk clock.Clock, a analyzer.Analyzer) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	if a == nil {
		a, err = analyzer.NewHTTPAnalyzer(cfg.AnalyzerConfig(), logger, clk, nil)
		if err != nil {
			return nil, fmt.Errorf("new analyzer: %w", err)
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	reg, err := registry.NewRegistry(st.DB(), logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open registry: %w", err)
	}

	m := metrics.NewTracker(clk)
	accountant := usage.NewAccountant(st, clk, logger)
	accountant.TrackResets(m)
	rollover, err := usage.NewRolloverRunner(accountant, cfg.Usage.RolloverSchedule, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	calc := recurrence.New(loc)
	dispatcher := dispatch.New(cfg.DispatchConfig(), st, a, accountant, clk, logger, m)
	loop := scheduler.NewLoop(cfg.SchedulerConfig(), st, accountant, calc, dispatcher, clk, logger, m)
	reaper := scheduler.NewReaper(cfg.ReaperConfig(), st, accountant, clk, logger, m)
	orch := NewOrchestrator(cfg, st, reg, accountant, dispatcher, calc, clk, logger)

	dispatcher.OnEvent(orch.HandleEvent)
	reaper.OnEvent(orch.HandleEvent)

	return &Application{
		Config:     cfg,
		Logger:     logger,
		Clock:      clk,
		Store:      st,
		Registry:   reg,
		Metrics:    m,
		Accountant: accountant,
		Dispatcher: dispatcher,
		Scheduler:  loop,
		Reaper:     reaper,
		Rollover:   rollover,
		Reporter:   metrics.NewReporter(m, clk, 5*time.Minute, logger),
		Orch:       orch,
	}, nil
}

// Members returns the background runners in start order. The dispatcher
// comes first so launches from the scheduler have workers.
func (a *Application) Members() grouper.Members {
	return grouper.Members{
		{Name: "dispatcher", Runner: a.Dispatcher},
		{Name: "scheduler", Runner: a.Scheduler},
		{Name: "reaper", Runner: a.Reaper},
		{Name: "usage-rollover", Runner: a.Rollover},
		{Name: "reporter", Runner: a.Reporter},
	}
}

// Close releases the database.
func (a *Application) Close() error {
	var result error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close store: %w", err))
		}
	}
	return result
}
