// Package scheduler fires due scan definitions and fails scans that
// outlived their deadline.
package scheduler

import (
	"context"
	"errors"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/metrics"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/quota"
	"github.com/raysh454/comply/internal/recurrence"
	"github.com/raysh454/comply/internal/store"
)

// Launcher starts a scan for a fired definition.
type Launcher interface {
	Launch(ctx context.Context, req dispatch.LaunchRequest) (*model.ScanRecord, error)
}

// AccountLoader returns an account with its current-month usage.
type AccountLoader interface {
	Load(ctx context.Context, accountID string) (*model.Account, error)
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// TickSummary counts what one pass over the due definitions did.
type TickSummary struct {
	Due              int
	Fired            int
	Skipped          int
	Conflicts        int
	DispatchFailures int
	Errors           int
}

// Loop is an ifrit.Runner that polls for due definitions.
type Loop struct {
	cfg        Config
	defs       store.Definitions
	accounts   AccountLoader
	guard      quota.Guard
	calculator recurrence.Calculator
	launcher   Launcher
	clock      clock.Clock
	logger     logging.Logger
	metrics    *metrics.Tracker
}

func NewLoop(
	cfg Config,
	defs store.Definitions,
	accounts AccountLoader,
	calculator recurrence.Calculator,
	launcher Launcher,
	clk clock.Clock,
	logger logging.Logger,
	m *metrics.Tracker,
) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Loop{
		cfg:        cfg,
		defs:       defs,
		accounts:   accounts,
		calculator: calculator,
		launcher:   launcher,
		clock:      clk,
		logger:     logger.With(logging.Field{Key: "component", Value: "scheduler"}),
		metrics:    m,
	}
}

func (l *Loop) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	l.logger.Info("starting", logging.Field{Key: "interval", Value: l.cfg.PollInterval.String()})
	defer l.logger.Info("done")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := l.clock.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	close(ready)

	for {
		select {
		case <-ticker.C():
			l.Tick(ctx)
		case <-signals:
			return nil
		}
	}
}

// Tick fires every definition due at the current time, up to BatchSize.
// Failures are logged per definition and never abort the pass.
func (l *Loop) Tick(ctx context.Context) TickSummary {
	var summary TickSummary
	now := l.clock.Now()

	due, err := l.defs.DueDefinitions(ctx, now, l.cfg.BatchSize)
	if err != nil {
		l.logger.Error("failed to query due definitions", logging.Field{Key: "error", Value: err})
		summary.Errors++
		return summary
	}
	summary.Due = len(due)

	for i := range due {
		l.fire(ctx, &due[i], now, &summary)
	}

	l.metrics.RecordTick(summary.Due, summary.Fired, summary.Skipped, summary.Conflicts, summary.DispatchFailures)
	if summary.Due > 0 {
		l.logger.Info("tick",
			logging.Field{Key: "due", Value: summary.Due},
			logging.Field{Key: "fired", Value: summary.Fired},
			logging.Field{Key: "skipped", Value: summary.Skipped},
			logging.Field{Key: "conflicts", Value: summary.Conflicts},
			logging.Field{Key: "dispatch_failures", Value: summary.DispatchFailures})
	}
	return summary
}

func (l *Loop) fire(ctx context.Context, def *model.ScanDefinition, now time.Time, summary *TickSummary) {
	logger := l.logger.With(logging.Field{Key: "definition_id", Value: def.ID})

	next, err := l.calculator.NextRun(def, now)
	if err != nil {
		logger.Error("cannot compute next run", logging.Field{Key: "error", Value: err})
		summary.Errors++
		return
	}

	prev := def.NextRun
	if err := l.defs.AdvanceSchedule(ctx, def.ID, prev, next); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Debug("definition claimed elsewhere")
			summary.Conflicts++
			return
		}
		logger.Error("failed to claim definition", logging.Field{Key: "error", Value: err})
		summary.Errors++
		return
	}

	account, err := l.accounts.Load(ctx, def.OwnerID)
	if err != nil {
		logger.Error("failed to load account", logging.Field{Key: "owner_id", Value: def.OwnerID}, logging.Field{Key: "error", Value: err})
		l.revert(ctx, logger, def.ID, next, prev)
		summary.Errors++
		return
	}

	if err := l.guard.CheckScan(*account); err != nil {
		logger.Info("scheduled scan skipped", logging.Field{Key: "reason", Value: err.Error()})
		if rerr := l.defs.RecordSkip(ctx, def.ID, err.Error(), now); rerr != nil {
			logger.Error("failed to record skip", logging.Field{Key: "error", Value: rerr})
		}
		summary.Skipped++
		return
	}

	rec, err := l.launcher.Launch(ctx, dispatch.LaunchRequest{
		URLRef:       def.URLRef,
		ProjectRef:   def.ProjectRef,
		OwnerID:      def.OwnerID,
		DefinitionID: def.ID,
		URL:          def.URL,
		Options:      def.ScanOptions,
	})
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			// the advanced schedule stays
			logger.Error("definition cannot launch", logging.Field{Key: "error", Value: err})
			if rerr := l.defs.RecordSkip(ctx, def.ID, err.Error(), now); rerr != nil {
				logger.Error("failed to record skip", logging.Field{Key: "error", Value: rerr})
			}
			summary.Errors++
			return
		}
		var derr *model.DispatchError
		if errors.As(err, &derr) {
			summary.DispatchFailures++
		} else {
			summary.Errors++
		}
		logger.Warn("launch failed, will retry", logging.Field{Key: "error", Value: err})
		l.revert(ctx, logger, def.ID, next, prev)
		return
	}

	if err := l.defs.RecordRun(ctx, def.ID, now); err != nil {
		logger.Error("failed to record run", logging.Field{Key: "error", Value: err})
	}
	summary.Fired++
	logger.Info("scheduled scan launched",
		logging.Field{Key: "scan_id", Value: rec.ID},
		logging.Field{Key: "next_run", Value: next.Format(time.RFC3339)})
}

// revert restores the nextRun a failed claim advanced, so the next poll
// picks the definition up again.
func (l *Loop) revert(ctx context.Context, logger logging.Logger, id string, next, prev time.Time) {
	if err := l.defs.AdvanceSchedule(ctx, id, next, prev); err != nil {
		logger.Error("failed to restore next run", logging.Field{Key: "error", Value: err})
	}
}
