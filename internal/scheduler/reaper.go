package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/metrics"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/scan"
	"github.com/raysh454/comply/internal/store"
)

type ReaperConfig struct {
	Interval        time.Duration
	MaxScanDuration time.Duration
	MaxPendingAge   time.Duration
	BatchSize       int
}

// Reaper fails scanning records past MaxScanDuration and pending records
// past MaxPendingAge. It is an ifrit.Runner.
type Reaper struct {
	cfg     ReaperConfig
	scans   store.Scans
	charger dispatch.Charger
	clock   clock.Clock
	logger  logging.Logger
	metrics *metrics.Tracker
	notify  func(dispatch.Event)
}

func NewReaper(cfg ReaperConfig, scans store.Scans, charger dispatch.Charger, clk clock.Clock, logger logging.Logger, m *metrics.Tracker) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxScanDuration <= 0 {
		cfg.MaxScanDuration = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reaper{
		cfg:     cfg,
		scans:   scans,
		charger: charger,
		clock:   clk,
		logger:  logger.With(logging.Field{Key: "component", Value: "reaper"}),
		metrics: m,
	}
}

// OnEvent registers fn to receive the result event of every reaped scan.
func (r *Reaper) OnEvent(fn func(dispatch.Event)) {
	r.notify = fn
}

func (r *Reaper) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	r.logger.Info("starting", logging.Field{Key: "interval", Value: r.cfg.Interval.String()})
	defer r.logger.Info("done")

	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	close(ready)

	for {
		select {
		case <-ticker.C():
			if _, err := r.Sweep(context.Background()); err != nil {
				r.logger.Error("sweep failed", logging.Field{Key: "error", Value: err})
			}
		case <-signals:
			return nil
		}
	}
}

// Sweep fails every overdue record and returns how many it failed. A record
// that another writer finished first is left alone and not counted.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()
	var result *multierror.Error
	reaped := 0

	passes := []struct {
		status model.ScanStatus
		maxAge time.Duration
	}{
		{model.ScanScanning, r.cfg.MaxScanDuration},
		{model.ScanPending, r.cfg.MaxPendingAge},
	}
	for _, p := range passes {
		if p.maxAge <= 0 {
			continue
		}
		stale, err := r.scans.StaleScans(ctx, p.status, now.Add(-p.maxAge), r.cfg.BatchSize)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for i := range stale {
			ok, err := r.reap(ctx, &stale[i], p.maxAge, now)
			if err != nil {
				result = multierror.Append(result, err)
			}
			if ok {
				reaped++
			}
		}
	}

	if reaped > 0 {
		r.logger.Info("reaped overdue scans", logging.Field{Key: "count", Value: reaped})
	}
	return reaped, result.ErrorOrNil()
}

func (r *Reaper) reap(ctx context.Context, rec *model.ScanRecord, after time.Duration, now time.Time) (bool, error) {
	from := rec.Status
	msg := (&model.TimeoutError{ScanID: rec.ID, After: after}).Error()
	if err := scan.Fail(rec, msg, scan.Elapsed(rec, now), now); err != nil {
		return false, err
	}
	if err := r.scans.UpdateScan(ctx, rec, from); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	r.metrics.IncrementScansReaped()
	r.logger.Warn("scan timed out",
		logging.Field{Key: "scan_id", Value: rec.ID},
		logging.Field{Key: "from", Value: string(from)},
		logging.Field{Key: "elapsed_ms", Value: rec.ScanDurationMs})
	if r.notify != nil {
		r.notify(dispatch.NewEvent(rec))
	}

	if _, err := r.charger.ChargeScan(ctx, rec.OwnerID); err != nil {
		return true, fmt.Errorf("charge reaped scan %s: %w", rec.ID, err)
	}
	return true, nil
}
