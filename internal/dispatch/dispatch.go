// Package dispatch turns launch requests into scan records and runs them
// against the analyzer on a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/raysh454/comply/internal/analyzer"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/metrics"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/scan"
	"github.com/raysh454/comply/internal/store"
)

var (
	ErrQueueFull = errors.New("dispatch queue is full")
	ErrStopped   = errors.New("dispatcher is stopped")
)

// Charger counts a terminal scan against its owner.
type Charger interface {
	ChargeScan(ctx context.Context, accountID string) (*model.UsageStats, error)
}

type Config struct {
	Workers        int
	QueueSize      int
	AnalyzeTimeout time.Duration
}

// LaunchRequest describes a scan to create and run.
type LaunchRequest struct {
	URLRef       string
	ProjectRef   string
	OwnerID      string
	DefinitionID string
	URL          string
	Options      model.ScanOptions
}

// Dispatcher is an ifrit.Runner. Launch may be called before Run starts;
// queued records wait for the workers.
type Dispatcher struct {
	cfg      Config
	store    store.Scans
	analyzer analyzer.Analyzer
	charger  Charger
	clock    clock.Clock
	logger   logging.Logger
	metrics  *metrics.Tracker

	// slots holds one token per queued or reserved record.
	slots chan struct{}
	queue chan *model.ScanRecord

	mu      sync.RWMutex
	stopped bool

	listenersMu sync.RWMutex
	listeners   []func(Event)
}

func New(cfg Config, scans store.Scans, a analyzer.Analyzer, charger Charger, clk clock.Clock, logger logging.Logger, m *metrics.Tracker) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = 5 * time.Minute
	}
	return &Dispatcher{
		cfg:      cfg,
		store:    scans,
		analyzer: a,
		charger:  charger,
		clock:    clk,
		logger:   logger.With(logging.Field{Key: "component", Value: "dispatcher"}),
		metrics:  m,
		slots:    make(chan struct{}, cfg.QueueSize),
		queue:    make(chan *model.ScanRecord, cfg.QueueSize),
	}
}

// OnEvent registers fn to receive every status event. fn must not block.
func (d *Dispatcher) OnEvent(fn func(Event)) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Dispatcher) publish(ev Event) {
	d.listenersMu.RLock()
	defer d.listenersMu.RUnlock()
	for _, fn := range d.listeners {
		fn(ev)
	}
}

// Launch creates a pending record for req and queues it. When no queue slot
// is free, or the dispatcher is stopping, it returns a *model.DispatchError
// and persists nothing.
func (d *Dispatcher) Launch(ctx context.Context, req LaunchRequest) (*model.ScanRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return nil, &model.DispatchError{Err: ErrStopped}
	}
	select {
	case d.slots <- struct{}{}:
	default:
		return nil, &model.DispatchError{Err: ErrQueueFull}
	}

	rec, err := scan.New(scan.NewParams{
		URLRef:       req.URLRef,
		ProjectRef:   req.ProjectRef,
		OwnerID:      req.OwnerID,
		DefinitionID: req.DefinitionID,
		URL:          req.URL,
		Options:      req.Options,
		Now:          d.clock.Now(),
	})
	if err != nil {
		<-d.slots
		return nil, err
	}
	if err := d.store.CreateScan(ctx, rec); err != nil {
		<-d.slots
		return nil, fmt.Errorf("persist scan: %w", err)
	}

	d.publish(NewEvent(rec))
	d.metrics.IncrementScansLaunched()
	d.queue <- rec
	d.metrics.SetQueueSize(len(d.queue))
	d.logger.Info("scan queued",
		logging.Field{Key: "scan_id", Value: rec.ID},
		logging.Field{Key: "url", Value: rec.URL},
		logging.Field{Key: "definition_id", Value: rec.DefinitionID})

	return rec, nil
}

// Run starts the workers. On signal it stops accepting launches, lets
// running analyses finish and leaves records that never started pending.
func (d *Dispatcher) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	stopping := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(stopping)
		}()
	}

	d.logger.Info("dispatcher started",
		logging.Field{Key: "workers", Value: d.cfg.Workers},
		logging.Field{Key: "queue_size", Value: d.cfg.QueueSize})
	close(ready)

	<-signals
	d.mu.Lock()
	d.stopped = true
	close(stopping)
	close(d.queue)
	d.mu.Unlock()

	wg.Wait()
	d.logger.Info("dispatcher stopped")
	return nil
}

func (d *Dispatcher) work(stopping <-chan struct{}) {
	for rec := range d.queue {
		<-d.slots
		d.metrics.SetQueueSize(len(d.queue))

		select {
		case <-stopping:
			d.logger.Warn("leaving scan pending at shutdown", logging.Field{Key: "scan_id", Value: rec.ID})
			continue
		default:
		}
		d.execute(rec)
	}
}

func (d *Dispatcher) execute(rec *model.ScanRecord) {
	ctx := context.Background()
	logger := d.logger.With(logging.Field{Key: "scan_id", Value: rec.ID})

	if err := scan.Begin(rec, d.clock.Now()); err != nil {
		logger.Error("begin scan", logging.Field{Key: "error", Value: err})
		return
	}
	if err := d.store.UpdateScan(ctx, rec, model.ScanPending); err != nil {
		// the reaper or another writer already finished it
		logger.Warn("scan no longer pending", logging.Field{Key: "error", Value: err})
		return
	}
	d.publish(NewEvent(rec))

	actx, cancel := context.WithTimeout(ctx, d.cfg.AnalyzeTimeout)
	results, err := d.analyzer.Analyze(actx, rec.URL, rec.ScanOptions.Categories())
	timedOut := errors.Is(actx.Err(), context.DeadlineExceeded)
	cancel()

	now := d.clock.Now()
	elapsed := scan.Elapsed(rec, now)
	if err == nil {
		err = scan.Complete(rec, results, elapsed, now)
	}
	if err != nil {
		msg := err.Error()
		if timedOut {
			msg = (&model.TimeoutError{ScanID: rec.ID, After: d.cfg.AnalyzeTimeout}).Error()
		}
		if ferr := scan.Fail(rec, msg, elapsed, now); ferr != nil {
			logger.Error("fail scan", logging.Field{Key: "error", Value: ferr})
			return
		}
	}

	if err := d.store.UpdateScan(ctx, rec, model.ScanScanning); err != nil {
		logger.Warn("scan finished elsewhere", logging.Field{Key: "error", Value: err})
		return
	}
	if _, err := d.charger.ChargeScan(ctx, rec.OwnerID); err != nil {
		logger.Error("charge scan", logging.Field{Key: "error", Value: err})
	}

	d.metrics.RecordScanFinished(rec.Status == model.ScanCompleted, time.Duration(rec.ScanDurationMs)*time.Millisecond)
	logger.Info("scan finished",
		logging.Field{Key: "status", Value: string(rec.Status)},
		logging.Field{Key: "duration_ms", Value: rec.ScanDurationMs},
		logging.Field{Key: "score", Value: rec.Results.Overall.Score})
	d.publish(NewEvent(rec))
}
