package metrics

import (
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/raysh454/comply/internal/logging"
)

// Reporter is an ifrit.Runner that logs a progress line every interval.
type Reporter struct {
	tracker  *Tracker
	clock    clock.Clock
	interval time.Duration
	logger   logging.Logger
}

func NewReporter(tracker *Tracker, clk clock.Clock, interval time.Duration, logger logging.Logger) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{
		tracker:  tracker,
		clock:    clk,
		interval: interval,
		logger:   logger.With(logging.Field{Key: "component", Value: "reporter"}),
	}
}

func (r *Reporter) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	r.logger.Info("starting", logging.Field{Key: "interval", Value: r.interval.String()})
	defer r.logger.Info("done")

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	close(ready)

	for {
		select {
		case <-ticker.C():
			r.report()
		case <-signals:
			return nil
		}
	}
}

func (r *Reporter) report() {
	s := r.tracker.GetSnapshot()
	r.logger.Info(r.tracker.LogProgress(),
		logging.Field{Key: "scans_launched", Value: s.ScansLaunched},
		logging.Field{Key: "scans_completed", Value: s.ScansCompleted},
		logging.Field{Key: "scans_failed", Value: s.ScansFailed},
		logging.Field{Key: "in_flight", Value: s.InFlightScans})
}
