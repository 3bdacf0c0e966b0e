package usage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/raysh454/comply/internal/logging"
	"github.com/robfig/cron/v3"
)

// DefaultRolloverSchedule fires at 00:00 UTC on the first of every month.
const DefaultRolloverSchedule = "0 0 1 * *"

// RolloverRunner resets monthly usage for all accounts on a cron schedule.
// It is an ifrit.Runner.
type RolloverRunner struct {
	accountant *Accountant
	schedule   cron.Schedule
	spec       string
	timeout    time.Duration
	logger     logging.Logger
}

// NewRolloverRunner validates spec (standard five-field cron syntax or a
// descriptor such as "@every 1h").
func NewRolloverRunner(accountant *Accountant, spec string, logger logging.Logger) (*RolloverRunner, error) {
	if spec == "" {
		spec = DefaultRolloverSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse rollover schedule %q: %w", spec, err)
	}
	return &RolloverRunner{
		accountant: accountant,
		schedule:   schedule,
		spec:       spec,
		timeout:    time.Minute,
		logger:     logger.With(logging.Field{Key: "component", Value: "usage_rollover"}),
	}, nil
}

func (r *RolloverRunner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	c := cron.New(cron.WithLocation(time.UTC))
	c.Schedule(r.schedule, cron.FuncJob(r.rollover))
	c.Start()

	r.logger.Info("usage rollover scheduled", logging.Field{Key: "schedule", Value: r.spec})
	close(ready)

	<-signals
	<-c.Stop().Done()
	return nil
}

func (r *RolloverRunner) rollover() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.accountant.RolloverAll(ctx); err != nil {
		r.logger.Error("usage rollover failed", logging.Field{Key: "error", Value: err})
	}
}
