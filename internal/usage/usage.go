// Package usage keeps the per-account monthly counters the quota guard reads.
package usage

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/metrics"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/store"
)

// Accountant reads and charges usage counters. Every write is a single
// conditional statement in the store, so concurrent charges and resets
// never lose an increment.
type Accountant struct {
	store   store.Accounts
	clock   clock.Clock
	logger  logging.Logger
	metrics *metrics.Tracker
}

func NewAccountant(s store.Accounts, clk clock.Clock, logger logging.Logger) *Accountant {
	return &Accountant{
		store:  s,
		clock:  clk,
		logger: logger.With(logging.Field{Key: "component", Value: "usage"}),
	}
}

// TrackResets makes the accountant count monthly resets in m.
func (a *Accountant) TrackResets(m *metrics.Tracker) {
	a.metrics = m
}

// Load returns the account with counters for the current month, resetting
// them first when they belong to an earlier month.
func (a *Accountant) Load(ctx context.Context, accountID string) (*model.Account, error) {
	now := a.clock.Now()
	reset, err := a.store.RolloverUsage(ctx, accountID, now)
	if err != nil {
		return nil, err
	}
	if reset {
		a.metrics.AddUsageResets(1)
		a.logger.Info("monthly usage reset",
			logging.Field{Key: "account_id", Value: accountID},
			logging.Field{Key: "month", Value: store.MonthKey(now)})
	}
	return a.store.GetAccount(ctx, accountID)
}

// ChargeScan counts one terminal scan against the account.
func (a *Accountant) ChargeScan(ctx context.Context, accountID string) (*model.UsageStats, error) {
	return a.charge(ctx, accountID, store.CounterScans)
}

// ChargeProject counts one created project against the account.
func (a *Accountant) ChargeProject(ctx context.Context, accountID string) (*model.UsageStats, error) {
	return a.charge(ctx, accountID, store.CounterProjects)
}

func (a *Accountant) charge(ctx context.Context, accountID string, counter store.Counter) (*model.UsageStats, error) {
	stats, err := a.store.IncrementUsage(ctx, accountID, counter, a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("charge %s: %w", counter, err)
	}
	a.logger.Debug("usage charged",
		logging.Field{Key: "account_id", Value: accountID},
		logging.Field{Key: "counter", Value: string(counter)},
		logging.Field{Key: "scans_this_month", Value: stats.ScansThisMonth},
		logging.Field{Key: "projects_created", Value: stats.ProjectsCreated})
	return stats, nil
}

// RolloverAll resets every account still on an earlier month.
func (a *Accountant) RolloverAll(ctx context.Context) (int64, error) {
	now := a.clock.Now()
	n, err := a.store.RolloverAllUsage(ctx, now)
	if err != nil {
		return 0, err
	}
	a.metrics.AddUsageResets(n)
	a.logger.Info("monthly usage rollover",
		logging.Field{Key: "month", Value: store.MonthKey(now)},
		logging.Field{Key: "accounts_reset", Value: n})
	return n, nil
}

// Rollover returns stats as they should read at now: zeroed, with
// LastResetDate = now, when the UTC month of now differs from the month of
// the last reset. The second result reports whether a reset applied.
func Rollover(stats model.UsageStats, now time.Time) (model.UsageStats, bool) {
	if !stats.LastResetDate.IsZero() && store.MonthKey(stats.LastResetDate) >= store.MonthKey(now) {
		return stats, false
	}
	return model.UsageStats{LastResetDate: now.UTC()}, true
}
