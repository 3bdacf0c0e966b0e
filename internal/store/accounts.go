package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/comply/internal/model"
)

const accountColumns = `id, tier, scans_this_month, projects_created, last_reset_at, created_at`

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a         model.Account
		tier      string
		lastReset int64
		created   int64
	)
	if err := row.Scan(&a.ID, &tier, &a.Usage.ScansThisMonth, &a.Usage.ProjectsCreated, &lastReset, &created); err != nil {
		return nil, err
	}
	a.Tier = model.Tier(tier)
	a.Usage.LastResetDate = fromMillis(lastReset)
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

// GetAccount returns the stored account. Counters are returned as stored;
// callers that need the current month's view go through the usage
// accountant.
func (s *SQLite) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// UpsertAccount creates the account or updates its tier. Counters are left
// untouched for existing accounts.
func (s *SQLite) UpsertAccount(ctx context.Context, id string, tier model.Tier, now time.Time) (*model.Account, error) {
	nowMs := toMillis(now)
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (id, tier, scans_this_month, projects_created, usage_month, last_reset_at, created_at)
         VALUES (?, ?, 0, 0, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET tier = excluded.tier
         RETURNING `+accountColumns,
		id, string(tier), MonthKey(now), nowMs, nowMs,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return a, nil
}

// RolloverUsage zeroes the counters of one account if they belong to an
// earlier month than now. It reports whether a reset happened.
func (s *SQLite) RolloverUsage(ctx context.Context, id string, now time.Time) (bool, error) {
	month := MonthKey(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts
         SET scans_this_month = 0, projects_created = 0, last_reset_at = ?, usage_month = ?
         WHERE id = ? AND usage_month < ?`,
		toMillis(now), month, id, month,
	)
	if err != nil {
		return false, fmt.Errorf("rollover usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rollover usage: %w", err)
	}
	return n > 0, nil
}

// RolloverAllUsage resets every account whose counters belong to an earlier
// month and returns how many were reset.
func (s *SQLite) RolloverAllUsage(ctx context.Context, now time.Time) (int64, error) {
	month := MonthKey(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts
         SET scans_this_month = 0, projects_created = 0, last_reset_at = ?, usage_month = ?
         WHERE usage_month < ?`,
		toMillis(now), month, month,
	)
	if err != nil {
		return 0, fmt.Errorf("rollover all usage: %w", err)
	}
	return res.RowsAffected()
}

// IncrementUsage adds one to counter in a single statement. A stale month is
// reset in the same statement so no increment made in the new month is
// lost.
func (s *SQLite) IncrementUsage(ctx context.Context, id string, counter Counter, now time.Time) (*model.UsageStats, error) {
	var scans, projects int
	switch counter {
	case CounterScans:
		scans = 1
	case CounterProjects:
		projects = 1
	default:
		return nil, fmt.Errorf("unknown usage counter %q", counter)
	}

	month := MonthKey(now)
	row := s.db.QueryRowContext(ctx,
		`UPDATE accounts SET
             scans_this_month = CASE WHEN usage_month < ? THEN 0 ELSE scans_this_month END + ?,
             projects_created = CASE WHEN usage_month < ? THEN 0 ELSE projects_created END + ?,
             last_reset_at    = CASE WHEN usage_month < ? THEN ? ELSE last_reset_at END,
             usage_month      = MAX(usage_month, ?)
         WHERE id = ?
         RETURNING scans_this_month, projects_created, last_reset_at`,
		month, scans, month, projects, month, toMillis(now), month, id,
	)

	var (
		u         model.UsageStats
		lastReset int64
	)
	if err := row.Scan(&u.ScansThisMonth, &u.ProjectsCreated, &lastReset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("increment usage: %w", err)
	}
	u.LastResetDate = fromMillis(lastReset)
	return &u, nil
}
