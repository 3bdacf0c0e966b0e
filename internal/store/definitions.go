package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/comply/internal/model"
)

const definitionColumns = `id, url_ref, project_ref, owner_id, url, frequency, time_of_day,
       day_of_week, day_of_month, scan_options, is_active, last_run, next_run,
       last_skip_reason, last_skipped_at, created_at, updated_at`

func scanDefinition(row rowScanner) (*model.ScanDefinition, error) {
	var (
		d           model.ScanDefinition
		frequency   string
		dow, dom    sql.NullInt64
		options     string
		active      int
		lastRun     sql.NullInt64
		nextRun     int64
		lastSkipped sql.NullInt64
		created     int64
		updated     int64
	)
	if err := row.Scan(&d.ID, &d.URLRef, &d.ProjectRef, &d.OwnerID, &d.URL, &frequency, &d.TimeOfDay,
		&dow, &dom, &options, &active, &lastRun, &nextRun,
		&d.LastSkipReason, &lastSkipped, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &d.ScanOptions); err != nil {
		return nil, fmt.Errorf("decode scan options of %s: %w", d.ID, err)
	}
	d.Frequency = model.Frequency(frequency)
	d.DayOfWeek = intPtr(dow)
	d.DayOfMonth = intPtr(dom)
	d.IsActive = active == 1
	d.LastRun = timePtr(lastRun)
	d.NextRun = fromMillis(nextRun)
	d.LastSkippedAt = timePtr(lastSkipped)
	d.CreatedAt = fromMillis(created)
	d.UpdatedAt = fromMillis(updated)
	return &d, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateDefinition inserts def. The caller assigns the id and nextRun.
func (s *SQLite) CreateDefinition(ctx context.Context, def *model.ScanDefinition) error {
	options, err := json.Marshal(def.ScanOptions)
	if err != nil {
		return fmt.Errorf("encode scan options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_definitions
             (id, url_ref, project_ref, owner_id, url, frequency, time_of_day, day_of_week, day_of_month,
              scan_options, is_active, last_run, next_run, last_skip_reason, last_skipped_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.URLRef, def.ProjectRef, def.OwnerID, def.URL, string(def.Frequency), def.TimeOfDay,
		nullInt(def.DayOfWeek), nullInt(def.DayOfMonth), string(options), boolInt(def.IsActive),
		nullMillis(def.LastRun), toMillis(def.NextRun), def.LastSkipReason, nullMillis(def.LastSkippedAt),
		toMillis(def.CreatedAt), toMillis(def.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert scan definition: %w", err)
	}
	return nil
}

// GetDefinition returns one definition by id.
func (s *SQLite) GetDefinition(ctx context.Context, id string) (*model.ScanDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM scan_definitions WHERE id = ?`, id)
	d, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scan definition %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get scan definition: %w", err)
	}
	return d, nil
}

// UpdateDefinition writes the user-editable fields of def together with its
// nextRun, provided the stored nextRun still equals prevNextRun. It returns
// ErrConflict when a scheduler claim (or another edit) moved nextRun since
// def was read. Scheduler bookkeeping (lastRun, skip reason) is left alone.
func (s *SQLite) UpdateDefinition(ctx context.Context, def *model.ScanDefinition, prevNextRun time.Time) error {
	options, err := json.Marshal(def.ScanOptions)
	if err != nil {
		return fmt.Errorf("encode scan options: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_definitions
         SET frequency = ?, time_of_day = ?, day_of_week = ?, day_of_month = ?,
             scan_options = ?, is_active = ?, next_run = ?, updated_at = ?
         WHERE id = ? AND next_run = ?`,
		string(def.Frequency), def.TimeOfDay, nullInt(def.DayOfWeek), nullInt(def.DayOfMonth),
		string(options), boolInt(def.IsActive), toMillis(def.NextRun), toMillis(def.UpdatedAt),
		def.ID, toMillis(prevNextRun),
	)
	if err != nil {
		return fmt.Errorf("update scan definition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetDefinition(ctx, def.ID); err != nil {
		return err
	}
	return fmt.Errorf("definition %s: %w", def.ID, ErrConflict)
}

// ListDefinitions returns the definitions owned by ownerID, newest first.
func (s *SQLite) ListDefinitions(ctx context.Context, ownerID string) ([]model.ScanDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+definitionColumns+`
         FROM scan_definitions
         WHERE owner_id = ?
         ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list scan definitions: %w", err)
	}
	return collectDefinitions(rows)
}

// DueDefinitions returns active definitions whose nextRun is at or before
// now, oldest first.
func (s *SQLite) DueDefinitions(ctx context.Context, now time.Time, limit int) ([]model.ScanDefinition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+definitionColumns+`
         FROM scan_definitions
         WHERE is_active = 1 AND next_run <= ?
         ORDER BY next_run ASC
         LIMIT ?`, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("query due definitions: %w", err)
	}
	return collectDefinitions(rows)
}

func collectDefinitions(rows *sql.Rows) ([]model.ScanDefinition, error) {
	defer rows.Close()
	var out []model.ScanDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// AdvanceSchedule moves nextRun from prevNextRun to nextRun in one
// conditional update. It returns ErrConflict when another writer moved
// nextRun first or the definition was deactivated.
func (s *SQLite) AdvanceSchedule(ctx context.Context, id string, prevNextRun, nextRun time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_definitions
         SET next_run = ?
         WHERE id = ? AND next_run = ? AND is_active = 1`,
		toMillis(nextRun), id, toMillis(prevNextRun),
	)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	return expectOne(res, fmt.Errorf("definition %s: %w", id, ErrConflict))
}

// RecordRun stores the time a definition last fired.
func (s *SQLite) RecordRun(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scan_definitions SET last_run = ?, last_skip_reason = '' WHERE id = ?`,
		toMillis(at), id)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecordSkip stores why a firing was skipped.
func (s *SQLite) RecordSkip(ctx context.Context, id string, reason string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scan_definitions SET last_skip_reason = ?, last_skipped_at = ? WHERE id = ?`,
		reason, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("record skip: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return otherwise
	}
	return nil
}
