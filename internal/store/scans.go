package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/raysh454/comply/internal/model"
)

const scanColumns = `id, url_ref, project_ref, owner_id, definition_id, url, status, scan_options,
       results, scan_duration_ms, error_message, created_at, started_at, finished_at`

func scanRecord(row rowScanner) (*model.ScanRecord, error) {
	var (
		r        model.ScanRecord
		status   string
		options  string
		results  string
		created  int64
		started  sql.NullInt64
		finished sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.URLRef, &r.ProjectRef, &r.OwnerID, &r.DefinitionID, &r.URL, &status, &options,
		&results, &r.ScanDurationMs, &r.ErrorMessage, &created, &started, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &r.ScanOptions); err != nil {
		return nil, fmt.Errorf("decode scan options of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(results), &r.Results); err != nil {
		return nil, fmt.Errorf("decode results of %s: %w", r.ID, err)
	}
	r.Status = model.ScanStatus(status)
	r.CreatedAt = fromMillis(created)
	r.StartedAt = timePtr(started)
	r.FinishedAt = timePtr(finished)
	return &r, nil
}

// CreateScan inserts a new record. An on-demand record for a URL that
// already has one pending or scanning is rejected with ErrInFlight.
func (s *SQLite) CreateScan(ctx context.Context, rec *model.ScanRecord) error {
	options, err := json.Marshal(rec.ScanOptions)
	if err != nil {
		return fmt.Errorf("encode scan options: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans
             (id, url_ref, project_ref, owner_id, definition_id, url, status, scan_options, results,
              scan_duration_ms, error_message, created_at, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URLRef, rec.ProjectRef, rec.OwnerID, rec.DefinitionID, rec.URL, string(rec.Status),
		string(options), string(results), rec.ScanDurationMs, rec.ErrorMessage,
		toMillis(rec.CreatedAt), nullMillis(rec.StartedAt), nullMillis(rec.FinishedAt),
	)
	if err != nil {
		if rec.DefinitionID == "" && isUniqueViolation(err) {
			return fmt.Errorf("scan for %s: %w", rec.URLRef, ErrInFlight)
		}
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(se.Code() == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}

// GetScan returns one record by id.
func (s *SQLite) GetScan(ctx context.Context, id string) (*model.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return r, nil
}

// ListScans returns the most recent records of a URL.
func (s *SQLite) ListScans(ctx context.Context, urlRef string, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+`
         FROM scans
         WHERE url_ref = ?
         ORDER BY created_at DESC
         LIMIT ?`, urlRef, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return collectScans(rows)
}

// InFlightScan returns the newest pending or scanning record of a URL, or
// ErrNotFound when there is none.
func (s *SQLite) InFlightScan(ctx context.Context, urlRef string) (*model.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+`
         FROM scans
         WHERE url_ref = ? AND status IN (?, ?)
         ORDER BY created_at DESC
         LIMIT 1`, urlRef, string(model.ScanPending), string(model.ScanScanning))
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("in-flight scan for %s: %w", urlRef, ErrNotFound)
		}
		return nil, fmt.Errorf("get in-flight scan: %w", err)
	}
	return r, nil
}

// UpdateScan persists rec if the stored status still equals from. It
// returns ErrConflict when another writer transitioned the record first.
func (s *SQLite) UpdateScan(ctx context.Context, rec *model.ScanRecord, from model.ScanStatus) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans
         SET status = ?, results = ?, scan_duration_ms = ?, error_message = ?, started_at = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		string(rec.Status), string(results), rec.ScanDurationMs, rec.ErrorMessage,
		nullMillis(rec.StartedAt), nullMillis(rec.FinishedAt),
		rec.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	return expectOne(res, fmt.Errorf("scan %s no longer %s: %w", rec.ID, from, ErrConflict))
}

// StaleScans returns records in status that became that status before the
// given time: scanning records by start time, pending records by creation
// time.
func (s *SQLite) StaleScans(ctx context.Context, status model.ScanStatus, before time.Time, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	column := "created_at"
	if status == model.ScanScanning {
		column = "started_at"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+`
         FROM scans
         WHERE status = ? AND `+column+` < ?
         ORDER BY `+column+` ASC
         LIMIT ?`, string(status), toMillis(before), limit)
	if err != nil {
		return nil, fmt.Errorf("query stale scans: %w", err)
	}
	return collectScans(rows)
}

func collectScans(rows *sql.Rows) ([]model.ScanRecord, error) {
	defer rows.Close()
	var out []model.ScanRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
