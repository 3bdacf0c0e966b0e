// Package store persists accounts, scan definitions and scan records in
// SQLite and provides the conditional updates the scheduler and the usage
// accountant rely on.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/raysh454/comply/internal/model"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional update finds the row in a
	// different state than the caller expected.
	ErrConflict = errors.New("conflict: row changed concurrently")

	// ErrInFlight is returned by CreateScan when the URL already has an
	// on-demand scan pending or scanning.
	ErrInFlight = errors.New("on-demand scan already in flight")
)

// Counter names a UsageStats counter.
type Counter string

const (
	CounterScans    Counter = "scans"
	CounterProjects Counter = "projects"
)

// Accounts persists accounts and their usage counters.
type Accounts interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	UpsertAccount(ctx context.Context, id string, tier model.Tier, now time.Time) (*model.Account, error)
	RolloverUsage(ctx context.Context, id string, now time.Time) (bool, error)
	RolloverAllUsage(ctx context.Context, now time.Time) (int64, error)
	IncrementUsage(ctx context.Context, id string, counter Counter, now time.Time) (*model.UsageStats, error)
}

// Definitions persists recurring scan definitions.
type Definitions interface {
	CreateDefinition(ctx context.Context, def *model.ScanDefinition) error
	GetDefinition(ctx context.Context, id string) (*model.ScanDefinition, error)
	UpdateDefinition(ctx context.Context, def *model.ScanDefinition, prevNextRun time.Time) error
	ListDefinitions(ctx context.Context, ownerID string) ([]model.ScanDefinition, error)
	DueDefinitions(ctx context.Context, now time.Time, limit int) ([]model.ScanDefinition, error)
	AdvanceSchedule(ctx context.Context, id string, prevNextRun, nextRun time.Time) error
	RecordRun(ctx context.Context, id string, at time.Time) error
	RecordSkip(ctx context.Context, id string, reason string, at time.Time) error
}

// Scans persists scan records.
type Scans interface {
	CreateScan(ctx context.Context, rec *model.ScanRecord) error
	GetScan(ctx context.Context, id string) (*model.ScanRecord, error)
	ListScans(ctx context.Context, urlRef string, limit int) ([]model.ScanRecord, error)
	InFlightScan(ctx context.Context, urlRef string) (*model.ScanRecord, error)
	UpdateScan(ctx context.Context, rec *model.ScanRecord, from model.ScanStatus) error
	StaleScans(ctx context.Context, status model.ScanStatus, before time.Time, limit int) ([]model.ScanRecord, error)
}

// Store is the full persistence surface.
type Store interface {
	Accounts
	Definitions
	Scans
}

// SQLite implements Store on a database/sql handle.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (or creates) a SQLite database at path, enables WAL and
// applies the embedded migrations in order.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Conditional updates depend on serialized writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and runs migrations.
func New(db *sql.DB) (*SQLite, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle so other packages can share it.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func runMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := db.Exec(sqlText); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// --- time helpers ---

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// MonthKey is the UTC calendar month usage counters belong to.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

type rowScanner interface {
	Scan(dest ...any) error
}
