package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrWebsiteNotFound = errors.New("website not found")
)

// Registry manages the projects an account owns and the websites (scan
// targets) inside them.
type Registry struct {
	db     *sql.DB
	logger logging.Logger
}

// NewRegistry returns a Registry and runs migrations from schema.sql.
// db is usually the handle shared with the scan store.
func NewRegistry(db *sql.DB, logger logging.Logger) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Registry{db: db, logger: logger.With(logging.Field{Key: "component", Value: "registry"})}, nil
}

// normalizeSlug makes a slug safe and simple.
func normalizeSlug(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = uuid.New().String()[:8]
	}
	return out
}

// slugFromOrigin derives a website slug from host:port.
func slugFromOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "http://")
	if i := strings.IndexAny(origin, "/?#"); i >= 0 {
		origin = origin[:i]
	}
	return normalizeSlug(strings.ReplaceAll(origin, ":", "-"))
}

// CreateProject inserts a new project owned by ownerID.
func (r *Registry) CreateProject(ctx context.Context, ownerID, slug, name, description string) (*model.Project, error) {
	if ownerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if name == "" && slug != "" {
		name = slug
	}
	if slug == "" && name != "" {
		slug = normalizeSlug(name)
	} else {
		slug = normalizeSlug(slug)
	}
	if name == "" {
		name = slug
	}

	id := uuid.New().String()
	now := time.Now().Unix()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, slug, name, description, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, ownerID, slug, name, description, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	r.logger.Debug("created project", logging.Field{Key: "project_id", Value: id}, logging.Field{Key: "owner_id", Value: ownerID})
	return &model.Project{
		ID:          id,
		OwnerID:     ownerID,
		Slug:        slug,
		Name:        name,
		Description: description,
		CreatedAt:   now,
	}, nil
}

// GetProject returns a project by id or by the owner's slug.
func (r *Registry) GetProject(ctx context.Context, ownerID, identifier string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, slug, name, description, created_at
         FROM projects
         WHERE owner_id = ? AND (id = ? OR slug = ?)
         LIMIT 1`,
		ownerID, identifier, normalizeSlug(identifier),
	)
	var p model.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Slug, &p.Name, &p.Description, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProjects returns the projects of an owner, newest first.
func (r *Registry) ListProjects(ctx context.Context, ownerID string) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, slug, name, description, created_at
         FROM projects
         WHERE owner_id = ?
         ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Slug, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateWebsite registers a scan target under a project.
//
// origin is REQUIRED and must be an absolute http(s) URL. slug defaults to
// the origin's host:port.
func (r *Registry) CreateWebsite(ctx context.Context, projectID, slug, name, origin string) (*model.Website, error) {
	if err := model.ValidateURL(origin); err != nil {
		return nil, err
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects WHERE id = ?`, projectID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrProjectNotFound
	}

	if slug == "" {
		slug = slugFromOrigin(origin)
	} else {
		slug = normalizeSlug(slug)
	}

	id := uuid.New().String()
	now := time.Now().Unix()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO websites (id, project_id, slug, name, origin, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, projectID, slug, name, origin, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert website: %w", err)
	}

	return &model.Website{
		ID:        id,
		ProjectID: projectID,
		Slug:      slug,
		Name:      name,
		Origin:    origin,
		CreatedAt: now,
	}, nil
}

const websiteColumns = `id, project_id, slug, name, origin, created_at, last_scanned_at`

func scanWebsite(row interface{ Scan(...any) error }) (*model.Website, error) {
	var w model.Website
	var lastScanned sql.NullInt64
	if err := row.Scan(&w.ID, &w.ProjectID, &w.Slug, &w.Name, &w.Origin, &w.CreatedAt, &lastScanned); err != nil {
		return nil, err
	}
	if lastScanned.Valid {
		w.LastScannedAt = lastScanned.Int64
	}
	return &w, nil
}

// GetWebsite returns a website by id.
func (r *Registry) GetWebsite(ctx context.Context, id string) (*model.Website, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+websiteColumns+` FROM websites WHERE id = ?`, id)
	w, err := scanWebsite(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWebsiteNotFound
		}
		return nil, err
	}
	return w, nil
}

// ListWebsites lists the websites of a project.
func (r *Registry) ListWebsites(ctx context.Context, projectID string) ([]model.Website, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+websiteColumns+`
         FROM websites
         WHERE project_id = ?
         ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// UpdateWebsiteLastScanned updates last_scanned_at for a website id.
func (r *Registry) UpdateWebsiteLastScanned(ctx context.Context, websiteID string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE websites SET last_scanned_at = ? WHERE id = ?`,
		ts.Unix(), websiteID,
	)
	return err
}
