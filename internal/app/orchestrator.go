package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/logging"
	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/quota"
	"github.com/raysh454/comply/internal/recurrence"
	"github.com/raysh454/comply/internal/registry"
	"github.com/raysh454/comply/internal/scheduler"
	"github.com/raysh454/comply/internal/store"
	"github.com/raysh454/comply/internal/usage"
)

var (
	// ErrScanInProgress is returned when the website already has a pending
	// or scanning record.
	ErrScanInProgress = errors.New("a scan is already in progress for this website")

	// ErrForbidden is returned when a resource belongs to another account.
	ErrForbidden = errors.New("resource belongs to another account")
)

const (
	defaultScanListLimit = 50
	maxUpdateAttempts    = 3
)

// ResourceUsage is one line of a usage report.
type ResourceUsage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Unlimited bool `json:"unlimited"`
	Remaining int  `json:"remaining"`
}

// UsageReport is an account's consumption against its tier limits.
type UsageReport struct {
	AccountID     string        `json:"account_id"`
	Tier          model.Tier    `json:"tier"`
	Scans         ResourceUsage `json:"scans"`
	Projects      ResourceUsage `json:"projects"`
	LastResetDate time.Time     `json:"last_reset_date"`
}

// DefinitionInput creates a recurring scan for a website.
type DefinitionInput struct {
	WebsiteID   string
	Frequency   model.Frequency
	TimeOfDay   string
	DayOfWeek   *int
	DayOfMonth  *int
	ScanOptions *model.ScanOptions
}

// DefinitionPatch changes a definition. Nil fields are left as they are.
type DefinitionPatch struct {
	Frequency   *model.Frequency
	TimeOfDay   *string
	DayOfWeek   *int
	DayOfMonth  *int
	ScanOptions *model.ScanOptions
	IsActive    *bool
}

// Orchestrator is the service facade behind the HTTP API. It enforces
// ownership and quota, and keeps definitions' nextRun consistent with their
// schedule fields.
type Orchestrator struct {
	cfg        *Config
	store      store.Store
	registry   *registry.Registry
	accountant *usage.Accountant
	launcher   scheduler.Launcher
	calculator recurrence.Calculator
	guard      quota.Guard
	events     *eventHub
	clock      clock.Clock
	logger     logging.Logger
}

// NewOrchestrator ties together storage, quota accounting and the launcher.
func NewOrchestrator(
	cfg *Config,
	st store.Store,
	reg *registry.Registry,
	accountant *usage.Accountant,
	launcher scheduler.Launcher,
	calculator recurrence.Calculator,
	clk clock.Clock,
	logger logging.Logger,
) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		registry:   reg,
		accountant: accountant,
		launcher:   launcher,
		calculator: calculator,
		events:     newEventHub(cfg.EventBuffer),
		clock:      clk,
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
	}
}

// ─── Accounts ──────────────────────────────────────────────────────────

// SyncAccount creates the account or updates its tier as reported by
// billing.
func (o *Orchestrator) SyncAccount(ctx context.Context, accountID string, tier model.Tier) (*model.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, &model.ValidationError{Field: "account_id", Reason: "required"}
	}
	if !tier.Valid() {
		return nil, &model.ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier %q", tier)}
	}
	if _, err := o.store.UpsertAccount(ctx, accountID, tier, o.clock.Now()); err != nil {
		return nil, err
	}
	o.logger.Info("account synced",
		logging.Field{Key: "account_id", Value: accountID},
		logging.Field{Key: "tier", Value: string(tier)})
	return o.accountant.Load(ctx, accountID)
}

// GetAccount returns the account with current-month counters.
func (o *Orchestrator) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return o.accountant.Load(ctx, accountID)
}

// Usage reports what the account consumed this month against its limits.
func (o *Orchestrator) Usage(ctx context.Context, accountID string) (*UsageReport, error) {
	acct, err := o.accountant.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits := quota.LimitsFor(acct.Tier)
	return &UsageReport{
		AccountID:     acct.ID,
		Tier:          acct.Tier,
		Scans:         resourceUsage(acct.Usage.ScansThisMonth, limits.ScansPerMonth),
		Projects:      resourceUsage(acct.Usage.ProjectsCreated, limits.Projects),
		LastResetDate: acct.Usage.LastResetDate,
	}, nil
}

func resourceUsage(used, limit int) ResourceUsage {
	if limit == quota.Unlimited {
		return ResourceUsage{Used: used, Limit: limit, Unlimited: true, Remaining: quota.Unlimited}
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return ResourceUsage{Used: used, Limit: limit, Remaining: remaining}
}

// ─── Projects & websites ───────────────────────────────────────────────

// CreateProject checks the account's project allowance, creates the project
// and charges it.
func (o *Orchestrator) CreateProject(ctx context.Context, accountID, slug, name, description string) (*model.Project, error) {
	acct, err := o.accountant.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := o.guard.CheckProject(*acct); err != nil {
		return nil, err
	}

	p, err := o.registry.CreateProject(ctx, accountID, slug, name, description)
	if err != nil {
		return nil, err
	}
	if _, err := o.accountant.ChargeProject(ctx, accountID); err != nil {
		o.logger.Error("failed to charge project",
			logging.Field{Key: "account_id", Value: accountID},
			logging.Field{Key: "project_id", Value: p.ID},
			logging.Field{Key: "error", Value: err})
	}
	return p, nil
}

func (o *Orchestrator) ListProjects(ctx context.Context, accountID string) ([]model.Project, error) {
	return o.registry.ListProjects(ctx, accountID)
}

// CreateWebsite adds a website to a project the account owns.
func (o *Orchestrator) CreateWebsite(ctx context.Context, accountID, project, slug, name, origin string) (*model.Website, error) {
	p, err := o.registry.GetProject(ctx, accountID, project)
	if err != nil {
		return nil, err
	}
	return o.registry.CreateWebsite(ctx, p.ID, slug, name, origin)
}

func (o *Orchestrator) ListWebsites(ctx context.Context, accountID, project string) ([]model.Website, error) {
	p, err := o.registry.GetProject(ctx, accountID, project)
	if err != nil {
		return nil, err
	}
	return o.registry.ListWebsites(ctx, p.ID)
}

// websiteFor returns the website if its project belongs to accountID.
func (o *Orchestrator) websiteFor(ctx context.Context, accountID, websiteID string) (*model.Website, error) {
	w, err := o.registry.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	if _, err := o.registry.GetProject(ctx, accountID, w.ProjectID); err != nil {
		if errors.Is(err, registry.ErrProjectNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return w, nil
}

// ─── Scans ─────────────────────────────────────────────────────────────

// StartScan launches an on-demand scan of a website. Only one scan per
// website may be pending or scanning at a time; the store enforces this for
// concurrent requests that both pass the in-flight check.
func (o *Orchestrator) StartScan(ctx context.Context, accountID, websiteID string, opts *model.ScanOptions) (*model.ScanRecord, error) {
	w, err := o.websiteFor(ctx, accountID, websiteID)
	if err != nil {
		return nil, err
	}

	options := model.DefaultScanOptions()
	if opts != nil {
		options = opts.Clone()
	}
	if err := model.ValidateOptions(options); err != nil {
		return nil, err
	}

	acct, err := o.accountant.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := o.guard.CheckScan(*acct); err != nil {
		return nil, err
	}

	if _, err := o.store.InFlightScan(ctx, w.ID); err == nil {
		return nil, ErrScanInProgress
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	rec, err := o.launcher.Launch(ctx, dispatch.LaunchRequest{
		URLRef:     w.ID,
		ProjectRef: w.ProjectID,
		OwnerID:    accountID,
		URL:        w.Origin,
		Options:    options,
	})
	if errors.Is(err, store.ErrInFlight) {
		return nil, ErrScanInProgress
	}
	if err != nil {
		return nil, err
	}
	o.logger.Info("on-demand scan started",
		logging.Field{Key: "scan_id", Value: rec.ID},
		logging.Field{Key: "website_id", Value: w.ID})
	return rec, nil
}

// GetScan returns a scan record owned by accountID.
func (o *Orchestrator) GetScan(ctx context.Context, accountID, scanID string) (*model.ScanRecord, error) {
	rec, err := o.store.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != accountID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// ListScans returns a website's scans, newest first.
func (o *Orchestrator) ListScans(ctx context.Context, accountID, websiteID string, limit int) ([]model.ScanRecord, error) {
	if _, err := o.websiteFor(ctx, accountID, websiteID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultScanListLimit
	}
	return o.store.ListScans(ctx, websiteID, limit)
}

// WatchScan subscribes to a scan's events and returns its current state.
// The channel is closed after the result event; when rec is already
// terminal it is closed immediately.
func (o *Orchestrator) WatchScan(ctx context.Context, accountID, scanID string) (*model.ScanRecord, <-chan dispatch.Event, func(), error) {
	events, cancel := o.events.subscribe(scanID)
	rec, err := o.GetScan(ctx, accountID, scanID)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	if rec.Status.Terminal() {
		cancel()
	}
	return rec, events, cancel, nil
}

// HandleEvent receives dispatcher and reaper events.
func (o *Orchestrator) HandleEvent(ev dispatch.Event) {
	o.events.publish(ev)
	if ev.Status != model.ScanCompleted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.registry.UpdateWebsiteLastScanned(ctx, ev.URLRef, ev.At); err != nil {
		o.logger.Warn("failed to record last scan time",
			logging.Field{Key: "website_id", Value: ev.URLRef},
			logging.Field{Key: "error", Value: err})
	}
}

// ─── Definitions ───────────────────────────────────────────────────────

// CreateDefinition creates an active recurring scan and computes its first
// run.
func (o *Orchestrator) CreateDefinition(ctx context.Context, accountID string, in DefinitionInput) (*model.ScanDefinition, error) {
	w, err := o.websiteFor(ctx, accountID, in.WebsiteID)
	if err != nil {
		return nil, err
	}

	options := model.DefaultScanOptions()
	if in.ScanOptions != nil {
		options = in.ScanOptions.Clone()
	}

	now := o.clock.Now().UTC()
	def := &model.ScanDefinition{
		ID:          uuid.New().String(),
		URLRef:      w.ID,
		ProjectRef:  w.ProjectID,
		OwnerID:     accountID,
		URL:         w.Origin,
		Frequency:   in.Frequency,
		TimeOfDay:   in.TimeOfDay,
		DayOfWeek:   in.DayOfWeek,
		DayOfMonth:  in.DayOfMonth,
		ScanOptions: options,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	model.NormalizeAnchors(def)
	if err := model.ValidateDefinition(def); err != nil {
		return nil, err
	}
	next, err := o.calculator.NextRun(def, now)
	if err != nil {
		return nil, err
	}
	def.NextRun = next

	if err := o.store.CreateDefinition(ctx, def); err != nil {
		return nil, err
	}
	o.logger.Info("scan definition created",
		logging.Field{Key: "definition_id", Value: def.ID},
		logging.Field{Key: "frequency", Value: string(def.Frequency)},
		logging.Field{Key: "next_run", Value: def.NextRun.Format(time.RFC3339)})
	return def, nil
}

// GetDefinition returns a definition owned by accountID.
func (o *Orchestrator) GetDefinition(ctx context.Context, accountID, id string) (*model.ScanDefinition, error) {
	def, err := o.store.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.OwnerID != accountID {
		return nil, ErrForbidden
	}
	return def, nil
}

func (o *Orchestrator) ListDefinitions(ctx context.Context, accountID string) ([]model.ScanDefinition, error) {
	return o.store.ListDefinitions(ctx, accountID)
}

// UpdateDefinition applies patch. nextRun is recomputed when the schedule
// changes, or when a definition is reactivated with a nextRun already in
// the past, so missed cycles are never fired. The write is conditional on
// the nextRun that was read; when the scheduler claims the definition in
// between, the edit is reapplied on top of the claim.
func (o *Orchestrator) UpdateDefinition(ctx context.Context, accountID, id string, patch DefinitionPatch) (*model.ScanDefinition, error) {
	for attempt := 1; ; attempt++ {
		def, err := o.GetDefinition(ctx, accountID, id)
		if err != nil {
			return nil, err
		}
		prevNextRun := def.NextRun
		now := o.clock.Now().UTC()

		if err := o.applyPatch(def, patch, now); err != nil {
			return nil, err
		}

		err = o.store.UpdateDefinition(ctx, def, prevNextRun)
		if errors.Is(err, store.ErrConflict) && attempt < maxUpdateAttempts {
			o.logger.Debug("definition changed during update, retrying",
				logging.Field{Key: "definition_id", Value: id},
				logging.Field{Key: "attempt", Value: attempt})
			continue
		}
		if err != nil {
			return nil, err
		}

		o.logger.Info("scan definition updated",
			logging.Field{Key: "definition_id", Value: def.ID},
			logging.Field{Key: "active", Value: def.IsActive},
			logging.Field{Key: "next_run", Value: def.NextRun.Format(time.RFC3339)})
		return def, nil
	}
}

func (o *Orchestrator) applyPatch(def *model.ScanDefinition, patch DefinitionPatch, now time.Time) error {
	wasActive := def.IsActive

	rescheduled := false
	if patch.Frequency != nil && *patch.Frequency != def.Frequency {
		def.Frequency = *patch.Frequency
		rescheduled = true
	}
	if patch.TimeOfDay != nil && *patch.TimeOfDay != def.TimeOfDay {
		def.TimeOfDay = *patch.TimeOfDay
		rescheduled = true
	}
	if patch.DayOfWeek != nil {
		def.DayOfWeek = patch.DayOfWeek
		rescheduled = true
	}
	if patch.DayOfMonth != nil {
		def.DayOfMonth = patch.DayOfMonth
		rescheduled = true
	}
	if patch.ScanOptions != nil {
		def.ScanOptions = patch.ScanOptions.Clone()
	}
	if patch.IsActive != nil {
		def.IsActive = *patch.IsActive
	}

	model.NormalizeAnchors(def)
	if err := model.ValidateDefinition(def); err != nil {
		return err
	}

	reactivated := def.IsActive && !wasActive && !def.NextRun.After(now)
	if rescheduled || reactivated {
		next, err := o.calculator.NextRun(def, now)
		if err != nil {
			return err
		}
		def.NextRun = next
	}
	def.UpdatedAt = now
	return nil
}

// DeactivateDefinition stops a definition from firing. Definitions are
// never deleted.
func (o *Orchestrator) DeactivateDefinition(ctx context.Context, accountID, id string) (*model.ScanDefinition, error) {
	inactive := false
	return o.UpdateDefinition(ctx, accountID, id, DefinitionPatch{IsActive: &inactive})
}
