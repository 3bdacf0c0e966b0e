// Package scan implements the ScanRecord state machine:
//
//	pending -> scanning -> completed
//	pending -> scanning -> failed
//	pending -> failed
//
// Transitions operate on records passed in by the caller. Persisting a
// transition, and charging the owner's usage for a terminal one, is the
// caller's job.
package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/comply/internal/model"
)

// NewParams describes a scan about to be created.
type NewParams struct {
	URLRef       string
	ProjectRef   string
	OwnerID      string
	DefinitionID string
	URL          string
	Options      model.ScanOptions
	Now          time.Time
}

// New returns a pending record carrying a snapshot of p.Options.
func New(p NewParams) (*model.ScanRecord, error) {
	if err := model.ValidateOptions(p.Options); err != nil {
		return nil, err
	}
	if p.URLRef == "" {
		return nil, &model.ValidationError{Field: "url_ref", Reason: "required"}
	}
	if p.OwnerID == "" {
		return nil, &model.ValidationError{Field: "owner_id", Reason: "required"}
	}

	return &model.ScanRecord{
		ID:           uuid.New().String(),
		URLRef:       p.URLRef,
		ProjectRef:   p.ProjectRef,
		OwnerID:      p.OwnerID,
		DefinitionID: p.DefinitionID,
		URL:          p.URL,
		Status:       model.ScanPending,
		ScanOptions:  p.Options.Clone(),
		Results:      model.DefaultScanResults(),
		CreatedAt:    p.Now.UTC(),
	}, nil
}

// Begin moves a pending record to scanning.
func Begin(rec *model.ScanRecord, now time.Time) error {
	if rec.Status != model.ScanPending {
		return &model.InvalidStateError{ScanID: rec.ID, From: rec.Status, Op: "begin"}
	}
	started := now.UTC()
	rec.Status = model.ScanScanning
	rec.StartedAt = &started
	return nil
}

// Complete moves a scanning record to completed. Only the categories the
// record requested are copied from results; the aggregate is computed over
// those categories.
func Complete(rec *model.ScanRecord, results *model.CategoryResults, durationMs int64, now time.Time) error {
	if rec.Status != model.ScanScanning {
		return &model.InvalidStateError{ScanID: rec.ID, From: rec.Status, Op: "complete"}
	}
	if results == nil {
		return &model.ValidationError{Field: "results", Reason: "required"}
	}
	if err := validateScores(rec.ScanOptions, results); err != nil {
		return err
	}

	out := model.DefaultScanResults()
	opts := rec.ScanOptions
	if opts.GDPR {
		out.GDPR = results.GDPR
		out.GDPR.Issues = nonNil(out.GDPR.Issues)
		out.GDPR.Recommendations = nonNil(out.GDPR.Recommendations)
		out.GDPR.ComplianceLevel = GDPRLevel(out.GDPR.Score)
	}
	if opts.Accessibility {
		out.Accessibility = results.Accessibility
		out.Accessibility.Issues = nonNil(out.Accessibility.Issues)
		out.Accessibility.Recommendations = nonNil(out.Accessibility.Recommendations)
		out.Accessibility.WCAGLevel = WCAGLevel(out.Accessibility.Score)
	}
	if opts.Security {
		out.Security = results.Security
		out.Security.Issues = nonNil(out.Security.Issues)
		out.Security.Recommendations = nonNil(out.Security.Recommendations)
		out.Security.SecurityLevel = SecurityLevel(out.Security.Score)
	}
	if opts.Performance {
		out.Performance = results.Performance
		out.Performance.Issues = nonNil(out.Performance.Issues)
		out.Performance.Recommendations = nonNil(out.Performance.Recommendations)
		out.Performance.PerformanceGrade = Grade(out.Performance.Score)
	}
	if opts.SEO {
		out.SEO = results.SEO
		out.SEO.Issues = nonNil(out.SEO.Issues)
		out.SEO.Recommendations = nonNil(out.SEO.Recommendations)
		out.SEO.SEOScore = out.SEO.Score
	}
	out.TechnicalDetails = results.TechnicalDetails
	out.Overall = Aggregate(opts, &out)

	finished := now.UTC()
	rec.Results = out
	rec.Status = model.ScanCompleted
	rec.ScanDurationMs = durationMs
	rec.FinishedAt = &finished
	rec.ErrorMessage = ""
	return nil
}

// Fail moves a pending or scanning record to failed.
func Fail(rec *model.ScanRecord, message string, durationMs int64, now time.Time) error {
	if rec.Status.Terminal() {
		return &model.InvalidStateError{ScanID: rec.ID, From: rec.Status, Op: "fail"}
	}
	if message == "" {
		message = "scan failed"
	}
	finished := now.UTC()
	rec.Status = model.ScanFailed
	rec.ErrorMessage = message
	rec.ScanDurationMs = durationMs
	rec.FinishedAt = &finished
	return nil
}

// Elapsed returns the milliseconds between the record's start (or creation,
// when it never started) and now.
func Elapsed(rec *model.ScanRecord, now time.Time) int64 {
	from := rec.CreatedAt
	if rec.StartedAt != nil {
		from = *rec.StartedAt
	}
	ms := now.Sub(from).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

func validateScores(opts model.ScanOptions, r *model.CategoryResults) error {
	scores := map[model.Category]int{
		model.CategoryGDPR:          r.GDPR.Score,
		model.CategoryAccessibility: r.Accessibility.Score,
		model.CategorySecurity:      r.Security.Score,
		model.CategoryPerformance:   r.Performance.Score,
		model.CategorySEO:           r.SEO.Score,
	}
	for _, c := range opts.Categories() {
		if s := scores[c]; s < 0 || s > 100 {
			return &model.ValidationError{Field: string(c) + ".score", Reason: fmt.Sprintf("%d is outside 0-100", s)}
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
