package model

import "time"

// ScanStatus is the lifecycle state of a ScanRecord. Transitions only move
// forward: pending -> scanning -> completed|failed, or pending -> failed.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanScanning  ScanStatus = "scanning"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// Category names one analysis area of a scan.
type Category string

const (
	CategoryGDPR          Category = "gdpr"
	CategoryAccessibility Category = "accessibility"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategorySEO           Category = "seo"
)

// AllCategories lists every category in aggregation order.
var AllCategories = []Category{
	CategoryGDPR,
	CategoryAccessibility,
	CategorySecurity,
	CategoryPerformance,
	CategorySEO,
}

// ScanOptions selects the categories a scan runs. A snapshot of it is copied
// into every ScanRecord so later edits to a definition never alter history.
type ScanOptions struct {
	GDPR          bool     `json:"gdpr"`
	Accessibility bool     `json:"accessibility"`
	Security      bool     `json:"security"`
	Performance   bool     `json:"performance"`
	SEO           bool     `json:"seo"`
	CustomRules   []string `json:"custom_rules,omitempty"`
}

// DefaultScanOptions returns the options used when a caller supplies none.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		GDPR:          true,
		Accessibility: true,
		Security:      true,
	}
}

// Enabled reports whether category c is selected.
func (o ScanOptions) Enabled(c Category) bool {
	switch c {
	case CategoryGDPR:
		return o.GDPR
	case CategoryAccessibility:
		return o.Accessibility
	case CategorySecurity:
		return o.Security
	case CategoryPerformance:
		return o.Performance
	case CategorySEO:
		return o.SEO
	}
	return false
}

// Categories returns the selected categories in aggregation order.
func (o ScanOptions) Categories() []Category {
	var out []Category
	for _, c := range AllCategories {
		if o.Enabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of o.
func (o ScanOptions) Clone() ScanOptions {
	cp := o
	if o.CustomRules != nil {
		cp.CustomRules = append([]string(nil), o.CustomRules...)
	}
	return cp
}

// ScanRecord is one execution of a scan against a URL.
type ScanRecord struct {
	ID         string `json:"id"`
	URLRef     string `json:"url_ref"`
	ProjectRef string `json:"project_ref"`

	// OwnerID is the account whose quota the scan is charged to.
	OwnerID string `json:"owner_id"`

	// DefinitionID is set when the scan was fired by a recurring definition.
	DefinitionID string `json:"definition_id,omitempty"`

	// URL is the page the analyzer is pointed at.
	URL string `json:"url"`

	Status      ScanStatus  `json:"status"`
	ScanOptions ScanOptions `json:"scan_options"`
	Results     ScanResults `json:"results"`

	// ScanDurationMs is set only on a terminal transition.
	ScanDurationMs int64 `json:"scan_duration_ms,omitempty"`

	// ErrorMessage is present iff Status is failed.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
