package model

import "time"

// Frequency is the recurrence period of a ScanDefinition.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ScanDefinition is a recurring scan configuration for one URL.
// Definitions are soft-disabled through IsActive and never deleted.
type ScanDefinition struct {
	ID         string `json:"id"`
	URLRef     string `json:"url_ref"`
	ProjectRef string `json:"project_ref"`
	OwnerID    string `json:"owner_id"`

	// URL is the target copied into every ScanRecord the definition fires.
	URL string `json:"url"`

	Frequency Frequency `json:"frequency"`

	// TimeOfDay is "HH:MM" in the scheduler's reference timezone.
	TimeOfDay string `json:"time_of_day"`

	// DayOfWeek (0=Sunday) is set iff Frequency is weekly.
	DayOfWeek *int `json:"day_of_week,omitempty"`

	// DayOfMonth (1-31) is set iff Frequency is monthly.
	DayOfMonth *int `json:"day_of_month,omitempty"`

	ScanOptions ScanOptions `json:"scan_options"`
	IsActive    bool        `json:"is_active"`
	LastRun     *time.Time  `json:"last_run,omitempty"`
	NextRun     time.Time   `json:"next_run"`

	// LastSkipReason explains the latest firing the quota guard denied.
	LastSkipReason string     `json:"last_skip_reason,omitempty"`
	LastSkippedAt  *time.Time `json:"last_skipped_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeAnchors clears the day anchor that does not belong to the
// definition's frequency.
func NormalizeAnchors(def *ScanDefinition) {
	switch def.Frequency {
	case FrequencyDaily:
		def.DayOfWeek = nil
		def.DayOfMonth = nil
	case FrequencyWeekly:
		def.DayOfMonth = nil
	case FrequencyMonthly:
		def.DayOfWeek = nil
	}
}
