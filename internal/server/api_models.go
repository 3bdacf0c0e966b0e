package server

import "github.com/raysh454/comply/internal/model"

// SyncAccountRequest sets the subscription tier of an account.
type SyncAccountRequest struct {
	Tier model.Tier `json:"tier" example:"free"`
}

// CreateProjectRequest represents the payload required to create a project.
type CreateProjectRequest struct {
	Slug        string `json:"slug" example:"acme"`
	Name        string `json:"name" example:"ACME"`
	Description string `json:"description" example:"Public marketing sites"`
}

// CreateWebsiteRequest represents the payload for creating a website within a project.
type CreateWebsiteRequest struct {
	Slug   string `json:"slug" example:"www"`
	Name   string `json:"name" example:"Marketing site"`
	Origin string `json:"origin" example:"https://www.acme.example"`
}

// StartScanRequest optionally selects the categories of an on-demand scan.
// Omitted options default to GDPR, accessibility and security.
type StartScanRequest struct {
	ScanOptions *model.ScanOptions `json:"scan_options,omitempty"`
}

// CreateScheduleRequest creates a recurring scan definition.
type CreateScheduleRequest struct {
	WebsiteID   string             `json:"website_id" example:"3f1c2a9e-5b7d-4c1e-9a51-6e0f2b8d7c44"`
	Frequency   model.Frequency    `json:"frequency" example:"weekly"`
	TimeOfDay   string             `json:"time_of_day" example:"09:00"`
	DayOfWeek   *int               `json:"day_of_week,omitempty" example:"1"`
	DayOfMonth  *int               `json:"day_of_month,omitempty"`
	ScanOptions *model.ScanOptions `json:"scan_options,omitempty"`
}

// UpdateScheduleRequest changes a definition. Omitted fields are unchanged.
type UpdateScheduleRequest struct {
	Frequency   *model.Frequency   `json:"frequency,omitempty" example:"monthly"`
	TimeOfDay   *string            `json:"time_of_day,omitempty" example:"06:30"`
	DayOfWeek   *int               `json:"day_of_week,omitempty"`
	DayOfMonth  *int               `json:"day_of_month,omitempty" example:"31"`
	ScanOptions *model.ScanOptions `json:"scan_options,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty" example:"true"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
