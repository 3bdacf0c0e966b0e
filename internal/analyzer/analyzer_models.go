package analyzer

import (
	"time"

	"github.com/raysh454/comply/internal/model"
)

// Config configures the HTTP analyzer client. It is filled from app.Config
// without creating an import cycle.
type Config struct {
	// BaseURL is the root of the analyzer service; requests go to
	// {BaseURL}/analyze.
	BaseURL string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retries is the number of extra attempts after a transient failure.
	Retries int

	// Backoff is the base delay between attempts. Each retry doubles it and
	// adds up to 50% jitter.
	Backoff time.Duration
}

// AnalyzeRequest is the body POSTed to the analyzer service.
type AnalyzeRequest struct {
	URL        string           `json:"url"`
	Categories []model.Category `json:"categories"`
}

// AnalyzeResponse is the analyzer service reply. Only the requested
// categories are meaningful.
type AnalyzeResponse struct {
	Results model.CategoryResults `json:"results"`
	Error   string                `json:"error,omitempty"`
}
