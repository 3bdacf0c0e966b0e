package dispatch

import (
	"time"

	"github.com/raysh454/comply/internal/model"
)

type EventType string

const (
	EventStatus EventType = "status"
	EventResult EventType = "result"
)

// Event reports a scan record transition.
type Event struct {
	ScanID       string           `json:"scan_id"`
	URLRef       string           `json:"url_ref"`
	OwnerID      string           `json:"owner_id"`
	DefinitionID string           `json:"definition_id,omitempty"`
	Type         EventType        `json:"type"`
	Status       model.ScanStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	Score        int              `json:"score,omitempty"`
	At           time.Time        `json:"at"`
}

// NewEvent describes the current state of rec.
func NewEvent(rec *model.ScanRecord) Event {
	ev := Event{
		ScanID:       rec.ID,
		URLRef:       rec.URLRef,
		OwnerID:      rec.OwnerID,
		DefinitionID: rec.DefinitionID,
		Type:         EventStatus,
		Status:       rec.Status,
		Error:        rec.ErrorMessage,
		At:           rec.CreatedAt,
	}
	if rec.StartedAt != nil {
		ev.At = *rec.StartedAt
	}
	if rec.Status.Terminal() {
		ev.Type = EventResult
		ev.Score = rec.Results.Overall.Score
		if rec.FinishedAt != nil {
			ev.At = *rec.FinishedAt
		}
	}
	return ev
}
