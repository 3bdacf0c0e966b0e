package model

import (
	"fmt"
	"time"
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// QuotaExceededError reports a denied scan or project creation.
type QuotaExceededError struct {
	Tier     Tier
	Resource string
	Limit    int
	Reason   string
}

func (e *QuotaExceededError) Error() string {
	return e.Reason
}

// InvalidStateError reports a scan transition that is not allowed from the
// record's current status.
type InvalidStateError struct {
	ScanID string
	From   ScanStatus
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("scan %s: cannot %s from status %q", e.ScanID, e.Op, e.From)
}

// DispatchError reports that a scan could not be handed to the analyzer.
// Callers leave nextRun and record state unchanged so the work is retried.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return "dispatch: " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// TimeoutError reports a scan that exceeded its deadline.
type TimeoutError struct {
	ScanID string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scan %s timed out after %s", e.ScanID, e.After)
}
