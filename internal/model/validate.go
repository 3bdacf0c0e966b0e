package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var timeOfDayRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseTimeOfDay splits an "HH:MM" string into hour and minute.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if !timeOfDayRe.MatchString(s) {
		return 0, 0, &ValidationError{Field: "time_of_day", Reason: fmt.Sprintf("%q is not HH:MM", s)}
	}
	parts := strings.SplitN(s, ":", 2)
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute, nil
}

// ValidateOptions rejects an option set that selects no category.
func ValidateOptions(o ScanOptions) error {
	if len(o.Categories()) == 0 {
		return &ValidationError{Field: "scan_options", Reason: "at least one category must be selected"}
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("%q is not an http(s) URL", raw)}
	}
	return nil
}

// ValidateDefinition checks the fields a recurring definition needs before
// its next run can be computed.
func ValidateDefinition(def *ScanDefinition) error {
	if def.URLRef == "" {
		return &ValidationError{Field: "url_ref", Reason: "required"}
	}
	if def.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if _, _, err := ParseTimeOfDay(def.TimeOfDay); err != nil {
		return err
	}

	switch def.Frequency {
	case FrequencyDaily:
		if def.DayOfWeek != nil || def.DayOfMonth != nil {
			return &ValidationError{Field: "frequency", Reason: "daily definitions take no day anchor"}
		}
	case FrequencyWeekly:
		if def.DayOfWeek == nil {
			return &ValidationError{Field: "day_of_week", Reason: "required for weekly definitions"}
		}
		if *def.DayOfWeek < 0 || *def.DayOfWeek > 6 {
			return &ValidationError{Field: "day_of_week", Reason: "must be between 0 and 6"}
		}
		if def.DayOfMonth != nil {
			return &ValidationError{Field: "day_of_month", Reason: "not allowed for weekly definitions"}
		}
	case FrequencyMonthly:
		if def.DayOfMonth == nil {
			return &ValidationError{Field: "day_of_month", Reason: "required for monthly definitions"}
		}
		if *def.DayOfMonth < 1 || *def.DayOfMonth > 31 {
			return &ValidationError{Field: "day_of_month", Reason: "must be between 1 and 31"}
		}
		if def.DayOfWeek != nil {
			return &ValidationError{Field: "day_of_week", Reason: "not allowed for monthly definitions"}
		}
	default:
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", def.Frequency)}
	}

	return ValidateOptions(def.ScanOptions)
}
