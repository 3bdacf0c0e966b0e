// Package recurrence computes when a recurring scan definition fires next.
package recurrence

import (
	"time"

	"github.com/raysh454/comply/internal/model"
)

// Calculator evaluates definitions against wall-clock dates in Location.
// A nil Location means UTC.
type Calculator struct {
	Location *time.Location
}

// New returns a Calculator for loc.
func New(loc *time.Location) Calculator {
	return Calculator{Location: loc}
}

func (c Calculator) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// NextRun returns the earliest occurrence of def strictly after now.
// The result is expressed in UTC.
func (c Calculator) NextRun(def *model.ScanDefinition, now time.Time) (time.Time, error) {
	hour, minute, err := model.ParseTimeOfDay(def.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	loc := c.location()
	local := now.In(loc)
	y, m, d := local.Date()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, hour, minute, 0, 0, loc)
	}

	var next time.Time
	switch def.Frequency {
	case model.FrequencyDaily:
		next = at(y, m, d)
		if !next.After(now) {
			next = at(y, m, d+1)
		}

	case model.FrequencyWeekly:
		if def.DayOfWeek == nil || *def.DayOfWeek < 0 || *def.DayOfWeek > 6 {
			return time.Time{}, &model.ValidationError{Field: "day_of_week", Reason: "required for weekly definitions"}
		}
		offset := (*def.DayOfWeek - int(local.Weekday()) + 7) % 7
		if offset == 0 && !at(y, m, d).After(now) {
			offset = 7
		}
		next = at(y, m, d+offset)

	case model.FrequencyMonthly:
		if def.DayOfMonth == nil || *def.DayOfMonth < 1 || *def.DayOfMonth > 31 {
			return time.Time{}, &model.ValidationError{Field: "day_of_month", Reason: "required for monthly definitions"}
		}
		next = at(y, m, clampDay(y, m, *def.DayOfMonth))
		if !next.After(now) {
			ny, nm, _ := time.Date(y, m+1, 1, 0, 0, 0, 0, loc).Date()
			next = at(ny, nm, clampDay(ny, nm, *def.DayOfMonth))
		}

	default:
		return time.Time{}, &model.ValidationError{Field: "frequency", Reason: "unknown frequency " + string(def.Frequency)}
	}

	// A wall-clock time inside a DST gap can normalize to an instant at or
	// before now. Step one period forward in that case.
	for i := 0; !next.After(now) && i < 3; i++ {
		switch def.Frequency {
		case model.FrequencyDaily:
			next = next.AddDate(0, 0, 1)
		case model.FrequencyWeekly:
			next = next.AddDate(0, 0, 7)
		case model.FrequencyMonthly:
			ny, nm, _ := time.Date(next.Year(), next.Month()+1, 1, 0, 0, 0, 0, loc).Date()
			next = at(ny, nm, clampDay(ny, nm, *def.DayOfMonth))
		}
	}

	return next.UTC(), nil
}

// clampDay limits day to the number of days in the given month.
func clampDay(y int, m time.Month, day int) int {
	last := daysIn(y, m)
	if day > last {
		return last
	}
	return day
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
