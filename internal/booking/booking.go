// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package booking holds the court booking model, the eligibility filter that
// decides which bookings are ready for recording acquisition, and the client
// for the collaborator booking source.
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Booking is a reserved slot on a court.
type Booking struct {
	ID           int64  `json:"id"`
	CourtName    string `json:"court_name"`
	Sport        string `json:"sport,omitempty"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	CustomerName string `json:"customer_name"`
	HasRecording bool   `json:"has_recording"`
	CameraID     string `json:"camera_id,omitempty"`
}

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// ParseClock parses "HH:MM" (a trailing ":SS" is tolerated and ignored).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h*60 + m), nil
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// EndOfDay is the last representable minute, after every booking has ended.
const EndOfDay Clock = 23*60 + 59

// NowFor returns the processing "now" for date: the wall clock when date is
// today in loc, the end of the day for past dates and midnight for future
// dates.
func NowFor(date string, now time.Time, loc *time.Location) (Clock, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	switch {
	case day.Equal(today):
		return ClockOf(local), nil
	case day.Before(today):
		return EndOfDay, nil
	default:
		return 0, nil
	}
}

// Today renders the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}
