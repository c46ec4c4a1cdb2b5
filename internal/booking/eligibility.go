// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package booking

// Decision explains why a booking was or was not selected.
type Decision string

const (
	DecisionEligible     Decision = "eligible"
	DecisionNotEnded     Decision = "not_ended"
	DecisionHasRecording Decision = "has_recording"
	DecisionInvalidTime  Decision = "invalid_time"
)

// Classify decides a single booking against now. A booking that already has
// a recording is never eligible, whatever its end time.
func Classify(b Booking, now Clock) Decision {
	if b.HasRecording {
		return DecisionHasRecording
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return DecisionInvalidTime
	}
	if end > now {
		return DecisionNotEnded
	}
	return DecisionEligible
}

// SelectEligible returns the bookings without a recording whose end time is
// at or before now, in input order. The input is not modified.
func SelectEligible(bookings []Booking, now Clock) []Booking {
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if Classify(b, now) == DecisionEligible {
			out = append(out, b)
		}
	}
	return out
}
