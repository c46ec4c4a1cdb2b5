// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"context"
	"time"
)

// RunState is the terminal state of one run.
type RunState string

const (
	StateCompletedNoWork      RunState = "completed_no_work"
	StateCompletedWithResults RunState = "completed_with_results"
	StateFailedFatal          RunState = "failed_fatal"
)

// OutcomeStatus is the per-booking dispatch result.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// RunSummary is the persisted report for one pass of the driver.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Date       string    `json:"date"`
	Trigger    string    `json:"trigger"` // "scheduled" | "manual"
	State      RunState  `json:"state"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMs int64     `json:"durationMs"`
	Now        string    `json:"now,omitempty"` // HH:MM used by the filter

	Seen                int `json:"seen"`
	SkippedNotEnded     int `json:"skippedNotEnded"`
	SkippedHasRecording int `json:"skippedHasRecording"`
	SkippedInvalid      int `json:"skippedInvalid"`
	Attempted           int `json:"attempted"`
	Succeeded           int `json:"succeeded"`
	Failed              int `json:"failed"`

	// Interrupted is set when the context ended before the queue was drained.
	Interrupted bool      `json:"interrupted,omitempty"`
	Error       string    `json:"error,omitempty"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
}

// Outcome records one dispatched booking.
type Outcome struct {
	BookingID  int64         `json:"bookingId"`
	Court      string        `json:"court"`
	Customer   string        `json:"customer"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Filename   string        `json:"filename,omitempty"`
	FileSize   int64         `json:"fileSize,omitempty"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"durationMs"`
}

// Result is what a successful auto-download reports.
type Result struct {
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
}

// Downloader performs locate, copy and persist for one booking.
type Downloader interface {
	AutoDownload(ctx context.Context, bookingID int64) (Result, error)
}

// Pacer spaces out consecutive dispatches.
type Pacer interface {
	Wait(ctx context.Context) error
}
