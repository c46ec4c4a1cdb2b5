// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID     = "run_id"
	FieldRequestID = "request_id"
	FieldBookingID = "booking_id"
	FieldTaskID    = "task_id"
	FieldCameraID  = "camera_id"

	// Booking context
	FieldCourt    = "court"
	FieldCustomer = "customer"
	FieldDate     = "date"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldSession   = "session"
	FieldAttempt   = "attempt"
	FieldReason    = "reason"

	// Path fields
	FieldSourcePath = "source_path"
	FieldDestPath   = "dest_path"
)
