// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingHandler is returned when an App is created without an HTTP handler.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrServerStartFailed is returned when the listener cannot be opened.
	ErrServerStartFailed = errors.New("server failed to start")
)
