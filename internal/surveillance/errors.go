// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrAuth                = errors.New("surveillance: login rejected")
	ErrSessionInvalid      = errors.New("surveillance: session no longer valid")
	ErrNotFound            = errors.New("surveillance: no matching recording")
	ErrTimeout             = errors.New("surveillance: copy did not finish in time")
	ErrCopy                = errors.New("surveillance: copy failed")
	ErrUpstreamUnavailable = errors.New("surveillance: host unreachable or transport failure")
	ErrUpstreamBadResponse = errors.New("surveillance: invalid response format or malformed data")
	ErrRequestFailed       = errors.New("surveillance: request rejected")
)

// Error codes with which the web API reports a dead or foreign session.
var sessionErrorCodes = map[int]struct{}{
	105: {}, // permission denied / session interrupted
	106: {}, // session timeout
	107: {}, // session interrupted by duplicate login
	119: {}, // SID not found
}

// IsSessionError reports whether code indicates the caller must log in again.
func IsSessionError(code int) bool {
	_, ok := sessionErrorCodes[code]
	return ok
}

// APIError wraps a sentinel with the call that produced it.
type APIError struct {
	Sentinel error
	API      string
	Method   string
	Code     int // web API error code, 0 when not applicable
	Status   int // HTTP status, 0 when no response was received
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s.%s: %v", e.API, e.Method, e.Sentinel)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, redact(e.Err.Error()))
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}

// CodeOf returns the web API error code carried by err, or 0.
func CodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

var secretParams = regexp.MustCompile(`(?i)(passwd|password|_sid|sid|account)=([^&\s"]+)`)

// redact strips credentials and session ids that net/url errors echo back.
func redact(s string) string {
	return secretParams.ReplaceAllString(s, "$1=[REDACTED]")
}
