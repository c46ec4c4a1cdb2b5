// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/courtrec/internal/booking"
	"github.com/ManuGH/courtrec/internal/platform/httpx"
)

// Reasons reported for failed dispatches that never got an answer.
const (
	ReasonUnavailable     = "unavailable"
	ReasonDispatchTimeout = "dispatch_timeout"
	ReasonBadResponse     = "bad_response"
	ReasonCancelled       = "cancelled"
)

// DownloadError is a failed auto-download as reported by the collaborator.
type DownloadError struct {
	BookingID int64
	Reason    string
	Message   string
	Status    int
	Err       error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("auto-download booking %d: %s", e.BookingID, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error { return e.Err }

// HTTPDownloader calls POST /videos/auto-download on the collaborator service.
type HTTPDownloader struct {
	baseURL    string
	creds      booking.Credentials
	httpClient *http.Client
}

// NewHTTPDownloader creates a downloader. The timeout bounds one whole
// auto-download, which includes a blocking copy on the video system.
func NewHTTPDownloader(baseURL string, creds booking.Credentials, timeout time.Duration, httpClient *http.Client) *HTTPDownloader {
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Timeout: timeout, ResponseHeaderTimeout: timeout, Operation: "auto-download"})
	}
	return &HTTPDownloader{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		creds:      creds,
		httpClient: httpClient,
	}
}

type autoDownloadRequest struct {
	BookingID int64 `json:"booking_id"`
}

type autoDownloadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
	Error    string `json:"error"`
	Reason   string `json:"reason"`
}

// AutoDownload asks the collaborator to acquire the recording for bookingID.
func (d *HTTPDownloader) AutoDownload(ctx context.Context, bookingID int64) (Result, error) {
	payload, err := json.Marshal(autoDownloadRequest{BookingID: bookingID})
	if err != nil {
		return Result{}, fmt.Errorf("encode auto-download request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/videos/auto-download", bytes.NewReader(payload))
	if err != nil {
		return Result{}, &DownloadError{BookingID: bookingID, Reason: ReasonUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if d.creds.Username != "" {
		req.SetBasicAuth(d.creds.Username, d.creds.Password)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		reason := ReasonUnavailable
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = ReasonDispatchTimeout
		case errors.Is(err, context.Canceled):
			reason = ReasonCancelled
		}
		return Result{}, &DownloadError{BookingID: bookingID, Reason: reason, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var body autoDownloadResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)
	if decodeErr != nil {
		reason := ReasonBadResponse
		if resp.StatusCode >= http.StatusInternalServerError {
			reason = ReasonUnavailable
		}
		return Result{}, &DownloadError{BookingID: bookingID, Reason: reason, Status: resp.StatusCode, Err: decodeErr}
	}
	if !body.Success || resp.StatusCode/100 != 2 {
		reason := body.Reason
		if reason == "" {
			reason = ReasonBadResponse
		}
		return Result{}, &DownloadError{BookingID: bookingID, Reason: reason, Message: body.Error, Status: resp.StatusCode}
	}
	return Result{Filename: body.Filename, FileSize: body.FileSize}, nil
}

// reasonOf extracts the failure reason of a dispatch error.
func reasonOf(err error) string {
	var dErr *DownloadError
	if errors.As(err, &dErr) {
		return dErr.Reason
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDispatchTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	}
	return "internal"
}
