// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/platform/httpx"
)

// ErrSourceUnavailable means the booking source could not be queried; the
// run has nothing to work on.
var ErrSourceUnavailable = errors.New("booking source unavailable")

// Lister returns the bookings of one calendar date.
type Lister interface {
	BookingsForDate(ctx context.Context, date string) ([]Booking, error)
}

// Credentials is the static service credential for collaborator calls.
type Credentials struct {
	Username string
	Password string
}

// SourceClient queries GET /bookings-for-date on the collaborator service.
type SourceClient struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// NewSourceClient creates a client for baseURL. A nil httpClient selects a
// traced client with the given timeout.
func NewSourceClient(baseURL string, creds Credentials, timeout time.Duration, httpClient *http.Client) *SourceClient {
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Timeout: timeout, ResponseHeaderTimeout: timeout, Operation: "booking-source"})
	}
	return &SourceClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		creds:      creds,
		httpClient: httpClient,
	}
}

type bookingsResponse struct {
	Bookings []Booking `json:"bookings"`
}

// BookingsForDate fetches the bookings for date (YYYY-MM-DD). Every failure
// wraps ErrSourceUnavailable.
func (c *SourceClient) BookingsForDate(ctx context.Context, date string) ([]Booking, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrSourceUnavailable, date)
	}

	u := c.baseURL + "/bookings-for-date?" + url.Values{"date": {date}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var body bookingsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSourceUnavailable, err)
	}
	for i := range body.Bookings {
		if body.Bookings[i].Date == "" {
			body.Bookings[i].Date = date
		}
	}

	logger := xglog.WithComponentFromContext(ctx, "booking")
	logger.Debug().
		Str(xglog.FieldDate, date).
		Int("count", len(body.Bookings)).
		Msg("fetched bookings")
	return body.Bookings, nil
}
