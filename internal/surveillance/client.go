// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/courtrec/internal/platform/httpx"
	"github.com/ManuGH/courtrec/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	cgiAuth  = "auth.cgi"
	cgiEntry = "entry.cgi"

	maxErrorBody = 512
)

// Client speaks the session-based web API of the external video system.
// It is stateless with respect to sessions; see SessionManager.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	userAgent  string
	rnd        *rand.Rand
	mu         sync.Mutex
}

// Options configures the client behavior.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
	HTTPClient     *http.Client // optional, overrides Timeout
}

const (
	defaultTimeout        = 30 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 250 * time.Millisecond
	defaultMaxBackoff     = 4 * time.Second
	defaultRateLimit      = 5
	defaultRateLimitBurst = 5
)

// NewClient creates a client for baseURL (scheme://host:port).
func NewClient(baseURL string, opts Options) *Client {
	opts = normalizeOptions(opts)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpx.New(httpx.Options{Timeout: opts.Timeout, ResponseHeaderTimeout: opts.Timeout})
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
		userAgent:  opts.UserAgent,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "courtrec"
	}
	return opts
}

// apiRequest names one web API call.
type apiRequest struct {
	CGI     string
	API     string
	Method  string
	Version int
	Params  url.Values
	// NoRetry sends the request once. Set for calls that are not idempotent.
	NoRetry bool
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code int `json:"code"`
	} `json:"error"`
}

// call performs req and decodes the envelope's data into v (v may be nil).
// A success=false envelope yields ErrSessionInvalid for session codes and
// ErrRequestFailed otherwise; callers refine the latter.
func (c *Client) call(ctx context.Context, req apiRequest, v any) error {
	q := url.Values{}
	for k, vals := range req.Params {
		q[k] = vals
	}
	q.Set("api", req.API)
	q.Set("method", req.Method)
	q.Set("version", strconv.Itoa(req.Version))

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return &APIError{Sentinel: ErrUpstreamUnavailable, API: req.API, Method: req.Method, Err: fmt.Errorf("invalid base URL: %w", err)}
	}
	u.Path = "/webapi/" + req.CGI
	u.RawQuery = q.Encode()

	ctx, span := telemetry.Tracer("courtrec.surveillance").Start(ctx, "courtrec.surveillance.call", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(telemetry.SurveillanceAttributes(req.API, req.Method, 0)...)
	defer span.End()

	body, status, err := c.doGet(ctx, req, u.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return &APIError{Sentinel: ErrUpstreamUnavailable, API: req.API, Method: req.Method, Status: status, Err: err}
	}
	if status != http.StatusOK {
		span.SetStatus(codes.Error, http.StatusText(status))
		sentinel := ErrRequestFailed
		if status >= http.StatusInternalServerError {
			sentinel = ErrUpstreamUnavailable
		}
		return &APIError{Sentinel: sentinel, API: req.API, Method: req.Method, Status: status, Err: bodyError(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		span.SetStatus(codes.Error, "decode")
		return &APIError{Sentinel: ErrUpstreamBadResponse, API: req.API, Method: req.Method, Status: status, Err: err}
	}
	if !env.Success {
		code := 0
		if env.Error != nil {
			code = env.Error.Code
		}
		recordAPIFailure(req.API, code)
		span.SetAttributes(attribute.Int(telemetry.SurveillanceCodeKey, code))
		span.SetStatus(codes.Error, "api error")
		sentinel := ErrRequestFailed
		if IsSessionError(code) {
			sentinel = ErrSessionInvalid
		}
		return &APIError{Sentinel: sentinel, API: req.API, Method: req.Method, Code: code, Status: status}
	}

	span.SetStatus(codes.Ok, "")
	if v == nil || len(bytes.TrimSpace(env.Data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &APIError{Sentinel: ErrUpstreamBadResponse, API: req.API, Method: req.Method, Status: status, Err: err}
	}
	return nil
}

func bodyError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if len(trimmed) > maxErrorBody {
		trimmed = trimmed[:maxErrorBody]
	}
	return fmt.Errorf("%s", trimmed)
}

// doGet issues the request with rate limiting and bounded retries on transport
// errors and 5xx responses. It returns the fully read body.
func (c *Client) doGet(ctx context.Context, req apiRequest, rawURL string) ([]byte, int, error) {
	tracer := telemetry.Tracer("courtrec.surveillance")
	route := "/webapi/" + req.CGI

	maxAttempts := c.maxRetries + 1
	if req.NoRetry {
		maxAttempts = 1
	}
	var lastErr error
	var lastStatus int
	var lastBody []byte
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, attemptSpan := tracer.Start(ctx, "courtrec.surveillance.attempt", trace.WithSpanKind(trace.SpanKindClient))
		attemptSpan.SetAttributes(
			attribute.Int("attempt", attempt),
			attribute.Bool("retry", attempt > 1),
		)

		if c.limiter != nil {
			if err := c.limiter.Wait(attemptCtx); err != nil {
				attemptSpan.RecordError(err)
				attemptSpan.End()
				return nil, 0, err
			}
		}

		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			attemptSpan.RecordError(err)
			attemptSpan.End()
			return nil, 0, err
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("User-Agent", c.userAgent)
		otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(httpReq.Header))

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		status := 0
		var body []byte
		if resp != nil {
			status = resp.StatusCode
			body, err = readBody(resp, err)
		}
		duration := time.Since(start)

		retry := attempt < maxAttempts && shouldRetry(status, err)
		recordAttemptMetrics(req.API, req.Method, status, duration, err, retry)
		attemptSpan.SetAttributes(telemetry.HTTPAttributes(http.MethodGet, route, route, status)...)
		if err != nil {
			attemptSpan.RecordError(err)
			attemptSpan.SetStatus(codes.Error, "request failed")
		}
		attemptSpan.End()

		if err == nil && status < http.StatusInternalServerError {
			return body, status, nil
		}

		lastErr, lastStatus, lastBody = err, status, body
		if !retry {
			break
		}
		if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
			return nil, 0, err
		}
	}

	if lastErr != nil {
		return nil, lastStatus, lastErr
	}
	return lastBody, lastStatus, nil
}

func readBody(resp *http.Response, doErr error) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	if doErr != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, doErr
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		return true
	}
	return status >= http.StatusInternalServerError
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63n(n)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
