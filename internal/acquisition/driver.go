// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package acquisition runs one pass of the recording pipeline: fetch the
// day's bookings, select those that ended without a recording and dispatch
// each to the auto-download operation, one at a time.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/courtrec/internal/booking"
	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrInvalidDate rejects a run date that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid run date")

const defaultDispatchTimeout = 10 * time.Minute

// Deps holds the collaborators of a Driver.
type Deps struct {
	Source     booking.Lister
	Downloader Downloader
	Pacer      Pacer
	Location   *time.Location
	Clock      func() time.Time

	// DispatchTimeout bounds a single auto-download.
	DispatchTimeout time.Duration
	// SummaryPath, when set, receives the JSON summary of every run.
	SummaryPath string
}

// Driver executes acquisition runs. It is not safe for concurrent Run calls;
// overlapping runs are prevented by the scheduler.
type Driver struct {
	deps Deps
}

// NewDriver fills defaults for missing optional dependencies.
func NewDriver(deps Deps) *Driver {
	if deps.Pacer == nil {
		deps.Pacer = NoPacing{}
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.DispatchTimeout <= 0 {
		deps.DispatchTimeout = defaultDispatchTimeout
	}
	return &Driver{deps: deps}
}

// Today is the calendar date of the driver's clock in its location.
func (d *Driver) Today() string {
	return booking.Today(d.deps.Clock(), d.deps.Location)
}

// Run performs one pass for date; an empty date means today. Per-booking
// failures are recorded in the summary and never abort the queue. A non-nil
// error is returned only when the bookings could not be fetched, together
// with a summary in state FailedFatal.
func (d *Driver) Run(ctx context.Context, date, trigger string) (*RunSummary, error) {
	if date == "" {
		date = d.Today()
	}
	if trigger == "" {
		trigger = "manual"
	}

	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithComponentFromContext(ctx, "acquisition").With().Str(xglog.FieldDate, date).Logger()

	ctx, span := telemetry.Tracer("courtrec.acquisition").Start(ctx, "courtrec.acquisition.run")
	span.SetAttributes(attribute.String(telemetry.RunIDKey, runID))
	defer span.End()

	summary := &RunSummary{
		RunID:     runID,
		Date:      date,
		Trigger:   trigger,
		StartedAt: d.deps.Clock(),
	}

	now, err := booking.NowFor(date, summary.StartedAt, d.deps.Location)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidDate, err)
		return d.fail(ctx, logger, summary, err), err
	}
	summary.Now = now.String()

	bookings, err := d.deps.Source.BookingsForDate(ctx, date)
	if err != nil {
		if !errors.Is(err, booking.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", booking.ErrSourceUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking source unavailable")
		return d.fail(ctx, logger, summary, err), err
	}

	eligible := d.filter(logger, summary, bookings, now)

	for _, b := range eligible {
		if err := d.deps.Pacer.Wait(ctx); err != nil {
			summary.Interrupted = true
			break
		}
		outcome := d.dispatch(ctx, b)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Attempted++
		if outcome.Status == OutcomeSucceeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	if len(eligible) == 0 {
		summary.State = StateCompletedNoWork
	} else {
		summary.State = StateCompletedWithResults
	}
	d.finish(ctx, logger, summary)
	span.SetAttributes(attribute.String(telemetry.RunStateKey, string(summary.State)))
	return summary, nil
}

func (d *Driver) filter(logger zerolog.Logger, summary *RunSummary, bookings []booking.Booking, now booking.Clock) []booking.Booking {
	summary.Seen = len(bookings)
	for _, b := range bookings {
		decision := booking.Classify(b, now)
		bookingsSeen.WithLabelValues(string(decision)).Inc()
		switch decision {
		case booking.DecisionNotEnded:
			summary.SkippedNotEnded++
		case booking.DecisionHasRecording:
			summary.SkippedHasRecording++
		case booking.DecisionInvalidTime:
			summary.SkippedInvalid++
			logger.Warn().
				Int64(xglog.FieldBookingID, b.ID).
				Str(xglog.FieldCourt, b.CourtName).
				Str("end_time", b.EndTime).
				Msg("booking has an unparsable end time, skipped")
		}
	}
	return booking.SelectEligible(bookings, now)
}

func (d *Driver) dispatch(ctx context.Context, b booking.Booking) Outcome {
	dctx, cancel := context.WithTimeout(ctx, d.deps.DispatchTimeout)
	defer cancel()

	dctx, span := telemetry.Tracer("courtrec.acquisition").Start(dctx, "courtrec.acquisition.dispatch")
	span.SetAttributes(telemetry.BookingAttributes(b.ID, b.CameraID)...)
	defer span.End()

	start := time.Now()
	res, err := d.deps.Downloader.AutoDownload(dctx, b.ID)
	elapsed := time.Since(start)
	dispatchDuration.Observe(elapsed.Seconds())

	out := Outcome{
		BookingID:  b.ID,
		Court:      b.CourtName,
		Customer:   b.CustomerName,
		DurationMs: elapsed.Milliseconds(),
	}

	logger := xglog.WithComponentFromContext(ctx, "acquisition")
	if err != nil {
		out.Status = OutcomeFailed
		out.Reason = reasonOf(err)
		out.Error = err.Error()
		dispatchTotal.WithLabelValues(string(out.Status), out.Reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, out.Reason)
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "dispatch.failed").
			Int64(xglog.FieldBookingID, b.ID).
			Str(xglog.FieldCourt, b.CourtName).
			Str(xglog.FieldCustomer, b.CustomerName).
			Str(xglog.FieldReason, out.Reason).
			Int64("duration_ms", out.DurationMs).
			Msg("auto-download failed")
		return out
	}

	out.Status = OutcomeSucceeded
	out.Filename = res.Filename
	out.FileSize = res.FileSize
	dispatchTotal.WithLabelValues(string(out.Status), "").Inc()
	logger.Info().
		Str(xglog.FieldEvent, "dispatch.succeeded").
		Int64(xglog.FieldBookingID, b.ID).
		Str(xglog.FieldCourt, b.CourtName).
		Str(xglog.FieldCustomer, b.CustomerName).
		Str("filename", res.Filename).
		Int64("file_size", res.FileSize).
		Int64("duration_ms", out.DurationMs).
		Msg("recording acquired")
	return out
}

func (d *Driver) fail(ctx context.Context, logger zerolog.Logger, summary *RunSummary, err error) *RunSummary {
	summary.State = StateFailedFatal
	summary.Error = err.Error()
	logger.Error().Err(err).Str(xglog.FieldEvent, "run.failed").Msg("acquisition run aborted before dispatch")
	d.finish(ctx, logger, summary)
	return summary
}

func (d *Driver) finish(ctx context.Context, logger zerolog.Logger, summary *RunSummary) {
	summary.FinishedAt = d.deps.Clock()
	summary.DurationMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()
	recordRun(summary)

	evt := logger.Info()
	if summary.State == StateFailedFatal || summary.Failed > 0 || summary.Interrupted {
		evt = logger.Warn()
	}
	evt.
		Str(xglog.FieldEvent, "run.summary").
		Str("state", string(summary.State)).
		Str("trigger", summary.Trigger).
		Str("now", summary.Now).
		Int("seen", summary.Seen).
		Int("skipped_not_ended", summary.SkippedNotEnded).
		Int("skipped_has_recording", summary.SkippedHasRecording).
		Int("skipped_invalid", summary.SkippedInvalid).
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Bool("interrupted", summary.Interrupted).
		Int64("duration_ms", summary.DurationMs).
		Msg("acquisition run finished")

	if d.deps.SummaryPath == "" {
		return
	}
	// The run context may already be cancelled; the summary is still written.
	if err := WriteSummary(context.WithoutCancel(ctx), d.deps.SummaryPath, summary); err != nil {
		logger.Error().Err(err).Str("path", d.deps.SummaryPath).Msg("failed to persist run summary")
	}
}
