// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package download implements the auto-download operation: locate the
// recording of a booking on the video system, copy it into delivery storage,
// verify the copy and persist the video record.
package download

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/ManuGH/courtrec/internal/booking"
	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/store"
	"github.com/ManuGH/courtrec/internal/surveillance"
)

var (
	// ErrUnknownBooking means the booking id does not exist.
	ErrUnknownBooking = errors.New("unknown booking")
	// ErrNoCamera means no camera is mapped to the booking's court.
	ErrNoCamera = errors.New("no camera mapped to court")
)

// Repository is the persistence the service needs.
type Repository interface {
	Booking(ctx context.Context, id int64) (booking.Booking, error)
	CameraForCourt(ctx context.Context, court string) (string, error)
	VideoForBooking(ctx context.Context, bookingID int64) (store.Video, error)
	RecordVideo(ctx context.Context, v store.Video) (store.Video, error)
}

// Locator finds the recording for a camera and window.
type Locator interface {
	Locate(ctx context.Context, cameraID string, from, to int64) (surveillance.RecordingMatch, error)
}

// Copier copies and inspects files on the video system.
type Copier interface {
	Copy(ctx context.Context, src, destFolder string) error
	Stat(ctx context.Context, filePath string) (surveillance.FileInfo, error)
}

// Result describes the video of a booking after AutoDownload.
type Result struct {
	VideoID         string `json:"video_id"`
	BookingID       int64  `json:"booking_id"`
	Filename        string `json:"filename"`
	Path            string `json:"path"`
	FileSize        int64  `json:"file_size"`
	AlreadyRecorded bool   `json:"already_recorded"`
}

// Service runs auto-downloads one at a time.
type Service struct {
	repo     Repository
	locator  Locator
	copier   Copier
	destRoot string
	loc      *time.Location

	mu sync.Mutex
}

// NewService creates a service copying into destRoot/<date>.
func NewService(repo Repository, locator Locator, copier Copier, destRoot string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, locator: locator, copier: copier, destRoot: destRoot, loc: loc}
}

// AutoDownload acquires the recording of bookingID. A booking that already
// has a video returns it unchanged.
func (s *Service) AutoDownload(ctx context.Context, bookingID int64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.Booking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBooking, bookingID)
		}
		return nil, err
	}

	logger := xglog.WithComponentFromContext(ctx, "download").With().
		Int64(xglog.FieldBookingID, b.ID).
		Str(xglog.FieldCourt, b.CourtName).
		Logger()

	if b.HasRecording {
		v, err := s.repo.VideoForBooking(ctx, b.ID)
		switch {
		case err == nil:
			logger.Info().Str(xglog.FieldEvent, "download.already_recorded").Msg("booking already has a video")
			return &Result{VideoID: v.ID, BookingID: b.ID, Filename: v.Filename, Path: v.Path, FileSize: v.FileSize, AlreadyRecorded: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		// Flagged without a video row: acquire again.
	}

	cameraID := b.CameraID
	if cameraID == "" {
		cameraID, err = s.repo.CameraForCourt(ctx, b.CourtName)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNoCamera, b.CourtName)
		}
		if err != nil {
			return nil, err
		}
	}
	logger = logger.With().Str(xglog.FieldCameraID, cameraID).Logger()

	from, to, err := surveillance.Window(b.Date, b.StartTime, b.EndTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("booking %d window: %w", b.ID, err)
	}

	rec, err := s.locator.Locate(ctx, cameraID, from, to)
	if err != nil {
		return nil, fmt.Errorf("locate recording: %w", err)
	}

	src := rec.SourcePath()
	destFolder := path.Join(s.destRoot, b.Date)
	if err := s.copier.Copy(ctx, src, destFolder); err != nil {
		return nil, fmt.Errorf("copy recording: %w", err)
	}

	filename := path.Base(src)
	destPath := path.Join(destFolder, filename)
	info, err := s.copier.Stat(ctx, destPath)
	if err != nil {
		return nil, fmt.Errorf("verify copied recording: %w", err)
	}

	v, err := s.repo.RecordVideo(ctx, store.Video{
		BookingID: b.ID,
		Filename:  filename,
		Path:      destPath,
		FileSize:  info.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("persist video: %w", err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "download.completed").
		Str(xglog.FieldSourcePath, src).
		Str(xglog.FieldDestPath, destPath).
		Int64("file_size", info.Size).
		Msg("recording copied and recorded")

	return &Result{VideoID: v.ID, BookingID: b.ID, Filename: filename, Path: destPath, FileSize: info.Size}, nil
}

// Failure reasons reported to the caller of AutoDownload.
const (
	ReasonAuth           = "auth"
	ReasonNotFound       = "not_found"
	ReasonTimeout        = "timeout"
	ReasonCopyFailed     = "copy_failed"
	ReasonUnavailable    = "unavailable"
	ReasonUnknownBooking = "unknown_booking"
	ReasonNoCamera       = "no_camera"
	ReasonInternal       = "internal"
)

// Reason classifies an AutoDownload error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownBooking):
		return ReasonUnknownBooking
	case errors.Is(err, ErrNoCamera):
		return ReasonNoCamera
	case errors.Is(err, surveillance.ErrAuth):
		return ReasonAuth
	case errors.Is(err, surveillance.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, surveillance.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, surveillance.ErrCopy):
		return ReasonCopyFailed
	case errors.Is(err, surveillance.ErrUpstreamUnavailable), errors.Is(err, surveillance.ErrUpstreamBadResponse):
		return ReasonUnavailable
	}
	return ReasonInternal
}
