// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store persists bookings, the court to camera mapping and acquired
// video records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/courtrec/internal/booking"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Video is an acquired recording copied into delivery storage.
type Video struct {
	ID        string    `json:"id"`
	BookingID int64     `json:"booking_id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string, cfg Config) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := openDB(ctx, path, cfg)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const bookingColumns = `id, court_name, sport, date, start_time, end_time, customer_name, has_recording, camera_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (booking.Booking, error) {
	var b booking.Booking
	err := r.Scan(&b.ID, &b.CourtName, &b.Sport, &b.Date, &b.StartTime, &b.EndTime, &b.CustomerName, &b.HasRecording, &b.CameraID)
	return b, err
}

// BookingsForDate lists bookings of a date ordered by start time then id.
func (s *Store) BookingsForDate(ctx context.Context, date string) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ? ORDER BY start_time, id`, date)
	if err != nil {
		return nil, fmt.Errorf("query bookings for %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	out := []booking.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Booking loads a single booking.
func (s *Store) Booking(ctx context.Context, id int64) (booking.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Booking{}, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return booking.Booking{}, fmt.Errorf("load booking %d: %w", id, err)
	}
	return b, nil
}

const upsertBookingSQL = `
	INSERT INTO bookings (` + bookingColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		court_name = excluded.court_name,
		sport = excluded.sport,
		date = excluded.date,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		customer_name = excluded.customer_name,
		has_recording = MAX(bookings.has_recording, excluded.has_recording),
		camera_id = excluded.camera_id`

// UpsertBooking inserts or replaces a booking. The has_recording flag is
// sticky: once a video is recorded it is not cleared by an upsert.
func (s *Store) UpsertBooking(ctx context.Context, b booking.Booking) error {
	_, err := s.db.ExecContext(ctx, upsertBookingSQL,
		b.ID, b.CourtName, b.Sport, b.Date, b.StartTime, b.EndTime, b.CustomerName, b.HasRecording, b.CameraID)
	if err != nil {
		return fmt.Errorf("upsert booking %d: %w", b.ID, err)
	}
	return nil
}

// UpsertCamera maps a court to a camera id.
func (s *Store) UpsertCamera(ctx context.Context, court, cameraID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cameras (court_name, camera_id) VALUES (?, ?)
		ON CONFLICT(court_name) DO UPDATE SET camera_id = excluded.camera_id`, court, cameraID)
	if err != nil {
		return fmt.Errorf("upsert camera for %q: %w", court, err)
	}
	return nil
}

// CameraForCourt resolves the camera watching a court.
func (s *Store) CameraForCourt(ctx context.Context, court string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT camera_id FROM cameras WHERE court_name = ?`, court).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("camera for court %q: %w", court, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load camera for court %q: %w", court, err)
	}
	return id, nil
}

// VideoForBooking returns the recorded video of a booking.
func (s *Store) VideoForBooking(ctx context.Context, bookingID int64) (Video, error) {
	var (
		v       Video
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, booking_id, filename, path, file_size, created_at FROM videos WHERE booking_id = ?`, bookingID).
		Scan(&v.ID, &v.BookingID, &v.Filename, &v.Path, &v.FileSize, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("video for booking %d: %w", bookingID, ErrNotFound)
	}
	if err != nil {
		return Video{}, fmt.Errorf("load video for booking %d: %w", bookingID, err)
	}
	v.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Video{}, fmt.Errorf("parse created_at of video %s: %w", v.ID, err)
	}
	return v, nil
}

// RecordVideo stores the video and flags the booking as recorded in one
// transaction. Recording a second video for the same booking fails.
func (s *Store) RecordVideo(ctx context.Context, v Video) (Video, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Video{}, fmt.Errorf("begin record video: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE bookings SET has_recording = 1 WHERE id = ?`, v.BookingID)
	if err != nil {
		return Video{}, fmt.Errorf("flag booking %d: %w", v.BookingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Video{}, fmt.Errorf("booking %d: %w", v.BookingID, ErrNotFound)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO videos (id, booking_id, filename, path, file_size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.BookingID, v.Filename, v.Path, v.FileSize, v.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Video{}, fmt.Errorf("insert video for booking %d: %w", v.BookingID, err)
	}
	if err := tx.Commit(); err != nil {
		return Video{}, fmt.Errorf("commit record video: %w", err)
	}
	return v, nil
}
