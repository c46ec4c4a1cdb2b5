// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/courtrec/internal/booking"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSeed wraps every seed validation failure.
var ErrInvalidSeed = errors.New("invalid seed")

// Seed is the YAML import format for bookings and court cameras.
type Seed struct {
	Cameras  []SeedCamera  `yaml:"cameras"`
	Bookings []SeedBooking `yaml:"bookings"`
}

// SeedCamera maps a court to its camera.
type SeedCamera struct {
	Court    string `yaml:"court"`
	CameraID string `yaml:"cameraId"`
}

// SeedBooking is one booking row.
type SeedBooking struct {
	ID           int64  `yaml:"id"`
	Court        string `yaml:"court"`
	Sport        string `yaml:"sport,omitempty"`
	Date         string `yaml:"date"`
	Start        string `yaml:"start"`
	End          string `yaml:"end"`
	Customer     string `yaml:"customer,omitempty"`
	CameraID     string `yaml:"cameraId,omitempty"`
	HasRecording bool   `yaml:"hasRecording,omitempty"`
}

// LoadSeed parses a seed file strictly; unknown keys are rejected.
func LoadSeed(path string) (*Seed, error) {
	// #nosec G304 -- seed path is provided by the operator via CLI
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks identifiers and dates. Clock values are not checked here;
// malformed ones are stored and later skipped as invalid by the filter.
func (s *Seed) Validate() error {
	var errs []error
	for i, c := range s.Cameras {
		if c.Court == "" || c.CameraID == "" {
			errs = append(errs, fmt.Errorf("%w: cameras[%d]: court and cameraId are required", ErrInvalidSeed, i))
		}
	}
	seen := make(map[int64]bool, len(s.Bookings))
	for i, b := range s.Bookings {
		if b.ID <= 0 {
			errs = append(errs, fmt.Errorf("%w: bookings[%d]: id must be positive", ErrInvalidSeed, i))
		}
		if seen[b.ID] {
			errs = append(errs, fmt.Errorf("%w: bookings[%d]: duplicate id %d", ErrInvalidSeed, i, b.ID))
		}
		seen[b.ID] = true
		if _, err := time.Parse(booking.DateLayout, b.Date); err != nil {
			errs = append(errs, fmt.Errorf("%w: bookings[%d]: date %q is not YYYY-MM-DD", ErrInvalidSeed, i, b.Date))
		}
	}
	return errors.Join(errs...)
}

// ApplySeed upserts all cameras and bookings in one transaction.
func (s *Store) ApplySeed(ctx context.Context, seed *Seed) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, c := range seed.Cameras {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cameras (court_name, camera_id) VALUES (?, ?)
			ON CONFLICT(court_name) DO UPDATE SET camera_id = excluded.camera_id`, c.Court, c.CameraID); err != nil {
			return fmt.Errorf("seed camera %q: %w", c.Court, err)
		}
	}
	for _, b := range seed.Bookings {
		if _, err = tx.ExecContext(ctx, upsertBookingSQL,
			b.ID, b.Court, b.Sport, b.Date, b.Start, b.End, b.Customer, b.HasRecording, b.CameraID); err != nil {
			return fmt.Errorf("seed booking %d: %w", b.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
