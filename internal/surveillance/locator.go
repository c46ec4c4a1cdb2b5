// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	apiCamera    = "SYNO.SurveillanceStation.Camera"
	apiRecording = "SYNO.SurveillanceStation.Recording"
)

// RecordingQuery is a camera and a half-open window [From, To) in epoch seconds.
type RecordingQuery struct {
	CameraID string
	From     int64
	To       int64
}

// Window converts a booking's local date and HH:MM bounds into epoch seconds
// using loc. An end before the start is taken to cross midnight.
func Window(date, startHHMM, endHHMM string, loc *time.Location) (from, to int64, err error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+strings.TrimSpace(startHHMM), loc)
	if err != nil {
		return 0, 0, fmt.Errorf("parse start %q %q: %w", date, startHHMM, err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+strings.TrimSpace(endHHMM), loc)
	if err != nil {
		return 0, 0, fmt.Errorf("parse end %q %q: %w", date, endHHMM, err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start.Unix(), end.Unix(), nil
}

// RecordingMatch is one recording descriptor returned by the catalog.
type RecordingMatch struct {
	ID        int64  `json:"id"`
	CameraID  int64  `json:"cameraId"`
	Folder    string `json:"folder"`
	Path      string `json:"filePath"`
	Name      string `json:"name"`
	Start     int64  `json:"startTime"`
	Stop      int64  `json:"stopTime"`
	SizeBytes int64  `json:"sizeByte"`
}

// SourcePath is the absolute path of the recording on the external filesystem.
func (r RecordingMatch) SourcePath() string {
	return path.Join("/", r.Folder, r.Path)
}

// DisplayName falls back to the file name when the catalog sends none.
func (r RecordingMatch) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return path.Base(r.Path)
}

// Camera is an entry of the camera catalog.
type Camera struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Locator resolves a camera and time window to a single recording.
type Locator struct {
	sessions *SessionManager
}

// NewLocator creates a locator that queries under the catalog session.
func NewLocator(sessions *SessionManager) *Locator {
	return &Locator{sessions: sessions}
}

// Locate returns the first recording the catalog lists for the window.
// The catalog controls the order; no overlap scoring is applied. An empty
// list yields ErrNotFound, typically because the recording is still being
// finalized on the external system.
func (l *Locator) Locate(ctx context.Context, cameraID string, from, to int64) (RecordingMatch, error) {
	recs, err := l.Recordings(ctx, RecordingQuery{CameraID: cameraID, From: from, To: to})
	if err != nil {
		return RecordingMatch{}, err
	}
	if len(recs) == 0 {
		return RecordingMatch{}, &APIError{
			Sentinel: ErrNotFound,
			API:      apiRecording,
			Method:   "List",
			Err:      fmt.Errorf("camera %s window [%d,%d)", cameraID, from, to),
		}
	}
	return recs[0], nil
}

// Recordings issues one catalog query and returns descriptors in catalog order.
func (l *Locator) Recordings(ctx context.Context, q RecordingQuery) ([]RecordingMatch, error) {
	var data struct {
		Recordings []RecordingMatch `json:"recordings"`
	}
	err := l.sessions.Do(ctx, SessionCatalog, func(s Session) error {
		params := url.Values{}
		params.Set("cameraIds", q.CameraID)
		params.Set("fromTime", strconv.FormatInt(q.From, 10))
		params.Set("toTime", strconv.FormatInt(q.To, 10))
		params.Set("_sid", s.Token)
		return l.sessions.client.call(ctx, apiRequest{CGI: cgiEntry, API: apiRecording, Method: "List", Version: 6, Params: params}, &data)
	})
	if err != nil {
		return nil, err
	}
	return data.Recordings, nil
}

// Cameras lists the cameras known to the catalog.
func (l *Locator) Cameras(ctx context.Context) ([]Camera, error) {
	var data struct {
		Cameras []Camera `json:"cameras"`
	}
	err := l.sessions.Do(ctx, SessionCatalog, func(s Session) error {
		params := url.Values{}
		params.Set("_sid", s.Token)
		return l.sessions.client.call(ctx, apiRequest{CGI: cgiEntry, API: apiCamera, Method: "List", Version: 9, Params: params}, &data)
	})
	if err != nil {
		return nil, err
	}
	return data.Cameras, nil
}
