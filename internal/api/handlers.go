// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/ManuGH/courtrec/internal/acquisition"
	"github.com/ManuGH/courtrec/internal/booking"
	"github.com/ManuGH/courtrec/internal/download"
	xglog "github.com/ManuGH/courtrec/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "version": s.cfg.Version}
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type bookingsResponse struct {
	Bookings []booking.Booking `json:"bookings"`
}

func (s *Server) handleBookingsForDate(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(booking.DateLayout, date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD"})
		return
	}
	list, err := s.deps.Bookings.BookingsForDate(r.Context(), date)
	if err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(xglog.FieldDate, date).Msg("list bookings")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	if list == nil {
		list = []booking.Booking{}
	}
	writeJSON(w, http.StatusOK, bookingsResponse{Bookings: list})
}

type autoDownloadRequest struct {
	BookingID int64 `json:"booking_id"`
}

type autoDownloadResponse struct {
	Success         bool   `json:"success"`
	VideoID         string `json:"video_id,omitempty"`
	Filename        string `json:"filename,omitempty"`
	FileSize        int64  `json:"file_size,omitempty"`
	AlreadyRecorded bool   `json:"already_recorded,omitempty"`
	Error           string `json:"error,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

var reasonStatus = map[string]int{
	download.ReasonUnknownBooking: http.StatusNotFound,
	download.ReasonNoCamera:       http.StatusUnprocessableEntity,
	download.ReasonNotFound:       http.StatusNotFound,
	download.ReasonTimeout:        http.StatusGatewayTimeout,
	download.ReasonAuth:           http.StatusBadGateway,
	download.ReasonCopyFailed:     http.StatusBadGateway,
	download.ReasonUnavailable:    http.StatusBadGateway,
}

func (s *Server) handleAutoDownload(w http.ResponseWriter, r *http.Request) {
	var req autoDownloadRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.BookingID <= 0 {
		writeJSON(w, http.StatusBadRequest, autoDownloadResponse{Error: "body must be {\"booking_id\": <positive integer>}", Reason: "bad_request"})
		return
	}

	res, err := s.deps.Downloader.AutoDownload(r.Context(), req.BookingID)
	if err != nil {
		reason := download.Reason(err)
		status, ok := reasonStatus[reason]
		if !ok {
			status = http.StatusInternalServerError
		}
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Int64(xglog.FieldBookingID, req.BookingID).
			Str(xglog.FieldReason, reason).
			Msg("auto-download failed")
		writeJSON(w, status, autoDownloadResponse{Error: err.Error(), Reason: reason})
		return
	}

	writeJSON(w, http.StatusOK, autoDownloadResponse{
		Success:         true,
		VideoID:         res.VideoID,
		Filename:        res.Filename,
		FileSize:        res.FileSize,
		AlreadyRecorded: res.AlreadyRecorded,
	})
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.SummaryPath == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no run recorded"})
		return
	}
	summary, err := acquisition.ReadSummary(s.cfg.SummaryPath)
	if errors.Is(err, fs.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no run recorded"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
