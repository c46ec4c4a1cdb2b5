// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceClient_BookingsForDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings-for-date", r.URL.Path)
		assert.Equal(t, "2025-06-14", r.URL.Query().Get("date"))
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bookings":[
			{"id":1,"court_name":"Court 1","start_time":"13:00","end_time":"14:00","customer_name":"Ana","has_recording":false},
			{"id":2,"court_name":"Court 2","date":"2025-06-14","start_time":"15:00","end_time":"16:00","customer_name":"Luis","has_recording":true,"camera_id":"9"}
		]}`))
	}))
	defer srv.Close()

	c := NewSourceClient(srv.URL+"/", Credentials{Username: "svc", Password: "pw"}, time.Second, nil)
	got, err := c.BookingsForDate(context.Background(), "2025-06-14")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Booking{ID: 1, CourtName: "Court 1", Date: "2025-06-14", StartTime: "13:00", EndTime: "14:00", CustomerName: "Ana"}, got[0])
	assert.True(t, got[1].HasRecording)
	assert.Equal(t, "9", got[1].CameraID)
}

func TestSourceClient_FailuresAreSourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewSourceClient(srv.URL, Credentials{}, time.Second, nil).BookingsForDate(context.Background(), "2025-06-14")
			assert.ErrorIs(t, err, ErrSourceUnavailable)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewSourceClient(url, Credentials{}, time.Second, nil).BookingsForDate(context.Background(), "2025-06-14")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := NewSourceClient("http://127.0.0.1:1", Credentials{}, time.Second, nil).BookingsForDate(context.Background(), "tomorrow")
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})
}
