// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package booking

import (
	"math/rand"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestSelectEligible_Scenarios(t *testing.T) {
	now := mustClock(t, "15:00")

	tests := []struct {
		name     string
		bookings []Booking
		want     []int64
	}{
		{"A ended without recording", []Booking{{ID: 1, EndTime: "14:00"}}, []int64{1}},
		{"B not yet ended", []Booking{{ID: 2, EndTime: "16:00"}}, nil},
		{"C already recorded", []Booking{{ID: 3, EndTime: "10:00", HasRecording: true}}, nil},
		{"ends exactly now", []Booking{{ID: 4, EndTime: "15:00"}}, []int64{4}},
		{"invalid end time", []Booking{{ID: 5, EndTime: "late"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for _, b := range SelectEligible(tt.bookings, now) {
				got = append(got, b.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectEligible_PreservesSourceOrder(t *testing.T) {
	in := []Booking{
		{ID: 30, EndTime: "12:00"},
		{ID: 10, EndTime: "09:00"},
		{ID: 20, EndTime: "18:00"},
		{ID: 40, EndTime: "11:30", HasRecording: true},
		{ID: 5, EndTime: "13:00"},
	}
	got := SelectEligible(in, mustClock(t, "15:00"))
	ids := make([]int64, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	if diff := cmp.Diff([]int64{30, 10, 5}, ids); diff != "" {
		t.Fatalf("eligible order mismatch (-want +got):\n%s", diff)
	}
}

func randomBookings(r *rand.Rand, n int) []Booking {
	out := make([]Booking, n)
	for i := range out {
		out[i] = Booking{
			ID:           int64(i + 1),
			CourtName:    "Court",
			EndTime:      Clock(r.Intn(24 * 60)).String(),
			HasRecording: r.Intn(3) == 0,
		}
	}
	return out
}

func TestSelectEligible_Invariant(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		in := randomBookings(r, 40)
		now := Clock(r.Intn(24 * 60))

		selected := make(map[int64]bool)
		for _, b := range SelectEligible(in, now) {
			selected[b.ID] = true
		}
		for _, b := range in {
			end := mustClock(t, b.EndTime)
			want := !b.HasRecording && end <= now
			assert.Equal(t, want, selected[b.ID], "booking %d end=%s now=%s recorded=%v", b.ID, b.EndTime, now, b.HasRecording)
		}
	}
}

func TestSelectEligible_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	in := randomBookings(r, 60)
	snapshot := append([]Booking(nil), in...)
	now := mustClock(t, "13:37")

	first := SelectEligible(in, now)
	second := SelectEligible(in, now)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("filter not idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, SelectEligible(first, now)); diff != "" {
		t.Fatalf("filtering the eligible set changed it:\n%s", diff)
	}
	assert.Equal(t, snapshot, in, "input must not be modified")
}

func TestClassify(t *testing.T) {
	now := mustClock(t, "15:00")
	assert.Equal(t, DecisionEligible, Classify(Booking{EndTime: "14:59"}, now))
	assert.Equal(t, DecisionNotEnded, Classify(Booking{EndTime: "15:01"}, now))
	assert.Equal(t, DecisionHasRecording, Classify(Booking{EndTime: "bogus", HasRecording: true}, now))
	assert.Equal(t, DecisionInvalidTime, Classify(Booking{EndTime: ""}, now))
}

func TestParseClock(t *testing.T) {
	for in, want := range map[string]Clock{
		"00:00":    0,
		"09:05":    9*60 + 5,
		"23:59":    EndOfDay,
		" 14:00 ":  14 * 60,
		"14:00:30": 14 * 60,
	} {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "24:00", "12:60", "12", "12:5", "ab:cd", "1:2:3:4"} {
		_, err := ParseClock(in)
		assert.Error(t, err, in)
	}
	assert.Equal(t, "07:45", Clock(7*60+45).String())
}

func TestNowFor(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	now := time.Date(2025, 6, 14, 13, 30, 0, 0, time.UTC) // 15:30 in Madrid

	got, err := NowFor("2025-06-14", now, madrid)
	require.NoError(t, err)
	assert.Equal(t, mustClock(t, "15:30"), got)

	got, err = NowFor("2025-06-13", now, madrid)
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, got)

	got, err = NowFor("2025-06-15", now, madrid)
	require.NoError(t, err)
	assert.Equal(t, Clock(0), got)

	_, err = NowFor("14.06.2025", now, madrid)
	assert.Error(t, err)

	assert.Equal(t, "2025-06-14", Today(now, madrid))
	assert.Equal(t, "2025-06-15", Today(time.Date(2025, 6, 14, 22, 30, 0, 0, time.UTC), madrid))
}
