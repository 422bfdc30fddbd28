package timekey

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		tz       string
		expected string
	}{
		{"valid zone", "America/Chicago", "America/Chicago"},
		{"utc", "UTC", "UTC"},
		{"empty falls back", "", "UTC"},
		{"garbage falls back", "Not/AZone", "UTC"},
		{"offset-like garbage", "+05:30", "UTC"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.tz); got != tc.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tc.tz, got, tc.expected)
			}
		})
	}
}

func TestDayKey(t *testing.T) {
	// 2024-01-15 03:30 UTC is still 2024-01-14 in Chicago.
	instant := time.Date(2024, 1, 15, 3, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		tz       string
		expected string
	}{
		{"utc", "UTC", "2024-01-15"},
		{"behind utc", "America/Chicago", "2024-01-14"},
		{"invalid zone uses utc", "Nope/Nope", "2024-01-15"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DayKey(tc.tz, instant); got != tc.expected {
				t.Errorf("DayKey(%q) = %q, want %q", tc.tz, got, tc.expected)
			}
		})
	}
}

func TestDayKeyStableAcrossDSTTransition(t *testing.T) {
	// US DST spring-forward 2024-03-10: 02:00 local jumps to 03:00.
	// Both sides of the gap must land on the same calendar day.
	before := time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC) // 01:30 CST
	after := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)  // 03:30 CDT

	if got := DayKey("America/Chicago", before); got != "2024-03-10" {
		t.Errorf("before transition: got %q", got)
	}
	if got := DayKey("America/Chicago", after); got != "2024-03-10" {
		t.Errorf("after transition: got %q", got)
	}
}
