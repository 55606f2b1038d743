package clock_test

import (
	"testing"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/clock"
)

func TestRemainingFormatting(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		left time.Duration
		want string
	}{
		{"days drop minutes", 26*time.Hour + 3*time.Minute, "1 day, 2 hours"},
		{"plural days", 49 * time.Hour, "2 days, 1 hour"},
		{"days without hours", 48 * time.Hour, "2 days"},
		{"hours keep minutes", 2*time.Hour + 30*time.Minute, "2 hours, 30 minutes"},
		{"single hour", time.Hour, "1 hour"},
		{"minutes alone", 5 * time.Minute, "5 minutes"},
		{"single minute", 61 * time.Second, "1 minute"},
		{"seconds alone", 42 * time.Second, "42 seconds"},
		{"just over a second", 1500 * time.Millisecond, "1 second"},
		{"two seconds", 2 * time.Second, "2 seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := clock.Remaining(now, now.Add(tc.left), "")
			if got != tc.want {
				t.Fatalf("Remaining(%v) = %q, want %q", tc.left, got, tc.want)
			}
		})
	}
}

func TestRemainingElapsedMessage(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	const msg = "Adventure complete!"
	if got := clock.Remaining(now, now.Add(-time.Minute), msg); got != msg {
		t.Fatalf("past deadline = %q, want message", got)
	}
	if got := clock.Remaining(now, now, msg); got != msg {
		t.Fatalf("at deadline = %q, want message", got)
	}
	// Within the one second safety margin the message already shows.
	if got := clock.Remaining(now, now.Add(900*time.Millisecond), msg); got != msg {
		t.Fatalf("inside margin = %q, want message", got)
	}
}

func TestElapsed(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if clock.Elapsed(now, now.Add(time.Minute)) {
		t.Fatalf("future deadline reported elapsed")
	}
	if !clock.Elapsed(now, now.Add(time.Second)) {
		t.Fatalf("margin not applied")
	}
	if !clock.Elapsed(now, now.Add(-time.Hour)) {
		t.Fatalf("past deadline not elapsed")
	}
}
