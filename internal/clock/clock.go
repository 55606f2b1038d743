// Package clock formats countdowns for task and adventure timers. All
// functions are pure; callers own any polling loop that re-invokes
// them as time passes.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// elapsedMargin hides the final second before expiry so the display
// never reads "0 seconds".
const elapsedMargin = time.Second

// Elapsed reports whether expiration has effectively passed, including
// the one second margin.
func Elapsed(now, expiration time.Time) bool {
	return !expiration.Add(-elapsedMargin).After(now)
}

// Remaining formats the time left until expiration. Once the deadline
// has passed (or is within the margin) it returns elapsedMessage
// instead. Formatting keeps only the largest applicable units: with
// days present, minutes and seconds are dropped; with hours present,
// seconds are dropped; seconds appear alone.
func Remaining(now, expiration time.Time, elapsedMessage string) string {
	if Elapsed(now, expiration) {
		return elapsedMessage
	}
	return formatDHMS(expiration.Sub(now))
}

func formatDHMS(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if days == 0 && minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
