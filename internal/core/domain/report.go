package domain

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// FormatElapsed renders a duration as HH:MM:SS, or "N days, HH:MM" past one day.
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	if d > day {
		days := secs / 86400
		rem := secs % 86400
		return fmt.Sprintf("%d days, %02d:%02d", days, rem/3600, (rem%3600)/60)
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// FormatRate renders whole rows per second. Elapsed time under a second
// counts as one second; a nonzero total that rounds down shows as "< 1".
func FormatRate(total int64, elapsed time.Duration) string {
	secs := int64(elapsed / time.Second)
	if secs < 1 {
		secs = 1
	}
	rate := total / secs
	if rate == 0 && total > 0 {
		return "< 1"
	}
	return fmt.Sprintf("%d", rate)
}

// Action names what a run does to rows, for reports and log lines.
func Action(copyMode, dryRun bool) string {
	switch {
	case dryRun:
		return "processed"
	case copyMode:
		return "copied"
	default:
		return "deleted"
	}
}
