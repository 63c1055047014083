package version

import (
	"fmt"
	"time"
)

// RelativeTime renders how long ago ts was, relative to now. The thresholds
// are a display contract: under a minute "just now", under an hour minutes,
// under a day hours, otherwise an absolute short date and time.
func RelativeTime(now, ts time.Time) string {
	elapsed := now.Sub(ts)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return ts.Format("Jan 2, 2006 3:04 PM")
	}
}
