package main

import (
	"time"
)

const displayTimeLayout = "2006-01-02 15:04:05"

func formatWhen(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "never"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(displayTimeLayout)
}

// formatDelay renders a delay rounded to the second, e.g. "1h30m0s".
func formatDelay(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
