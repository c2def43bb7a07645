// Package ingest pulls the recently-played feed into the weekly-windowed
// listening history.
package ingest

import "time"

// WindowStart computes the start of the current weekly window: the most
// recent Sunday at 00:00 UTC strictly before now. On a Sunday the boundary
// is the previous Sunday, so the window start is never "now".
func WindowStart(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	days := int(now.Weekday()) // Sunday == 0
	if days == 0 {
		days = 7
	}
	return midnight.AddDate(0, 0, -days)
}

// WeekEnding returns the closing boundary of the window beginning at start.
func WeekEnding(start time.Time) time.Time {
	return start.AddDate(0, 0, 7)
}

// InWindow reports whether a play timestamp falls inside the window
// beginning at start. The boundary itself is included.
func InWindow(playedAt, start time.Time) bool {
	return !playedAt.Before(start)
}
