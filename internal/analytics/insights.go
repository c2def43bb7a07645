package analytics

import (
	"fmt"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
)

// Insights generates the short natural-language observations shown on the
// wrapped slides. Returns nil for an empty window.
func Insights(events []db.PlayEvent, newTracks int) []string {
	if len(events) == 0 {
		return nil
	}

	var insights []string

	if artists := TopArtists(events); len(artists) > 0 {
		top := artists[0]
		share := float64(top.Count) / float64(len(events)) * 100

		switch {
		case share > 50:
			insights = append(insights, fmt.Sprintf(
				"You're really into %s this week! They made up %.1f%% of your listening.",
				top.Artist, share))
		case share > 30:
			insights = append(insights, fmt.Sprintf(
				"%s was your favorite artist this week, making up %.1f%% of your listening.",
				top.Artist, share))
		default:
			insights = append(insights, fmt.Sprintf(
				"Your top artist this week was %s.", top.Artist))
		}
	}

	minutes := TotalMinutes(events)
	switch {
	case minutes > 600:
		insights = append(insights, fmt.Sprintf(
			"Wow! You listened to %d minutes of music this week. That's a lot of tunes!", minutes))
	case minutes > 300:
		insights = append(insights, fmt.Sprintf(
			"You enjoyed %d minutes of music this week. Nice listening session!", minutes))
	default:
		insights = append(insights, fmt.Sprintf(
			"You listened to %d minutes of music this week.", minutes))
	}

	switch {
	case newTracks > 10:
		insights = append(insights, fmt.Sprintf(
			"You discovered %d new tracks this week! You're quite the explorer.", newTracks))
	case newTracks > 0:
		insights = append(insights, fmt.Sprintf(
			"You found %d new tracks this week.", newTracks))
	}

	return insights
}
