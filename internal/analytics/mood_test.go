package analytics

import (
	"testing"
	"time"

	"github.com/muesli/clusters"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
)

func featured(track string, playedAt time.Time, af db.AudioFeatures) db.PlayEvent {
	e := play(track, "artist", playedAt, 60000)
	e.AudioFeatures = &af
	return e
}

func TestMoodBreakdownTooFewFeaturedEvents(t *testing.T) {
	events := []db.PlayEvent{
		play("plain", "artist", base, 60000),
		featured("one", base.Add(time.Minute), db.AudioFeatures{Energy: 0.9, Valence: 0.9}),
		featured("two", base.Add(2*time.Minute), db.AudioFeatures{Energy: 0.1, Valence: 0.1}),
	}

	if got := MoodBreakdown(events); got != nil {
		t.Errorf("MoodBreakdown with 2 featured events = %v, want nil", got)
	}
}

func TestMoodBreakdownCountsAllFeaturedEvents(t *testing.T) {
	var events []db.PlayEvent
	moods := []db.AudioFeatures{
		{Danceability: 0.9, Energy: 0.9, Valence: 0.9, Tempo: 140, Acousticness: 0.1},
		{Danceability: 0.2, Energy: 0.1, Valence: 0.1, Tempo: 70, Acousticness: 0.8},
		{Danceability: 0.5, Energy: 0.5, Valence: 0.5, Tempo: 100, Acousticness: 0.5},
	}
	for i := 0; i < 12; i++ {
		events = append(events, featured("t", base.Add(time.Duration(i)*time.Minute), moods[i%3]))
	}
	// One event without features is excluded from the breakdown.
	events = append(events, play("plain", "artist", base.Add(time.Hour), 60000))

	breakdown := MoodBreakdown(events)
	if breakdown == nil {
		t.Fatal("MoodBreakdown returned nil")
	}

	total := 0
	for _, n := range breakdown {
		total += n
	}
	if total != 12 {
		t.Errorf("breakdown total = %d, want 12", total)
	}
}

func TestMoodLabel(t *testing.T) {
	// Coordinates: danceability, energy, valence, tempo/200, acousticness.
	tests := []struct {
		name   string
		center clusters.Coordinates
		want   string
	}{
		{"happy and energetic", clusters.Coordinates{0.8, 0.8, 0.8, 0.6, 0.1}, "Happy & Energetic"},
		{"sad and calm", clusters.Coordinates{0.2, 0.2, 0.2, 0.3, 0.4}, "Sad & Calm"},
		{"positive acoustic", clusters.Coordinates{0.4, 0.5, 0.6, 0.4, 0.6}, "Positive & Acoustic"},
		{"intense", clusters.Coordinates{0.5, 0.8, 0.4, 0.7, 0.2}, "Intense"},
		{"acoustic and relaxed", clusters.Coordinates{0.3, 0.5, 0.4, 0.3, 0.8}, "Acoustic & Relaxed"},
		{"balanced", clusters.Coordinates{0.5, 0.5, 0.45, 0.5, 0.5}, "Balanced"},
		{"short centroid", clusters.Coordinates{0.5}, "Balanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := moodLabel(tt.center); got != tt.want {
				t.Errorf("moodLabel(%v) = %q, want %q", tt.center, got, tt.want)
			}
		})
	}
}
