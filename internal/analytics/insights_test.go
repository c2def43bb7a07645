package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
)

func TestInsightsEmptyWindow(t *testing.T) {
	if got := Insights(nil, 0); got != nil {
		t.Errorf("Insights(nil) = %v, want nil", got)
	}
}

func TestInsightsTopArtistShare(t *testing.T) {
	tests := []struct {
		name       string
		dominant   int // plays by "Big Artist"
		other      int // plays spread over distinct artists
		wantPhrase string
	}{
		{"over half", 6, 4, "really into Big Artist"},
		{"over thirty percent", 4, 6, "favorite artist"},
		{"plurality only", 2, 8, "Your top artist this week was Big Artist."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []db.PlayEvent
			for i := 0; i < tt.dominant; i++ {
				events = append(events, play("t", "Big Artist", base.Add(time.Duration(i)*time.Minute), 60000))
			}
			for i := 0; i < tt.other; i++ {
				events = append(events, play("t", "Other "+string(rune('A'+i)), base.Add(time.Duration(100+i)*time.Minute), 60000))
			}

			insights := Insights(events, 0)
			if len(insights) == 0 {
				t.Fatal("no insights generated")
			}
			if !strings.Contains(insights[0], tt.wantPhrase) {
				t.Errorf("insights[0] = %q, want it to contain %q", insights[0], tt.wantPhrase)
			}
		})
	}
}

func TestInsightsListeningTime(t *testing.T) {
	tests := []struct {
		name       string
		minutes    int
		wantPhrase string
	}{
		{"heavy week", 700, "That's a lot of tunes!"},
		{"solid week", 400, "Nice listening session!"},
		{"light week", 100, "minutes of music this week."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []db.PlayEvent{play("t", "a", base, tt.minutes*60000)}

			insights := Insights(events, 0)
			if len(insights) < 2 {
				t.Fatalf("len(insights) = %d, want at least 2", len(insights))
			}
			if !strings.Contains(insights[1], tt.wantPhrase) {
				t.Errorf("insights[1] = %q, want it to contain %q", insights[1], tt.wantPhrase)
			}
		})
	}
}

func TestInsightsDiscoveries(t *testing.T) {
	events := []db.PlayEvent{play("t", "a", base, 60000)}

	tests := []struct {
		name       string
		newTracks  int
		wantCount  int
		wantPhrase string
	}{
		{"none", 0, 2, ""},
		{"a few", 3, 3, "You found 3 new tracks this week."},
		{"many", 12, 3, "quite the explorer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := Insights(events, tt.newTracks)
			if len(insights) != tt.wantCount {
				t.Fatalf("len(insights) = %d, want %d", len(insights), tt.wantCount)
			}
			if tt.wantPhrase != "" && !strings.Contains(insights[2], tt.wantPhrase) {
				t.Errorf("insights[2] = %q, want it to contain %q", insights[2], tt.wantPhrase)
			}
		})
	}
}
