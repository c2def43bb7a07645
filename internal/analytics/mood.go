package analytics

import (
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
)

// moodClusters is the number of k-means clusters for mood grouping.
const moodClusters = 3

// tempoScale normalizes tempo (BPM) into the same range as the other
// audio features.
const tempoScale = 200.0

// playObservation adapts a play event's audio features to the k-means
// observation interface.
type playObservation struct {
	coords clusters.Coordinates
}

func (o playObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o playObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// MoodBreakdown clusters the events that carry audio features into mood
// groups and returns play counts per mood label. Events without features
// are skipped; when fewer featured events exist than clusters, or
// clustering fails, the breakdown is omitted (nil).
func MoodBreakdown(events []db.PlayEvent) map[string]int {
	var obs clusters.Observations
	for _, e := range events {
		if e.AudioFeatures == nil {
			continue
		}
		af := e.AudioFeatures
		obs = append(obs, playObservation{
			coords: clusters.Coordinates{
				af.Danceability,
				af.Energy,
				af.Valence,
				af.Tempo / tempoScale,
				af.Acousticness,
			},
		})
	}

	if len(obs) < moodClusters {
		return nil
	}

	km := kmeans.New()
	result, err := km.Partition(obs, moodClusters)
	if err != nil {
		return nil
	}

	breakdown := make(map[string]int)
	for _, cluster := range result {
		if len(cluster.Observations) == 0 {
			continue
		}
		breakdown[moodLabel(cluster.Center)] += len(cluster.Observations)
	}
	return breakdown
}

// moodLabel maps a cluster centroid onto a descriptive mood name. The
// coordinate order matches MoodBreakdown: danceability, energy, valence,
// scaled tempo, acousticness.
func moodLabel(center clusters.Coordinates) string {
	if len(center) < 5 {
		return "Balanced"
	}
	energy := center[1]
	valence := center[2]
	acousticness := center[4]

	switch {
	case valence > 0.6 && energy > 0.6:
		return "Happy & Energetic"
	case valence < 0.4 && energy < 0.4:
		return "Sad & Calm"
	case valence > 0.5 && acousticness > 0.5:
		return "Positive & Acoustic"
	case energy > 0.7:
		return "Intense"
	case acousticness > 0.7:
		return "Acoustic & Relaxed"
	default:
		return "Balanced"
	}
}
