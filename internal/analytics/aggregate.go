// Package analytics computes weekly listening summaries from stored play
// events.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
)

// TopN is how many tracks and artists a summary ranks.
const TopN = 5

// peakHourCount is how many peak listening hours a summary reports.
const peakHourCount = 3

// TrackCount is one ranked entry in the top-tracks list.
type TrackCount struct {
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Count  int    `json:"count"`
}

// ArtistCount is one ranked entry in the top-artists list.
type ArtistCount struct {
	Artist string `json:"artist"`
	Count  int    `json:"count"`
}

// DayMinutes is the listening total for one weekday.
type DayMinutes struct {
	Day     string `json:"day"`
	Minutes int    `json:"minutes"`
}

// Summary is the weekly aggregate returned by the analytics endpoints.
type Summary struct {
	TopTracks                 []TrackCount   `json:"topTracks"`
	TopArtists                []ArtistCount  `json:"topArtists"`
	TotalListeningTimeMinutes int            `json:"totalListeningTimeMinutes"`
	TopListeningDay           *DayMinutes    `json:"topListeningDay,omitempty"`
	PerDayMinutes             []DayMinutes   `json:"perDayMinutes,omitempty"`
	PeakListeningHours        []int          `json:"peakListeningHours,omitempty"`
	MoodBreakdown             map[string]int `json:"moodBreakdown,omitempty"`
	Insights                  []string       `json:"insights,omitempty"`
	NoData                    bool           `json:"noData,omitempty"`
}

// Summarize computes the full weekly aggregate over the given in-window
// events. newTracks is the number of plays first recorded this week, used
// for the discovery insight. An empty window yields an explicit no-data
// summary with zero values, never placeholder numbers.
func Summarize(events []db.PlayEvent, newTracks int) *Summary {
	if len(events) == 0 {
		return &Summary{
			TopTracks:  []TrackCount{},
			TopArtists: []ArtistCount{},
			NoData:     true,
		}
	}

	perDay := MinutesByDay(events)
	return &Summary{
		TopTracks:                 TopTracks(events),
		TopArtists:                TopArtists(events),
		TotalListeningTimeMinutes: TotalMinutes(events),
		TopListeningDay:           TopDay(perDay),
		PerDayMinutes:             perDay,
		PeakListeningHours:        PeakHours(events),
		MoodBreakdown:             MoodBreakdown(events),
		Insights:                  Insights(events, newTracks),
	}
}

// TopTracks ranks plays by (track, artist) pair, descending by count,
// truncated to TopN. Ties keep first-seen order, which for store-backed
// input is played-at order.
func TopTracks(events []db.PlayEvent) []TrackCount {
	type key struct{ song, artist string }
	counts := make(map[key]int)
	var order []key

	for _, e := range events {
		k := key{e.TrackName, e.ArtistName}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	ranked := make([]TrackCount, len(order))
	for i, k := range order {
		ranked[i] = TrackCount{Song: k.song, Artist: k.artist, Count: counts[k]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	return ranked
}

// TopArtists ranks plays by artist name, descending by count, truncated to
// TopN.
func TopArtists(events []db.PlayEvent) []ArtistCount {
	counts := make(map[string]int)
	var order []string

	for _, e := range events {
		if counts[e.ArtistName] == 0 {
			order = append(order, e.ArtistName)
		}
		counts[e.ArtistName]++
	}

	ranked := make([]ArtistCount, len(order))
	for i, artist := range order {
		ranked[i] = ArtistCount{Artist: artist, Count: counts[artist]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	return ranked
}

// TotalMinutes sums play durations across the window, rounded to minutes.
func TotalMinutes(events []db.PlayEvent) int {
	var totalMs int64
	for _, e := range events {
		totalMs += int64(e.DurationMs)
	}
	return int(math.Round(float64(totalMs) / 60000.0))
}

// MinutesByDay sums listening minutes per UTC weekday. All seven days are
// present, Sunday first, so the frontend chart has a fixed axis.
func MinutesByDay(events []db.PlayEvent) []DayMinutes {
	totals := make(map[time.Weekday]int64)
	for _, e := range events {
		totals[e.PlayedAt.UTC().Weekday()] += int64(e.DurationMs)
	}

	days := make([]DayMinutes, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[int(d)] = DayMinutes{
			Day:     d.String(),
			Minutes: int(math.Round(float64(totals[d]) / 60000.0)),
		}
	}
	return days
}

// TopDay selects the weekday with the most listening minutes. Ties go to
// the earlier day in the Sunday-first ordering. Returns nil for an all-zero
// week.
func TopDay(days []DayMinutes) *DayMinutes {
	var top *DayMinutes
	for i := range days {
		if days[i].Minutes == 0 {
			continue
		}
		if top == nil || days[i].Minutes > top.Minutes {
			top = &days[i]
		}
	}
	if top == nil {
		return nil
	}
	result := *top
	return &result
}

// PeakHours returns the up-to-three UTC hours of day with the most plays,
// most active first.
func PeakHours(events []db.PlayEvent) []int {
	counts := make(map[int]int)
	for _, e := range events {
		counts[e.PlayedAt.UTC().Hour()]++
	}

	hours := make([]int, 0, len(counts))
	for h := 0; h < 24; h++ {
		if counts[h] > 0 {
			hours = append(hours, h)
		}
	}
	sort.SliceStable(hours, func(i, j int) bool {
		return counts[hours[i]] > counts[hours[j]]
	})

	if len(hours) > peakHourCount {
		hours = hours[:peakHourCount]
	}
	return hours
}
