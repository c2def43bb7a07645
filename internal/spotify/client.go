package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"
)

// RecentlyPlayedLimit is the maximum page size Spotify allows for the
// recently-played feed.
const RecentlyPlayedLimit = 50

// TopItemsLimit is the page size used for top tracks and artists proxies.
const TopItemsLimit = 10

// Play is one entry from the recently-played feed, flattened to the fields
// the listening history stores. Features is attached separately and stays
// nil when the analysis lookup fails or returns nothing for the track.
type Play struct {
	TrackID    string
	TrackName  string
	ArtistName string
	PlayedAt   time.Time
	AlbumName  string
	AlbumImage string
	DurationMs int
	Features   *TrackFeatures
}

// TrackFeatures holds the audio analysis values used for mood grouping.
type TrackFeatures struct {
	Danceability float64
	Energy       float64
	Valence      float64
	Tempo        float64
	Acousticness float64
}

// Client wraps the Spotify API client with the calls this application
// makes. Each instance is bound to one access token for one request.
type Client struct {
	api     *spotify.Client
	limiter *rate.Limiter
}

func newClient(httpClient *http.Client, limiter *rate.Limiter) *Client {
	return &Client{
		api:     spotify.New(httpClient),
		limiter: limiter,
	}
}

// Profile fetches the current user's profile. Serves both as the identity
// lookup and as the token validity probe.
func (c *Client) Profile(ctx context.Context) (*spotify.PrivateUser, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, wrapErr("getting current user", err)
	}
	return user, nil
}

// RecentlyPlayed fetches up to 50 most recent play events.
func (c *Client) RecentlyPlayed(ctx context.Context) ([]Play, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{
		Limit: RecentlyPlayedLimit,
	})
	if err != nil {
		return nil, wrapErr("getting recently played", err)
	}

	plays := make([]Play, 0, len(items))
	for _, item := range items {
		plays = append(plays, flattenItem(item))
	}
	return plays, nil
}

// TopTracks fetches the user's top tracks for the given time range.
func (c *Client) TopTracks(ctx context.Context, timeRange spotify.Range) ([]spotify.FullTrack, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.api.CurrentUsersTopTracks(ctx, spotify.Limit(TopItemsLimit), spotify.Timerange(timeRange))
	if err != nil {
		return nil, wrapErr("getting top tracks", err)
	}
	return page.Tracks, nil
}

// TopArtists fetches the user's top artists for the given time range.
func (c *Client) TopArtists(ctx context.Context, timeRange spotify.Range) ([]spotify.FullArtist, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.api.CurrentUsersTopArtists(ctx, spotify.Limit(TopItemsLimit), spotify.Timerange(timeRange))
	if err != nil {
		return nil, wrapErr("getting top artists", err)
	}
	return page.Artists, nil
}

// AudioFeatures fetches analysis values for the given track ids, keyed by
// track id. Tracks without an analysis are absent from the result.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]TrackFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}
	features, err := c.api.GetAudioFeatures(ctx, ids...)
	if err != nil {
		return nil, wrapErr("getting audio features", err)
	}

	byTrack := make(map[string]TrackFeatures, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		byTrack[string(f.ID)] = TrackFeatures{
			Danceability: float64(f.Danceability),
			Energy:       float64(f.Energy),
			Valence:      float64(f.Valence),
			Tempo:        float64(f.Tempo),
			Acousticness: float64(f.Acousticness),
		}
	}
	return byTrack, nil
}

// AttachFeatures fills Features on each play from the fetched analysis for
// the distinct tracks. One lookup covers the whole feed.
func (c *Client) AttachFeatures(ctx context.Context, plays []Play) error {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range plays {
		if !seen[p.TrackID] {
			seen[p.TrackID] = true
			ids = append(ids, p.TrackID)
		}
	}

	byTrack, err := c.AudioFeatures(ctx, ids)
	if err != nil {
		return err
	}
	for i := range plays {
		if f, ok := byTrack[plays[i].TrackID]; ok {
			feat := f
			plays[i].Features = &feat
		}
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// ParseTimeRange maps the time_range query parameter onto the API value,
// defaulting to short term (roughly the last four weeks).
func ParseTimeRange(s string) spotify.Range {
	switch s {
	case "medium_term":
		return spotify.MediumTermRange
	case "long_term":
		return spotify.LongTermRange
	default:
		return spotify.ShortTermRange
	}
}

func flattenItem(item spotify.RecentlyPlayedItem) Play {
	names := make([]string, len(item.Track.Artists))
	for i, a := range item.Track.Artists {
		names[i] = a.Name
	}

	play := Play{
		TrackID:    string(item.Track.ID),
		TrackName:  item.Track.Name,
		ArtistName: strings.Join(names, ", "),
		PlayedAt:   item.PlayedAt,
		AlbumName:  item.Track.Album.Name,
		DurationMs: int(item.Track.Duration),
	}
	if len(item.Track.Album.Images) > 0 {
		play.AlbumImage = item.Track.Album.Images[0].URL
	}
	return play
}

// wrapErr maps Spotify API errors onto package sentinels where the caller
// needs to branch on them.
func wrapErr(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	return fmt.Errorf("%s: %w", op, err)
}
