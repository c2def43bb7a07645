package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/metrics"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
)

// Fetcher fetches the recently-played feed for one user's access token.
type Fetcher interface {
	RecentlyPlayed(ctx context.Context) ([]spotify.Play, error)
}

// Store persists play events. Implemented by db.PlayEventRepository.
type Store interface {
	IngestWindow(ctx context.Context, userID string, windowStart time.Time, events []db.PlayEvent) (int, error)
}

// Service runs cleanup-then-insert ingestion inside the request that
// triggers it. There is no scheduled job.
type Service struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates an ingestion service.
func New(store Store, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With("component", "ingest"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result describes one ingestion run. Events holds the in-window subset of
// the fetched plays, letting callers aggregate over the live feed without a
// second store read.
type Result struct {
	WindowStart time.Time
	Fetched     int
	Inserted    int
	Events      []db.PlayEvent
}

// Ingest fetches up to 50 recent plays for the user and stores the
// in-window remainder via IngestPlays.
func (s *Service) Ingest(ctx context.Context, fetcher Fetcher, userID string) (*Result, error) {
	plays, err := fetcher.RecentlyPlayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}
	return s.IngestPlays(ctx, userID, plays)
}

// IngestPlays drops plays outside the current weekly window and stores the
// remainder. Stale rows are deleted and new ones inserted in a single
// transaction, so a failure never leaves the week truncated without its
// replacement.
func (s *Service) IngestPlays(ctx context.Context, userID string, plays []spotify.Play) (*Result, error) {
	windowStart := WindowStart(s.now())

	events := make([]db.PlayEvent, 0, len(plays))
	for _, p := range plays {
		if !InWindow(p.PlayedAt, windowStart) {
			continue
		}
		events = append(events, toEvent(userID, p))
	}

	inserted, err := s.store.IngestWindow(ctx, userID, windowStart, events)
	if err != nil {
		return nil, fmt.Errorf("storing play events: %w", err)
	}

	metrics.PlaysIngested.Add(float64(inserted))
	s.logger.Debug("ingested plays",
		"user", userID,
		"fetched", len(plays),
		"in_window", len(events),
		"inserted", inserted,
	)

	return &Result{
		WindowStart: windowStart,
		Fetched:     len(plays),
		Inserted:    inserted,
		Events:      events,
	}, nil
}

func toEvent(userID string, p spotify.Play) db.PlayEvent {
	e := db.PlayEvent{
		UserID:     userID,
		TrackID:    p.TrackID,
		TrackName:  p.TrackName,
		ArtistName: p.ArtistName,
		PlayedAt:   p.PlayedAt.UTC(),
		DurationMs: p.DurationMs,
	}
	if p.AlbumName != "" {
		name := p.AlbumName
		e.AlbumName = &name
	}
	if p.AlbumImage != "" {
		img := p.AlbumImage
		e.AlbumImage = &img
	}
	if p.Features != nil {
		e.AudioFeatures = &db.AudioFeatures{
			Danceability: p.Features.Danceability,
			Energy:       p.Features.Energy,
			Valence:      p.Features.Valence,
			Tempo:        p.Features.Tempo,
			Acousticness: p.Features.Acousticness,
		}
	}
	return e
}
