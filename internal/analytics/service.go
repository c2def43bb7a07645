package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/ingest"
)

// PlayReader reads stored play events. Implemented by db.PlayEventRepository.
type PlayReader interface {
	EventsSince(ctx context.Context, userID string, since time.Time) ([]db.PlayEvent, error)
}

// ReportWriter persists computed weekly reports. Implemented by
// db.WeeklyReportRepository.
type ReportWriter interface {
	Upsert(ctx context.Context, report *db.WeeklyReport) error
}

// Service computes weekly summaries over the persisted window. This is the
// authoritative, store-backed aggregation; Summarize is also usable
// directly over live-fetched events as a cache-free fallback.
type Service struct {
	plays   PlayReader
	reports ReportWriter
	logger  *log.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates an analytics service. reports may be nil when report
// persistence is not wanted.
func New(plays PlayReader, reports ReportWriter, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		plays:   plays,
		reports: reports,
		logger:  logger.With("component", "analytics"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WeeklySummary computes the aggregate for the user's current weekly
// window and, when a report writer is configured, persists the result keyed
// by (user, week ending). Persistence failure is logged, not surfaced: the
// report row is a byproduct, not the response.
func (s *Service) WeeklySummary(ctx context.Context, userID string, newTracks int) (*Summary, error) {
	windowStart := ingest.WindowStart(s.now())

	events, err := s.plays.EventsSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("reading weekly window: %w", err)
	}

	summary := Summarize(events, newTracks)

	if s.reports != nil && !summary.NoData {
		if err := s.persistReport(ctx, userID, windowStart, summary); err != nil {
			s.logger.Error("persisting weekly report", "user", userID, "err", err)
		}
	}

	return summary, nil
}

// TopListeningDay returns the weekday with the most listening minutes in
// the current window, or nil when the window is empty.
func (s *Service) TopListeningDay(ctx context.Context, userID string) (*DayMinutes, error) {
	events, err := s.windowEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	return TopDay(MinutesByDay(events)), nil
}

// TotalListeningTime returns the user's total listening minutes for the
// current window.
func (s *Service) TotalListeningTime(ctx context.Context, userID string) (int, error) {
	events, err := s.windowEvents(ctx, userID)
	if err != nil {
		return 0, err
	}
	return TotalMinutes(events), nil
}

func (s *Service) windowEvents(ctx context.Context, userID string) ([]db.PlayEvent, error) {
	windowStart := ingest.WindowStart(s.now())
	events, err := s.plays.EventsSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("reading weekly window: %w", err)
	}
	return events, nil
}

func (s *Service) persistReport(ctx context.Context, userID string, windowStart time.Time, summary *Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return s.reports.Upsert(ctx, &db.WeeklyReport{
		UserID:     userID,
		WeekEnding: ingest.WeekEnding(windowStart),
		Results:    payload,
	})
}
