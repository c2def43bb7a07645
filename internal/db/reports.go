package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WeeklyReportRepository handles persisted weekly analytics results.
type WeeklyReportRepository struct {
	pool *pgxpool.Pool
}

// Upsert stores a weekly report, replacing any earlier result for the same
// user and week ending boundary.
func (r *WeeklyReportRepository) Upsert(ctx context.Context, report *WeeklyReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	query := `
		INSERT INTO weekly_reports (id, user_id, week_ending, results, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, week_ending) DO UPDATE SET
			results = EXCLUDED.results
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		report.ID,
		report.UserID,
		report.WeekEnding,
		report.Results,
	).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting weekly report: %w", err)
	}
	return nil
}

// Get retrieves the report for a user and week ending boundary.
func (r *WeeklyReportRepository) Get(ctx context.Context, userID string, weekEnding time.Time) (*WeeklyReport, error) {
	query := `
		SELECT id, user_id, week_ending, results, created_at
		FROM weekly_reports
		WHERE user_id = $1 AND week_ending = $2
	`
	var report WeeklyReport
	err := r.pool.QueryRow(ctx, query, userID, weekEnding).Scan(
		&report.ID,
		&report.UserID,
		&report.WeekEnding,
		&report.Results,
		&report.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying weekly report: %w", err)
	}
	return &report, nil
}
