package db

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayEventRepository handles play event database operations.
type PlayEventRepository struct {
	pool *pgxpool.Pool
}

// IngestWindow atomically replaces the stale part of a user's listening
// history: rows played before windowStart are deleted, and the given events
// are inserted unless the track is already recorded for the user. Both steps
// run in one transaction so a failed insert cannot leave the week truncated.
// Returns the number of newly inserted rows.
func (r *PlayEventRepository) IngestWindow(ctx context.Context, userID string, windowStart time.Time, events []PlayEvent) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteQuery := `DELETE FROM play_events WHERE user_id = $1 AND played_at < $2`
	if _, err := tx.Exec(ctx, deleteQuery, userID, windowStart); err != nil {
		return 0, fmt.Errorf("deleting stale play events: %w", err)
	}

	if len(events) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("committing transaction: %w", err)
		}
		return 0, nil
	}

	// Best-effort duplicate filter; the unique constraint on
	// (user_id, track_id, played_at) is the hard guarantee.
	trackIDs := make([]string, len(events))
	for i, e := range events {
		trackIDs[i] = e.TrackID
	}

	existing := make(map[string]bool)
	existingQuery := `
		SELECT DISTINCT track_id
		FROM play_events
		WHERE user_id = $1 AND track_id = ANY($2)
	`
	rows, err := tx.Query(ctx, existingQuery, userID, trackIDs)
	if err != nil {
		return 0, fmt.Errorf("querying existing track ids: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning track id: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading existing track ids: %w", err)
	}

	fresh := newEvents(events, existing)
	if len(fresh) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("committing transaction: %w", err)
		}
		return 0, nil
	}

	insertQuery := `
		INSERT INTO play_events (id, user_id, track_id, track_name, artist_name, played_at, album_name, album_image, duration_ms, audio_features, created_at)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::text[], $4::text[], $5::text[], $6::timestamptz[], $7::text[], $8::text[], $9::int[], $10::jsonb[], $11::timestamptz[])
		ON CONFLICT (user_id, track_id, played_at) DO NOTHING
	`

	ids := make([]uuid.UUID, len(fresh))
	userIDs := make([]string, len(fresh))
	freshTrackIDs := make([]string, len(fresh))
	trackNames := make([]string, len(fresh))
	artistNames := make([]string, len(fresh))
	playedAts := make([]time.Time, len(fresh))
	albumNames := make([]*string, len(fresh))
	albumImages := make([]*string, len(fresh))
	durations := make([]int, len(fresh))
	features := make([]*string, len(fresh))
	createdAts := make([]time.Time, len(fresh))

	now := time.Now()
	for i, e := range fresh {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		ids[i] = e.ID
		userIDs[i] = userID
		freshTrackIDs[i] = e.TrackID
		trackNames[i] = e.TrackName
		artistNames[i] = e.ArtistName
		playedAts[i] = e.PlayedAt
		albumNames[i] = e.AlbumName
		albumImages[i] = e.AlbumImage
		durations[i] = e.DurationMs
		createdAts[i] = now

		if e.AudioFeatures != nil {
			raw, err := json.Marshal(e.AudioFeatures)
			if err != nil {
				return 0, fmt.Errorf("encoding audio features: %w", err)
			}
			s := string(raw)
			features[i] = &s
		}
	}

	result, err := tx.Exec(ctx, insertQuery,
		ids, userIDs, freshTrackIDs, trackNames, artistNames,
		playedAts, albumNames, albumImages, durations, features, createdAts,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting play events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// newEvents drops events whose track already has a stored play for the
// user. Re-ingesting an identical feed therefore yields nothing to insert;
// the unique constraint catches whatever races past this filter.
func newEvents(events []PlayEvent, existing map[string]bool) []PlayEvent {
	var fresh []PlayEvent
	for _, e := range events {
		if !existing[e.TrackID] {
			fresh = append(fresh, e)
		}
	}
	return fresh
}

// EventsSince retrieves a user's play events at or after the given boundary,
// ordered by played_at ascending so downstream ranking is stable.
func (r *PlayEventRepository) EventsSince(ctx context.Context, userID string, since time.Time) ([]PlayEvent, error) {
	query := `
		SELECT id, user_id, track_id, track_name, artist_name, played_at, album_name, album_image, duration_ms, audio_features, created_at
		FROM play_events
		WHERE user_id = $1 AND played_at >= $2
		ORDER BY played_at ASC
	`
	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("querying play events: %w", err)
	}
	defer rows.Close()

	var events []PlayEvent
	for rows.Next() {
		var e PlayEvent
		var rawFeatures []byte
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.TrackID,
			&e.TrackName,
			&e.ArtistName,
			&e.PlayedAt,
			&e.AlbumName,
			&e.AlbumImage,
			&e.DurationMs,
			&rawFeatures,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning play event: %w", err)
		}
		if len(rawFeatures) > 0 {
			var af AudioFeatures
			if err := json.Unmarshal(rawFeatures, &af); err != nil {
				return nil, fmt.Errorf("decoding audio features: %w", err)
			}
			e.AudioFeatures = &af
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
