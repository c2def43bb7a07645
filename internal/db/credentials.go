package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository handles credential database operations.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// Upsert stores a credential. When the Spotify user ID is known there is
// at most one row per user: a repeat authorization replaces the tokens in
// place. Rows without a user ID are always inserted fresh.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *Credential) error {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}

	if cred.UserID == nil {
		query := `
			INSERT INTO credentials (id, user_id, access_token, refresh_token, expires_in, created_at)
			VALUES ($1, NULL, $2, $3, $4, NOW())
			RETURNING created_at
		`
		err := r.pool.QueryRow(ctx, query,
			cred.ID,
			cred.AccessToken,
			cred.RefreshToken,
			cred.ExpiresIn,
		).Scan(&cred.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting credential: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO credentials (id, user_id, access_token, refresh_token, expires_in, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_in = EXCLUDED.expires_in
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		cred.ID,
		cred.UserID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.ExpiresIn,
	).Scan(&cred.ID, &cred.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}
	return nil
}

// UpdateAccessTokenByRefresh replaces the access token on the row matching
// the refresh token. Used after a successful token refresh.
func (r *CredentialRepository) UpdateAccessTokenByRefresh(ctx context.Context, refreshToken, accessToken string, expiresIn int) error {
	query := `
		UPDATE credentials
		SET access_token = $2, expires_in = $3
		WHERE refresh_token = $1
	`
	result, err := r.pool.Exec(ctx, query, refreshToken, accessToken, expiresIn)
	if err != nil {
		return fmt.Errorf("updating access token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachUser sets the Spotify user ID on credential rows that were stored
// before the profile lookup succeeded, keyed by refresh token. Rows that
// already carry a user ID are left alone; attaching to no rows is not an
// error.
func (r *CredentialRepository) AttachUser(ctx context.Context, refreshToken, userID string) error {
	// The NOT EXISTS check keeps the update from tripping the unique
	// user_id constraint when the user already has an attached row.
	query := `
		UPDATE credentials
		SET user_id = $2
		WHERE refresh_token = $1
		  AND user_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM credentials WHERE user_id = $2)
	`
	if _, err := r.pool.Exec(ctx, query, refreshToken, userID); err != nil {
		return fmt.Errorf("attaching credential user: %w", err)
	}
	return nil
}

// DeleteOlderThan removes credential rows created before the cutoff that
// never acquired a user ID. Orphan rows accumulate when authorization is
// abandoned before the profile fetch.
func (r *CredentialRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM credentials WHERE user_id IS NULL AND created_at < $1`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting orphan credentials: %w", err)
	}
	return result.RowsAffected(), nil
}
