package db

import (
	"time"

	"github.com/google/uuid"
)

// Credential holds the Spotify tokens for one authorized user.
// UserID is nullable: the callback stores tokens even when the profile
// lookup fails, and fills the user in on a later authorization.
type Credential struct {
	ID           uuid.UUID
	UserID       *string // nullable
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // expiry hint in seconds, stored but not consulted
	CreatedAt    time.Time
}

// PlayEvent is one recorded track play from the recently-played feed.
type PlayEvent struct {
	ID            uuid.UUID
	UserID        string
	TrackID       string
	TrackName     string
	ArtistName    string
	PlayedAt      time.Time
	AlbumName     *string // nullable
	AlbumImage    *string // nullable
	DurationMs    int
	AudioFeatures *AudioFeatures // nullable
	CreatedAt     time.Time
}

// AudioFeatures holds the Spotify audio analysis values used for mood
// clustering. Persisted as jsonb alongside the play event.
type AudioFeatures struct {
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Tempo        float64 `json:"tempo"`
	Acousticness float64 `json:"acousticness"`
}

// WeeklyReport is a persisted weekly analytics result, one row per
// user per week ending boundary.
type WeeklyReport struct {
	ID         uuid.UUID
	UserID     string
	WeekEnding time.Time
	Results    []byte // jsonb payload
	CreatedAt  time.Time
}
