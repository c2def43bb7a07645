package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/mrjaymac/weekly-wrapped/internal/analytics"
	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/ingest"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
)

const oauthStateCookie = "oauth_state"

// CredentialSaver persists tokens obtained through the callback exchange.
// Implemented by db.CredentialRepository.
type CredentialSaver interface {
	Upsert(ctx context.Context, cred *db.Credential) error
}

// ReportGetter reads persisted weekly reports. Implemented by
// db.WeeklyReportRepository.
type ReportGetter interface {
	Get(ctx context.Context, userID string, weekEnding time.Time) (*db.WeeklyReport, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	auth        *spotify.Authenticator
	creds       CredentialSaver
	reports     ReportGetter
	ingest      *ingest.Service
	analytics   *analytics.Service
	logger      *log.Logger
	frontendURL string
}

// NewHandlers creates a Handlers instance.
func NewHandlers(auth *spotify.Authenticator, creds CredentialSaver, reports ReportGetter, ingestSvc *ingest.Service, analyticsSvc *analytics.Service, logger *log.Logger, frontendURL string) *Handlers {
	return &Handlers{
		auth:        auth,
		creds:       creds,
		reports:     reports,
		ingest:      ingestSvc,
		analytics:   analyticsSvc,
		logger:      logger.With("component", "web"),
		frontendURL: frontendURL,
	}
}

// Login starts the authorization flow (GET /login). By default it redirects
// to Spotify; with ?json=1 it returns the authorization URL for the
// frontend to navigate to.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := spotify.GenerateState()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	authURL := h.auth.AuthURL(state)
	if r.URL.Query().Get("json") == "1" {
		writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback completes the authorization flow (GET /callback): exchanges the
// code, resolves the user's profile, stores the credential, and redirects
// the frontend with the tokens as query parameters.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errMsg := q.Get("error"); errMsg != "" {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Spotify auth error: %s", errMsg))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "No authorization code provided")
		return
	}

	// State is only verifiable when the flow started on this server and
	// left its cookie; a frontend-initiated flow has no cookie to check.
	if cookie, err := r.Cookie(oauthStateCookie); err == nil {
		clearStateCookie(w)
		if q.Get("state") != cookie.Value {
			writeError(w, r, http.StatusBadRequest, "State mismatch")
			return
		}
	}

	token, err := h.auth.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("code exchange failed", "err", err)
		writeError(w, r, http.StatusBadGateway, "Failed to exchange code for token")
		return
	}

	cred := &db.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expirySeconds(token.ExpiresIn, token.Expiry),
	}

	// The profile lookup only supplies a stable user id; a failure here
	// should not abort an otherwise successful authorization.
	if user, err := h.auth.NewClient(ctx, token.AccessToken).Profile(ctx); err != nil {
		h.logger.Warn("profile lookup failed during callback", "err", err)
	} else {
		id := user.ID
		cred.UserID = &id
	}

	if err := h.creds.Upsert(ctx, cred); err != nil {
		h.logger.Error("storing credential", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Failed to store credentials")
		return
	}

	params := url.Values{
		"access_token":  {token.AccessToken},
		"refresh_token": {token.RefreshToken},
		"expires_in":    {strconv.Itoa(cred.ExpiresIn)},
	}
	http.Redirect(w, r, h.frontendURL+"/dashboard?"+params.Encode(), http.StatusTemporaryRedirect)
}

// meResponse wraps the Spotify profile with the refreshed-token annotation.
type meResponse struct {
	*spotifyapi.PrivateUser
	NewAccessToken string `json:"newAccessToken,omitempty"`
}

// Me proxies the user's profile (GET /me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.client(ctx).Profile(ctx)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		PrivateUser:    user,
		NewAccessToken: newAccessTokenFrom(ctx),
	})
}

// playJSON is one recently-played entry in the response body.
type playJSON struct {
	TrackID    string    `json:"trackId"`
	TrackName  string    `json:"trackName"`
	ArtistName string    `json:"artistName"`
	PlayedAt   time.Time `json:"playedAt"`
	AlbumName  string    `json:"albumName,omitempty"`
	AlbumImage string    `json:"albumImage,omitempty"`
	DurationMs int       `json:"durationMs"`
}

type recentlyPlayedResponse struct {
	Items          []playJSON `json:"items"`
	NewAccessToken string     `json:"newAccessToken,omitempty"`
}

// RecentlyPlayed proxies the recently-played feed and ingests it into the
// weekly window as a side effect (GET /recently-played).
func (h *Handlers) RecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := h.client(ctx)

	plays, err := client.RecentlyPlayed(ctx)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	// Mood grouping degrades gracefully without analysis values.
	if err := client.AttachFeatures(ctx, plays); err != nil {
		h.logger.Warn("fetching audio features", "err", err)
	}

	if _, err := h.ingest.IngestPlays(ctx, userIDFrom(ctx), plays); err != nil {
		h.logger.Error("ingesting recently played", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Failed to store listening history")
		return
	}

	items := make([]playJSON, len(plays))
	for i, p := range plays {
		items[i] = playJSON{
			TrackID:    p.TrackID,
			TrackName:  p.TrackName,
			ArtistName: p.ArtistName,
			PlayedAt:   p.PlayedAt,
			AlbumName:  p.AlbumName,
			AlbumImage: p.AlbumImage,
			DurationMs: p.DurationMs,
		}
	}
	writeJSON(w, http.StatusOK, recentlyPlayedResponse{
		Items:          items,
		NewAccessToken: newAccessTokenFrom(ctx),
	})
}

type topTracksResponse struct {
	Items          []spotifyapi.FullTrack `json:"items"`
	NewAccessToken string                 `json:"newAccessToken,omitempty"`
}

// TopTracks proxies the user's top tracks (GET /top-tracks).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracks, err := h.client(ctx).TopTracks(ctx, spotify.ParseTimeRange(r.URL.Query().Get("time_range")))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, topTracksResponse{
		Items:          tracks,
		NewAccessToken: newAccessTokenFrom(ctx),
	})
}

type topArtistsResponse struct {
	Items          []spotifyapi.FullArtist `json:"items"`
	NewAccessToken string                  `json:"newAccessToken,omitempty"`
}

// TopArtists proxies the user's top artists (GET /top-artists).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	artists, err := h.client(ctx).TopArtists(ctx, spotify.ParseTimeRange(r.URL.Query().Get("time_range")))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, topArtistsResponse{
		Items:          artists,
		NewAccessToken: newAccessTokenFrom(ctx),
	})
}

type weeklyAnalyticsResponse struct {
	*analytics.Summary
	NewAccessToken string `json:"newAccessToken,omitempty"`
}

// WeeklyAnalytics ingests the latest plays and returns the weekly
// aggregate (GET /weekly-analytics). With ?live=1 the aggregate is computed
// over the fetched feed alone, skipping the store read and the persisted
// report; ingestion itself still runs so the window stays current either
// way.
func (h *Handlers) WeeklyAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)
	client := h.client(ctx)

	plays, err := client.RecentlyPlayed(ctx)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	if err := client.AttachFeatures(ctx, plays); err != nil {
		h.logger.Warn("fetching audio features", "err", err)
	}

	result, err := h.ingest.IngestPlays(ctx, userID, plays)
	if err != nil {
		h.logger.Error("ingesting recently played", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Failed to store listening history")
		return
	}

	var summary *analytics.Summary
	if r.URL.Query().Get("live") == "1" {
		summary = analytics.Summarize(result.Events, result.Inserted)
	} else {
		summary, err = h.analytics.WeeklySummary(ctx, userID, result.Inserted)
		if err != nil {
			h.logger.Error("computing weekly summary", "err", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to compute analytics")
			return
		}
	}

	writeJSON(w, http.StatusOK, weeklyAnalyticsResponse{
		Summary:        summary,
		NewAccessToken: newAccessTokenFrom(ctx),
	})
}

// weeklyReportResponse carries a previously persisted aggregate verbatim.
type weeklyReportResponse struct {
	WeekEnding time.Time       `json:"weekEnding"`
	Results    json.RawMessage `json:"results"`
}

// WeeklyReport returns the persisted aggregate for the user's current week
// (GET /weekly-report). Public: requires user_id.
func (h *Handlers) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "Missing user_id")
		return
	}

	weekEnding := ingest.WeekEnding(ingest.WindowStart(time.Now()))
	report, err := h.reports.Get(r.Context(), userID, weekEnding)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "No report for this week")
		return
	}
	if err != nil {
		h.logger.Error("reading weekly report", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Failed to read report")
		return
	}

	writeJSON(w, http.StatusOK, weeklyReportResponse{
		WeekEnding: report.WeekEnding,
		Results:    json.RawMessage(report.Results),
	})
}

type topDayResponse struct {
	TopListeningDay *analytics.DayMinutes `json:"topListeningDay"`
	NoData          bool                  `json:"noData,omitempty"`
}

// TopListeningDay returns the weekday with the most listening minutes in
// the current window (GET /top-listening-day). Public: requires user_id.
func (h *Handlers) TopListeningDay(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "Missing user_id")
		return
	}

	day, err := h.analytics.TopListeningDay(r.Context(), userID)
	if err != nil {
		h.logger.Error("computing top listening day", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	writeJSON(w, http.StatusOK, topDayResponse{
		TopListeningDay: day,
		NoData:          day == nil,
	})
}

type totalTimeResponse struct {
	TotalListeningTimeMinutes int `json:"totalListeningTimeMinutes"`
}

// TotalListeningTime returns total listening minutes for the current
// window (GET /total-listening-time). Public: requires user_id.
func (h *Handlers) TotalListeningTime(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "Missing user_id")
		return
	}

	minutes, err := h.analytics.TotalListeningTime(r.Context(), userID)
	if err != nil {
		h.logger.Error("computing total listening time", "err", err)
		writeError(w, r, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	writeJSON(w, http.StatusOK, totalTimeResponse{TotalListeningTimeMinutes: minutes})
}

func (h *Handlers) client(ctx context.Context) *spotify.Client {
	return h.auth.NewClient(ctx, accessTokenFrom(ctx))
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func expirySeconds(expiresIn int64, expiry time.Time) int {
	if expiresIn > 0 {
		return int(expiresIn)
	}
	if !expiry.IsZero() {
		if secs := int(time.Until(expiry).Seconds()); secs > 0 {
			return secs
		}
	}
	return 0
}
