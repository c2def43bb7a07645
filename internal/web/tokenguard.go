package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/metrics"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
)

type ctxKey int

const (
	ctxKeyAccessToken ctxKey = iota
	ctxKeyNewAccessToken
	ctxKeyUserID
)

// IdentityProber validates an access token against the Spotify identity
// endpoint and returns the user's ID on success. A rejected token surfaces
// as spotify.ErrUnauthorized.
type IdentityProber interface {
	Probe(ctx context.Context, accessToken string) (string, error)
}

// TokenRefresher performs one refresh attempt with a refresh credential.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// CredentialStore persists the refreshed access token and backfills the
// user on rows stored before their profile was known. Implemented by
// db.CredentialRepository.
type CredentialStore interface {
	UpdateAccessTokenByRefresh(ctx context.Context, refreshToken, accessToken string, expiresIn int) error
	AttachUser(ctx context.Context, refreshToken, userID string) error
}

// TokenGuard validates the inbound bearer credential before a proxied
// handler runs. Validity is discovered reactively: the guard probes the
// identity endpoint rather than consulting the stored expiry hint. On
// rejection it refreshes exactly once, persists the new access token, and
// forwards it to the handler for echoing. No backoff, no second attempt.
type TokenGuard struct {
	prober    IdentityProber
	refresher TokenRefresher
	creds     CredentialStore
	logger    *log.Logger
}

// NewTokenGuard creates a token guard middleware.
func NewTokenGuard(prober IdentityProber, refresher TokenRefresher, creds CredentialStore, logger *log.Logger) *TokenGuard {
	return &TokenGuard{
		prober:    prober,
		refresher: refresher,
		creds:     creds,
		logger:    logger.With("component", "tokenguard"),
	}
}

// Middleware enforces the guard on every request in the group.
func (g *TokenGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := r.URL.Query().Get("access_token")
		if accessToken == "" {
			writeAuthError(w, r, "Missing access token")
			return
		}

		ctx := r.Context()

		userID, err := g.prober.Probe(ctx, accessToken)
		if err == nil {
			ctx = context.WithValue(ctx, ctxKeyAccessToken, accessToken)
			ctx = context.WithValue(ctx, ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !errors.Is(err, spotify.ErrUnauthorized) {
			g.logger.Error("token probe failed", "err", err)
			writeError(w, r, http.StatusBadGateway, "Spotify request failed")
			return
		}

		refreshToken := r.URL.Query().Get("refresh_token")
		if refreshToken == "" {
			writeAuthError(w, r, "Access token rejected")
			return
		}

		token, err := g.refresher.Refresh(ctx, refreshToken)
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues("failure").Inc()
			g.logger.Warn("token refresh failed", "err", err)
			writeAuthError(w, r, "Token refresh failed")
			return
		}
		metrics.TokenRefreshes.WithLabelValues("success").Inc()

		if err := g.creds.UpdateAccessTokenByRefresh(ctx, refreshToken, token.AccessToken, int(token.ExpiresIn)); err != nil {
			// The new token is still usable; a missing row only means
			// this refresh credential was never stored.
			if errors.Is(err, db.ErrNotFound) {
				g.logger.Warn("no stored credential for refresh token")
			} else {
				g.logger.Error("persisting refreshed token", "err", err)
			}
		}

		userID, err = g.prober.Probe(ctx, token.AccessToken)
		if err != nil {
			// Same split as the first probe: only a rejected token means
			// re-authentication. The refresh already succeeded, so a
			// transient failure here must not restart the login flow.
			if errors.Is(err, spotify.ErrUnauthorized) {
				writeAuthError(w, r, "Refreshed token rejected")
				return
			}
			g.logger.Error("token probe failed", "err", err)
			writeError(w, r, http.StatusBadGateway, "Spotify request failed")
			return
		}

		// Rows stored while the profile lookup was failing have no user;
		// the probe just resolved one, so backfill it.
		if err := g.creds.AttachUser(ctx, refreshToken, userID); err != nil {
			g.logger.Warn("attaching user to credential", "err", err)
		}

		ctx = context.WithValue(ctx, ctxKeyAccessToken, token.AccessToken)
		ctx = context.WithValue(ctx, ctxKeyNewAccessToken, token.AccessToken)
		ctx = context.WithValue(ctx, ctxKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessTokenFrom returns the validated access token for this request.
func accessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(ctxKeyAccessToken).(string)
	return token
}

// newAccessTokenFrom returns the refreshed access token to echo in the
// response body, or "" when no refresh happened.
func newAccessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(ctxKeyNewAccessToken).(string)
	return token
}

// userIDFrom returns the Spotify user ID resolved by the guard's probe.
func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

// SpotifyProber probes token validity through the API client wrapper.
type SpotifyProber struct {
	Auth *spotify.Authenticator
}

// Probe implements IdentityProber.
func (p SpotifyProber) Probe(ctx context.Context, accessToken string) (string, error) {
	user, err := p.Auth.NewClient(ctx, accessToken).Profile(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
