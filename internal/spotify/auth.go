// Package spotify wraps the Spotify Web API client and OAuth flow.
package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested during authorization.
var Scopes = []string{
	"user-read-recently-played",
	"user-top-read",
	"user-read-private",
}

// ErrUnauthorized is returned when Spotify rejects the access token.
var ErrUnauthorized = errors.New("spotify rejected the access token")

// ErrRefreshFailed is returned when the one-shot token refresh fails.
var ErrRefreshFailed = errors.New("token refresh failed")

// Authenticator drives the OAuth2 authorization code flow and builds
// per-request API clients. Tokens are always passed in explicitly; nothing
// here holds a "current" credential.
type Authenticator struct {
	config  *oauth2.Config
	limiter *rate.Limiter
}

// NewAuthenticator creates an Authenticator for the given app credentials.
func NewAuthenticator(clientID, clientSecret, redirectURI string) (*Authenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("missing Spotify client credentials")
	}

	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		// Spotify's informal ceiling is around 180 requests per minute.
		limiter: rate.NewLimiter(rate.Limit(3), 10),
	}, nil
}

// AuthURL returns the authorization URL the user is redirected to.
func (a *Authenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for access and refresh tokens.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token, nil
}

// Refresh performs exactly one refresh attempt with the given refresh
// credential. The returned token carries the new access token; Spotify does
// not rotate refresh tokens, so the old one stays valid.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return token, nil
}

// NewClient builds an API client bound to a single access token. The token
// source is static: an expired token surfaces as ErrUnauthorized rather
// than triggering a hidden refresh.
func (a *Authenticator) NewClient(ctx context.Context, accessToken string) *Client {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	return newClient(httpClient, a.limiter)
}

// NewClientWithHTTP builds an API client over a caller-supplied HTTP
// client. Used by tests to point the wrapper at a fake server.
func (a *Authenticator) NewClientWithHTTP(httpClient *http.Client) *Client {
	return newClient(httpClient, a.limiter)
}

// SetEndpoint overrides the OAuth endpoints. Tests point this at httptest
// servers.
func (a *Authenticator) SetEndpoint(auth, token string) {
	a.config.Endpoint = oauth2.Endpoint{AuthURL: auth, TokenURL: token}
}

// GenerateState creates a random state string for CSRF protection.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
