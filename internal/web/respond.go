// Package web provides the HTTP server and JSON API for Weekly Wrapped.
package web

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mrjaymac/weekly-wrapped/internal/metrics"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
)

// apiError is the error body every failed request carries.
type apiError struct {
	Error                 string `json:"error"`
	NeedsReauthentication bool   `json:"needsReauthentication,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	metrics.RequestErrors.WithLabelValues(r.URL.Path, errorClass(status)).Inc()
	writeJSON(w, status, apiError{Error: msg})
}

// writeAuthError carries the re-authentication flag so the frontend knows
// to restart the login flow.
func writeAuthError(w http.ResponseWriter, r *http.Request, msg string) {
	metrics.RequestErrors.WithLabelValues(r.URL.Path, "auth").Inc()
	writeJSON(w, http.StatusUnauthorized, apiError{Error: msg, NeedsReauthentication: true})
}

// writeUpstreamError maps a failed Spotify or store call onto the response
// taxonomy: auth failures get the re-authentication flag, other upstream
// failures a generic server error.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, spotify.ErrUnauthorized) {
		writeAuthError(w, r, "Access token rejected")
		return
	}
	writeError(w, r, http.StatusBadGateway, "Spotify request failed")
}

func errorClass(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "auth"
	case status >= 500:
		return "server"
	default:
		return "client"
	}
}
