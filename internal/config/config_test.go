package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "id-123")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret-456")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/wrapped")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Spotify.ClientID != "id-123" {
		t.Errorf("client id = %q, want id-123", cfg.Spotify.ClientID)
	}
	if cfg.Spotify.ClientSecret != "secret-456" {
		t.Errorf("client secret = %q, want secret-456", cfg.Spotify.ClientSecret)
	}
	if cfg.Database.URL != "postgres://localhost:5432/wrapped" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}

	// Defaults survive when not overridden.
	if cfg.Server.Addr != "127.0.0.1:8000" {
		t.Errorf("addr = %q, want default 127.0.0.1:8000", cfg.Server.Addr)
	}
	if cfg.Spotify.RedirectURI != "http://127.0.0.1:8000/callback" {
		t.Errorf("redirect uri = %q, want default", cfg.Spotify.RedirectURI)
	}
	if cfg.Frontend.URL != "http://localhost:3000" {
		t.Errorf("frontend url = %q, want default", cfg.Frontend.URL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_ADDR", "0.0.0.0:9000")
	t.Setenv("FRONTEND_URL", "https://wrapped.example")
	t.Setenv("SPOTIFY_REDIRECT_URI", "https://wrapped.example/callback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %q, want 0.0.0.0:9000", cfg.Server.Addr)
	}
	if cfg.Frontend.URL != "https://wrapped.example" {
		t.Errorf("frontend url = %q", cfg.Frontend.URL)
	}
	if cfg.Spotify.RedirectURI != "https://wrapped.example/callback" {
		t.Errorf("redirect uri = %q", cfg.Spotify.RedirectURI)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded without required variables")
	}
	for _, name := range []string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "DATABASE_URL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SPOTIFY_CLIENT_ID", "spotify.client_id"},
		{"DATABASE_URL", "database.url"},
		{"SERVER_ADDR", "server.addr"},
		{"FRONTEND_URL", "frontend.url"},
		{"HOME", ""},
		{"PATH", ""},
		{"LC_ALL", ""},
	}

	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
