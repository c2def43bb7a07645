// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the full server configuration.
type Config struct {
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Frontend FrontendConfig `koanf:"frontend"`
}

// SpotifyConfig holds the Spotify application credentials.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// FrontendConfig holds the URL the callback redirects back to.
type FrontendConfig struct {
	URL string `koanf:"url"`
}

func defaults() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8000/callback",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8000",
		},
		Frontend: FrontendConfig{
			URL: "http://localhost:3000",
		},
	}
}

// Load builds the configuration from defaults overlaid with environment
// variables. Variable names map onto config paths at the first underscore:
// SPOTIFY_CLIENT_ID -> spotify.client_id, DATABASE_URL -> database.url.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// knownSections limits env loading to this application's variables so
// unrelated environment noise cannot leak into the config tree.
var knownSections = map[string]bool{
	"spotify":  true,
	"database": true,
	"server":   true,
	"frontend": true,
}

func envTransform(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || !knownSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}
