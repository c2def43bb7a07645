// Command weekly-wrapped runs the Weekly Wrapped API server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mrjaymac/weekly-wrapped/internal/config"
	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
	"github.com/mrjaymac/weekly-wrapped/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Authorization flows abandoned before the profile fetch leave
	// credential rows with no user; sweep month-old ones at startup.
	if removed, err := database.Credentials().DeleteOlderThan(ctx, time.Now().AddDate(0, -1, 0)); err != nil {
		logger.Warn("sweeping orphan credentials", "err", err)
	} else if removed > 0 {
		logger.Info("removed orphan credentials", "count", removed)
	}

	auth, err := spotify.NewAuthenticator(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Server.Addr,
		FrontendURL: cfg.Frontend.URL,
		Auth:        auth,
		DB:          database,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}
