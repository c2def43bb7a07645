package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mrjaymac/weekly-wrapped/internal/analytics"
	"github.com/mrjaymac/weekly-wrapped/internal/db"
	"github.com/mrjaymac/weekly-wrapped/internal/ingest"
	"github.com/mrjaymac/weekly-wrapped/internal/metrics"
	"github.com/mrjaymac/weekly-wrapped/internal/spotify"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	FrontendURL string
	Auth        *spotify.Authenticator
	DB          *db.DB
	Logger      *log.Logger
}

// Server is the HTTP server for the API.
type Server struct {
	router chi.Router
	server *http.Server
	logger *log.Logger
}

// NewServer wires repositories, services, and handlers into a running
// configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Auth == nil || cfg.DB == nil {
		return nil, fmt.Errorf("server requires an authenticator and a database")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ingestSvc := ingest.New(cfg.DB.Plays(), logger)
	analyticsSvc := analytics.New(cfg.DB.Plays(), cfg.DB.Reports(), logger)
	handlers := NewHandlers(cfg.Auth, cfg.DB.Credentials(), cfg.DB.Reports(), ingestSvc, analyticsSvc, logger, cfg.FrontendURL)

	guard := NewTokenGuard(SpotifyProber{Auth: cfg.Auth}, cfg.Auth, cfg.DB.Credentials(), logger)
	suppressor := NewSuppressor()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.FrontendURL},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	// Auth flow
	router.Get("/login", handlers.Login)
	router.Get("/callback", handlers.Callback)

	// Token-guarded proxies
	router.Group(func(r chi.Router) {
		r.Use(suppressor.Middleware)
		r.Use(guard.Middleware)
		r.Get("/me", handlers.Me)
		r.Get("/recently-played", handlers.RecentlyPlayed)
		r.Get("/top-tracks", handlers.TopTracks)
		r.Get("/top-artists", handlers.TopArtists)
		r.Get("/weekly-analytics", handlers.WeeklyAnalytics)
	})

	// Public analytics
	router.Get("/top-listening-day", handlers.TopListeningDay)
	router.Get("/total-listening-time", handlers.TotalListeningTime)
	router.Get("/weekly-report", handlers.WeeklyReport)

	// Ops
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.DB.Ping(r.Context()); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())

	return &Server{
		router: router,
		logger: logger.With("component", "server"),
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
