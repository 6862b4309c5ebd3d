// Package api assembles the HTTP server: service clients, middleware and
// routes.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/arr/lidarr"
	"github.com/janitarr/janitarr/internal/arr/radarr"
	"github.com/janitarr/janitarr/internal/arr/sonarr"
	"github.com/janitarr/janitarr/internal/config"
	"github.com/janitarr/janitarr/internal/library"
	"github.com/janitarr/janitarr/internal/overseerr"
	"github.com/janitarr/janitarr/internal/plex"
	"github.com/janitarr/janitarr/internal/removal"
	"github.com/janitarr/janitarr/internal/tautulli"
)

// Server handles HTTP requests for the Janitarr API.
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	logger  zerolog.Logger
	version string

	tautulliClient  *tautulli.Client
	overseerrClient *overseerr.Client
	radarrClient    *radarr.Client
	sonarrClient    *sonarr.Client
	lidarrClient    *lidarr.Client
	plexClient      *plex.Client

	libraryService *library.Service
	removalService *removal.Service
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, logger zerolog.Logger, version string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		cfg:     cfg,
		logger:  logger,
		version: version,
	}

	s.tautulliClient = tautulli.NewClient(cfg.Tautulli, logger)
	s.overseerrClient = overseerr.NewClient(cfg.Overseerr, logger)
	s.radarrClient = radarr.NewClient(logger)
	s.sonarrClient = sonarr.NewClient(logger)
	s.lidarrClient = lidarr.NewClient(logger)
	s.plexClient = plex.NewClient(cfg.Plex, logger, version)

	s.libraryService = library.NewService(s.tautulliClient, logger)
	s.removalService = removal.NewService(
		cfg,
		s.tautulliClient,
		s.overseerrClient,
		s.radarrClient,
		s.sonarrClient,
		s.lidarrClient,
		logger,
	)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.BodyLimit("2M"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api")
	api.GET("/status", s.getStatus)
	api.GET("/instances", s.getInstances)

	library.NewHandlers(s.libraryService).RegisterRoutes(api)
	removal.NewHandlers(s.removalService, s.plexClient, s.tautulliClient).RegisterRoutes(api)
}

// Start begins serving on address. It blocks until the server stops.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
