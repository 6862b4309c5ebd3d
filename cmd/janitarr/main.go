package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/janitarr/janitarr/internal/api"
	"github.com/janitarr/janitarr/internal/config"
	"github.com/janitarr/janitarr/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env-file", "", "Path to a .env file (optional; environment wins)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Int("port", cfg.Server.Port).
		Int("radarr_instances", len(cfg.Radarr)).
		Int("sonarr_instances", len(cfg.Sonarr)).
		Int("lidarr_instances", len(cfg.Lidarr)).
		Bool("plex_configured", cfg.Plex.Configured()).
		Msg("starting janitarr")

	server := api.NewServer(cfg, log.Logger, config.Version)

	errChan := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errChan:
		log.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}
