// Package plex talks to a Plex Media Server for library section rescans.
// The integration is optional: an unconfigured client reports itself as such
// and callers decide whether that is an error.
package plex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/config"
)

const (
	product        = "Janitarr"
	refreshTimeout = 15 * time.Second
)

// Client handles communication with a Plex Media Server.
type Client struct {
	cfg        config.PlexConfig
	httpClient *http.Client
	logger     zerolog.Logger
	clientID   string
	version    string
}

// NewClient creates a new Plex client for the configured server.
func NewClient(cfg config.PlexConfig, logger zerolog.Logger, version string) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: refreshTimeout},
		logger:     logger.With().Str("component", "plex").Logger(),
		clientID:   uuid.New().String(),
		version:    version,
	}
}

// Configured reports whether a server URL and token are available.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"X-Plex-Token":             c.cfg.Token,
		"X-Plex-Client-Identifier": c.clientID,
		"X-Plex-Product":           product,
		"X-Plex-Version":           c.version,
		"X-Plex-Platform":          runtime.GOOS,
		"X-Plex-Device-Name":       product,
		"Accept":                   "application/json",
	}
}

// RefreshSection asks the server to rescan one library section. Section ids
// arrive from upstream metadata as strings and are passed through untouched.
func (c *Client) RefreshSection(ctx context.Context, sectionID string) error {
	if !c.Configured() {
		return fmt.Errorf("plex is not configured")
	}
	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		return fmt.Errorf("empty section id")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/library/sections/%s/refresh",
		strings.TrimRight(c.cfg.URL, "/"), url.PathEscape(sectionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to refresh section %s: %w", sectionID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to refresh section %s: status %d", sectionID, resp.StatusCode)
	}

	c.logger.Info().Str("section_id", sectionID).Msg("Requested Plex section rescan")
	return nil
}
