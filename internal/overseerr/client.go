// Package overseerr wraps the Overseerr/Jellyseerr request tracker API.
package overseerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/config"
)

var (
	ErrNotConfigured = errors.New("overseerr API key is not configured")
	ErrAPIError      = errors.New("overseerr API error")
)

const (
	statusTimeout = 10 * time.Second
	lookupTimeout = 15 * time.Second
)

// Client is an Overseerr API client.
type Client struct {
	httpClient *http.Client
	cfg        config.ServiceConfig
	logger     zerolog.Logger
}

// NewClient creates a new Overseerr client.
func NewClient(cfg config.ServiceConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: lookupTimeout},
		cfg:        cfg,
		logger:     logger.With().Str("component", "overseerr").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// Media is the tracker's view of one title.
type Media struct {
	MediaInfo *MediaInfo `json:"mediaInfo"`
}

// MediaInfo is the tracked entry behind a title, including who requested it.
type MediaInfo struct {
	ID       int64     `json:"id"`
	TmdbID   int64     `json:"tmdbId"`
	Requests []Request `json:"requests"`
}

// Request is a single user request attached to a tracked entry.
type Request struct {
	RequestedBy *User `json:"requestedBy"`
}

// User identifies a requestor.
type User struct {
	DisplayName  string `json:"displayName"`
	PlexUsername string `json:"plexUsername"`
	Email        string `json:"email"`
}

// Name returns the best display name for a requestor.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.PlexUsername != "" {
		return u.PlexUsername
	}
	return u.Email
}

// RequestorNames returns the de-duplicated, comma-joined names of everyone
// who requested this title, or "" when nothing is tracked.
func (m *Media) RequestorNames() string {
	if m == nil || m.MediaInfo == nil {
		return ""
	}
	var names []string
	seen := make(map[string]bool)
	for _, req := range m.MediaInfo.Requests {
		name := req.RequestedBy.Name()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// doRequest performs one call and decodes the JSON body into result when it
// is non-nil. The HTTP status is returned so callers can treat 404 as data.
func (c *Client) doRequest(ctx context.Context, method, path string, timeout time.Duration, result any) (int, error) {
	if !c.IsConfigured() {
		return 0, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("HTTP request failed")
		return 0, fmt.Errorf("overseerr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode overseerr response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// FindMedia looks up a title by TMDB id. mediaType selects the movie or tv
// endpoint; anything that is not "movie" maps to tv. A 404 is a valid
// "not tracked" answer, not an error.
func (c *Client) FindMedia(ctx context.Context, tmdbID, mediaType string) (*Media, error) {
	endpoint := "tv"
	if mediaType == "movie" {
		endpoint = "movie"
	}

	var media Media
	status, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/v1/%s/%s", endpoint, tmdbID), lookupTimeout, &media)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, status)
	}
	return &media, nil
}

// DeleteMedia removes a tracked entry and its cached data.
func (c *Client) DeleteMedia(ctx context.Context, mediaID int64) error {
	status, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/media/%d", mediaID), lookupTimeout, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: delete returned status %d", ErrAPIError, status)
	}
	return nil
}

// ServerInfo describes a reachable Overseerr server.
type ServerInfo struct {
	Version string
	Name    string
}

// Status probes the server and returns its version and application title.
func (c *Client) Status(ctx context.Context) (*ServerInfo, error) {
	var raw struct {
		Version          string `json:"version"`
		ApplicationTitle string `json:"applicationTitle"`
		Title            string `json:"title"`
		Name             string `json:"name"`
	}
	status, err := c.doRequest(ctx, http.MethodGet, "/api/v1/status", statusTimeout, &raw)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, status)
	}

	info := &ServerInfo{Version: raw.Version, Name: "Seerr"}
	for _, n := range []string{raw.ApplicationTitle, raw.Title, raw.Name} {
		if n != "" {
			info.Name = n
			break
		}
	}
	return info, nil
}
