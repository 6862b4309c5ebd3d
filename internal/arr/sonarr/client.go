// Package sonarr wraps the Sonarr v3 API for series lookups and deletions.
package sonarr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/arr"
	"github.com/janitarr/janitarr/internal/config"
)

const apiBase = "/api/v3"

// Series is the subset of a Sonarr series record the remove flow needs.
type Series struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
	TvdbID int64  `json:"tvdbId"`
	TmdbID int64  `json:"tmdbId"`
	ImdbID string `json:"imdbId"`
}

// Client is a Sonarr API client addressing any configured instance.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new Sonarr client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: arr.ListTimeout},
		logger:     logger.With().Str("component", "sonarr").Logger(),
	}
}

// FindSeries locates a series by TVDB id using the server-side filter.
func (c *Client) FindSeries(ctx context.Context, inst config.ArrInstance, tvdbID string) (*Series, error) {
	ctx, cancel := context.WithTimeout(ctx, arr.LookupTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("tvdbId", tvdbID)
	var series []Series
	if err := arr.Request(ctx, c.httpClient, http.MethodGet, inst, apiBase+"/series", params, &series); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}
	return &series[0], nil
}

// FindSeriesByTMDB scans the full series collection for a TMDB id match.
// Sonarr has no server-side filter for it, so this is the fallback when only
// a TMDB id could be resolved.
func (c *Client) FindSeriesByTMDB(ctx context.Context, inst config.ArrInstance, tmdbID string) (*Series, error) {
	ctx, cancel := context.WithTimeout(ctx, arr.ListTimeout)
	defer cancel()

	var series []Series
	if err := arr.Request(ctx, c.httpClient, http.MethodGet, inst, apiBase+"/series", nil, &series); err != nil {
		return nil, err
	}
	for i := range series {
		if strconv.FormatInt(series[i].TmdbID, 10) == tmdbID {
			return &series[i], nil
		}
	}
	return nil, nil
}

// DeleteSeries removes a series from an instance, deleting files on disk
// when deleteFiles is set and never recording an import exclusion.
func (c *Client) DeleteSeries(ctx context.Context, inst config.ArrInstance, seriesID int64, deleteFiles bool) error {
	ctx, cancel := context.WithTimeout(ctx, arr.LookupTimeout)
	defer cancel()

	params := arr.DeleteParams(deleteFiles, "addImportExclusion")
	path := fmt.Sprintf("%s/series/%d", apiBase, seriesID)
	return arr.Request(ctx, c.httpClient, http.MethodDelete, inst, path, params, nil)
}

// Status probes one instance's connectivity and version.
func (c *Client) Status(ctx context.Context, inst config.ArrInstance) (*arr.SystemStatus, error) {
	return arr.FetchStatus(ctx, c.httpClient, inst, apiBase)
}
