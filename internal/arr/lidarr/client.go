// Package lidarr wraps the Lidarr v1 API for artist lookups and deletions.
package lidarr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/arr"
	"github.com/janitarr/janitarr/internal/config"
)

const apiBase = "/api/v1"

// Artist is the subset of a Lidarr artist record the remove flow needs.
// ForeignArtistID is the MusicBrainz artist id.
type Artist struct {
	ID              int64  `json:"id"`
	ArtistName      string `json:"artistName"`
	ForeignArtistID string `json:"foreignArtistId"`
}

// Client is a Lidarr API client addressing any configured instance.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new Lidarr client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: arr.ListTimeout},
		logger:     logger.With().Str("component", "lidarr").Logger(),
	}
}

// FindArtist scans the artist collection for a MusicBrainz id match. Lidarr
// has no server-side filter for foreign ids, so the full list is fetched.
func (c *Client) FindArtist(ctx context.Context, inst config.ArrInstance, mbid string) (*Artist, error) {
	ctx, cancel := context.WithTimeout(ctx, arr.ListTimeout)
	defer cancel()

	var artists []Artist
	if err := arr.Request(ctx, c.httpClient, http.MethodGet, inst, apiBase+"/artist", nil, &artists); err != nil {
		return nil, err
	}
	for i := range artists {
		if artists[i].ForeignArtistID == mbid {
			return &artists[i], nil
		}
	}
	return nil, nil
}

// DeleteArtist removes an artist from an instance, deleting files on disk
// when deleteFiles is set and never recording an import-list exclusion.
func (c *Client) DeleteArtist(ctx context.Context, inst config.ArrInstance, artistID int64, deleteFiles bool) error {
	ctx, cancel := context.WithTimeout(ctx, arr.LookupTimeout)
	defer cancel()

	params := arr.DeleteParams(deleteFiles, "addImportListExclusion")
	path := fmt.Sprintf("%s/artist/%d", apiBase, artistID)
	return arr.Request(ctx, c.httpClient, http.MethodDelete, inst, path, params, nil)
}

// Status probes one instance's connectivity and version.
func (c *Client) Status(ctx context.Context, inst config.ArrInstance) (*arr.SystemStatus, error) {
	return arr.FetchStatus(ctx, c.httpClient, inst, apiBase)
}
