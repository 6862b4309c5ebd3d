// Package radarr wraps the Radarr v3 API for movie lookups and deletions
// across one or more configured instances.
package radarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/arr"
	"github.com/janitarr/janitarr/internal/config"
)

const apiBase = "/api/v3"

// Movie is the subset of a Radarr movie record the remove flow needs.
type Movie struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"originalTitle"`
	Year          int    `json:"year"`
	TmdbID        int64  `json:"tmdbId"`
	ImdbID        string `json:"imdbId"`
}

// Client is a Radarr API client. It is instance-agnostic: every call takes
// the instance to address, so one client serves all configured deployments.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new Radarr client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: arr.ListTimeout},
		logger:     logger.With().Str("component", "radarr").Logger(),
	}
}

// FindMovie locates a movie by TMDB id (server-side filter), falling back to
// a client-side scan of the full collection by IMDB id. Returns nil when
// neither id matches.
func (c *Client) FindMovie(ctx context.Context, inst config.ArrInstance, tmdbID, imdbID string) (*Movie, error) {
	if tmdbID != "" {
		ctx1, cancel := context.WithTimeout(ctx, arr.LookupTimeout)
		params := url.Values{}
		params.Set("tmdbId", tmdbID)
		var raw json.RawMessage
		err := arr.Request(ctx1, c.httpClient, http.MethodGet, inst, apiBase+"/movie", params, &raw)
		cancel()
		if err != nil {
			return nil, err
		}
		if movies := parseMovieList(raw); len(movies) > 0 {
			return &movies[0], nil
		}
	}

	if imdbID != "" {
		movies, err := c.listMovies(ctx, inst)
		if err != nil {
			return nil, err
		}
		want := arr.NormalizeIMDB(imdbID)
		for i := range movies {
			if arr.NormalizeIMDB(movies[i].ImdbID) == want {
				return &movies[i], nil
			}
		}
	}

	return nil, nil
}

// FindMovieByTitle locates a movie by normalized title, with an optional
// year. Matching accepts equality or a substring in either direction; with a
// year supplied, candidates carrying a different year are dropped and an
// exact title+year match is preferred over the first loose match.
func (c *Client) FindMovieByTitle(ctx context.Context, inst config.ArrInstance, title, year string) (*Movie, error) {
	wantTitle := arr.NormalizeTitle(title)
	if wantTitle == "" {
		return nil, nil
	}
	wantYear := 0
	if y, err := strconv.Atoi(year); err == nil {
		wantYear = y
	}

	movies, err := c.listMovies(ctx, inst)
	if err != nil {
		return nil, err
	}

	var candidates []*Movie
	for i := range movies {
		m := &movies[i]
		got := arr.NormalizeTitle(m.Title)
		if got == "" {
			got = arr.NormalizeTitle(m.OriginalTitle)
		}
		if !arr.TitlesMatch(wantTitle, got) {
			continue
		}
		if wantYear != 0 && m.Year != 0 && m.Year != wantYear {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	for _, m := range candidates {
		got := arr.NormalizeTitle(m.Title)
		if got == "" {
			got = arr.NormalizeTitle(m.OriginalTitle)
		}
		if got == wantTitle && (wantYear == 0 || m.Year == wantYear) {
			return m, nil
		}
	}
	return candidates[0], nil
}

// DeleteMovie removes a movie from an instance, deleting files on disk when
// deleteFiles is set and never recording an import exclusion.
func (c *Client) DeleteMovie(ctx context.Context, inst config.ArrInstance, movieID int64, deleteFiles bool) error {
	ctx, cancel := context.WithTimeout(ctx, arr.LookupTimeout)
	defer cancel()

	params := arr.DeleteParams(deleteFiles, "addImportExclusion")
	path := fmt.Sprintf("%s/movie/%d", apiBase, movieID)
	return arr.Request(ctx, c.httpClient, http.MethodDelete, inst, path, params, nil)
}

// Status probes one instance's connectivity and version.
func (c *Client) Status(ctx context.Context, inst config.ArrInstance) (*arr.SystemStatus, error) {
	return arr.FetchStatus(ctx, c.httpClient, inst, apiBase)
}

func (c *Client) listMovies(ctx context.Context, inst config.ArrInstance) ([]Movie, error) {
	ctx, cancel := context.WithTimeout(ctx, arr.ListTimeout)
	defer cancel()

	var raw json.RawMessage
	if err := arr.Request(ctx, c.httpClient, http.MethodGet, inst, apiBase+"/movie", nil, &raw); err != nil {
		return nil, err
	}
	return parseMovieList(raw), nil
}

// parseMovieList tolerates the GET /movie payload being either a bare list or
// a wrapper object, which varies across Radarr versions and proxies.
func parseMovieList(raw json.RawMessage) []Movie {
	if len(raw) == 0 {
		return nil
	}
	var movies []Movie
	if err := json.Unmarshal(raw, &movies); err == nil {
		return movies
	}
	var wrapper struct {
		Records []Movie `json:"records"`
		Movie   []Movie `json:"movie"`
		Movies  []Movie `json:"movies"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	for _, list := range [][]Movie{wrapper.Records, wrapper.Movie, wrapper.Movies} {
		if len(list) > 0 {
			return list
		}
	}
	return nil
}
