// Package tautulli wraps the Tautulli v2 API, a command-based RPC over a
// single endpoint. Tautulli fronts the Plex watch-history/metadata cache that
// drives the library browsing UI.
package tautulli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/config"
)

var (
	ErrNotConfigured = errors.New("tautulli API key is not configured")
	// ErrBadContentType means the endpoint answered with something other
	// than JSON. That is a misconfigured URL, not a real API error, and is
	// kept distinct so the two are visibly different.
	ErrBadContentType = errors.New("tautulli returned a non-JSON response")
)

// APIError is an error reported inside a successful HTTP response envelope.
type APIError struct {
	Cmd     string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("tautulli API error: %s", msg)
}

const (
	statusTimeout = 10 * time.Second
	lookupTimeout = 15 * time.Second
	// List and metadata calls can return large payloads.
	listTimeout = 30 * time.Second
)

// Client is a Tautulli API client.
type Client struct {
	httpClient *http.Client
	cfg        config.ServiceConfig
	logger     zerolog.Logger
}

// NewClient creates a new Tautulli client.
func NewClient(cfg config.ServiceConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: listTimeout},
		cfg:        cfg,
		logger:     logger.With().Str("component", "tautulli").Logger(),
	}
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// envelope is the standard Tautulli response wrapper.
type envelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

// callEnvelope performs one API command and returns the decoded envelope
// without asserting the command succeeded. Transport failures, non-2xx
// statuses and non-JSON responses are still errors.
func (c *Client) callEnvelope(ctx context.Context, timeout time.Duration, cmd string, params url.Values) (*envelope, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.cfg.APIKey)
	params.Set("cmd", cmd)

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.cfg.URL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("cmd", cmd).Msg("HTTP request failed")
		return nil, fmt.Errorf("tautulli request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tautulli returned status %d for %s", resp.StatusCode, cmd)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "json") && !strings.Contains(ct, "javascript") {
		return nil, fmt.Errorf("%w (Content-Type: %s): check TAUTULLI_URL (%s) and TAUTULLI_API_KEY",
			ErrBadContentType, ct, c.cfg.URL)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode tautulli response: %w", err)
	}
	return &env, nil
}

// call performs one API command and returns the data payload, converting a
// non-success envelope into an *APIError.
func (c *Client) call(ctx context.Context, timeout time.Duration, cmd string, params url.Values) (json.RawMessage, error) {
	env, err := c.callEnvelope(ctx, timeout, cmd, params)
	if err != nil {
		return nil, err
	}
	if env.Response.Result != "success" {
		return nil, &APIError{Cmd: cmd, Message: env.Response.Message}
	}
	return env.Response.Data, nil
}

// ServerInfo describes a reachable Tautulli server.
type ServerInfo struct {
	Version string
	Name    string
}

// Info probes the server and returns its version and product name.
func (c *Client) Info(ctx context.Context) (*ServerInfo, error) {
	data, err := c.call(ctx, statusTimeout, "get_tautulli_info", nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode tautulli info: %w", err)
	}
	info := &ServerInfo{Name: "Tautulli"}
	if v, ok := raw["tautulli_version"].(string); ok {
		info.Version = v
	}
	for _, key := range []string{"tautulli_product", "product", "app_name"} {
		if n, ok := raw[key].(string); ok && n != "" {
			info.Name = n
			break
		}
	}
	return info, nil
}

// Library is one Plex section as reported by Tautulli.
type Library struct {
	SectionID   FlexString `json:"section_id"`
	SectionName string     `json:"section_name"`
	SectionType string     `json:"section_type"`
	Count       FlexInt    `json:"count"`
}

// Libraries lists all library sections.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	data, err := c.call(ctx, lookupTimeout, "get_libraries", nil)
	if err != nil {
		return nil, err
	}
	var libs []Library
	if err := json.Unmarshal(data, &libs); err != nil {
		// Some versions wrap the list; a non-list payload means no sections.
		return nil, nil
	}
	return libs, nil
}

// MediaInfoParams selects a page of a section's media info table.
type MediaInfoParams struct {
	SectionID   string
	Length      int
	Start       int
	Search      string
	OrderColumn string
	OrderDir    string
	Refresh     bool
}

// MediaInfoEnvelope is the full get_library_media_info response. Callers need
// the message even on success: Tautulli reports its "calculating file sizes"
// state there.
type MediaInfoEnvelope struct {
	Result  string
	Message string
	Data    MediaInfoData
}

// MediaInfoData is the inner payload of a media info response.
type MediaInfoData struct {
	RecordsFiltered  FlexInt          `json:"recordsFiltered"`
	RecordsTotal     FlexInt          `json:"recordsTotal"`
	TotalFileSize    FlexInt          `json:"total_file_size"`
	FilteredFileSize FlexInt          `json:"filtered_file_size"`
	Items            []map[string]any `json:"data"`
}

// UnmarshalJSON tolerates the payload being either the usual object or a bare
// item list, which older Tautulli versions emit.
func (d *MediaInfoData) UnmarshalJSON(b []byte) error {
	type alias MediaInfoData
	var obj alias
	if err := json.Unmarshal(b, &obj); err == nil {
		*d = MediaInfoData(obj)
		return nil
	}
	var items []map[string]any
	if err := json.Unmarshal(b, &items); err == nil {
		*d = MediaInfoData{Items: items, RecordsTotal: FlexInt(len(items)), RecordsFiltered: FlexInt(len(items))}
		return nil
	}
	*d = MediaInfoData{}
	return nil
}

// LibraryMediaInfo fetches one page of a section's media info. The envelope
// is returned even when the command reports a non-success result so callers
// can inspect the message; only transport and contract errors fail the call.
func (c *Client) LibraryMediaInfo(ctx context.Context, p MediaInfoParams) (*MediaInfoEnvelope, error) {
	params := url.Values{}
	params.Set("section_id", p.SectionID)
	params.Set("length", strconv.Itoa(p.Length))
	params.Set("start", strconv.Itoa(p.Start))
	if p.Search != "" {
		params.Set("search", p.Search)
	}
	if p.OrderColumn != "" {
		params.Set("order_column", p.OrderColumn)
	}
	if p.OrderDir != "" {
		params.Set("order_dir", p.OrderDir)
	}
	if p.Refresh {
		params.Set("refresh", "true")
	}

	env, err := c.callEnvelope(ctx, listTimeout, "get_library_media_info", params)
	if err != nil {
		return nil, err
	}

	out := &MediaInfoEnvelope{
		Result:  env.Response.Result,
		Message: env.Response.Message,
	}
	if len(env.Response.Data) > 0 {
		// Decode errors leave an empty payload; the envelope itself is
		// still meaningful to the caller.
		_ = json.Unmarshal(env.Response.Data, &out.Data)
	}
	return out, nil
}

// Metadata returns the raw decoded get_metadata payload for one rating key.
// The shape proxies a third-party schema, so it is handed back as a generic
// tree for the id extractor to walk.
func (c *Client) Metadata(ctx context.Context, ratingKey string) (any, error) {
	params := url.Values{}
	params.Set("rating_key", ratingKey)
	data, err := c.call(ctx, listTimeout, "get_metadata", params)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return v, nil
}

// UnwrapMetadata reduces a raw get_metadata payload to the metadata object:
// a one-element list is unwrapped, as is a {"metadata": {...}} wrapper.
// Returns an empty map for anything unrecognizable.
func UnwrapMetadata(v any) map[string]any {
	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if inner, ok := m["metadata"].(map[string]any); ok {
		return inner
	}
	return m
}

// DeleteHistory removes all play-history rows for one rating key. Returns the
// number of rows deleted.
func (c *Client) DeleteHistory(ctx context.Context, ratingKey string) (int, error) {
	params := url.Values{}
	params.Set("rating_key", ratingKey)
	params.Set("length", "10000")
	data, err := c.call(ctx, listTimeout, "get_history", params)
	if err != nil {
		return 0, err
	}

	var hist struct {
		Data []struct {
			ID FlexInt `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &hist); err != nil || len(hist.Data) == 0 {
		return 0, nil
	}

	rowIDs := make([]string, 0, len(hist.Data))
	for _, row := range hist.Data {
		if row.ID != 0 {
			rowIDs = append(rowIDs, strconv.FormatInt(int64(row.ID), 10))
		}
	}
	if len(rowIDs) == 0 {
		return 0, nil
	}

	del := url.Values{}
	del.Set("row_ids", strings.Join(rowIDs, ","))
	if _, err := c.call(ctx, lookupTimeout, "delete_history", del); err != nil {
		return 0, err
	}
	return len(hist.Data), nil
}

// DeleteMediaInfoCache removes the cached media-info for a single item.
func (c *Client) DeleteMediaInfoCache(ctx context.Context, sectionID, ratingKey string) error {
	params := url.Values{}
	params.Set("section_id", sectionID)
	params.Set("rating_key", ratingKey)
	_, err := c.call(ctx, lookupTimeout, "delete_media_info_cache", params)
	return err
}

// RefreshMediaInfo forces Tautulli to rebuild a section's cached media info.
// Called after Plex rescans so removed items drop out of the table.
func (c *Client) RefreshMediaInfo(ctx context.Context, sectionID string) error {
	env, err := c.LibraryMediaInfo(ctx, MediaInfoParams{
		SectionID: sectionID,
		Length:    10,
		Start:     0,
		Refresh:   true,
	})
	if err != nil {
		return err
	}
	if env.Result != "success" {
		return &APIError{Cmd: "get_library_media_info", Message: env.Message}
	}
	return nil
}
