// Package removal coordinates the cascade delete of one library item: the
// request tracker first, then every configured Radarr/Sonarr/Lidarr
// instance. Tautulli itself is never modified; items disappear from its
// tables once Plex rescans and the media info cache refreshes.
package removal

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janitarr/janitarr/internal/arr"
	"github.com/janitarr/janitarr/internal/arr/lidarr"
	"github.com/janitarr/janitarr/internal/arr/radarr"
	"github.com/janitarr/janitarr/internal/arr/sonarr"
	"github.com/janitarr/janitarr/internal/config"
	"github.com/janitarr/janitarr/internal/mediaids"
	"github.com/janitarr/janitarr/internal/overseerr"
	"github.com/janitarr/janitarr/internal/tautulli"
)

const requestorLookupWorkers = 8

// sectionScanLength caps the library scan used as a last-ditch id source for
// items whose metadata carries no guid.
const sectionScanLength = 500

// Request describes one item to remove. Numeric fields arrive as numbers or
// strings depending on which upstream table the frontend read them from.
type Request struct {
	RatingKey string `json:"rating_key"`
	SectionID string `json:"section_id"`
	MediaType string `json:"media_type"`
	GUID      string `json:"guid"`
	Title     string `json:"title"`
	Year      string `json:"year"`
	TmdbID    string `json:"tmdb_id"`
	TvdbID    string `json:"tvdb_id"`
	ImdbID    string `json:"imdb_id"`
	MBID      string `json:"mbid"`
}

// UnmarshalJSON coerces every field to a string so callers may send numbers.
func (r *Request) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	fields := map[string]*string{
		"rating_key": &r.RatingKey,
		"section_id": &r.SectionID,
		"media_type": &r.MediaType,
		"guid":       &r.GUID,
		"title":      &r.Title,
		"year":       &r.Year,
		"tmdb_id":    &r.TmdbID,
		"tvdb_id":    &r.TvdbID,
		"imdb_id":    &r.ImdbID,
		"mbid":       &r.MBID,
	}
	for key, target := range fields {
		if v, ok := raw[key]; ok {
			*target = coerceString(v)
		}
	}
	if r.MediaType == "" {
		r.MediaType = "movie"
	}
	return nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; rating keys and years are ints.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// Result is the per-service outcome map for one removal. It serializes flat:
// service keys at the top level, plus _section_id_for_refresh when any
// manager actually deleted something.
type Result struct {
	Overseerr string
	Tautulli  string
	Arr       string // set only on the no-ids path
	Plex      string
	Instances map[string]string

	// RefreshSectionID is non-empty when the caller should queue a Plex
	// rescan of this section.
	RefreshSectionID string
}

// Removed reports whether any manager instance deleted the item.
func (r *Result) Removed() bool {
	for _, outcome := range r.Instances {
		if outcome == arr.OutcomeRemoved {
			return true
		}
	}
	return false
}

// MarshalJSON flattens the result into a single object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.Instances)+5)
	for key, outcome := range r.Instances {
		out[key] = outcome
	}
	out["overseerr"] = r.Overseerr
	out["tautulli"] = r.Tautulli
	out["plex"] = r.Plex
	if r.Arr != "" {
		out["arr"] = r.Arr
	}
	if r.RefreshSectionID != "" {
		out["_section_id_for_refresh"] = r.RefreshSectionID
	}
	return json.Marshal(out)
}

// Service runs removals against every configured backend.
type Service struct {
	cfg       *config.Config
	tautulli  *tautulli.Client
	overseerr *overseerr.Client
	radarr    *radarr.Client
	sonarr    *sonarr.Client
	lidarr    *lidarr.Client
	logger    zerolog.Logger
}

// NewService creates a new removal service.
func NewService(
	cfg *config.Config,
	tautulliClient *tautulli.Client,
	overseerrClient *overseerr.Client,
	radarrClient *radarr.Client,
	sonarrClient *sonarr.Client,
	lidarrClient *lidarr.Client,
	logger zerolog.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		tautulli:  tautulliClient,
		overseerr: overseerrClient,
		radarr:    radarrClient,
		sonarr:    sonarrClient,
		lidarr:    lidarrClient,
		logger:    logger.With().Str("component", "removal").Logger(),
	}
}

// Remove cascades one item's deletion across the request tracker and all
// manager instances. Individual backend failures are reported per key, never
// returned as an error: the caller always gets a full outcome map.
func (s *Service) Remove(ctx context.Context, req Request) *Result {
	ids := s.resolveIDs(ctx, req)
	hasIDs := !ids.Empty()

	result := &Result{
		Tautulli:  "skipped",
		Instances: map[string]string{},
	}

	switch {
	case !hasIDs:
		result.Overseerr = arr.OutcomeSkipped("no IDs resolved")
	case req.MediaType == "artist":
		result.Overseerr = arr.OutcomeSkipped("music")
	default:
		result.Overseerr = s.removeFromOverseerr(ctx, ids.TMDB, req.MediaType)
	}

	if !hasIDs {
		s.removeWithoutIDs(ctx, req, result)
	} else {
		switch req.MediaType {
		case "movie":
			result.Instances = arr.RemoveAll(ctx, s.cfg.Radarr, "radarr", func(ctx context.Context, inst config.ArrInstance) (bool, error) {
				movie, err := s.radarr.FindMovie(ctx, inst, ids.TMDB, ids.IMDB)
				if err != nil || movie == nil {
					return false, err
				}
				return true, s.radarr.DeleteMovie(ctx, inst, movie.ID, true)
			})
		case "artist":
			if ids.MBID == "" {
				result.Instances = arr.SkipAll(s.cfg.Lidarr, "lidarr", "no MusicBrainz id")
			} else {
				result.Instances = arr.RemoveAll(ctx, s.cfg.Lidarr, "lidarr", func(ctx context.Context, inst config.ArrInstance) (bool, error) {
					artist, err := s.lidarr.FindArtist(ctx, inst, ids.MBID)
					if err != nil || artist == nil {
						return false, err
					}
					return true, s.lidarr.DeleteArtist(ctx, inst, artist.ID, true)
				})
			}
		default:
			result.Instances = arr.RemoveAll(ctx, s.cfg.Sonarr, "sonarr", func(ctx context.Context, inst config.ArrInstance) (bool, error) {
				var series *sonarr.Series
				var err error
				if ids.TVDB != "" {
					series, err = s.sonarr.FindSeries(ctx, inst, ids.TVDB)
					if err != nil {
						return false, err
					}
				}
				if series == nil && ids.TMDB != "" {
					series, err = s.sonarr.FindSeriesByTMDB(ctx, inst, ids.TMDB)
					if err != nil {
						return false, err
					}
				}
				if series == nil {
					return false, nil
				}
				return true, s.sonarr.DeleteSeries(ctx, inst, series.ID, true)
			})
		}
	}

	// Plex rescans are batched by the caller once every selected item has
	// been processed.
	if result.Removed() && req.SectionID != "" {
		result.Plex = "pending"
		result.RefreshSectionID = req.SectionID
	} else {
		result.Plex = "skipped"
	}

	s.logger.Info().
		Str("rating_key", req.RatingKey).
		Str("media_type", req.MediaType).
		Str("overseerr", result.Overseerr).
		Bool("removed", result.Removed()).
		Msg("Removal processed")
	return result
}

// resolveIDs builds the id set for a request: explicit ids first, then the
// guid, then Tautulli metadata, and as a last resort a scan of the item's
// own section table.
func (s *Service) resolveIDs(ctx context.Context, req Request) mediaids.IDSet {
	ids := mediaids.IDSet{TMDB: req.TmdbID, TVDB: req.TvdbID, IMDB: req.ImdbID, MBID: req.MBID}
	if req.GUID != "" {
		ids = ids.MergedWith(mediaids.FromGUID(req.GUID))
	}
	if req.RatingKey == "" {
		return ids
	}

	needsResolve := (ids.TMDB == "" && ids.IMDB == "") ||
		(req.MediaType == "show" && ids.TVDB == "") ||
		(req.MediaType == "artist" && ids.MBID == "")
	if !needsResolve {
		return ids
	}

	meta, err := s.tautulli.Metadata(ctx, req.RatingKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("rating_key", req.RatingKey).Msg("Metadata lookup failed")
	} else {
		// The raw response goes to the extractor so the deep scan can find
		// guids anywhere in the structure.
		ids = ids.MergedWith(mediaids.Extract(meta))
	}

	stillMissing := (req.MediaType == "movie" && ids.TMDB == "" && ids.IMDB == "") ||
		(req.MediaType == "show" && ids.TVDB == "")
	if stillMissing && req.SectionID != "" {
		ids = ids.MergedWith(s.idsFromSectionScan(ctx, req.SectionID, req.RatingKey))
	}
	return ids
}

// idsFromSectionScan finds the item's row in its section table and extracts
// ids from it. Some library rows carry a guid the metadata endpoint omits.
func (s *Service) idsFromSectionScan(ctx context.Context, sectionID, ratingKey string) mediaids.IDSet {
	env, err := s.tautulli.LibraryMediaInfo(ctx, tautulli.MediaInfoParams{
		SectionID: sectionID,
		Length:    sectionScanLength,
	})
	if err != nil || env.Result != "success" {
		return mediaids.IDSet{}
	}
	for _, item := range env.Data.Items {
		if rk, ok := item["rating_key"]; ok && coerceString(rk) == ratingKey {
			return mediaids.Extract(item)
		}
	}
	return mediaids.IDSet{}
}

func (s *Service) removeFromOverseerr(ctx context.Context, tmdbID, mediaType string) string {
	if tmdbID == "" {
		return arr.OutcomeSkipped("no TMDB id")
	}
	media, err := s.overseerr.FindMedia(ctx, tmdbID, mediaType)
	if err != nil {
		return arr.OutcomeError(err)
	}
	if media == nil || media.MediaInfo == nil {
		return arr.OutcomeNotFound
	}
	if err := s.overseerr.DeleteMedia(ctx, media.MediaInfo.ID); err != nil {
		return arr.OutcomeError(err)
	}
	return arr.OutcomeRemoved
}

// removeWithoutIDs handles items whose ids could not be resolved anywhere.
// Movies still get a title search against Radarr; everything else is skipped
// outright.
func (s *Service) removeWithoutIDs(ctx context.Context, req Request, result *Result) {
	skip := arr.OutcomeSkipped("no IDs resolved")
	result.Arr = skip

	switch req.MediaType {
	case "movie":
		if strings.TrimSpace(req.Title) == "" {
			result.Instances = arr.SkipAll(s.cfg.Radarr, "radarr", "no IDs resolved")
			return
		}
		result.Instances = arr.RemoveAll(ctx, s.cfg.Radarr, "radarr", func(ctx context.Context, inst config.ArrInstance) (bool, error) {
			movie, err := s.radarr.FindMovieByTitle(ctx, inst, req.Title, req.Year)
			if err != nil || movie == nil {
				return false, err
			}
			return true, s.radarr.DeleteMovie(ctx, inst, movie.ID, true)
		})
	case "show":
		result.Instances = arr.SkipAll(s.cfg.Sonarr, "sonarr", "no IDs resolved")
	case "artist":
		result.Instances = arr.SkipAll(s.cfg.Lidarr, "lidarr", "no IDs resolved")
	}
}

// ItemIDs resolves the guid and external ids for one rating key, for the
// remove flow when a library row carries no guid of its own.
type ItemIDs struct {
	GUID   string  `json:"guid"`
	TmdbID *string `json:"tmdb_id"`
	TvdbID *string `json:"tvdb_id"`
	ImdbID *string `json:"imdb_id"`
	MBID   *string `json:"mbid"`
}

// LookupItemIDs fetches an item's metadata and extracts its identifiers.
func (s *Service) LookupItemIDs(ctx context.Context, ratingKey string) (*ItemIDs, error) {
	raw, err := s.tautulli.Metadata(ctx, ratingKey)
	if err != nil {
		return nil, err
	}
	meta := tautulli.UnwrapMetadata(raw)

	guid, _ := meta["guid"].(string)
	if guid == "" {
		guid, _ = meta["grandparent_guid"].(string)
	}
	ids := mediaids.Extract(meta)

	return &ItemIDs{
		GUID:   guid,
		TmdbID: nullable(ids.TMDB),
		TvdbID: nullable(ids.TVDB),
		ImdbID: nullable(ids.IMDB),
		MBID:   nullable(ids.MBID),
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RequestorInfo is the tracker-side requestor summary for one rating key.
type RequestorInfo struct {
	RatingKey   string  `json:"rating_key"`
	RequestedBy *string `json:"requested_by"`
}

// Requestors batch-resolves who requested each of the given rating keys.
// Lookups run concurrently with a bounded worker pool; any per-key failure
// degrades to an entry with no requestor.
func (s *Service) Requestors(ctx context.Context, ratingKeys []string, mediaType string) map[string]RequestorInfo {
	info := make(map[string]RequestorInfo, len(ratingKeys))
	if !s.overseerr.IsConfigured() {
		return info
	}

	results := make([]RequestorInfo, len(ratingKeys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(requestorLookupWorkers)
	for i, rk := range ratingKeys {
		i, rk := i, rk
		g.Go(func() error {
			results[i] = s.lookupRequestor(ctx, rk, mediaType)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		info[res.RatingKey] = res
	}
	return info
}

func (s *Service) lookupRequestor(ctx context.Context, ratingKey, mediaType string) RequestorInfo {
	result := RequestorInfo{RatingKey: ratingKey}

	meta, err := s.tautulli.Metadata(ctx, ratingKey)
	if err != nil {
		return result
	}
	ids := mediaids.Extract(meta)
	if ids.TMDB == "" {
		return result
	}

	media, err := s.overseerr.FindMedia(ctx, ids.TMDB, mediaType)
	if err != nil {
		return result
	}
	if names := media.RequestorNames(); names != "" {
		result.RequestedBy = &names
	}
	return result
}
