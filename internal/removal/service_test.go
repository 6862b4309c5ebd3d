package removal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janitarr/janitarr/internal/arr/lidarr"
	"github.com/janitarr/janitarr/internal/arr/radarr"
	"github.com/janitarr/janitarr/internal/arr/sonarr"
	"github.com/janitarr/janitarr/internal/config"
	"github.com/janitarr/janitarr/internal/overseerr"
	"github.com/janitarr/janitarr/internal/tautulli"
	"github.com/janitarr/janitarr/internal/testutil"
)

// backends wires a removal service against fake upstream servers. Nil
// handlers leave the corresponding service unconfigured.
type backends struct {
	tautulli  http.HandlerFunc
	overseerr http.HandlerFunc
	radarr    []http.HandlerFunc
	sonarr    []http.HandlerFunc
	lidarr    []http.HandlerFunc
}

func (b *backends) build(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{}

	if b.tautulli != nil {
		srv := httptest.NewServer(b.tautulli)
		t.Cleanup(srv.Close)
		cfg.Tautulli = config.ServiceConfig{URL: srv.URL, APIKey: "key"}
	}
	if b.overseerr != nil {
		srv := httptest.NewServer(b.overseerr)
		t.Cleanup(srv.Close)
		cfg.Overseerr = config.ServiceConfig{URL: srv.URL, APIKey: "key"}
	}
	for i, h := range b.radarr {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		cfg.Radarr = append(cfg.Radarr, config.ArrInstance{
			URL: srv.URL, APIKey: "key", Name: fmt.Sprintf("Radarr %d", i+1),
		})
	}
	for i, h := range b.sonarr {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		cfg.Sonarr = append(cfg.Sonarr, config.ArrInstance{
			URL: srv.URL, APIKey: "key", Name: fmt.Sprintf("Sonarr %d", i+1),
		})
	}
	for i, h := range b.lidarr {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		cfg.Lidarr = append(cfg.Lidarr, config.ArrInstance{
			URL: srv.URL, APIKey: "key", Name: fmt.Sprintf("Lidarr %d", i+1),
		})
	}

	logger := testutil.NewTestLogger(t)
	return NewService(
		cfg,
		tautulli.NewClient(cfg.Tautulli, logger),
		overseerr.NewClient(cfg.Overseerr, logger),
		radarr.NewClient(logger),
		sonarr.NewClient(logger),
		lidarr.NewClient(logger),
		logger,
	)
}

// radarrWithMovie serves one movie for any tmdbId filter and accepts its
// deletion.
func radarrWithMovie(t *testing.T, movieID int64, deleted *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v3/movie":
			fmt.Fprintf(w, `[{"id":%d,"title":"Heat","year":1995,"tmdbId":949}]`, movieID)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v3/movie/"):
			if r.URL.Query().Get("deleteFiles") != "true" {
				t.Errorf("deleteFiles = %q, want true", r.URL.Query().Get("deleteFiles"))
			}
			if deleted != nil {
				*deleted = true
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected radarr call: %s %s", r.Method, r.URL.Path)
		}
	}
}

func emptyRadarr() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}
}

func overseerrWithMedia(t *testing.T, mediaID int64, deleted *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/movie/"),
			r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/tv/"):
			fmt.Fprintf(w, `{"mediaInfo":{"id":%d,"tmdbId":949}}`, mediaID)
		case r.Method == http.MethodDelete && r.URL.Path == fmt.Sprintf("/api/v1/media/%d", mediaID):
			if deleted != nil {
				*deleted = true
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected overseerr call: %s %s", r.Method, r.URL.Path)
		}
	}
}

func TestService_Remove_MovieCascade(t *testing.T) {
	var overseerrDeleted, radarr1Deleted bool
	svc := (&backends{
		overseerr: overseerrWithMedia(t, 42, &overseerrDeleted),
		radarr: []http.HandlerFunc{
			radarrWithMovie(t, 12, &radarr1Deleted),
			emptyRadarr(),
		},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		RatingKey: "100",
		SectionID: "1",
		MediaType: "movie",
		TmdbID:    "949",
	})

	assert.True(t, overseerrDeleted)
	assert.True(t, radarr1Deleted)
	assert.Equal(t, "removed", result.Overseerr)
	assert.Equal(t, "removed", result.Instances["radarr_1"])
	assert.Equal(t, "not_found", result.Instances["radarr_2"])
	assert.Equal(t, "skipped", result.Tautulli)
	assert.Equal(t, "pending", result.Plex)
	assert.Equal(t, "1", result.RefreshSectionID)
}

func TestService_Remove_PlexSkippedWhenNothingRemoved(t *testing.T) {
	svc := (&backends{
		overseerr: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		radarr: []http.HandlerFunc{emptyRadarr()},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		SectionID: "1",
		MediaType: "movie",
		TmdbID:    "949",
	})

	assert.Equal(t, "not_found", result.Overseerr)
	assert.Equal(t, "not_found", result.Instances["radarr_1"])
	assert.Equal(t, "skipped", result.Plex)
	assert.Empty(t, result.RefreshSectionID)
}

func TestService_Remove_ArtistSkipsOverseerr(t *testing.T) {
	var lidarrDeleted bool
	svc := (&backends{
		lidarr: []http.HandlerFunc{func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/api/v1/artist":
				fmt.Fprint(w, `[{"id":3,"artistName":"Nirvana","foreignArtistId":"mb-123"}]`)
			case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/artist/3":
				lidarrDeleted = true
				w.WriteHeader(http.StatusOK)
			default:
				t.Errorf("unexpected lidarr call: %s %s", r.Method, r.URL.Path)
			}
		}},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		SectionID: "5",
		MediaType: "artist",
		MBID:      "mb-123",
	})

	assert.True(t, lidarrDeleted)
	assert.Equal(t, "skipped (music)", result.Overseerr)
	assert.Equal(t, "removed", result.Instances["lidarr_1"])
	assert.Equal(t, "pending", result.Plex)
}

func TestService_Remove_ShowFallsBackToTMDB(t *testing.T) {
	var deleted bool
	svc := (&backends{
		overseerr: overseerrWithMedia(t, 42, nil),
		sonarr: []http.HandlerFunc{func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/api/v3/series":
				if r.URL.Query().Get("tvdbId") != "" {
					// TVDB lookup misses; the TMDB scan must follow.
					fmt.Fprint(w, `[]`)
					return
				}
				fmt.Fprint(w, `[{"id":8,"title":"Severance","tmdbId":95396}]`)
			case r.Method == http.MethodDelete && r.URL.Path == "/api/v3/series/8":
				deleted = true
				w.WriteHeader(http.StatusOK)
			default:
				t.Errorf("unexpected sonarr call: %s %s", r.Method, r.URL.Path)
			}
		}},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		MediaType: "show",
		TvdbID:    "999",
		TmdbID:    "95396",
	})

	assert.True(t, deleted)
	assert.Equal(t, "removed", result.Instances["sonarr_1"])
}

func TestService_Remove_NoIDsNoTitle(t *testing.T) {
	svc := (&backends{
		radarr: []http.HandlerFunc{emptyRadarr(), emptyRadarr()},
	}).build(t)

	result := svc.Remove(context.Background(), Request{MediaType: "movie"})

	assert.Equal(t, "skipped (no IDs resolved)", result.Overseerr)
	assert.Equal(t, "skipped (no IDs resolved)", result.Arr)
	assert.Equal(t, "skipped (no IDs resolved)", result.Instances["radarr_1"])
	assert.Equal(t, "skipped (no IDs resolved)", result.Instances["radarr_2"])
	assert.Equal(t, "skipped", result.Plex)
}

func TestService_Remove_NoIDsTitleFallback(t *testing.T) {
	var deleted bool
	svc := (&backends{
		radarr: []http.HandlerFunc{func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/api/v3/movie":
				fmt.Fprint(w, `[{"id":9,"title":"Heat","year":1995}]`)
			case r.Method == http.MethodDelete && r.URL.Path == "/api/v3/movie/9":
				deleted = true
				w.WriteHeader(http.StatusOK)
			default:
				t.Errorf("unexpected radarr call: %s %s", r.Method, r.URL.Path)
			}
		}},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		MediaType: "movie",
		SectionID: "1",
		Title:     "Heat",
		Year:      "1995",
	})

	assert.True(t, deleted)
	assert.Equal(t, "skipped (no IDs resolved)", result.Overseerr)
	assert.Equal(t, "removed", result.Instances["radarr_1"])
	assert.Equal(t, "pending", result.Plex)
	assert.Equal(t, "1", result.RefreshSectionID)
}

func TestService_Remove_ResolvesIDsFromGUID(t *testing.T) {
	var deleted bool
	svc := (&backends{
		overseerr: overseerrWithMedia(t, 42, nil),
		radarr:    []http.HandlerFunc{radarrWithMovie(t, 12, &deleted)},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		MediaType: "movie",
		GUID:      "com.plexapp.agents.themoviedb://949?lang=en",
	})

	assert.True(t, deleted)
	assert.Equal(t, "removed", result.Overseerr)
	assert.Equal(t, "removed", result.Instances["radarr_1"])
}

func TestService_Remove_ResolvesIDsFromMetadata(t *testing.T) {
	var deleted bool
	svc := (&backends{
		tautulli: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if cmd := r.URL.Query().Get("cmd"); cmd != "get_metadata" {
				t.Errorf("unexpected cmd: %s", cmd)
			}
			fmt.Fprint(w, `{"response":{"result":"success","data":{"metadata":{
				"guids":["tmdb://949","imdb://tt0113277"]
			}}}}`)
		},
		overseerr: overseerrWithMedia(t, 42, nil),
		radarr:    []http.HandlerFunc{radarrWithMovie(t, 12, &deleted)},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		RatingKey: "100",
		MediaType: "movie",
	})

	assert.True(t, deleted)
	assert.Equal(t, "removed", result.Overseerr)
}

func TestService_Remove_SectionScanFallback(t *testing.T) {
	var deleted bool
	svc := (&backends{
		tautulli: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch cmd := r.URL.Query().Get("cmd"); cmd {
			case "get_metadata":
				// No usable ids anywhere in the metadata.
				fmt.Fprint(w, `{"response":{"result":"success","data":{"metadata":{"title":"Heat"}}}}`)
			case "get_library_media_info":
				if got := r.URL.Query().Get("length"); got != "500" {
					t.Errorf("scan length = %s, want 500", got)
				}
				fmt.Fprint(w, `{"response":{"result":"success","data":{"data":[
					{"rating_key":99,"guid":"tmdb://1"},
					{"rating_key":100,"guid":"com.plexapp.agents.themoviedb://949"}
				]}}}`)
			default:
				t.Errorf("unexpected cmd: %s", cmd)
			}
		},
		overseerr: overseerrWithMedia(t, 42, nil),
		radarr:    []http.HandlerFunc{radarrWithMovie(t, 12, &deleted)},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		RatingKey: "100",
		SectionID: "1",
		MediaType: "movie",
	})

	assert.True(t, deleted)
	assert.Equal(t, "removed", result.Instances["radarr_1"])
}

func TestService_Remove_OverseerrSkippedWithoutTMDB(t *testing.T) {
	svc := (&backends{
		radarr: []http.HandlerFunc{func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				fmt.Fprint(w, `[{"id":4,"title":"Heat","imdbId":"tt0113277"}]`)
			case http.MethodDelete:
				w.WriteHeader(http.StatusOK)
			}
		}},
	}).build(t)

	result := svc.Remove(context.Background(), Request{
		MediaType: "movie",
		ImdbID:    "tt0113277",
	})

	assert.Equal(t, "skipped (no TMDB id)", result.Overseerr)
	assert.Equal(t, "removed", result.Instances["radarr_1"])
}

func TestResult_MarshalJSON_Flattens(t *testing.T) {
	result := Result{
		Overseerr:        "removed",
		Tautulli:         "skipped",
		Plex:             "pending",
		Instances:        map[string]string{"radarr_1": "removed", "radarr_2": "not_found"},
		RefreshSectionID: "3",
	}
	b, err := json.Marshal(result)
	require.NoError(t, err)

	var flat map[string]string
	require.NoError(t, json.Unmarshal(b, &flat))
	assert.Equal(t, "removed", flat["overseerr"])
	assert.Equal(t, "skipped", flat["tautulli"])
	assert.Equal(t, "pending", flat["plex"])
	assert.Equal(t, "removed", flat["radarr_1"])
	assert.Equal(t, "not_found", flat["radarr_2"])
	assert.Equal(t, "3", flat["_section_id_for_refresh"])
	_, hasArr := flat["arr"]
	assert.False(t, hasArr)
}

func TestRequest_UnmarshalJSON_CoercesNumbers(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{
		"rating_key": 100,
		"section_id": "2",
		"tmdb_id": 949,
		"year": 1995,
		"title": "Heat"
	}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "100", req.RatingKey)
	assert.Equal(t, "2", req.SectionID)
	assert.Equal(t, "949", req.TmdbID)
	assert.Equal(t, "1995", req.Year)
	assert.Equal(t, "movie", req.MediaType)
}

func TestService_LookupItemIDs(t *testing.T) {
	svc := (&backends{
		tautulli: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"response":{"result":"success","data":{"metadata":{
				"guid": "plex://movie/5d776b59ad5437001f79c6f8",
				"guids": ["tmdb://949", "imdb://tt0113277"]
			}}}}`)
		},
	}).build(t)

	ids, err := svc.LookupItemIDs(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "plex://movie/5d776b59ad5437001f79c6f8", ids.GUID)
	require.NotNil(t, ids.TmdbID)
	assert.Equal(t, "949", *ids.TmdbID)
	require.NotNil(t, ids.ImdbID)
	assert.Equal(t, "tt0113277", *ids.ImdbID)
	assert.Nil(t, ids.TvdbID)
	assert.Nil(t, ids.MBID)
}

func TestService_Requestors(t *testing.T) {
	svc := (&backends{
		tautulli: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			rk := r.URL.Query().Get("rating_key")
			if rk == "200" {
				// No ids resolvable for this one.
				fmt.Fprint(w, `{"response":{"result":"success","data":{"metadata":{"title":"x"}}}}`)
				return
			}
			fmt.Fprint(w, `{"response":{"result":"success","data":{"metadata":{"guids":["tmdb://949"]}}}}`)
		},
		overseerr: func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"mediaInfo":{"id":42,"requests":[
				{"requestedBy":{"displayName":"Alice"}},
				{"requestedBy":{"plexUsername":"bob"}},
				{"requestedBy":{"displayName":"Alice"}}
			]}}`)
		},
	}).build(t)

	info := svc.Requestors(context.Background(), []string{"100", "200"}, "movie")
	require.Len(t, info, 2)

	require.NotNil(t, info["100"].RequestedBy)
	assert.Equal(t, "Alice, bob", *info["100"].RequestedBy)
	assert.Nil(t, info["200"].RequestedBy)
}

func TestService_Requestors_UnconfiguredTracker(t *testing.T) {
	svc := (&backends{}).build(t)
	info := svc.Requestors(context.Background(), []string{"100"}, "movie")
	assert.Empty(t, info)
}
