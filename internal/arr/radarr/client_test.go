package radarr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/config"
)

func testInstance(server *httptest.Server) config.ArrInstance {
	return config.ArrInstance{URL: server.URL, APIKey: "test-key", Name: "Radarr 1"}
}

func TestClient_FindMovie_ByTMDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tmdbId"); got != "550" {
			t.Errorf("unexpected tmdbId: %s", got)
		}
		if got := r.URL.Query().Get("apikey"); got != "test-key" {
			t.Errorf("unexpected apikey: %s", got)
		}
		fmt.Fprint(w, `[{"id":12,"title":"Fight Club","year":1999,"tmdbId":550,"imdbId":"tt0137523"}]`)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	movie, err := client.FindMovie(context.Background(), testInstance(server), "550", "")
	if err != nil {
		t.Fatalf("FindMovie() error = %v", err)
	}
	if movie == nil || movie.ID != 12 {
		t.Fatalf("FindMovie() = %+v, want id 12", movie)
	}
}

func TestClient_FindMovie_IMDBFallbackScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No tmdbId filter: the IMDB fallback fetches the whole collection.
		if r.URL.Query().Get("tmdbId") != "" {
			t.Errorf("unexpected tmdbId filter: %s", r.URL.Query().Get("tmdbId"))
		}
		fmt.Fprint(w, `[
			{"id":1,"title":"Alpha","imdbId":"tt0000001"},
			{"id":2,"title":"Beta","imdbId":"tt0137523"}
		]`)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	// Zero padding must not matter.
	movie, err := client.FindMovie(context.Background(), testInstance(server), "", "tt137523")
	if err != nil {
		t.Fatalf("FindMovie() error = %v", err)
	}
	if movie == nil || movie.ID != 2 {
		t.Fatalf("FindMovie() = %+v, want id 2", movie)
	}
}

func TestClient_FindMovie_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	movie, err := client.FindMovie(context.Background(), testInstance(server), "550", "tt0137523")
	if err != nil {
		t.Fatalf("FindMovie() error = %v", err)
	}
	if movie != nil {
		t.Fatalf("FindMovie() = %+v, want nil", movie)
	}
}

func TestClient_FindMovie_WrappedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"records":[{"id":5,"title":"Gamma","tmdbId":603}]}`)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	movie, err := client.FindMovie(context.Background(), testInstance(server), "603", "")
	if err != nil {
		t.Fatalf("FindMovie() error = %v", err)
	}
	if movie == nil || movie.ID != 5 {
		t.Fatalf("FindMovie() = %+v, want id 5", movie)
	}
}

func TestClient_FindMovieByTitle(t *testing.T) {
	list := `[
		{"id":1,"title":"Afro Samurai","year":2007},
		{"id":2,"title":"Afro Samurai: Resurrection","year":2009},
		{"id":3,"title":"Afro Samurai Resurrection Extended","year":2009}
	]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, list)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())

	t.Run("exact title and year preferred", func(t *testing.T) {
		movie, err := client.FindMovieByTitle(context.Background(), testInstance(server), "Afro Samurai Resurrection", "2009")
		if err != nil {
			t.Fatalf("FindMovieByTitle() error = %v", err)
		}
		if movie == nil || movie.ID != 2 {
			t.Fatalf("FindMovieByTitle() = %+v, want id 2", movie)
		}
	})

	t.Run("year filters out mismatches", func(t *testing.T) {
		movie, err := client.FindMovieByTitle(context.Background(), testInstance(server), "Afro Samurai", "2007")
		if err != nil {
			t.Fatalf("FindMovieByTitle() error = %v", err)
		}
		if movie == nil || movie.ID != 1 {
			t.Fatalf("FindMovieByTitle() = %+v, want id 1", movie)
		}
	})

	t.Run("no year falls back to first substring match", func(t *testing.T) {
		movie, err := client.FindMovieByTitle(context.Background(), testInstance(server), "Resurrection Extended", "")
		if err != nil {
			t.Fatalf("FindMovieByTitle() error = %v", err)
		}
		if movie == nil || movie.ID != 3 {
			t.Fatalf("FindMovieByTitle() = %+v, want id 3", movie)
		}
	})

	t.Run("blank title finds nothing", func(t *testing.T) {
		movie, err := client.FindMovieByTitle(context.Background(), testInstance(server), "   ", "")
		if err != nil {
			t.Fatalf("FindMovieByTitle() error = %v", err)
		}
		if movie != nil {
			t.Fatalf("FindMovieByTitle() = %+v, want nil", movie)
		}
	})
}

func TestClient_DeleteMovie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/api/v3/movie/12" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("deleteFiles") != "true" {
			t.Errorf("deleteFiles = %q, want true", q.Get("deleteFiles"))
		}
		if q.Get("addImportExclusion") != "false" {
			t.Errorf("addImportExclusion = %q, want false", q.Get("addImportExclusion"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	if err := client.DeleteMovie(context.Background(), testInstance(server), 12, true); err != nil {
		t.Fatalf("DeleteMovie() error = %v", err)
	}
}

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/system/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"version":"5.2.6","instanceName":"Radarr 4K"}`)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	status, err := client.Status(context.Background(), testInstance(server))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Version != "5.2.6" {
		t.Errorf("status.Version = %q, want 5.2.6", status.Version)
	}
	if status.DisplayName("x") != "Radarr 4K" {
		t.Errorf("DisplayName() = %q, want Radarr 4K", status.DisplayName("x"))
	}
}
