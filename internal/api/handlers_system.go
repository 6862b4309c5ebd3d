package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/janitarr/janitarr/internal/arr"
	"github.com/janitarr/janitarr/internal/config"
)

// statusEntry is one reachable service in the status report.
type statusEntry struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Name    string `json:"name"`
}

// getStatus probes every configured service concurrently. Each key maps to
// either a statusEntry or an "error: ..." string, so a dead service never
// hides the healthy ones.
// GET /api/status
func (s *Server) getStatus(c echo.Context) error {
	if !s.cfg.StatusEnabled {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Status endpoint is disabled"})
	}
	ctx := c.Request().Context()

	result := make(map[string]any)
	var mu sync.Mutex
	set := func(key string, entry any) {
		mu.Lock()
		result[key] = entry
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		info, err := s.tautulliClient.Info(ctx)
		if err != nil {
			set("tautulli", "error: "+err.Error())
			return nil
		}
		set("tautulli", statusEntry{Status: "ok", Version: info.Version, Name: info.Name})
		return nil
	})

	g.Go(func() error {
		info, err := s.overseerrClient.Status(ctx)
		if err != nil {
			set("overseerr", "error: "+err.Error())
			return nil
		}
		set("overseerr", statusEntry{Status: "ok", Version: info.Version, Name: info.Name})
		return nil
	})

	probeArr := func(instances []config.ArrInstance, prefix string, probe func(context.Context, config.ArrInstance) (*arr.SystemStatus, error)) {
		for i, inst := range instances {
			inst := inst
			key := arr.InstanceKey(prefix, i)
			g.Go(func() error {
				status, err := probe(ctx, inst)
				if err != nil {
					set(key, "error: "+err.Error())
					return nil
				}
				set(key, statusEntry{
					Status:  "ok",
					Version: status.Version,
					Name:    status.DisplayName(inst.Name),
				})
				return nil
			})
		}
	}
	probeArr(s.cfg.Radarr, "radarr", s.radarrClient.Status)
	probeArr(s.cfg.Sonarr, "sonarr", s.sonarrClient.Status)
	probeArr(s.cfg.Lidarr, "lidarr", s.lidarrClient.Status)

	_ = g.Wait()
	return c.JSON(http.StatusOK, result)
}

// instanceInfo names one configured manager deployment.
type instanceInfo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// getInstances returns the configured instance names so the frontend can
// render per-instance chips.
// GET /api/instances
func (s *Server) getInstances(c echo.Context) error {
	describe := func(instances []config.ArrInstance, prefix string) []instanceInfo {
		out := make([]instanceInfo, 0, len(instances))
		for i, inst := range instances {
			out = append(out, instanceInfo{Key: arr.InstanceKey(prefix, i), Name: inst.Name})
		}
		return out
	}
	return c.JSON(http.StatusOK, echo.Map{
		"radarr": describe(s.cfg.Radarr, "radarr"),
		"sonarr": describe(s.cfg.Sonarr, "sonarr"),
		"lidarr": describe(s.cfg.Lidarr, "lidarr"),
	})
}
