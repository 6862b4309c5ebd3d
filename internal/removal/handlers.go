package removal

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/janitarr/janitarr/internal/plex"
	"github.com/janitarr/janitarr/internal/tautulli"
)

// Handlers provides HTTP handlers for the remove flow and the batched
// post-removal refreshes.
type Handlers struct {
	service  *Service
	plex     *plex.Client
	tautulli *tautulli.Client
}

// NewHandlers creates a new removal handlers instance.
func NewHandlers(service *Service, plexClient *plex.Client, tautulliClient *tautulli.Client) *Handlers {
	return &Handlers{service: service, plex: plexClient, tautulli: tautulliClient}
}

// RegisterRoutes registers removal routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/remove", h.Remove)
	g.GET("/item-ids", h.ItemIDs)
	g.POST("/overseerr-info", h.OverseerrInfo)
	g.POST("/refresh-plex", h.RefreshPlex)
	g.POST("/refresh-tautulli", h.RefreshTautulli)
}

// Remove cascades one item's deletion across all configured services.
// POST /api/remove
func (h *Handlers) Remove(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	result := h.service.Remove(c.Request().Context(), req)
	return c.JSON(http.StatusOK, result)
}

// ItemIDs resolves the guid and external ids for one rating key.
// GET /api/item-ids
func (h *Handlers) ItemIDs(c echo.Context) error {
	ratingKey := strings.TrimSpace(c.QueryParam("rating_key"))
	if ratingKey == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating_key required"})
	}
	ids, err := h.service.LookupItemIDs(c.Request().Context(), ratingKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, ids)
}

type overseerrInfoRequest struct {
	RatingKeys []string `json:"rating_keys"`
	MediaType  string   `json:"media_type"`
}

// OverseerrInfo batch-resolves requestor info for a list of rating keys.
// POST /api/overseerr-info
func (h *Handlers) OverseerrInfo(c echo.Context) error {
	var req overseerrInfoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if req.MediaType == "" {
		req.MediaType = "movie"
	}
	info := h.service.Requestors(c.Request().Context(), req.RatingKeys, req.MediaType)
	return c.JSON(http.StatusOK, info)
}

type refreshPlexRequest struct {
	// SectionIDs accepts both the legacy bare-string form and objects
	// carrying section_id/section_type.
	SectionIDs []any `json:"section_ids"`
}

type refreshErrors struct {
	SectionID string `json:"section_id"`
	Error     string `json:"error"`
}

// RefreshPlex batch-rescans Plex sections after all removals complete.
// POST /api/refresh-plex
func (h *Handlers) RefreshPlex(c echo.Context) error {
	if !h.plex.Configured() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Plex not configured"})
	}
	var req refreshPlexRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}

	refreshed := []string{}
	errors := []refreshErrors{}
	for _, entry := range req.SectionIDs {
		sid := sectionIDOf(entry)
		if sid == "" {
			continue
		}
		if err := h.plex.RefreshSection(c.Request().Context(), sid); err != nil {
			errors = append(errors, refreshErrors{SectionID: sid, Error: err.Error()})
			continue
		}
		refreshed = append(refreshed, sid)
	}
	return c.JSON(http.StatusOK, echo.Map{"refreshed": refreshed, "errors": errors})
}

type refreshTautulliRequest struct {
	Sections []struct {
		SectionID   any    `json:"section_id"`
		SectionType string `json:"section_type"`
	} `json:"sections"`
}

// RefreshTautulli batch-refreshes Tautulli media info after a Plex rescan.
// POST /api/refresh-tautulli
func (h *Handlers) RefreshTautulli(c echo.Context) error {
	var req refreshTautulliRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}

	refreshed := []string{}
	errors := []refreshErrors{}
	for _, section := range req.Sections {
		sid := coerceString(section.SectionID)
		if sid == "" {
			continue
		}
		if err := h.tautulli.RefreshMediaInfo(c.Request().Context(), sid); err != nil {
			errors = append(errors, refreshErrors{SectionID: sid, Error: err.Error()})
			continue
		}
		refreshed = append(refreshed, sid)
	}
	return c.JSON(http.StatusOK, echo.Map{"refreshed": refreshed, "errors": errors})
}

func sectionIDOf(entry any) string {
	if obj, ok := entry.(map[string]any); ok {
		return coerceString(obj["section_id"])
	}
	return coerceString(entry)
}
