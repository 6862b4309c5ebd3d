package library

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/janitarr/janitarr/internal/tautulli"
)

// Handlers provides HTTP handlers for the combined library view.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new library handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers library routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/libraries", h.Sections)
	g.GET("/library/combined", h.Combined)
}

// Sections returns all Tautulli library sections.
// GET /api/libraries
func (h *Handlers) Sections(c echo.Context) error {
	libs, err := h.service.Sections(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if libs == nil {
		libs = []tautulli.Library{}
	}
	return c.JSON(http.StatusOK, libs)
}

// Combined returns media from all sections of one kind, merged and sorted.
// GET /api/library/combined
func (h *Handlers) Combined(c echo.Context) error {
	kind := strings.ToLower(c.QueryParam("type"))
	if kind == "" {
		kind = KindMovie
	}
	if !ValidKind(kind) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be movie, show, or artist"})
	}

	q := Query{
		Kind:        kind,
		Length:      intParam(c, "length", 50),
		Start:       intParam(c, "start", 0),
		Search:      strings.TrimSpace(c.QueryParam("search")),
		LibraryName: strings.TrimSpace(c.QueryParam("library_name")),
		OrderColumn: c.QueryParam("order_column"),
		OrderDir:    c.QueryParam("order_dir"),
	}
	switch strings.TrimSpace(c.QueryParam("show_calculating_alert")) {
	case "1", "true", "yes":
		q.ForceCalculatingAlert = true
	}

	page, err := h.service.Combined(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, page)
}

func intParam(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
