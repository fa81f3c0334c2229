package tracks

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/internal/repositories/track"
	"github.com/Ramsey-B/sprig/pkg/models"
)

// Handler serves the licensed track catalog
type Handler struct {
	tracks *track.Repository
}

// NewHandler creates a new tracks handler
func NewHandler(tracks *track.Repository) *Handler {
	return &Handler{tracks: tracks}
}

// Register registers track routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.ListTracks)
	g.GET("/:id", h.GetTrack)
	g.POST("", h.CreateTrack)
	g.DELETE("/:id", h.DeactivateTrack)
}

// TrackPage is one page of the track catalog
type TrackPage struct {
	Items []models.Track `json:"items"`
	Total int            `json:"total"`
}

// ListTracks lists tracks, usable only unless include_unusable is set
func (h *Handler) ListTracks(c echo.Context) error {
	ctx := c.Request().Context()

	filter := models.TrackFilter{
		UsableOnly: c.QueryParam("include_unusable") != "true",
	}
	if genre := c.QueryParam("genre"); genre != "" {
		filter.Genre = &genre
	}
	if mood := c.QueryParam("mood"); mood != "" {
		filter.Mood = &mood
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	items, total, err := h.tracks.List(ctx, filter, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TrackPage{Items: items, Total: total})
}

// GetTrack gets a track by ID
func (h *Handler) GetTrack(c echo.Context) error {
	ctx := c.Request().Context()

	t, err := h.tracks.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, t)
}

// CreateTrack registers a licensed track
func (h *Handler) CreateTrack(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateTrackRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, err := h.tracks.Create(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// DeactivateTrack pulls a track from new reel creation
func (h *Handler) DeactivateTrack(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.tracks.Deactivate(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
