package feed

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/pkg/lifecycle"
)

// Handler serves the public feed
type Handler struct {
	lifecycle *lifecycle.Service
}

// NewHandler creates a new feed handler
func NewHandler(lifecycleSvc *lifecycle.Service) *Handler {
	return &Handler{lifecycle: lifecycleSvc}
}

// Register registers feed routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.GetFeed)
}

// GetFeed lists public reels, newest first, optionally filtered by locale
func (h *Handler) GetFeed(c echo.Context) error {
	ctx := c.Request().Context()

	var locale *string
	if l := c.QueryParam("locale"); l != "" {
		locale = &l
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	reels, err := h.lifecycle.Feed(ctx, locale, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, reels)
}
