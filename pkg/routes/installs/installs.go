package installs

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/virality"
)

// Handler receives install attribution postbacks
type Handler struct {
	virality *virality.Service
}

// NewHandler creates a new installs handler
func NewHandler(viralitySvc *virality.Service) *Handler {
	return &Handler{virality: viralitySvc}
}

// Register registers install routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.RecordInstall)
}

// RecordInstall attributes an app install to a shared reel. One install per
// user counts; replays return the existing attribution.
func (h *Handler) RecordInstall(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RecordInstallRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	attr, err := h.virality.RecordInstall(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, attr)
}
