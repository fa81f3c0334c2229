package analytics

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/pkg/virality"
)

// Handler serves virality analytics
type Handler struct {
	virality      *virality.Service
	defaultWindow time.Duration
}

// NewHandler creates a new analytics handler
func NewHandler(viralitySvc *virality.Service, defaultWindow time.Duration) *Handler {
	return &Handler{
		virality:      viralitySvc,
		defaultWindow: defaultWindow,
	}
}

// Register registers analytics routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/k-factor", h.KFactor)
}

// KFactor reports an owner's referred installs per public reel over a
// window. start and end are RFC 3339; omitting them uses the trailing
// default window.
func (h *Handler) KFactor(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID := c.QueryParam("owner_id")
	if ownerID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "owner_id is required")
	}

	end := time.Now().UTC()
	start := end.Add(-h.defaultWindow)

	if raw := c.QueryParam("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "start must be RFC 3339")
		}
		start = parsed
	}
	if raw := c.QueryParam("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "end must be RFC 3339")
		}
		end = parsed
	}

	report, err := h.virality.KFactor(ctx, ownerID, start, end)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}
