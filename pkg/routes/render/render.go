package render

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/pkg/lifecycle"
	"github.com/Ramsey-B/sprig/pkg/models"
)

// Handler receives render worker callbacks. Mounted on the internal group.
type Handler struct {
	lifecycle *lifecycle.Service
}

// NewHandler creates a new render callback handler
func NewHandler(lifecycleSvc *lifecycle.Service) *Handler {
	return &Handler{lifecycle: lifecycleSvc}
}

// Register registers render routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/callback", h.Callback)
}

// Callback completes a render. Successful renders pass the moderation gate
// before going public; failures put the reel back in draft. Replays are
// acknowledged without effect.
func (h *Handler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	var result models.RenderResult
	if err := c.Bind(&result); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&result); err != nil {
		return err
	}
	if result.Success && result.MediaRef == nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "media_ref is required on success")
	}

	reel, err := h.lifecycle.CompleteRender(ctx, result)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, reel)
}
