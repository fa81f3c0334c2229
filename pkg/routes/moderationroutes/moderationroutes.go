package moderationroutes

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/pkg/appcontext"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/moderation"
)

// Handler serves the moderation flag and review surface. Mounted on the
// internal group; classifiers and the review tool are the only callers.
type Handler struct {
	moderation *moderation.Service
}

// NewHandler creates a new moderation handler
func NewHandler(moderationSvc *moderation.Service) *Handler {
	return &Handler{moderation: moderationSvc}
}

// Register registers moderation routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/flags", h.CreateFlag)
	g.GET("/flags/pending", h.PendingQueue)
	g.POST("/flags/:id/review", h.ReviewFlag)
	g.GET("/reels/:id/flags", h.ListReelFlags)
}

// FlagPage is one page of the pending review queue
type FlagPage struct {
	Items []models.ModerationFlag `json:"items"`
	Total int                     `json:"total"`
}

// CreateFlag records a classifier or reporter flag against a reel
func (h *Handler) CreateFlag(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateFlagRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	flag, err := h.moderation.RecordFlag(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, flag)
}

// PendingQueue returns flags awaiting human review, oldest first
func (h *Handler) PendingQueue(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	items, total, err := h.moderation.PendingQueue(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, FlagPage{Items: items, Total: total})
}

// ReviewFlag applies a human verdict to a pending flag
func (h *Handler) ReviewFlag(c echo.Context) error {
	ctx := c.Request().Context()

	reviewerID := appcontext.GetUserID(ctx)
	if reviewerID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "missing reviewer identity")
	}

	var req models.ReviewFlagRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	flag, err := h.moderation.Review(ctx, c.Param("id"), req.Verdict, reviewerID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, flag)
}

// ListReelFlags returns a reel's full flag history
func (h *Handler) ListReelFlags(c echo.Context) error {
	ctx := c.Request().Context()

	flags, err := h.moderation.ListFlags(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, flags)
}
