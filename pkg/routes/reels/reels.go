package reels

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/internal/repositories/remixedge"
	"github.com/Ramsey-B/sprig/pkg/appcontext"
	"github.com/Ramsey-B/sprig/pkg/lifecycle"
	"github.com/Ramsey-B/sprig/pkg/lineage"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/virality"
)

// Handler serves reel lifecycle, sharing, and lineage routes
type Handler struct {
	lifecycle *lifecycle.Service
	virality  *virality.Service
	lineage   *lineage.Service
}

// NewHandler creates a new reels handler
func NewHandler(lifecycleSvc *lifecycle.Service, viralitySvc *virality.Service, lineageSvc *lineage.Service) *Handler {
	return &Handler{
		lifecycle: lifecycleSvc,
		virality:  viralitySvc,
		lineage:   lineageSvc,
	}
}

// Register registers reel routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.CreateReel)
	g.GET("/mine", h.ListMine)
	g.GET("/:id", h.GetReel)
	g.DELETE("/:id", h.DeleteReel)
	g.PUT("/:id/clips", h.ReplaceClips)
	g.POST("/:id/render", h.RequestRender)
	g.POST("/:id/shares", h.RecordShare)
	g.GET("/:id/shares", h.ListShares)
	g.GET("/:id/lineage", h.GetLineage)
	g.POST("/:id/remixes", h.CreateRemix)
	g.GET("/:id/remixes", h.ListRemixes)
	g.GET("/:id/remix-stats", h.RemixStats)
}

func actorID(c echo.Context) (string, error) {
	id := appcontext.GetUserID(c.Request().Context())
	if id == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	return id, nil
}

// CreateReel creates a draft reel, optionally as a remix of a public reel
func (h *Handler) CreateReel(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req models.CreateReelRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	reel, err := h.lifecycle.CreateReel(ctx, actor, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, reel)
}

// GetReel returns a reel with its clips and catalog context. Drafts and
// pulled reels are only visible to their owner.
func (h *Handler) GetReel(c echo.Context) error {
	ctx := c.Request().Context()
	actor := appcontext.GetUserID(ctx)

	detail, err := h.lifecycle.GetVisible(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, detail)
}

// ListMine lists the caller's reels in every state, newest first
func (h *Handler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorID(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	result, err := h.lifecycle.ListMyReels(ctx, actor, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// DeleteReel removes the caller's reel
func (h *Handler) DeleteReel(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorID(c)
	if err != nil {
		return err
	}

	if err := h.lifecycle.DeleteReel(ctx, actor, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ReplaceClipsRequest is the wholesale clip replacement body
type ReplaceClipsRequest struct {
	Clips []models.ClipInput `json:"clips"`
}

// ReplaceClips replaces a draft reel's entire clip sequence
func (h *Handler) ReplaceClips(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req ReplaceClipsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	clips, err := h.lifecycle.ReplaceClips(ctx, actor, c.Param("id"), req.Clips)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, clips)
}

// RequestRender queues a draft reel for rendering
func (h *Handler) RequestRender(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorID(c)
	if err != nil {
		return err
	}

	reel, err := h.lifecycle.RequestRender(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, reel)
}

// RecordShare records one share of a reel, whatever its status. The acting
// user is taken from the authenticated identity when one is present.
func (h *Handler) RecordShare(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RecordShareRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var actingUserID *string
	if actor := appcontext.GetUserID(ctx); actor != "" {
		actingUserID = &actor
	}

	event, err := h.virality.RecordShare(ctx, c.Param("id"), req.Channel, req.ReferrerID, actingUserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, event)
}

// ListShares returns a reel's share history
func (h *Handler) ListShares(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	events, err := h.virality.ListShares(ctx, c.Param("id"), limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, events)
}

// GetLineage returns a reel's ancestors and descendants
func (h *Handler) GetLineage(c echo.Context) error {
	ctx := c.Request().Context()

	maxDepth, _ := strconv.Atoi(c.QueryParam("max_depth"))
	if maxDepth <= 0 {
		maxDepth = remixedge.MaxTraversalDepth
	}

	result, err := h.lineage.Lineage(ctx, c.Param("id"), maxDepth)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// CreateRemix creates a new draft derived from a public reel. The body is
// optional; omitted fields inherit the parent's template, track and locale.
func (h *Handler) CreateRemix(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req models.CreateRemixRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reel, err := h.lifecycle.CreateRemix(ctx, actor, c.Param("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, reel)
}

// ListRemixes lists a reel's direct remixes
func (h *Handler) ListRemixes(c echo.Context) error {
	ctx := c.Request().Context()

	edges, err := h.lineage.Children(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, edges)
}

// RemixStats returns direct and total descendant counts
func (h *Handler) RemixStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.lineage.Stats(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}
