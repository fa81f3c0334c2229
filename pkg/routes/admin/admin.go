package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/pkg/lineage"
	"github.com/Ramsey-B/sprig/pkg/virality"
)

// Handler serves operator maintenance routes
type Handler struct {
	lineage  *lineage.Service
	virality *virality.Service
}

// NewHandler creates a new admin handler
func NewHandler(lineageSvc *lineage.Service, viralitySvc *virality.Service) *Handler {
	return &Handler{
		lineage:  lineageSvc,
		virality: viralitySvc,
	}
}

// Register registers admin routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/lineage/repair", h.RepairLineage)
	g.POST("/counters/reconcile", h.ReconcileCounters)
}

// RepairResult reports how many edges a rebuild projected
type RepairResult struct {
	Edges int `json:"edges"`
}

// RepairLineage rebuilds the graph projection from PostgreSQL
func (h *Handler) RepairLineage(c echo.Context) error {
	ctx := c.Request().Context()

	edges, err := h.lineage.Repair(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RepairResult{Edges: edges})
}

// ReconcileResult reports how many share counters were corrected
type ReconcileResult struct {
	Corrected int `json:"corrected"`
}

// ReconcileCounters recomputes drifted share counters from the event log
func (h *Handler) ReconcileCounters(c echo.Context) error {
	ctx := c.Request().Context()

	corrected, err := h.virality.Reconcile(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ReconcileResult{Corrected: corrected})
}
