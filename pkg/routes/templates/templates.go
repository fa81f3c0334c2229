package templates

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sprig/internal/repositories/template"
	"github.com/Ramsey-B/sprig/pkg/models"
)

// Handler serves the template catalog
type Handler struct {
	templates *template.Repository
}

// NewHandler creates a new templates handler
func NewHandler(templates *template.Repository) *Handler {
	return &Handler{templates: templates}
}

// Register registers template routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.ListTemplates)
	g.GET("/:id", h.GetTemplate)
	g.POST("", h.CreateTemplate)
	g.DELETE("/:id", h.DeactivateTemplate)
}

// TemplatePage is one page of the template catalog
type TemplatePage struct {
	Items []models.Template `json:"items"`
	Total int               `json:"total"`
}

// ListTemplates lists templates, active only unless include_inactive is set
func (h *Handler) ListTemplates(c echo.Context) error {
	ctx := c.Request().Context()

	filter := models.TemplateFilter{
		ActiveOnly: c.QueryParam("include_inactive") != "true",
	}
	if theme := c.QueryParam("theme"); theme != "" {
		filter.Theme = &theme
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	items, total, err := h.templates.List(ctx, filter, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TemplatePage{Items: items, Total: total})
}

// GetTemplate gets a template by ID
func (h *Handler) GetTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	tmpl, err := h.templates.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tmpl)
}

// CreateTemplate registers a new template, retiring the one it replaces
func (h *Handler) CreateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, err := h.templates.Create(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// DeactivateTemplate retires a template from new reel creation
func (h *Handler) DeactivateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.templates.Deactivate(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
