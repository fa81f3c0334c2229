package template

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sprig/pkg/database"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

var templateColumns = []string{
	"id", "name", "theme", "composition_spec", "thumbnail_ref", "min_clips",
	"max_clips", "duration_seconds", "is_active", "experiment_variant",
	"replaces_id", "created_at", "updated_at",
}

// Repository handles template persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new template repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create registers a new template. When ReplacesID is set the replaced
// template is retired in the same transaction, so at most one of the pair is
// ever active.
func (r *Repository) Create(ctx context.Context, req models.CreateTemplateRequest) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "Create",
		"name":   req.Name,
		"theme":  req.Theme,
	})

	if req.MinClips > req.MaxClips {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "min_clips cannot exceed max_clips")
	}

	now := time.Now().UTC()
	tmpl := &models.Template{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Theme:             req.Theme,
		CompositionSpec:   req.CompositionSpec,
		ThumbnailRef:      req.ThumbnailRef,
		MinClips:          req.MinClips,
		MaxClips:          req.MaxClips,
		DurationSeconds:   req.DurationSeconds,
		IsActive:          true,
		ExperimentVariant: req.ExperimentVariant,
		ReplacesID:        req.ReplacesID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("templates")
		sb.Cols(templateColumns...)
		sb.Values(tmpl.ID, tmpl.Name, tmpl.Theme, []byte(tmpl.CompositionSpec), tmpl.ThumbnailRef,
			tmpl.MinClips, tmpl.MaxClips, tmpl.DurationSeconds, tmpl.IsActive,
			tmpl.ExperimentVariant, tmpl.ReplacesID, tmpl.CreatedAt, tmpl.UpdatedAt)

		query, args := sb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to create template")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create template")
		}

		if tmpl.ReplacesID == nil {
			return nil
		}

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("templates")
		ub.Set(
			ub.Assign("is_active", false),
			ub.Assign("updated_at", now),
		)
		ub.Where(ub.Equal("id", *tmpl.ReplacesID))

		query, args = ub.Build()
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			log.WithError(err).Error("Failed to retire replaced template")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to retire replaced template")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("template %s not found", *tmpl.ReplacesID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{"id": tmpl.ID}).Info("Created template")
	return tmpl, nil
}

// Get retrieves a template by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(templateColumns...)
	sb.From("templates")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var tmpl models.Template
	if err := r.db.GetContext(ctx, &tmpl, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("template %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get template")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get template")
	}

	return &tmpl, nil
}

// List retrieves templates matching the filter, newest first
func (r *Repository) List(ctx context.Context, filter models.TemplateFilter, page, pageSize int) ([]models.Template, int, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("templates")
	countWhere := []string{}
	if filter.ActiveOnly {
		countWhere = append(countWhere, countSb.Equal("is_active", true))
	}
	if filter.Theme != nil {
		countWhere = append(countWhere, countSb.Equal("theme", *filter.Theme))
	}
	if len(countWhere) > 0 {
		countSb.Where(countWhere...)
	}

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count templates")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count templates")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(templateColumns...)
	sb.From("templates")
	where := []string{}
	if filter.ActiveOnly {
		where = append(where, sb.Equal("is_active", true))
	}
	if filter.Theme != nil {
		where = append(where, sb.Equal("theme", *filter.Theme))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list templates")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list templates")
	}

	return templates, totalCount, nil
}

// Deactivate retires a template so new reels can no longer reference it.
// Reels already pointing at it keep their composition snapshot.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "template.Repository.Deactivate")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("templates")
	sb.Set(
		sb.Assign("is_active", false),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to deactivate template")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate template")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("template %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("Deactivated template")
	return nil
}
