package reel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sprig/pkg/database"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

var reelColumns = []string{
	"id", "owner_id", "template_id", "track_id", "composition_spec",
	"media_ref", "poster_ref", "duration_seconds", "remix_of_id", "watermark",
	"locale", "status", "render_error", "kpi_shares", "kpi_derived_installs",
	"created_at", "updated_at",
}

// RemixSource pairs a reel with its remix parent, used to rebuild the
// lineage projection.
type RemixSource struct {
	ID        string `db:"id"`
	RemixOfID string `db:"remix_of_id"`
}

// Repository handles reel persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new reel repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists a fully built reel aggregate. Lifecycle validation (template
// bounds, license gate, remix parent visibility) happens before this call.
func (r *Repository) Create(ctx context.Context, reel *models.Reel) error {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":   "Create",
		"reel_id":  reel.ID,
		"owner_id": reel.OwnerID,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("reels")
	sb.Cols(reelColumns...)
	sb.Values(reel.ID, reel.OwnerID, reel.TemplateID, reel.TrackID, []byte(reel.CompositionSpec),
		reel.MediaRef, reel.PosterRef, reel.DurationSeconds, reel.RemixOfID, reel.Watermark,
		reel.Locale, reel.Status, reel.RenderError, reel.KPIShares, reel.KPIDerivedInstalls,
		reel.CreatedAt, reel.UpdatedAt)

	query, args := sb.Build()
	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to create reel")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create reel")
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Created reel")
	return nil
}

// Get retrieves a reel by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reelColumns...)
	sb.From("reels")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var reel models.Reel
	if err := r.db.GetContext(ctx, &reel, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get reel")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reel")
	}

	return &reel, nil
}

// ListByOwner retrieves an owner's reels in every state, newest first
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (*models.ReelPage, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.ListByOwner")
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
	countSb.From("reels")
	countSb.Where(countSb.Equal("owner_id", ownerID))

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count reels")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count reels")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reelColumns...)
	sb.From("reels")
	sb.Where(sb.Equal("owner_id", ownerID))
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var reels []models.Reel
	if err := r.db.SelectContext(ctx, &reels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reels")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list reels")
	}

	return &models.ReelPage{Items: reels, Total: totalCount, Limit: pageSize, Offset: offset}, nil
}

// Feed retrieves public reels newest first. Only public reels are ever
// visible here regardless of caller.
func (r *Repository) Feed(ctx context.Context, locale *string, limit, offset int) ([]models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.Feed")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reelColumns...)
	sb.From("reels")
	where := []string{sb.Equal("status", models.ReelStatusPublic)}
	if locale != nil {
		where = append(where, sb.Equal("locale", *locale))
	}
	sb.Where(where...)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var reels []models.Reel
	if err := r.db.SelectContext(ctx, &reels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load feed")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load feed")
	}

	return reels, nil
}

// TransitionStatus moves a reel from one of the expected states to the next
// state with a single compare-and-set update. It reports false when the reel
// was not in any expected state, without treating that as an error.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from []models.ReelStatus, to models.ReelStatus) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.TransitionStatus")
	defer span.End()

	expected := make([]any, 0, len(from))
	for _, s := range from {
		expected = append(expected, s)
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("reels")
	sb.Set(
		sb.Assign("status", to),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.In("status", expected...),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to transition reel status")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to transition reel status")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// SetRenderSuccess moves a rendering reel to public with its rendered media.
func (r *Repository) SetRenderSuccess(ctx context.Context, id string, mediaRef, posterRef *string, durationSeconds *int) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.SetRenderSuccess")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("reels")
	sb.Set(
		sb.Assign("status", models.ReelStatusPublic),
		sb.Assign("media_ref", mediaRef),
		sb.Assign("poster_ref", posterRef),
		sb.Assign("duration_seconds", durationSeconds),
		"render_error = NULL",
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", models.ReelStatusRendering),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to record render success")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to record render success")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// SetRenderFailure returns a rendering reel to draft with the failure reason
// so the owner can fix and retry.
func (r *Repository) SetRenderFailure(ctx context.Context, id string, reason string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.SetRenderFailure")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("reels")
	sb.Set(
		sb.Assign("status", models.ReelStatusDraft),
		sb.Assign("render_error", reason),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", models.ReelStatusRendering),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to record render failure")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to record render failure")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// IncrementShares bumps the denormalized share counter. Callers run it in
// the same transaction as the share event insert.
func (r *Repository) IncrementShares(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.IncrementShares")
	defer span.End()

	return database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE reels SET kpi_shares = kpi_shares + 1, updated_at = $1 WHERE id = $2",
			time.Now().UTC(), id)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to increment share counter")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment share counter")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", id))
		}
		return nil
	})
}

// IncrementDerivedInstalls bumps the attributed install counter.
func (r *Repository) IncrementDerivedInstalls(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.IncrementDerivedInstalls")
	defer span.End()

	return database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE reels SET kpi_derived_installs = kpi_derived_installs + 1, updated_at = $1 WHERE id = $2",
			time.Now().UTC(), id)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to increment install counter")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment install counter")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", id))
		}
		return nil
	})
}

// CountPublicByOwnerWindow counts an owner's public reels created inside a
// window. This is the K-factor denominator.
func (r *Repository) CountPublicByOwnerWindow(ctx context.Context, ownerID string, start, end time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.CountPublicByOwnerWindow")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("reels")
	sb.Where(
		sb.Equal("owner_id", ownerID),
		sb.Equal("status", models.ReelStatusPublic),
		sb.GreaterEqualThan("created_at", start),
		sb.LessThan("created_at", end),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count owner public reels")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count owner public reels")
	}

	return count, nil
}

// ListRemixSources returns every reel that was created as a remix, paired
// with its parent. This is the authoritative input for rebuilding the
// lineage projection.
func (r *Repository) ListRemixSources(ctx context.Context) ([]RemixSource, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.ListRemixSources")
	defer span.End()

	var sources []RemixSource
	err := r.db.SelectContext(ctx, &sources,
		"SELECT id, remix_of_id FROM reels WHERE remix_of_id IS NOT NULL ORDER BY created_at")
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list remix sources")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list remix sources")
	}

	return sources, nil
}

// ReconcileShareCounters recomputes kpi_shares from the share event log for
// any reels that have drifted. Returns the number of rows corrected.
func (r *Repository) ReconcileShareCounters(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "reel.Repository.ReconcileShareCounters")
	defer span.End()

	result, err := r.db.ExecContext(ctx, `
		UPDATE reels r
		SET kpi_shares = s.actual, updated_at = NOW()
		FROM (
			SELECT reel_id, COUNT(*) AS actual
			FROM share_events
			GROUP BY reel_id
		) s
		WHERE r.id = s.reel_id AND r.kpi_shares <> s.actual`)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reconcile share counters")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reconcile share counters")
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"corrected": rows}).Warn("Share counters had drifted")
	}
	return int(rows), nil
}
