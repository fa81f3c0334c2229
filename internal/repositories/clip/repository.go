package clip

import (
	"context"
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

var clipColumns = []string{
	"id", "reel_id", "order_index", "media_ref", "trim_start_ms",
	"trim_end_ms", "caption", "created_at",
}

// Repository handles clip persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new clip repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ReplaceAll swaps a reel's entire clip sequence in one transaction. Order
// indices come from slice position so a reader can never observe a gap, a
// duplicate index, or a half-applied sequence.
func (r *Repository) ReplaceAll(ctx context.Context, reelID string, inputs []models.ClipInput) ([]models.Clip, error) {
	ctx, span := tracing.StartSpan(ctx, "clip.Repository.ReplaceAll")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "ReplaceAll",
		"reel_id": reelID,
		"count":   len(inputs),
	})

	now := time.Now().UTC()
	clips := make([]models.Clip, 0, len(inputs))
	for i, in := range inputs {
		clips = append(clips, models.Clip{
			ID:          uuid.New().String(),
			ReelID:      reelID,
			OrderIndex:  i,
			MediaRef:    in.MediaRef,
			TrimStartMS: in.TrimStartMS,
			TrimEndMS:   in.TrimEndMS,
			Caption:     in.Caption,
			CreatedAt:   now,
		})
	}

	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom("clips")
		db.Where(db.Equal("reel_id", reelID))

		query, args := db.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to clear clip sequence")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace clips")
		}

		if len(clips) == 0 {
			return nil
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("clips")
		sb.Cols(clipColumns...)
		for _, c := range clips {
			sb.Values(c.ID, c.ReelID, c.OrderIndex, c.MediaRef, c.TrimStartMS, c.TrimEndMS, c.Caption, c.CreatedAt)
		}

		query, args = sb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert clip sequence")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace clips")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Replaced clip sequence")
	return clips, nil
}

// ListByReel retrieves a reel's clips in playback order
func (r *Repository) ListByReel(ctx context.Context, reelID string) ([]models.Clip, error) {
	ctx, span := tracing.StartSpan(ctx, "clip.Repository.ListByReel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(clipColumns...)
	sb.From("clips")
	sb.Where(sb.Equal("reel_id", reelID))
	sb.OrderBy("order_index ASC")

	query, args := sb.Build()
	var clips []models.Clip
	if err := r.db.SelectContext(ctx, &clips, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list clips")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list clips")
	}

	return clips, nil
}

// CountByReel returns the clip count for a reel
func (r *Repository) CountByReel(ctx context.Context, reelID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "clip.Repository.CountByReel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("clips")
	sb.Where(sb.Equal("reel_id", reelID))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count clips")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count clips")
	}

	return count, nil
}
