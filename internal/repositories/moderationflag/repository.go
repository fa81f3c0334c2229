package moderationflag

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

var flagColumns = []string{
	"id", "reel_id", "kind", "score", "source", "verdict", "reviewer_id",
	"reviewed_at", "supersedes_flag_id", "created_at",
}

// notSuperseded filters out flags that a later review row has settled.
const notSuperseded = "NOT EXISTS (SELECT 1 FROM moderation_flags s WHERE s.supersedes_flag_id = moderation_flags.id)"

// Repository handles moderation flag persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new moderation flag repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create records a new pending flag against a reel
func (r *Repository) Create(ctx context.Context, req models.CreateFlagRequest) (*models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderationflag.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "Create",
		"reel_id": req.ReelID,
		"kind":    req.Kind,
		"source":  req.Source,
	})

	flag := &models.ModerationFlag{
		ID:        uuid.New().String(),
		ReelID:    req.ReelID,
		Kind:      req.Kind,
		Score:     req.Score,
		Source:    req.Source,
		Verdict:   models.FlagVerdictPending,
		CreatedAt: time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("moderation_flags")
	sb.Cols("id", "reel_id", "kind", "score", "source", "verdict", "created_at")
	sb.Values(flag.ID, flag.ReelID, flag.Kind, flag.Score, flag.Source, flag.Verdict, flag.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", req.ReelID))
		}
		log.WithError(err).Error("Failed to create moderation flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create moderation flag")
	}

	log.WithFields(map[string]any{"id": flag.ID}).Info("Created moderation flag")
	return flag, nil
}

// Get retrieves a flag by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderationflag.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(flagColumns...)
	sb.From("moderation_flags")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var flag models.ModerationFlag
	if err := r.db.GetContext(ctx, &flag, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("moderation flag %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get moderation flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get moderation flag")
	}

	return &flag, nil
}

// ListByReel retrieves every flag on a reel, newest first
func (r *Repository) ListByReel(ctx context.Context, reelID string) ([]models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderationflag.Repository.ListByReel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(flagColumns...)
	sb.From("moderation_flags")
	sb.Where(sb.Equal("reel_id", reelID))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var flags []models.ModerationFlag
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list moderation flags")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list moderation flags")
	}

	return flags, nil
}

// ListPending retrieves the review queue, oldest first
func (r *Repository) ListPending(ctx context.Context, page, pageSize int) ([]models.ModerationFlag, int, error) {
	ctx, span := tracing.StartSpan(ctx, "moderationflag.Repository.ListPending")
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
	countSb.From("moderation_flags")
	countSb.Where(countSb.Equal("verdict", models.FlagVerdictPending), notSuperseded)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count pending flags")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count pending flags")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(flagColumns...)
	sb.From("moderation_flags")
	sb.Where(sb.Equal("verdict", models.FlagVerdictPending), notSuperseded)
	sb.OrderBy("created_at ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var flags []models.ModerationFlag
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending flags")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending flags")
	}

	return flags, totalCount, nil
}

// Review applies a human verdict to a pending flag. The original row is
// never touched: the verdict lands as a new row whose supersedes_flag_id
// points at the flag it settles, so the pre-review record survives as an
// audit trail. The unique constraint on supersedes_flag_id makes a second
// review of the same flag a conflict.
func (r *Repository) Review(ctx context.Context, id string, verdict models.FlagVerdict, reviewerID string) (*models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderationflag.Repository.Review")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Review",
		"flag_id":     id,
		"verdict":     verdict,
		"reviewer_id": reviewerID,
	})

	var review *models.ModerationFlag
	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		getSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		getSb.Select(flagColumns...)
		getSb.From("moderation_flags")
		getSb.Where(getSb.Equal("id", id))

		getQuery, getArgs := getSb.Build()
		var original models.ModerationFlag
		if err := tx.GetContext(ctx, &original, getQuery, getArgs...); err != nil {
			if database.IsNoRows(err) {
				return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("moderation flag %s not found", id))
			}
			log.WithError(err).Error("Failed to load moderation flag for review")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to review moderation flag")
		}
		if original.Verdict != models.FlagVerdictPending {
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("moderation flag %s already has verdict %s", id, original.Verdict))
		}

		now := time.Now().UTC()
		review = &models.ModerationFlag{
			ID:               uuid.New().String(),
			ReelID:           original.ReelID,
			Kind:             original.Kind,
			Score:            original.Score,
			Source:           original.Source,
			Verdict:          verdict,
			ReviewerID:       &reviewerID,
			ReviewedAt:       &now,
			SupersedesFlagID: &original.ID,
			CreatedAt:        now,
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("moderation_flags")
		sb.Cols("id", "reel_id", "kind", "score", "source", "verdict",
			"reviewer_id", "reviewed_at", "supersedes_flag_id", "created_at")
		sb.Values(review.ID, review.ReelID, review.Kind, review.Score, review.Source,
			review.Verdict, review.ReviewerID, review.ReviewedAt, review.SupersedesFlagID, review.CreatedAt)

		query, args := sb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if database.IsUniqueViolation(err, "") {
				return httperror.NewHTTPError(http.StatusConflict,
					fmt.Sprintf("moderation flag %s is already reviewed", id))
			}
			log.WithError(err).Error("Failed to insert review verdict")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to review moderation flag")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Reviewed moderation flag")
	return review, nil
}

// CountRejected returns the number of rejected flags on a reel
func (r *Repository) CountRejected(ctx context.Context, reelID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "moderationflag.Repository.CountRejected")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("moderation_flags")
	sb.Where(
		sb.Equal("reel_id", reelID),
		sb.Equal("verdict", models.FlagVerdictRejected),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count rejected flags")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count rejected flags")
	}

	return count, nil
}
