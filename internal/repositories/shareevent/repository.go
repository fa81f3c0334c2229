package shareevent

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

// OwnerWindowCounts aggregates share activity on one owner's reels over a
// time window.
type OwnerWindowCounts struct {
	Shares    int `db:"shares"`
	Referrers int `db:"referrers"`
}

// Repository handles the append-only share event log and install
// attributions.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new share event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert appends one share event. Callers run it in the same transaction as
// the reel counter increment.
func (r *Repository) Insert(ctx context.Context, reelID string, channel models.ShareChannel, referrerID, actingUserID *string) (*models.ShareEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "shareevent.Repository.Insert")
	defer span.End()

	event := &models.ShareEvent{
		ID:           uuid.New().String(),
		ReelID:       reelID,
		ReferrerID:   referrerID,
		ActingUserID: actingUserID,
		Channel:      channel,
		SharedAt:     time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("share_events")
	sb.Cols("id", "reel_id", "referrer_id", "acting_user_id", "channel", "shared_at")
	sb.Values(event.ID, event.ReelID, event.ReferrerID, event.ActingUserID, event.Channel, event.SharedAt)

	query, args := sb.Build()
	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if database.IsForeignKeyViolation(err) {
				return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", reelID))
			}
			r.logger.WithContext(ctx).WithError(err).Error("Failed to insert share event")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record share")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// ListByReel retrieves a reel's share events, newest first
func (r *Repository) ListByReel(ctx context.Context, reelID string, limit, offset int) ([]models.ShareEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "shareevent.Repository.ListByReel")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "reel_id", "referrer_id", "acting_user_id", "channel", "shared_at")
	sb.From("share_events")
	sb.Where(sb.Equal("reel_id", reelID))
	sb.OrderBy("shared_at DESC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var events []models.ShareEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list share events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list share events")
	}

	return events, nil
}

// CountByReel returns the true share count from the event log, used to
// cross-check the denormalized counter.
func (r *Repository) CountByReel(ctx context.Context, reelID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "shareevent.Repository.CountByReel")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("share_events")
	sb.Where(sb.Equal("reel_id", reelID))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count share events")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count share events")
	}

	return count, nil
}

// CountOwnerWindow aggregates shares of one owner's reels, and the distinct
// referrers behind them, inside a window.
func (r *Repository) CountOwnerWindow(ctx context.Context, ownerID string, start, end time.Time) (*OwnerWindowCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "shareevent.Repository.CountOwnerWindow")
	defer span.End()

	var counts OwnerWindowCounts
	err := r.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) AS shares, COUNT(DISTINCT s.referrer_id) AS referrers
		FROM share_events s
		JOIN reels r ON r.id = s.reel_id
		WHERE r.owner_id = $1 AND s.shared_at >= $2 AND s.shared_at < $3`, ownerID, start, end)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to aggregate share window")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to aggregate share window")
	}

	return &counts, nil
}

// InsertInstall attributes an install to a reel. A user's install is only
// ever counted once; replays are dropped silently.
func (r *Repository) InsertInstall(ctx context.Context, req models.RecordInstallRequest) (*models.InstallAttribution, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "shareevent.Repository.InsertInstall")
	defer span.End()

	attr := &models.InstallAttribution{
		ID:             uuid.New().String(),
		ReelID:         req.ReelID,
		InstallUserID:  req.InstallUserID,
		ReferrerUserID: req.ReferrerUserID,
		Channel:        req.Channel,
		InstalledAt:    time.Now().UTC(),
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("install_attributions")
	sb.Cols("id", "reel_id", "install_user_id", "referrer_user_id", "channel", "installed_at")
	sb.Values(attr.ID, attr.ReelID, attr.InstallUserID, attr.ReferrerUserID, attr.Channel, attr.InstalledAt)
	sb.OnConflictDoNothing("install_user_id")

	query, args := sb.Build()
	inserted := false
	err := database.RunInTx(ctx, r.logger, r.db, func(ctx context.Context, tx database.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", req.ReelID))
			}
			r.logger.WithContext(ctx).WithError(err).Error("Failed to insert install attribution")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record install")
		}
		rows, _ := result.RowsAffected()
		inserted = rows > 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return attr, inserted, nil
}

// CountOwnerInstallWindow counts the distinct installed users attributed to
// one owner's reels inside a window.
func (r *Repository) CountOwnerInstallWindow(ctx context.Context, ownerID string, start, end time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "shareevent.Repository.CountOwnerInstallWindow")
	defer span.End()

	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT i.install_user_id)
		FROM install_attributions i
		JOIN reels r ON r.id = i.reel_id
		WHERE r.owner_id = $1 AND i.installed_at >= $2 AND i.installed_at < $3`, ownerID, start, end)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count install window")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count install window")
	}

	return count, nil
}
