package track

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

var trackColumns = []string{
	"id", "title", "artist", "bpm", "duration_seconds", "license_id",
	"license_expiry", "media_ref", "waveform_ref", "genre", "mood",
	"is_active", "created_at", "updated_at",
}

// Repository handles licensed track persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new track repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create registers a new licensed track
func (r *Repository) Create(ctx context.Context, req models.CreateTrackRequest) (*models.Track, error) {
	ctx, span := tracing.StartSpan(ctx, "track.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "Create",
		"title":  req.Title,
		"artist": req.Artist,
	})

	now := time.Now().UTC()
	if !req.LicenseExpiry.After(now) {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "license_expiry must be in the future")
	}

	track := &models.Track{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Artist:        req.Artist,
		BPM:           req.BPM,
		DurationSecs:  req.DurationSecs,
		LicenseID:     req.LicenseID,
		LicenseExpiry: req.LicenseExpiry.UTC(),
		MediaRef:      req.MediaRef,
		WaveformRef:   req.WaveformRef,
		Genre:         req.Genre,
		Mood:          req.Mood,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("tracks")
	sb.Cols(trackColumns...)
	sb.Values(track.ID, track.Title, track.Artist, track.BPM, track.DurationSecs,
		track.LicenseID, track.LicenseExpiry, track.MediaRef, track.WaveformRef,
		track.Genre, track.Mood, track.IsActive, track.CreatedAt, track.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create track")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create track")
	}

	log.WithFields(map[string]any{"id": track.ID}).Info("Created track")
	return track, nil
}

// Get retrieves a track by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Track, error) {
	ctx, span := tracing.StartSpan(ctx, "track.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(trackColumns...)
	sb.From("tracks")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var track models.Track
	if err := r.db.GetContext(ctx, &track, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("track %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get track")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get track")
	}

	return &track, nil
}

// List retrieves tracks matching the filter. UsableOnly narrows to active
// tracks whose license has not expired.
func (r *Repository) List(ctx context.Context, filter models.TrackFilter, page, pageSize int) ([]models.Track, int, error) {
	ctx, span := tracing.StartSpan(ctx, "track.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	now := time.Now().UTC()

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("tracks")
	countWhere := []string{}
	if filter.UsableOnly {
		countWhere = append(countWhere,
			countSb.Equal("is_active", true),
			countSb.GreaterThan("license_expiry", now),
		)
	}
	if filter.Genre != nil {
		countWhere = append(countWhere, countSb.Equal("genre", *filter.Genre))
	}
	if filter.Mood != nil {
		countWhere = append(countWhere, countSb.Equal("mood", *filter.Mood))
	}
	if len(countWhere) > 0 {
		countSb.Where(countWhere...)
	}

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count tracks")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count tracks")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(trackColumns...)
	sb.From("tracks")
	where := []string{}
	if filter.UsableOnly {
		where = append(where,
			sb.Equal("is_active", true),
			sb.GreaterThan("license_expiry", now),
		)
	}
	if filter.Genre != nil {
		where = append(where, sb.Equal("genre", *filter.Genre))
	}
	if filter.Mood != nil {
		where = append(where, sb.Equal("mood", *filter.Mood))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var tracks []models.Track
	if err := r.db.SelectContext(ctx, &tracks, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tracks")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tracks")
	}

	return tracks, totalCount, nil
}

// Deactivate pulls a track from the catalog. Existing rendered reels are
// unaffected; new reels and pending renders will fail the license gate.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "track.Repository.Deactivate")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tracks")
	sb.Set(
		sb.Assign("is_active", false),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to deactivate track")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate track")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("track %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("Deactivated track")
	return nil
}
