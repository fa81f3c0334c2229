package reel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sprig/internal/repositories/reel"
	"github.com/Ramsey-B/sprig/pkg/database"
	"github.com/Ramsey-B/sprig/pkg/models"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestDB(t *testing.T) database.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test, set INTEGRATION_TESTS=true to run")
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "sprig"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewInstance(db, getTestLogger())
}

func seedReel(t *testing.T, db database.DB, repo *reel.Repository, status models.ReelStatus) *models.Reel {
	t.Helper()
	ctx := context.Background()

	templateID := uuid.New().String()
	trackID := uuid.New().String()

	_, err := db.ExecContext(ctx, `
		INSERT INTO templates (id, name, theme, composition_spec, thumbnail_ref, min_clips, max_clips, duration_seconds, is_active)
		VALUES ($1, 'test template', 'test', '{}', '', 1, 5, 15, true)
	`, templateID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO tracks (id, title, artist, bpm, duration_seconds, license_id, license_expiry, media_ref, genre, mood, is_active)
		VALUES ($1, 'test track', 'test artist', 120, 30, 'lic-test', now() + interval '30 days', 'media/test.mp3', 'pop', 'upbeat', true)
	`, trackID)
	require.NoError(t, err)

	r := &models.Reel{
		ID:              uuid.New().String(),
		OwnerID:         uuid.New().String(),
		TemplateID:      templateID,
		TrackID:         trackID,
		CompositionSpec: json.RawMessage(`{}`),
		Locale:          "en",
		Status:          models.ReelStatusDraft,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, r))

	if status != models.ReelStatusDraft {
		if status == models.ReelStatusPublic || status == models.ReelStatusFlagged {
			_, err = db.ExecContext(ctx, `UPDATE reels SET status = $1 WHERE id = $2`, status, r.ID)
			require.NoError(t, err)
		} else {
			ok, err := repo.TransitionStatus(ctx, r.ID, []models.ReelStatus{models.ReelStatusDraft}, status)
			require.NoError(t, err)
			require.True(t, ok)
		}
		r.Status = status
	}

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		_, _ = db.ExecContext(cleanupCtx, `DELETE FROM reels WHERE id = $1`, r.ID)
		_, _ = db.ExecContext(cleanupCtx, `DELETE FROM tracks WHERE id = $1`, trackID)
		_, _ = db.ExecContext(cleanupCtx, `DELETE FROM templates WHERE id = $1`, templateID)
	})

	return r
}

func TestIntegrationReelRepository(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	repo := reel.NewRepository(db, getTestLogger())
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		created := seedReel(t, db, repo, models.ReelStatusDraft)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.OwnerID, got.OwnerID)
		assert.Equal(t, models.ReelStatusDraft, got.Status)
	})

	t.Run("get unknown id is not found", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New().String())
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("transition is compare-and-set", func(t *testing.T) {
		r := seedReel(t, db, repo, models.ReelStatusDraft)

		ok, err := repo.TransitionStatus(ctx, r.ID, []models.ReelStatus{models.ReelStatusDraft}, models.ReelStatusRendering)
		require.NoError(t, err)
		assert.True(t, ok)

		// the state already moved on, the same CAS must lose
		ok, err = repo.TransitionStatus(ctx, r.ID, []models.ReelStatus{models.ReelStatusDraft}, models.ReelStatusRendering)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("render success only lands on a rendering reel", func(t *testing.T) {
		r := seedReel(t, db, repo, models.ReelStatusRendering)

		mediaRef := "media/final.mp4"
		duration := 15
		ok, err := repo.SetRenderSuccess(ctx, r.ID, &mediaRef, nil, &duration)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusPublic, got.Status)
		require.NotNil(t, got.MediaRef)
		assert.Equal(t, mediaRef, *got.MediaRef)

		// replay loses the CAS
		ok, err = repo.SetRenderSuccess(ctx, r.ID, &mediaRef, nil, &duration)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("render failure returns the reel to draft with the reason", func(t *testing.T) {
		r := seedReel(t, db, repo, models.ReelStatusRendering)

		ok, err := repo.SetRenderFailure(ctx, r.ID, "transcode timeout")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusDraft, got.Status)
		require.NotNil(t, got.RenderError)
		assert.Equal(t, "transcode timeout", *got.RenderError)
	})

	t.Run("share counter increments", func(t *testing.T) {
		r := seedReel(t, db, repo, models.ReelStatusPublic)

		require.NoError(t, repo.IncrementShares(ctx, r.ID))
		require.NoError(t, repo.IncrementShares(ctx, r.ID))
		require.NoError(t, repo.IncrementDerivedInstalls(ctx, r.ID))

		got, err := repo.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.KPIShares)
		assert.Equal(t, 1, got.KPIDerivedInstalls)
	})

	t.Run("feed only serves public reels", func(t *testing.T) {
		public := seedReel(t, db, repo, models.ReelStatusPublic)
		draft := seedReel(t, db, repo, models.ReelStatusDraft)

		feed, err := repo.Feed(ctx, nil, 100, 0)
		require.NoError(t, err)

		ids := map[string]bool{}
		for _, item := range feed {
			ids[item.ID] = true
		}
		assert.True(t, ids[public.ID])
		assert.False(t, ids[draft.ID])
	})
}
