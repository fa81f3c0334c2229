package remixedge_test

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

	"github.com/Ramsey-B/sprig/internal/repositories/remixedge"
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

type lineageSeeder struct {
	db         database.DB
	templateID string
	trackID    string
}

func newLineageSeeder(t *testing.T, db database.DB) *lineageSeeder {
	t.Helper()
	ctx := context.Background()

	s := &lineageSeeder{
		db:         db,
		templateID: uuid.New().String(),
		trackID:    uuid.New().String(),
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO templates (id, name, theme, composition_spec, thumbnail_ref, min_clips, max_clips, duration_seconds, is_active)
		VALUES ($1, 'test template', 'test', '{}', '', 1, 5, 15, true)
	`, s.templateID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO tracks (id, title, artist, bpm, duration_seconds, license_id, license_expiry, media_ref, genre, mood, is_active)
		VALUES ($1, 'test track', 'test artist', 120, 30, 'lic-test', now() + interval '30 days', 'media/test.mp3', 'pop', 'upbeat', true)
	`, s.trackID)
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		_, _ = db.ExecContext(cleanupCtx, `DELETE FROM tracks WHERE id = $1`, s.trackID)
		_, _ = db.ExecContext(cleanupCtx, `DELETE FROM templates WHERE id = $1`, s.templateID)
	})

	return s
}

// seedReel inserts a reel; a non-nil remixOfID marks it as a remix of that
// parent.
func (s *lineageSeeder) seedReel(t *testing.T, remixOfID *string) string {
	t.Helper()
	ctx := context.Background()

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reels (id, owner_id, template_id, track_id, remix_of_id, composition_spec, locale, status, watermark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'en', $7, false, $8, $8)
	`, id, uuid.New().String(), s.templateID, s.trackID, remixOfID, json.RawMessage(`{}`), models.ReelStatusPublic, now)
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		_, _ = s.db.ExecContext(cleanupCtx, `DELETE FROM remix_edges WHERE parent_reel_id = $1 OR child_reel_id = $1`, id)
		_, _ = s.db.ExecContext(cleanupCtx, `DELETE FROM reels WHERE id = $1`, id)
	})

	return id
}

func TestIntegrationRemixEdgeRepository(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	repo := remixedge.NewRepository(db, getTestLogger())
	ctx := context.Background()

	t.Run("links a child that records the parent as its source", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		parent := s.seedReel(t, nil)
		child := s.seedReel(t, &parent)

		edge, err := repo.Create(ctx, parent, child)
		require.NoError(t, err)
		assert.Equal(t, parent, edge.ParentReelID)
		assert.Equal(t, child, edge.ChildReelID)
	})

	t.Run("refuses an edge between two pre-existing unrelated reels", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		a := s.seedReel(t, nil)
		b := s.seedReel(t, &a)
		c := s.seedReel(t, &b)

		// lineage is a -> b -> c; closing the loop c -> a would make a cycle
		_, err := repo.Create(ctx, c, a)
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})

	t.Run("refuses an edge whose parent differs from the recorded source", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		parent := s.seedReel(t, nil)
		other := s.seedReel(t, nil)
		child := s.seedReel(t, &parent)

		_, err := repo.Create(ctx, other, child)
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})

	t.Run("a reel cannot remix itself", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		a := s.seedReel(t, nil)

		_, err := repo.Create(ctx, a, a)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("a child can only have one recorded parent edge", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		parent := s.seedReel(t, nil)
		child := s.seedReel(t, &parent)

		_, err := repo.Create(ctx, parent, child)
		require.NoError(t, err)

		_, err = repo.Create(ctx, parent, child)
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})

	t.Run("an edge to a missing child is not found", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		parent := s.seedReel(t, nil)

		_, err := repo.Create(ctx, parent, uuid.New().String())
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("ancestry walks nearest first", func(t *testing.T) {
		s := newLineageSeeder(t, db)
		a := s.seedReel(t, nil)
		b := s.seedReel(t, &a)
		c := s.seedReel(t, &b)

		_, err := repo.Create(ctx, a, b)
		require.NoError(t, err)
		_, err = repo.Create(ctx, b, c)
		require.NoError(t, err)

		ancestors, err := repo.Ancestors(ctx, c, 10)
		require.NoError(t, err)
		require.Len(t, ancestors, 2)
		assert.Equal(t, b, ancestors[0].ReelID)
		assert.Equal(t, a, ancestors[1].ReelID)
	})
}
