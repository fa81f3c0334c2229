package virality

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sprig/internal/repositories/shareevent"
	"github.com/Ramsey-B/sprig/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeShareStore struct {
	events      []models.ShareEvent
	installs    map[string]*models.InstallAttribution
	ownerWindow map[string]shareevent.OwnerWindowCounts
	ownerN      map[string]int
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{
		installs:    map[string]*models.InstallAttribution{},
		ownerWindow: map[string]shareevent.OwnerWindowCounts{},
		ownerN:      map[string]int{},
	}
}

func (s *fakeShareStore) Insert(_ context.Context, reelID string, channel models.ShareChannel, referrerID, actingUserID *string) (*models.ShareEvent, error) {
	event := models.ShareEvent{
		ID:           uuid.New().String(),
		ReelID:       reelID,
		ReferrerID:   referrerID,
		ActingUserID: actingUserID,
		Channel:      channel,
		SharedAt:     time.Now().UTC(),
	}
	s.events = append(s.events, event)
	return &event, nil
}

func (s *fakeShareStore) ListByReel(_ context.Context, reelID string, _, _ int) ([]models.ShareEvent, error) {
	var out []models.ShareEvent
	for _, e := range s.events {
		if e.ReelID == reelID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeShareStore) CountByReel(_ context.Context, reelID string) (int, error) {
	n := 0
	for _, e := range s.events {
		if e.ReelID == reelID {
			n++
		}
	}
	return n, nil
}

func (s *fakeShareStore) CountOwnerWindow(_ context.Context, ownerID string, _, _ time.Time) (*shareevent.OwnerWindowCounts, error) {
	counts := s.ownerWindow[ownerID]
	return &counts, nil
}

func (s *fakeShareStore) InsertInstall(_ context.Context, req models.RecordInstallRequest) (*models.InstallAttribution, bool, error) {
	if existing, ok := s.installs[req.InstallUserID]; ok {
		return existing, false, nil
	}
	attr := &models.InstallAttribution{
		ID:             uuid.New().String(),
		ReelID:         req.ReelID,
		InstallUserID:  req.InstallUserID,
		ReferrerUserID: req.ReferrerUserID,
		Channel:        req.Channel,
		InstalledAt:    time.Now().UTC(),
	}
	s.installs[req.InstallUserID] = attr
	return attr, true, nil
}

func (s *fakeShareStore) CountOwnerInstallWindow(_ context.Context, ownerID string, _, _ time.Time) (int, error) {
	return s.ownerN[ownerID], nil
}

type fakeReelStore struct {
	reels       map[string]*models.Reel
	publicCount map[string]int
	reconciled  int
}

func (s *fakeReelStore) Get(_ context.Context, id string) (*models.Reel, error) {
	r, ok := s.reels[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "reel not found")
	}
	return r, nil
}

func (s *fakeReelStore) IncrementShares(_ context.Context, id string) error {
	s.reels[id].KPIShares++
	return nil
}

func (s *fakeReelStore) IncrementDerivedInstalls(_ context.Context, id string) error {
	s.reels[id].KPIDerivedInstalls++
	return nil
}

func (s *fakeReelStore) CountPublicByOwnerWindow(_ context.Context, ownerID string, _, _ time.Time) (int, error) {
	return s.publicCount[ownerID], nil
}

func (s *fakeReelStore) ReconcileShareCounters(_ context.Context) (int, error) {
	return s.reconciled, nil
}

type fakeEmitter struct {
	shares   int
	installs int
}

func (e *fakeEmitter) EmitShareRecorded(_ context.Context, _ *models.ShareEvent) error {
	e.shares++
	return nil
}

func (e *fakeEmitter) EmitInstallAttributed(_ context.Context, _ *models.InstallAttribution) error {
	e.installs++
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc     *Service
	shares  *fakeShareStore
	reels   *fakeReelStore
	emitter *fakeEmitter
}

func newFixture(reels ...*models.Reel) *fixture {
	f := &fixture{
		shares:  newFakeShareStore(),
		reels:   &fakeReelStore{reels: map[string]*models.Reel{}, publicCount: map[string]int{}},
		emitter: &fakeEmitter{},
	}
	for _, r := range reels {
		f.reels.reels[r.ID] = r
	}
	f.svc = NewService(f.shares, f.reels, f.emitter, fakeTxRunner{}, testLogger())
	return f
}

func strPtr(s string) *string { return &s }

func TestRecordShare(t *testing.T) {
	ctx := context.Background()

	t.Run("appends the event and bumps the counter", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})

		event, err := f.svc.RecordShare(ctx, "reel-1", models.ShareChannelInstagram, strPtr("user-1"), strPtr("user-1"))
		require.NoError(t, err)
		assert.Equal(t, models.ShareChannelInstagram, event.Channel)
		require.NotNil(t, event.ReferrerID)
		assert.Equal(t, "user-1", *event.ReferrerID)
		assert.Equal(t, 1, f.reels.reels["reel-1"].KPIShares)
		assert.Equal(t, 1, f.emitter.shares)
	})

	t.Run("anonymous shares carry no referrer or acting user", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})

		event, err := f.svc.RecordShare(ctx, "reel-1", models.ShareChannelCopyLink, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, event.ReferrerID)
		assert.Nil(t, event.ActingUserID)
	})

	t.Run("a removed reel can still be shared", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusRemoved})

		event, err := f.svc.RecordShare(ctx, "reel-1", models.ShareChannelTikTok, strPtr("user-1"), nil)
		require.NoError(t, err)
		assert.Equal(t, "reel-1", event.ReelID)
		assert.Equal(t, 1, f.reels.reels["reel-1"].KPIShares)
	})

	t.Run("drafts and flagged reels count too", func(t *testing.T) {
		f := newFixture(
			&models.Reel{ID: "reel-1", Status: models.ReelStatusDraft},
			&models.Reel{ID: "reel-2", Status: models.ReelStatusFlagged},
		)

		_, err := f.svc.RecordShare(ctx, "reel-1", models.ShareChannelSnapchat, nil, nil)
		require.NoError(t, err)
		_, err = f.svc.RecordShare(ctx, "reel-2", models.ShareChannelSnapchat, nil, nil)
		require.NoError(t, err)
	})

	t.Run("a reel that never existed is not found", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.RecordShare(ctx, "missing", models.ShareChannelTikTok, nil, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("unknown channels are rejected", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})

		_, err := f.svc.RecordShare(ctx, "reel-1", "myspace", nil, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("repeat shares by the same referrer all count", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})

		for i := 0; i < 3; i++ {
			_, err := f.svc.RecordShare(ctx, "reel-1", models.ShareChannelCopyLink, strPtr("user-1"), strPtr("user-1"))
			require.NoError(t, err)
		}
		assert.Equal(t, 3, f.reels.reels["reel-1"].KPIShares)
	})
}

func TestRecordInstall(t *testing.T) {
	ctx := context.Background()

	t.Run("attributes an install and bumps the counter", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})

		attr, err := f.svc.RecordInstall(ctx, models.RecordInstallRequest{
			ReelID:         "reel-1",
			InstallUserID:  "new-user-1",
			ReferrerUserID: strPtr("user-1"),
		})
		require.NoError(t, err)
		assert.Equal(t, "reel-1", attr.ReelID)
		require.NotNil(t, attr.ReferrerUserID)
		assert.Equal(t, "user-1", *attr.ReferrerUserID)
		assert.Equal(t, 1, f.reels.reels["reel-1"].KPIDerivedInstalls)
		assert.Equal(t, 1, f.emitter.installs)
	})

	t.Run("a user's install only counts once", func(t *testing.T) {
		f := newFixture(
			&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic},
			&models.Reel{ID: "reel-2", Status: models.ReelStatusPublic},
		)

		first, err := f.svc.RecordInstall(ctx, models.RecordInstallRequest{
			ReelID: "reel-1", InstallUserID: "new-user-1",
		})
		require.NoError(t, err)

		replay, err := f.svc.RecordInstall(ctx, models.RecordInstallRequest{
			ReelID: "reel-2", InstallUserID: "new-user-1",
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, replay.ID, "replay returns the original attribution")
		assert.Equal(t, 1, f.reels.reels["reel-1"].KPIDerivedInstalls)
		assert.Equal(t, 0, f.reels.reels["reel-2"].KPIDerivedInstalls)
		assert.Equal(t, 1, f.emitter.installs)
	})
}

func TestKFactor(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	t.Run("referred installs divided by the owner's public reels", func(t *testing.T) {
		f := newFixture()
		f.shares.ownerWindow["owner-1"] = shareevent.OwnerWindowCounts{Shares: 500, Referrers: 100}
		f.shares.ownerN["owner-1"] = 42
		f.reels.publicCount["owner-1"] = 10

		report, err := f.svc.KFactor(ctx, "owner-1", start, end)
		require.NoError(t, err)
		assert.Equal(t, "owner-1", report.OwnerID)
		assert.Equal(t, 500, report.Shares)
		assert.Equal(t, 42, report.ReferredInstalls)
		assert.Equal(t, 10, report.PublicReels)
		assert.InDelta(t, 4.2, report.KFactor, 1e-9)
	})

	t.Run("owners are scored independently", func(t *testing.T) {
		f := newFixture()
		f.shares.ownerN["owner-1"] = 8
		f.reels.publicCount["owner-1"] = 4
		f.shares.ownerN["owner-2"] = 3
		f.reels.publicCount["owner-2"] = 6

		first, err := f.svc.KFactor(ctx, "owner-1", start, end)
		require.NoError(t, err)
		second, err := f.svc.KFactor(ctx, "owner-2", start, end)
		require.NoError(t, err)

		assert.InDelta(t, 2.0, first.KFactor, 1e-9)
		assert.InDelta(t, 0.5, second.KFactor, 1e-9)
	})

	t.Run("no public reels yields a zero K-factor, not a division error", func(t *testing.T) {
		f := newFixture()
		f.shares.ownerN["owner-1"] = 10

		report, err := f.svc.KFactor(ctx, "owner-1", start, end)
		require.NoError(t, err)
		assert.Zero(t, report.KFactor)
		assert.Equal(t, 10, report.ReferredInstalls)
	})

	t.Run("a missing owner id is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.KFactor(ctx, "", start, end)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("inverted windows are rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.KFactor(ctx, "owner-1", end, start)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestReconcile(t *testing.T) {
	f := newFixture()
	f.reels.reconciled = 3

	corrected, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, corrected)
}
