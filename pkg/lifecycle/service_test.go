package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sprig/pkg/moderation"
	"github.com/Ramsey-B/sprig/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeReelStore struct {
	reels map[string]*models.Reel
}

func newFakeReelStore(reels ...*models.Reel) *fakeReelStore {
	s := &fakeReelStore{reels: map[string]*models.Reel{}}
	for _, r := range reels {
		s.reels[r.ID] = r
	}
	return s
}

func (s *fakeReelStore) Create(_ context.Context, reel *models.Reel) error {
	s.reels[reel.ID] = reel
	return nil
}

func (s *fakeReelStore) Get(_ context.Context, id string) (*models.Reel, error) {
	r, ok := s.reels[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "reel not found")
	}
	copied := *r
	return &copied, nil
}

func (s *fakeReelStore) ListByOwner(_ context.Context, ownerID string, _, _ int) (*models.ReelPage, error) {
	page := &models.ReelPage{}
	for _, r := range s.reels {
		if r.OwnerID == ownerID {
			page.Items = append(page.Items, *r)
		}
	}
	page.Total = len(page.Items)
	return page, nil
}

func (s *fakeReelStore) Feed(_ context.Context, _ *string, limit, _ int) ([]models.Reel, error) {
	var out []models.Reel
	for _, r := range s.reels {
		if r.Status == models.ReelStatusPublic {
			out = append(out, *r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeReelStore) TransitionStatus(_ context.Context, id string, from []models.ReelStatus, to models.ReelStatus) (bool, error) {
	r, ok := s.reels[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if r.Status == f {
			r.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeReelStore) SetRenderSuccess(_ context.Context, id string, mediaRef, posterRef *string, durationSeconds *int) (bool, error) {
	r, ok := s.reels[id]
	if !ok || r.Status != models.ReelStatusRendering {
		return false, nil
	}
	r.Status = models.ReelStatusPublic
	r.MediaRef = mediaRef
	r.PosterRef = posterRef
	r.DurationSeconds = durationSeconds
	r.RenderError = nil
	return true, nil
}

func (s *fakeReelStore) SetRenderFailure(_ context.Context, id string, reason string) (bool, error) {
	r, ok := s.reels[id]
	if !ok || r.Status != models.ReelStatusRendering {
		return false, nil
	}
	r.Status = models.ReelStatusDraft
	r.RenderError = &reason
	return true, nil
}

type fakeClipStore struct {
	clips map[string][]models.Clip
}

func newFakeClipStore() *fakeClipStore {
	return &fakeClipStore{clips: map[string][]models.Clip{}}
}

func (s *fakeClipStore) ReplaceAll(_ context.Context, reelID string, inputs []models.ClipInput) ([]models.Clip, error) {
	out := make([]models.Clip, len(inputs))
	for i, in := range inputs {
		out[i] = models.Clip{
			ReelID:      reelID,
			OrderIndex:  i,
			MediaRef:    in.MediaRef,
			TrimStartMS: in.TrimStartMS,
			TrimEndMS:   in.TrimEndMS,
			Caption:     in.Caption,
		}
	}
	s.clips[reelID] = out
	return out, nil
}

func (s *fakeClipStore) ListByReel(_ context.Context, reelID string) ([]models.Clip, error) {
	return s.clips[reelID], nil
}

type fakeTemplateStore struct {
	templates map[string]*models.Template
}

func (s *fakeTemplateStore) Get(_ context.Context, id string) (*models.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "template not found")
	}
	return t, nil
}

type fakeTrackStore struct {
	tracks map[string]*models.Track
}

func (s *fakeTrackStore) Get(_ context.Context, id string) (*models.Track, error) {
	t, ok := s.tracks[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "track not found")
	}
	return t, nil
}

type fakeEdgeStore struct {
	edges []models.RemixEdge
}

func (s *fakeEdgeStore) Create(_ context.Context, parentReelID, childReelID string) (*models.RemixEdge, error) {
	edge := models.RemixEdge{ParentReelID: parentReelID, ChildReelID: childReelID}
	s.edges = append(s.edges, edge)
	return &edge, nil
}

type fakeFlagStore struct {
	flags map[string][]models.ModerationFlag
}

func (s *fakeFlagStore) ListByReel(_ context.Context, reelID string) ([]models.ModerationFlag, error) {
	return s.flags[reelID], nil
}

type fakeEmitter struct {
	created         int
	published       int
	flagged         int
	removed         int
	renderRequested int
	renderFailed    int
	failRenderEmit  bool

	lastRenderReel     *models.Reel
	lastRenderClips    []models.Clip
	lastRenderTrackRef string
}

func (e *fakeEmitter) EmitReelCreated(_ context.Context, _ *models.Reel) error { e.created++; return nil }
func (e *fakeEmitter) EmitReelPublished(_ context.Context, _ *models.Reel) error {
	e.published++
	return nil
}
func (e *fakeEmitter) EmitReelFlagged(_ context.Context, _ *models.Reel, _ string) error {
	e.flagged++
	return nil
}
func (e *fakeEmitter) EmitReelRemoved(_ context.Context, _ *models.Reel, _ string) error {
	e.removed++
	return nil
}
func (e *fakeEmitter) EmitRenderRequested(_ context.Context, reel *models.Reel, clips []models.Clip, trackRef string, _ int) error {
	if e.failRenderEmit {
		return errors.New("kafka unavailable")
	}
	e.renderRequested++
	e.lastRenderReel = reel
	e.lastRenderClips = clips
	e.lastRenderTrackRef = trackRef
	return nil
}
func (e *fakeEmitter) EmitRenderFailed(_ context.Context, _ *models.Reel, _ string) error {
	e.renderFailed++
	return nil
}

type fakeLocker struct{}

func (fakeLocker) WithLockWait(_ context.Context, _ string, _, _ time.Duration, fn func() error) error {
	return fn()
}

type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc       *Service
	reels     *fakeReelStore
	clips     *fakeClipStore
	templates *fakeTemplateStore
	tracks    *fakeTrackStore
	edges     *fakeEdgeStore
	flags     *fakeFlagStore
	emitter   *fakeEmitter
}

func newFixture(reels ...*models.Reel) *fixture {
	f := &fixture{
		reels:     newFakeReelStore(reels...),
		clips:     newFakeClipStore(),
		templates: &fakeTemplateStore{templates: map[string]*models.Template{}},
		tracks:    &fakeTrackStore{tracks: map[string]*models.Track{}},
		edges:     &fakeEdgeStore{},
		flags:     &fakeFlagStore{flags: map[string][]models.ModerationFlag{}},
		emitter:   &fakeEmitter{},
	}

	f.templates.templates["tmpl-1"] = &models.Template{
		ID:              "tmpl-1",
		Name:            "Before After",
		CompositionSpec: json.RawMessage(`{"layout":"split"}`),
		MinClips:        2,
		MaxClips:        4,
		DurationSeconds: 15,
		IsActive:        true,
	}
	f.tracks.tracks["track-1"] = &models.Track{
		ID:            "track-1",
		Title:         "Golden Hour",
		MediaRef:      "media/tracks/golden-hour.m4a",
		IsActive:      true,
		LicenseExpiry: time.Now().Add(24 * time.Hour),
	}

	f.svc = NewService(
		f.reels, f.clips, f.templates, f.tracks, f.edges, f.flags,
		moderation.NewGatePolicy(nil), nil, f.emitter, fakeLocker{}, fakeTxRunner{},
		Config{}, testLogger(),
	)
	return f
}

func draftReel(id, owner string) *models.Reel {
	return &models.Reel{
		ID:         id,
		OwnerID:    owner,
		TemplateID: "tmpl-1",
		TrackID:    "track-1",
		Locale:     "en",
		Status:     models.ReelStatusDraft,
	}
}

func clipInputs(n int) []models.ClipInput {
	out := make([]models.ClipInput, n)
	for i := range out {
		out[i] = models.ClipInput{MediaRef: "media/clip", TrimStartMS: 0, TrimEndMS: 1000}
	}
	return out
}

func TestCreateReel(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a draft with the template composition snapshotted", func(t *testing.T) {
		f := newFixture()

		reel, err := f.svc.CreateReel(ctx, "user-1", models.CreateReelRequest{
			TemplateID: "tmpl-1",
			TrackID:    "track-1",
		})
		require.NoError(t, err)

		assert.Equal(t, models.ReelStatusDraft, reel.Status)
		assert.Equal(t, "user-1", reel.OwnerID)
		assert.Equal(t, "en", reel.Locale)
		assert.JSONEq(t, `{"layout":"split"}`, string(reel.CompositionSpec))
		assert.Equal(t, 1, f.emitter.created)
	})

	t.Run("rejects a retired template", func(t *testing.T) {
		f := newFixture()
		f.templates.templates["tmpl-1"].IsActive = false

		_, err := f.svc.CreateReel(ctx, "user-1", models.CreateReelRequest{
			TemplateID: "tmpl-1",
			TrackID:    "track-1",
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))
	})

	t.Run("rejects an expired track license", func(t *testing.T) {
		f := newFixture()
		f.tracks.tracks["track-1"].LicenseExpiry = time.Now().Add(-time.Hour)

		_, err := f.svc.CreateReel(ctx, "user-1", models.CreateReelRequest{
			TemplateID: "tmpl-1",
			TrackID:    "track-1",
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))
	})

	t.Run("remix of a public reel records the lineage edge", func(t *testing.T) {
		parent := draftReel("reel-parent", "user-1")
		parent.Status = models.ReelStatusPublic
		f := newFixture(parent)

		parentID := "reel-parent"
		reel, err := f.svc.CreateReel(ctx, "user-2", models.CreateReelRequest{
			TemplateID: "tmpl-1",
			TrackID:    "track-1",
			RemixOfID:  &parentID,
		})
		require.NoError(t, err)

		require.Len(t, f.edges.edges, 1)
		assert.Equal(t, "reel-parent", f.edges.edges[0].ParentReelID)
		assert.Equal(t, reel.ID, f.edges.edges[0].ChildReelID)
	})

	t.Run("cannot remix a draft", func(t *testing.T) {
		parent := draftReel("reel-parent", "user-1")
		f := newFixture(parent)

		parentID := "reel-parent"
		_, err := f.svc.CreateReel(ctx, "user-2", models.CreateReelRequest{
			TemplateID: "tmpl-1",
			TrackID:    "track-1",
			RemixOfID:  &parentID,
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))
		assert.Empty(t, f.edges.edges)
	})
}

func TestCreateRemix(t *testing.T) {
	ctx := context.Background()

	t.Run("inherits template, track and locale from the parent", func(t *testing.T) {
		parent := draftReel("reel-parent", "user-1")
		parent.Status = models.ReelStatusPublic
		parent.Locale = "pt"
		f := newFixture(parent)

		remix, err := f.svc.CreateRemix(ctx, "user-2", "reel-parent", models.CreateRemixRequest{})
		require.NoError(t, err)

		assert.Equal(t, "tmpl-1", remix.TemplateID)
		assert.Equal(t, "track-1", remix.TrackID)
		assert.Equal(t, "pt", remix.Locale)
		require.NotNil(t, remix.RemixOfID)
		assert.Equal(t, "reel-parent", *remix.RemixOfID)
		require.Len(t, f.edges.edges, 1)
		assert.Equal(t, remix.ID, f.edges.edges[0].ChildReelID)
	})

	t.Run("overrides replace the inherited choices", func(t *testing.T) {
		parent := draftReel("reel-parent", "user-1")
		parent.Status = models.ReelStatusPublic
		f := newFixture(parent)
		f.tracks.tracks["track-2"] = &models.Track{
			ID:            "track-2",
			IsActive:      true,
			LicenseExpiry: time.Now().Add(24 * time.Hour),
		}

		trackID := "track-2"
		locale := "fr"
		remix, err := f.svc.CreateRemix(ctx, "user-2", "reel-parent", models.CreateRemixRequest{
			TrackID: &trackID,
			Locale:  &locale,
		})
		require.NoError(t, err)

		assert.Equal(t, "track-2", remix.TrackID)
		assert.Equal(t, "fr", remix.Locale)
	})

	t.Run("cannot remix a non-public parent", func(t *testing.T) {
		f := newFixture(draftReel("reel-parent", "user-1"))

		_, err := f.svc.CreateRemix(ctx, "user-2", "reel-parent", models.CreateRemixRequest{})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))
	})

	t.Run("unknown parent is not found", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.CreateRemix(ctx, "user-2", "reel-missing", models.CreateRemixRequest{})
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}

func TestGetVisible(t *testing.T) {
	ctx := context.Background()

	t.Run("draft is visible to its owner only", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		_, err := f.svc.GetVisible(ctx, "user-1", "reel-1")
		require.NoError(t, err)

		_, err = f.svc.GetVisible(ctx, "user-2", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("public reel is visible to anyone with catalog context", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusPublic
		f := newFixture(reel)

		got, err := f.svc.GetVisible(ctx, "user-2", "reel-1")
		require.NoError(t, err)
		assert.Equal(t, "reel-1", got.Reel.ID)
		require.NotNil(t, got.Template)
		assert.Equal(t, "tmpl-1", got.Template.ID)
		require.NotNil(t, got.Track)
		assert.Equal(t, "track-1", got.Track.ID)
	})
}

func TestReplaceClips(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the sequence with positional order", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		clips, err := f.svc.ReplaceClips(ctx, "user-1", "reel-1", clipInputs(3))
		require.NoError(t, err)
		require.Len(t, clips, 3)
		for i, c := range clips {
			assert.Equal(t, i, c.OrderIndex)
		}
	})

	t.Run("rejects inverted trim windows", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		inputs := clipInputs(1)
		inputs[0].TrimEndMS = 0

		_, err := f.svc.ReplaceClips(ctx, "user-1", "reel-1", inputs)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("non-owner gets forbidden", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		_, err := f.svc.ReplaceClips(ctx, "user-2", "reel-1", clipInputs(2))
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	})

	t.Run("only drafts can be edited", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusPublic
		f := newFixture(reel)

		_, err := f.svc.ReplaceClips(ctx, "user-1", "reel-1", clipInputs(2))
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})

	t.Run("enforces the template max", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		_, err := f.svc.ReplaceClips(ctx, "user-1", "reel-1", clipInputs(5))
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))
	})

	t.Run("allows fewer than the template min while drafting", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		_, err := f.svc.ReplaceClips(ctx, "user-1", "reel-1", clipInputs(1))
		require.NoError(t, err)
	})
}

func TestRequestRender(t *testing.T) {
	ctx := context.Background()

	setup := func(clipCount int) *fixture {
		f := newFixture(draftReel("reel-1", "user-1"))
		if clipCount > 0 {
			_, err := f.clips.ReplaceAll(ctx, "reel-1", clipInputs(clipCount))
			if err != nil {
				panic(err)
			}
		}
		return f
	}

	t.Run("moves draft to rendering and enqueues the job", func(t *testing.T) {
		f := setup(2)

		reel, err := f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusRendering, reel.Status)
		assert.Equal(t, 1, f.emitter.renderRequested)
	})

	t.Run("job payload carries the spec snapshot, ordered clips and track", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))
		f.reels.reels["reel-1"].CompositionSpec = json.RawMessage(`{"layout":"split"}`)

		inputs := clipInputs(3)
		for i := range inputs {
			inputs[i].MediaRef = fmt.Sprintf("media/clip-%d", i)
		}
		_, err := f.clips.ReplaceAll(ctx, "reel-1", inputs)
		require.NoError(t, err)

		_, err = f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.NoError(t, err)

		require.NotNil(t, f.emitter.lastRenderReel)
		assert.JSONEq(t, `{"layout":"split"}`, string(f.emitter.lastRenderReel.CompositionSpec))
		assert.Equal(t, "media/tracks/golden-hour.m4a", f.emitter.lastRenderTrackRef)
		require.Len(t, f.emitter.lastRenderClips, 3)
		for i, c := range f.emitter.lastRenderClips {
			assert.Equal(t, i, c.OrderIndex)
			assert.Equal(t, fmt.Sprintf("media/clip-%d", i), c.MediaRef)
		}
	})

	t.Run("repeat request while rendering is a no-op", func(t *testing.T) {
		f := setup(2)

		_, err := f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.NoError(t, err)

		reel, err := f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusRendering, reel.Status)
		assert.Equal(t, 1, f.emitter.renderRequested, "second request must not enqueue again")
	})

	t.Run("too few clips for the template", func(t *testing.T) {
		f := setup(1)

		_, err := f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))
	})

	t.Run("license recheck blocks an expired track", func(t *testing.T) {
		f := setup(2)
		f.svc.cfg.LicenseRecheckAtRender = true
		f.tracks.tracks["track-1"].LicenseExpiry = time.Now().Add(-time.Minute)

		_, err := f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(err))

		reel, getErr := f.reels.Get(ctx, "reel-1")
		require.NoError(t, getErr)
		assert.Equal(t, models.ReelStatusDraft, reel.Status)
	})

	t.Run("enqueue failure rolls the state back to draft", func(t *testing.T) {
		f := setup(2)
		f.emitter.failRenderEmit = true

		_, err := f.svc.RequestRender(ctx, "user-1", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(err))

		reel, getErr := f.reels.Get(ctx, "reel-1")
		require.NoError(t, getErr)
		assert.Equal(t, models.ReelStatusDraft, reel.Status)
	})

	t.Run("non-owner gets forbidden", func(t *testing.T) {
		f := setup(2)

		_, err := f.svc.RequestRender(ctx, "user-2", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	})
}

func TestCompleteRender(t *testing.T) {
	ctx := context.Background()
	mediaRef := "media/final.mp4"
	duration := 15

	renderingFixture := func() *fixture {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusRendering
		return newFixture(reel)
	}

	t.Run("success publishes the reel", func(t *testing.T) {
		f := renderingFixture()

		reel, err := f.svc.CompleteRender(ctx, models.RenderResult{
			ReelID:          "reel-1",
			Success:         true,
			MediaRef:        &mediaRef,
			DurationSeconds: &duration,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusPublic, reel.Status)
		assert.Equal(t, &mediaRef, reel.MediaRef)
		assert.Equal(t, 1, f.emitter.published)
	})

	t.Run("replayed success callback is acknowledged without effect", func(t *testing.T) {
		f := renderingFixture()

		result := models.RenderResult{ReelID: "reel-1", Success: true, MediaRef: &mediaRef}
		_, err := f.svc.CompleteRender(ctx, result)
		require.NoError(t, err)

		reel, err := f.svc.CompleteRender(ctx, result)
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusPublic, reel.Status)
		assert.Equal(t, 1, f.emitter.published, "replay must not re-publish")
	})

	t.Run("failure returns the reel to draft with the reason", func(t *testing.T) {
		f := renderingFixture()

		reason := "transcode timeout"
		reel, err := f.svc.CompleteRender(ctx, models.RenderResult{
			ReelID:        "reel-1",
			Success:       false,
			FailureReason: &reason,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusDraft, reel.Status)
		require.NotNil(t, reel.RenderError)
		assert.Equal(t, reason, *reel.RenderError)
		assert.Equal(t, 1, f.emitter.renderFailed)
	})

	t.Run("pending high risk flag blocks publication", func(t *testing.T) {
		f := renderingFixture()
		f.flags.flags["reel-1"] = []models.ModerationFlag{
			{ReelID: "reel-1", Kind: models.FlagKindNSFW, Score: 0.95, Verdict: models.FlagVerdictPending},
		}

		reel, err := f.svc.CompleteRender(ctx, models.RenderResult{
			ReelID:   "reel-1",
			Success:  true,
			MediaRef: &mediaRef,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusFlagged, reel.Status)
		assert.Equal(t, 0, f.emitter.published)
		assert.Equal(t, 1, f.emitter.flagged)
	})

	t.Run("approved flag does not block publication", func(t *testing.T) {
		f := renderingFixture()
		f.flags.flags["reel-1"] = []models.ModerationFlag{
			{ReelID: "reel-1", Kind: models.FlagKindNSFW, Score: 0.95, Verdict: models.FlagVerdictApproved},
		}

		reel, err := f.svc.CompleteRender(ctx, models.RenderResult{
			ReelID:   "reel-1",
			Success:  true,
			MediaRef: &mediaRef,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusPublic, reel.Status)
	})
}

func TestFlagReel(t *testing.T) {
	ctx := context.Background()

	t.Run("pulls a public reel", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusPublic
		f := newFixture(reel)

		require.NoError(t, f.svc.FlagReel(ctx, "reel-1", "nsfw"))

		got, err := f.reels.Get(ctx, "reel-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusFlagged, got.Status)
		assert.Equal(t, 1, f.emitter.flagged)
	})

	t.Run("flagging an already flagged reel is a no-op", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusFlagged
		f := newFixture(reel)

		require.NoError(t, f.svc.FlagReel(ctx, "reel-1", "nsfw"))
		assert.Equal(t, 0, f.emitter.flagged)
	})

	t.Run("removed reels cannot be flagged", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusRemoved
		f := newFixture(reel)

		err := f.svc.FlagReel(ctx, "reel-1", "nsfw")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})
}

func TestDeleteReel(t *testing.T) {
	ctx := context.Background()

	t.Run("owner removes a public reel", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusPublic
		f := newFixture(reel)

		require.NoError(t, f.svc.DeleteReel(ctx, "user-1", "reel-1"))

		got, err := f.reels.Get(ctx, "reel-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusRemoved, got.Status)
	})

	t.Run("non-owner gets forbidden", func(t *testing.T) {
		f := newFixture(draftReel("reel-1", "user-1"))

		err := f.svc.DeleteReel(ctx, "user-2", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	})

	t.Run("rendering reels cannot be deleted", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusRendering
		f := newFixture(reel)

		err := f.svc.DeleteReel(ctx, "user-1", "reel-1")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})
}

func TestRemoveFlagged(t *testing.T) {
	ctx := context.Background()

	t.Run("finalizes a takedown", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusFlagged
		f := newFixture(reel)

		require.NoError(t, f.svc.RemoveFlagged(ctx, "reel-1", "rejected"))

		got, err := f.reels.Get(ctx, "reel-1")
		require.NoError(t, err)
		assert.Equal(t, models.ReelStatusRemoved, got.Status)
	})

	t.Run("only flagged reels qualify", func(t *testing.T) {
		reel := draftReel("reel-1", "user-1")
		reel.Status = models.ReelStatusPublic
		f := newFixture(reel)

		err := f.svc.RemoveFlagged(ctx, "reel-1", "rejected")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})
}

func TestFeedLimits(t *testing.T) {
	ctx := context.Background()

	reels := make([]*models.Reel, 0, 150)
	for i := 0; i < 150; i++ {
		r := draftReel(fmt.Sprintf("reel-%d", i), "user-1")
		r.Status = models.ReelStatusPublic
		reels = append(reels, r)
	}
	f := newFixture(reels...)

	t.Run("zero limit uses the default", func(t *testing.T) {
		out, err := f.svc.Feed(ctx, nil, 0, 0)
		require.NoError(t, err)
		assert.Len(t, out, 20)
	})

	t.Run("oversized limit is clamped", func(t *testing.T) {
		out, err := f.svc.Feed(ctx, nil, 1000, 0)
		require.NoError(t, err)
		assert.Len(t, out, 100)
	})
}
