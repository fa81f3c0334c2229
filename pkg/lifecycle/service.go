// Package lifecycle drives the reel state machine: draft, rendering, public,
// flagged, removed. All transitions run behind a per-reel lock with a
// compare-and-set status update, so concurrent writers cannot interleave.
package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/sprig/pkg/metrics"
	"github.com/Ramsey-B/sprig/pkg/moderation"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// Config holds lifecycle policy knobs
type Config struct {
	LockTTL                time.Duration
	LockWait               time.Duration
	LicenseRecheckAtRender bool
	FeedDefaultLimit       int
	FeedMaxLimit           int
}

// Service implements the reel lifecycle
type Service struct {
	reels     ReelStore
	clips     ClipStore
	templates TemplateStore
	tracks    TrackStore
	edges     EdgeStore
	flags     FlagStore
	gate      *moderation.GatePolicy
	proj      Projection
	emitter   Emitter
	locker    Locker
	txr       TxRunner
	cfg       Config
	logger    ectologger.Logger
}

// NewService creates a new lifecycle service. proj may be nil when the graph
// projection is disabled.
func NewService(
	reels ReelStore,
	clips ClipStore,
	templates TemplateStore,
	tracks TrackStore,
	edges EdgeStore,
	flags FlagStore,
	gate *moderation.GatePolicy,
	proj Projection,
	emitter Emitter,
	locker Locker,
	txr TxRunner,
	cfg Config,
	logger ectologger.Logger,
) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 2 * time.Second
	}
	if cfg.FeedDefaultLimit <= 0 {
		cfg.FeedDefaultLimit = 20
	}
	if cfg.FeedMaxLimit <= 0 {
		cfg.FeedMaxLimit = 100
	}
	return &Service{
		reels:     reels,
		clips:     clips,
		templates: templates,
		tracks:    tracks,
		edges:     edges,
		flags:     flags,
		gate:      gate,
		proj:      proj,
		emitter:   emitter,
		locker:    locker,
		txr:       txr,
		cfg:       cfg,
		logger:    logger,
	}
}

func lockKey(reelID string) string {
	return "reel:" + reelID
}

// CreateReel validates references and creates a draft reel, snapshotting the
// template composition. A remix links to its parent in the same transaction
// that creates the child, which is what keeps the lineage acyclic: edges only
// ever point at brand-new reels.
func (s *Service) CreateReel(ctx context.Context, ownerID string, req models.CreateReelRequest) (*models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.CreateReel")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "CreateReel",
		"owner_id":    ownerID,
		"template_id": req.TemplateID,
		"track_id":    req.TrackID,
	})

	tmpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsActive {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity,
			fmt.Sprintf("template %s is retired", tmpl.ID))
	}

	track, err := s.tracks.Get(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}
	if !track.IsUsable(time.Now().UTC()) {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity,
			fmt.Sprintf("track %s is inactive or its license has expired", track.ID))
	}

	if req.RemixOfID != nil {
		parent, err := s.reels.Get(ctx, *req.RemixOfID)
		if err != nil {
			return nil, err
		}
		if parent.Status != models.ReelStatusPublic {
			return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity,
				"only public reels can be remixed")
		}
	}

	locale := req.Locale
	if locale == "" {
		locale = "en"
	}

	now := time.Now().UTC()
	reel := &models.Reel{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		TemplateID:      tmpl.ID,
		TrackID:         track.ID,
		CompositionSpec: tmpl.CompositionSpec,
		RemixOfID:       req.RemixOfID,
		Watermark:       req.Watermark,
		Locale:          locale,
		Status:          models.ReelStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.reels.Create(ctx, reel); err != nil {
			return err
		}
		if reel.RemixOfID != nil {
			if _, err := s.edges.Create(ctx, *reel.RemixOfID, reel.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.projectReel(ctx, reel)
	if err := s.emitter.EmitReelCreated(ctx, reel); err != nil {
		log.WithError(err).Warn("Reel created but event emit failed")
	}

	log.WithFields(map[string]any{"reel_id": reel.ID}).Info("Created reel")
	return reel, nil
}

// CreateRemix creates a draft remix of a public reel. Template, track and
// locale are inherited from the parent unless the request overrides them;
// the usual creation checks still apply to whatever is chosen.
func (s *Service) CreateRemix(ctx context.Context, ownerID, parentID string, req models.CreateRemixRequest) (*models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.CreateRemix")
	defer span.End()

	parent, err := s.reels.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Status != models.ReelStatusPublic {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity,
			"only public reels can be remixed")
	}

	create := models.CreateReelRequest{
		TemplateID: parent.TemplateID,
		TrackID:    parent.TrackID,
		Locale:     parent.Locale,
		Watermark:  req.Watermark,
		RemixOfID:  &parent.ID,
	}
	if req.TemplateID != nil {
		create.TemplateID = *req.TemplateID
	}
	if req.TrackID != nil {
		create.TrackID = *req.TrackID
	}
	if req.Locale != nil {
		create.Locale = *req.Locale
	}

	return s.CreateReel(ctx, ownerID, create)
}

// GetVisible returns a reel with its clips and catalog context. Public reels
// are visible to everyone; anything else only to its owner, and a non-owner
// gets the same not found as a missing ID.
func (s *Service) GetVisible(ctx context.Context, actorID, reelID string) (*models.ReelDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.GetVisible")
	defer span.End()

	reel, err := s.reels.Get(ctx, reelID)
	if err != nil {
		return nil, err
	}
	if reel.Status != models.ReelStatusPublic && reel.OwnerID != actorID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reel %s not found", reelID))
	}

	clips, err := s.clips.ListByReel(ctx, reelID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templates.Get(ctx, reel.TemplateID)
	if err != nil {
		return nil, err
	}
	track, err := s.tracks.Get(ctx, reel.TrackID)
	if err != nil {
		return nil, err
	}

	return &models.ReelDetail{Reel: reel, Clips: clips, Template: tmpl, Track: track}, nil
}

// ListMyReels lists the caller's reels in every state
func (s *Service) ListMyReels(ctx context.Context, ownerID string, page, pageSize int) (*models.ReelPage, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.ListMyReels")
	defer span.End()

	return s.reels.ListByOwner(ctx, ownerID, page, pageSize)
}

// Feed lists public reels newest first
func (s *Service) Feed(ctx context.Context, locale *string, limit, offset int) ([]models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.Feed")
	defer span.End()

	if limit <= 0 {
		limit = s.cfg.FeedDefaultLimit
	}
	if limit > s.cfg.FeedMaxLimit {
		limit = s.cfg.FeedMaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.reels.Feed(ctx, locale, limit, offset)
}

// ReplaceClips swaps a draft reel's clip sequence wholesale. The template's
// max bound is enforced here; the min bound only at render request, so an
// owner can build up a draft incrementally.
func (s *Service) ReplaceClips(ctx context.Context, actorID, reelID string, inputs []models.ClipInput) ([]models.Clip, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.ReplaceClips")
	defer span.End()

	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("clip %d: %s", i, err.Error()))
		}
	}

	var clips []models.Clip
	err := s.locker.WithLockWait(ctx, lockKey(reelID), s.cfg.LockTTL, s.cfg.LockWait, func() error {
		reel, err := s.reels.Get(ctx, reelID)
		if err != nil {
			return err
		}
		if reel.OwnerID != actorID {
			return httperror.NewHTTPError(http.StatusForbidden, "only the owner can edit a reel")
		}
		if reel.Status != models.ReelStatusDraft {
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("clips can only be edited in draft, reel is %s", reel.Status))
		}

		tmpl, err := s.templates.Get(ctx, reel.TemplateID)
		if err != nil {
			return err
		}
		if len(inputs) > tmpl.MaxClips {
			return httperror.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("template allows at most %d clips, got %d", tmpl.MaxClips, len(inputs)))
		}

		clips, err = s.clips.ReplaceAll(ctx, reelID, inputs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return clips, nil
}

// RequestRender moves a draft reel into rendering and enqueues the render
// job. Calling it again while the reel is already rendering is a no-op, so
// client retries cannot double-enqueue.
func (s *Service) RequestRender(ctx context.Context, actorID, reelID string) (*models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.RequestRender")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "RequestRender",
		"reel_id": reelID,
	})

	var out *models.Reel
	err := s.locker.WithLockWait(ctx, lockKey(reelID), s.cfg.LockTTL, s.cfg.LockWait, func() error {
		reel, err := s.reels.Get(ctx, reelID)
		if err != nil {
			return err
		}
		if reel.OwnerID != actorID {
			return httperror.NewHTTPError(http.StatusForbidden, "only the owner can request a render")
		}
		if reel.Status == models.ReelStatusRendering {
			out = reel
			return nil
		}
		if reel.Status != models.ReelStatusDraft {
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("render can only be requested from draft, reel is %s", reel.Status))
		}

		tmpl, err := s.templates.Get(ctx, reel.TemplateID)
		if err != nil {
			return err
		}
		clips, err := s.clips.ListByReel(ctx, reelID)
		if err != nil {
			return err
		}
		if len(clips) < tmpl.MinClips || len(clips) > tmpl.MaxClips {
			return httperror.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("template requires %d to %d clips, reel has %d", tmpl.MinClips, tmpl.MaxClips, len(clips)))
		}

		track, err := s.tracks.Get(ctx, reel.TrackID)
		if err != nil {
			return err
		}
		if s.cfg.LicenseRecheckAtRender && !track.IsUsable(time.Now().UTC()) {
			return httperror.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("track %s is inactive or its license has expired", track.ID))
		}

		ok, err := s.reels.TransitionStatus(ctx, reelID,
			[]models.ReelStatus{models.ReelStatusDraft}, models.ReelStatusRendering)
		if err != nil {
			return err
		}
		if !ok {
			return httperror.NewHTTPError(http.StatusConflict, "reel changed state during render request")
		}
		reel.Status = models.ReelStatusRendering

		if err := s.emitter.EmitRenderRequested(ctx, reel, clips, track.MediaRef, 1); err != nil {
			// roll the state back so the owner can retry
			if _, rbErr := s.reels.TransitionStatus(ctx, reelID,
				[]models.ReelStatus{models.ReelStatusRendering}, models.ReelStatusDraft); rbErr != nil {
				log.WithError(rbErr).Error("Failed to roll back after render enqueue failure")
			}
			return httperror.NewHTTPError(http.StatusBadGateway, "failed to enqueue render job")
		}

		metrics.ReelTransitionsTotal.WithLabelValues(string(models.ReelStatusDraft), string(models.ReelStatusRendering)).Inc()
		metrics.RenderJobsTotal.WithLabelValues("requested").Inc()
		out = reel
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Render requested")
	return out, nil
}

// CompleteRender applies the render worker's callback. Success runs the
// moderation gate before publishing; failure returns the reel to draft with
// the reason persisted. Replayed callbacks are no-ops.
func (s *Service) CompleteRender(ctx context.Context, result models.RenderResult) (*models.Reel, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.CompleteRender")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "CompleteRender",
		"reel_id": result.ReelID,
		"success": result.Success,
	})

	var out *models.Reel
	err := s.locker.WithLockWait(ctx, lockKey(result.ReelID), s.cfg.LockTTL, s.cfg.LockWait, func() error {
		reel, err := s.reels.Get(ctx, result.ReelID)
		if err != nil {
			return err
		}

		if !result.Success {
			reason := "render failed"
			if result.FailureReason != nil {
				reason = *result.FailureReason
			}
			ok, err := s.reels.SetRenderFailure(ctx, reel.ID, reason)
			if err != nil {
				return err
			}
			if !ok {
				if reel.Status == models.ReelStatusDraft {
					out = reel
					return nil // replayed failure callback
				}
				return httperror.NewHTTPError(http.StatusConflict,
					fmt.Sprintf("reel is %s, not rendering", reel.Status))
			}
			reel.Status = models.ReelStatusDraft
			reel.RenderError = &reason
			metrics.ReelTransitionsTotal.WithLabelValues(string(models.ReelStatusRendering), string(models.ReelStatusDraft)).Inc()
			metrics.RenderJobsTotal.WithLabelValues("failed").Inc()
			if err := s.emitter.EmitRenderFailed(ctx, reel, reason); err != nil {
				log.WithError(err).Warn("Render failure recorded but event emit failed")
			}
			out = reel
			return nil
		}

		flags, err := s.flags.ListByReel(ctx, reel.ID)
		if err != nil {
			return err
		}
		if decision := s.gate.Evaluate(flags); !decision.Allowed {
			ok, err := s.reels.TransitionStatus(ctx, reel.ID,
				[]models.ReelStatus{models.ReelStatusRendering}, models.ReelStatusFlagged)
			if err != nil {
				return err
			}
			if !ok {
				if reel.Status == models.ReelStatusFlagged {
					out = reel
					return nil
				}
				return httperror.NewHTTPError(http.StatusConflict,
					fmt.Sprintf("reel is %s, not rendering", reel.Status))
			}
			reel.Status = models.ReelStatusFlagged
			metrics.ReelTransitionsTotal.WithLabelValues(string(models.ReelStatusRendering), string(models.ReelStatusFlagged)).Inc()
			metrics.RenderJobsTotal.WithLabelValues("blocked").Inc()
			s.projectStatus(ctx, reel.ID, models.ReelStatusFlagged)
			if err := s.emitter.EmitReelFlagged(ctx, reel, decision.Reason); err != nil {
				log.WithError(err).Warn("Reel flagged but event emit failed")
			}
			log.WithFields(map[string]any{"reason": decision.Reason}).Info("Render blocked by moderation gate")
			out = reel
			return nil
		}

		ok, err := s.reels.SetRenderSuccess(ctx, reel.ID, result.MediaRef, result.PosterRef, result.DurationSeconds)
		if err != nil {
			return err
		}
		if !ok {
			if reel.Status == models.ReelStatusPublic {
				out = reel
				return nil // replayed success callback
			}
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("reel is %s, not rendering", reel.Status))
		}
		reel.Status = models.ReelStatusPublic
		reel.MediaRef = result.MediaRef
		reel.PosterRef = result.PosterRef
		reel.DurationSeconds = result.DurationSeconds
		reel.RenderError = nil

		metrics.ReelTransitionsTotal.WithLabelValues(string(models.ReelStatusRendering), string(models.ReelStatusPublic)).Inc()
		metrics.RenderJobsTotal.WithLabelValues("succeeded").Inc()
		s.projectStatus(ctx, reel.ID, models.ReelStatusPublic)
		if err := s.emitter.EmitReelPublished(ctx, reel); err != nil {
			log.WithError(err).Warn("Reel published but event emit failed")
		}
		out = reel
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Render completed")
	return out, nil
}

// FlagReel pulls a reel out of circulation. Any live state can be flagged;
// flagging an already flagged reel is a no-op.
func (s *Service) FlagReel(ctx context.Context, reelID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.FlagReel")
	defer span.End()

	return s.locker.WithLockWait(ctx, lockKey(reelID), s.cfg.LockTTL, s.cfg.LockWait, func() error {
		reel, err := s.reels.Get(ctx, reelID)
		if err != nil {
			return err
		}
		if reel.Status == models.ReelStatusFlagged {
			return nil
		}
		if reel.Status == models.ReelStatusRemoved {
			return httperror.NewHTTPError(http.StatusConflict, "reel is already removed")
		}

		from := reel.Status
		ok, err := s.reels.TransitionStatus(ctx, reelID,
			[]models.ReelStatus{models.ReelStatusDraft, models.ReelStatusRendering, models.ReelStatusPublic},
			models.ReelStatusFlagged)
		if err != nil {
			return err
		}
		if !ok {
			return httperror.NewHTTPError(http.StatusConflict, "reel changed state during flagging")
		}
		reel.Status = models.ReelStatusFlagged

		metrics.ReelTransitionsTotal.WithLabelValues(string(from), string(models.ReelStatusFlagged)).Inc()
		s.projectStatus(ctx, reelID, models.ReelStatusFlagged)
		if err := s.emitter.EmitReelFlagged(ctx, reel, reason); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Reel flagged but event emit failed")
		}
		return nil
	})
}

// DeleteReel lets the owner take down a draft or public reel
func (s *Service) DeleteReel(ctx context.Context, actorID, reelID string) error {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.DeleteReel")
	defer span.End()

	return s.locker.WithLockWait(ctx, lockKey(reelID), s.cfg.LockTTL, s.cfg.LockWait, func() error {
		reel, err := s.reels.Get(ctx, reelID)
		if err != nil {
			return err
		}
		if reel.OwnerID != actorID {
			return httperror.NewHTTPError(http.StatusForbidden, "only the owner can delete a reel")
		}

		from := reel.Status
		ok, err := s.reels.TransitionStatus(ctx, reelID,
			[]models.ReelStatus{models.ReelStatusDraft, models.ReelStatusPublic},
			models.ReelStatusRemoved)
		if err != nil {
			return err
		}
		if !ok {
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("reel cannot be deleted while %s", reel.Status))
		}
		reel.Status = models.ReelStatusRemoved

		metrics.ReelTransitionsTotal.WithLabelValues(string(from), string(models.ReelStatusRemoved)).Inc()
		s.projectStatus(ctx, reelID, models.ReelStatusRemoved)
		if err := s.emitter.EmitReelRemoved(ctx, reel, "owner_delete"); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Reel removed but event emit failed")
		}
		return nil
	})
}

// RemoveFlagged finalizes a moderation takedown
func (s *Service) RemoveFlagged(ctx context.Context, reelID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.Service.RemoveFlagged")
	defer span.End()

	return s.locker.WithLockWait(ctx, lockKey(reelID), s.cfg.LockTTL, s.cfg.LockWait, func() error {
		reel, err := s.reels.Get(ctx, reelID)
		if err != nil {
			return err
		}

		ok, err := s.reels.TransitionStatus(ctx, reelID,
			[]models.ReelStatus{models.ReelStatusFlagged}, models.ReelStatusRemoved)
		if err != nil {
			return err
		}
		if !ok {
			return httperror.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("only flagged reels can be removed by moderation, reel is %s", reel.Status))
		}
		reel.Status = models.ReelStatusRemoved

		metrics.ReelTransitionsTotal.WithLabelValues(string(models.ReelStatusFlagged), string(models.ReelStatusRemoved)).Inc()
		s.projectStatus(ctx, reelID, models.ReelStatusRemoved)
		if err := s.emitter.EmitReelRemoved(ctx, reel, reason); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Reel removed but event emit failed")
		}
		return nil
	})
}

func (s *Service) projectReel(ctx context.Context, reel *models.Reel) {
	if s.proj == nil {
		return
	}
	if err := s.proj.ProjectReel(ctx, reel); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to project reel node")
	}
	if reel.RemixOfID != nil {
		if err := s.proj.ProjectEdge(ctx, *reel.RemixOfID, reel.ID); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to project remix edge")
		}
	}
}

func (s *Service) projectStatus(ctx context.Context, reelID string, status models.ReelStatus) {
	if s.proj == nil {
		return
	}
	if err := s.proj.UpdateStatus(ctx, reelID, status); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to project reel status")
	}
}
