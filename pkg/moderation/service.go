package moderation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sprig/pkg/metrics"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// FlagStore is the moderation flag persistence surface
type FlagStore interface {
	Create(ctx context.Context, req models.CreateFlagRequest) (*models.ModerationFlag, error)
	Get(ctx context.Context, id string) (*models.ModerationFlag, error)
	ListByReel(ctx context.Context, reelID string) ([]models.ModerationFlag, error)
	ListPending(ctx context.Context, page, pageSize int) ([]models.ModerationFlag, int, error)
	Review(ctx context.Context, id string, verdict models.FlagVerdict, reviewerID string) (*models.ModerationFlag, error)
}

// ReelStore resolves reels
type ReelStore interface {
	Get(ctx context.Context, id string) (*models.Reel, error)
}

// ReelFlagger pulls reels out of circulation. Implemented by the lifecycle
// service.
type ReelFlagger interface {
	FlagReel(ctx context.Context, reelID, reason string) error
}

// Emitter publishes moderation events
type Emitter interface {
	EmitFlagCreated(ctx context.Context, flag *models.ModerationFlag) error
	EmitModerationRejected(ctx context.Context, flag *models.ModerationFlag) error
}

// Service records flags and applies verdicts
type Service struct {
	flags   FlagStore
	reels   ReelStore
	flagger ReelFlagger
	gate    *GatePolicy
	emitter Emitter
	logger  ectologger.Logger
}

// NewService creates a new moderation service
func NewService(flags FlagStore, reels ReelStore, flagger ReelFlagger, gate *GatePolicy, emitter Emitter, logger ectologger.Logger) *Service {
	return &Service{
		flags:   flags,
		reels:   reels,
		flagger: flagger,
		gate:    gate,
		emitter: emitter,
		logger:  logger,
	}
}

// RecordFlag stores a classifier or reporter flag. A high risk flag against
// a public reel pulls it from the feed immediately rather than waiting for
// human review.
func (s *Service) RecordFlag(ctx context.Context, req models.CreateFlagRequest) (*models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderation.Service.RecordFlag")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "RecordFlag",
		"reel_id": req.ReelID,
		"kind":    req.Kind,
	})

	if !req.Kind.Valid() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown flag kind %q", req.Kind))
	}
	if req.Score < 0 || req.Score > 1 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "score must be between 0 and 1")
	}

	reel, err := s.reels.Get(ctx, req.ReelID)
	if err != nil {
		return nil, err
	}
	if reel.Status == models.ReelStatusRemoved {
		return nil, httperror.NewHTTPError(http.StatusConflict, "reel is already removed")
	}

	flag, err := s.flags.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	metrics.ModerationFlagsTotal.WithLabelValues(string(flag.Kind), flag.Source).Inc()
	if err := s.emitter.EmitFlagCreated(ctx, flag); err != nil {
		log.WithError(err).Warn("Flag recorded but event emit failed")
	}

	if reel.Status == models.ReelStatusPublic && s.gate.IsHighRisk(flag) {
		reason := "high risk flag: " + string(flag.Kind)
		if err := s.flagger.FlagReel(ctx, reel.ID, reason); err != nil {
			log.WithError(err).Error("Failed to pull reel after high risk flag")
			return nil, err
		}
		log.Info("Pulled public reel after high risk flag")
	}

	return flag, nil
}

// ListFlags returns a reel's full flag history
func (s *Service) ListFlags(ctx context.Context, reelID string) ([]models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderation.Service.ListFlags")
	defer span.End()

	if _, err := s.reels.Get(ctx, reelID); err != nil {
		return nil, err
	}
	return s.flags.ListByReel(ctx, reelID)
}

// PendingQueue returns the human review queue, oldest first
func (s *Service) PendingQueue(ctx context.Context, page, pageSize int) ([]models.ModerationFlag, int, error) {
	ctx, span := tracing.StartSpan(ctx, "moderation.Service.PendingQueue")
	defer span.End()

	return s.flags.ListPending(ctx, page, pageSize)
}

// Review applies a human verdict. Rejection pulls the reel no matter what
// the automated score said; approval just settles the flag.
func (s *Service) Review(ctx context.Context, flagID string, verdict models.FlagVerdict, reviewerID string) (*models.ModerationFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "moderation.Service.Review")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Review",
		"flag_id":     flagID,
		"verdict":     verdict,
		"reviewer_id": reviewerID,
	})

	if verdict != models.FlagVerdictApproved && verdict != models.FlagVerdictRejected {
		return nil, httperror.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("verdict must be approved or rejected, got %q", verdict))
	}

	flag, err := s.flags.Review(ctx, flagID, verdict, reviewerID)
	if err != nil {
		return nil, err
	}

	metrics.ModerationVerdictsTotal.WithLabelValues(string(verdict)).Inc()

	if verdict == models.FlagVerdictRejected {
		if err := s.emitter.EmitModerationRejected(ctx, flag); err != nil {
			log.WithError(err).Warn("Verdict recorded but event emit failed")
		}
		reason := "rejected by human review: " + string(flag.Kind)
		if err := s.flagger.FlagReel(ctx, flag.ReelID, reason); err != nil {
			if httperror.GetStatusCode(err) == http.StatusConflict {
				log.Info("Reel already out of circulation")
			} else {
				log.WithError(err).Error("Failed to pull reel after rejected verdict")
				return nil, err
			}
		}
	}

	log.Info("Applied review verdict")
	return flag, nil
}
