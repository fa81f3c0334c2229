// Package virality records share and install activity and computes the
// per-owner K-factor: distinct referred installs over public reels in a
// window.
package virality

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sprig/internal/repositories/shareevent"
	"github.com/Ramsey-B/sprig/pkg/metrics"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// ShareStore is the share event and install attribution surface
type ShareStore interface {
	Insert(ctx context.Context, reelID string, channel models.ShareChannel, referrerID, actingUserID *string) (*models.ShareEvent, error)
	ListByReel(ctx context.Context, reelID string, limit, offset int) ([]models.ShareEvent, error)
	CountByReel(ctx context.Context, reelID string) (int, error)
	CountOwnerWindow(ctx context.Context, ownerID string, start, end time.Time) (*shareevent.OwnerWindowCounts, error)
	InsertInstall(ctx context.Context, req models.RecordInstallRequest) (*models.InstallAttribution, bool, error)
	CountOwnerInstallWindow(ctx context.Context, ownerID string, start, end time.Time) (int, error)
}

// ReelStore is the reel surface virality needs
type ReelStore interface {
	Get(ctx context.Context, id string) (*models.Reel, error)
	IncrementShares(ctx context.Context, id string) error
	IncrementDerivedInstalls(ctx context.Context, id string) error
	CountPublicByOwnerWindow(ctx context.Context, ownerID string, start, end time.Time) (int, error)
	ReconcileShareCounters(ctx context.Context) (int, error)
}

// Emitter publishes virality events
type Emitter interface {
	EmitShareRecorded(ctx context.Context, share *models.ShareEvent) error
	EmitInstallAttributed(ctx context.Context, attr *models.InstallAttribution) error
}

// TxRunner composes repository calls into one database transaction
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements share analytics
type Service struct {
	shares  ShareStore
	reels   ReelStore
	emitter Emitter
	txr     TxRunner
	logger  ectologger.Logger
}

// NewService creates a new virality service
func NewService(shares ShareStore, reels ReelStore, emitter Emitter, txr TxRunner, logger ectologger.Logger) *Service {
	return &Service{
		shares:  shares,
		reels:   reels,
		emitter: emitter,
		txr:     txr,
		logger:  logger,
	}
}

// RecordShare appends a share event and bumps the reel's counter in the
// same transaction, so the counter can never drift from the log under
// normal operation. The reel must exist but its status does not matter: a
// link to a since-removed reel can still be shared, and that share still
// counts.
func (s *Service) RecordShare(ctx context.Context, reelID string, channel models.ShareChannel, referrerID, actingUserID *string) (*models.ShareEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "virality.Service.RecordShare")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "RecordShare",
		"reel_id": reelID,
		"channel": channel,
	})

	if !channel.Valid() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown share channel %q", channel))
	}

	if _, err := s.reels.Get(ctx, reelID); err != nil {
		return nil, err
	}

	var event *models.ShareEvent
	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.shares.Insert(ctx, reelID, channel, referrerID, actingUserID)
		if err != nil {
			return err
		}
		return s.reels.IncrementShares(ctx, reelID)
	})
	if err != nil {
		return nil, err
	}

	metrics.SharesRecordedTotal.WithLabelValues(string(channel)).Inc()
	if err := s.emitter.EmitShareRecorded(ctx, event); err != nil {
		log.WithError(err).Warn("Share recorded but event emit failed")
	}

	return event, nil
}

// ListShares returns a reel's share history, newest first
func (s *Service) ListShares(ctx context.Context, reelID string, limit, offset int) ([]models.ShareEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "virality.Service.ListShares")
	defer span.End()

	if _, err := s.reels.Get(ctx, reelID); err != nil {
		return nil, err
	}
	return s.shares.ListByReel(ctx, reelID, limit, offset)
}

// RecordInstall attributes an app install to the reel that drove it. A
// user's install only counts once; replays return the existing attribution
// without another counter bump.
func (s *Service) RecordInstall(ctx context.Context, req models.RecordInstallRequest) (*models.InstallAttribution, error) {
	ctx, span := tracing.StartSpan(ctx, "virality.Service.RecordInstall")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "RecordInstall",
		"reel_id": req.ReelID,
	})

	if _, err := s.reels.Get(ctx, req.ReelID); err != nil {
		return nil, err
	}

	var attr *models.InstallAttribution
	var inserted bool
	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		attr, inserted, err = s.shares.InsertInstall(ctx, req)
		if err != nil {
			return err
		}
		if inserted {
			return s.reels.IncrementDerivedInstalls(ctx, req.ReelID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if inserted {
		metrics.InstallsAttributedTotal.Inc()
		if err := s.emitter.EmitInstallAttributed(ctx, attr); err != nil {
			log.WithError(err).Warn("Install attributed but event emit failed")
		}
	}

	return attr, nil
}

// KFactor computes one owner's viral coefficient over a window: distinct
// installs referred through the owner's shared links, divided by the
// owner's public reels created in the window. No public reels means a
// K-factor of zero.
func (s *Service) KFactor(ctx context.Context, ownerID string, start, end time.Time) (*models.KFactorReport, error) {
	ctx, span := tracing.StartSpan(ctx, "virality.Service.KFactor")
	defer span.End()

	if ownerID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "owner_id is required")
	}
	if !end.After(start) {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "window end must be after start")
	}

	counts, err := s.shares.CountOwnerWindow(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	installs, err := s.shares.CountOwnerInstallWindow(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	publicReels, err := s.reels.CountPublicByOwnerWindow(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}

	report := &models.KFactorReport{
		OwnerID:          ownerID,
		WindowStart:      start,
		WindowEnd:        end,
		Shares:           counts.Shares,
		ReferredInstalls: installs,
		PublicReels:      publicReels,
	}
	if publicReels > 0 {
		report.KFactor = float64(installs) / float64(publicReels)
	}

	return report, nil
}

// Reconcile recomputes drifted share counters from the event log
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "virality.Service.Reconcile")
	defer span.End()

	corrected, err := s.reels.ReconcileShareCounters(ctx)
	if err != nil {
		return 0, err
	}
	if corrected > 0 {
		metrics.ShareCounterDriftCorrected.Add(float64(corrected))
	}
	return corrected, nil
}
