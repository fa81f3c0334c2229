package lifecycle

import (
	"context"
	"time"

	"github.com/Ramsey-B/sprig/pkg/models"
)

// ReelStore is the reel persistence surface the lifecycle needs
type ReelStore interface {
	Create(ctx context.Context, reel *models.Reel) error
	Get(ctx context.Context, id string) (*models.Reel, error)
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (*models.ReelPage, error)
	Feed(ctx context.Context, locale *string, limit, offset int) ([]models.Reel, error)
	TransitionStatus(ctx context.Context, id string, from []models.ReelStatus, to models.ReelStatus) (bool, error)
	SetRenderSuccess(ctx context.Context, id string, mediaRef, posterRef *string, durationSeconds *int) (bool, error)
	SetRenderFailure(ctx context.Context, id string, reason string) (bool, error)
}

// ClipStore is the clip persistence surface
type ClipStore interface {
	ReplaceAll(ctx context.Context, reelID string, inputs []models.ClipInput) ([]models.Clip, error)
	ListByReel(ctx context.Context, reelID string) ([]models.Clip, error)
}

// TemplateStore resolves templates
type TemplateStore interface {
	Get(ctx context.Context, id string) (*models.Template, error)
}

// TrackStore resolves licensed tracks
type TrackStore interface {
	Get(ctx context.Context, id string) (*models.Track, error)
}

// EdgeStore records remix lineage edges
type EdgeStore interface {
	Create(ctx context.Context, parentReelID, childReelID string) (*models.RemixEdge, error)
}

// FlagStore reads a reel's moderation history for the publication gate
type FlagStore interface {
	ListByReel(ctx context.Context, reelID string) ([]models.ModerationFlag, error)
}

// Projection mirrors lifecycle changes into the lineage graph. Best effort;
// the projection is rebuildable from PostgreSQL.
type Projection interface {
	ProjectReel(ctx context.Context, reel *models.Reel) error
	ProjectEdge(ctx context.Context, parentReelID, childReelID string) error
	UpdateStatus(ctx context.Context, reelID string, status models.ReelStatus) error
}

// Emitter publishes lifecycle events
type Emitter interface {
	EmitReelCreated(ctx context.Context, reel *models.Reel) error
	EmitReelPublished(ctx context.Context, reel *models.Reel) error
	EmitReelFlagged(ctx context.Context, reel *models.Reel, reason string) error
	EmitReelRemoved(ctx context.Context, reel *models.Reel, reason string) error
	EmitRenderRequested(ctx context.Context, reel *models.Reel, clips []models.Clip, trackRef string, attempt int) error
	EmitRenderFailed(ctx context.Context, reel *models.Reel, reason string) error
}

// Locker serializes writers on a single reel
type Locker interface {
	WithLockWait(ctx context.Context, key string, ttl, timeout time.Duration, fn func() error) error
}

// TxRunner composes repository calls into one database transaction
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
