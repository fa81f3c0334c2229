// Package events handles event emission for reel lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sprig/pkg/kafka"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// Emitter publishes domain events. Events are advisory; the database is the
// source of truth and a failed emit never rolls back a committed change.
type Emitter struct {
	reels      *kafka.Producer
	renderJobs *kafka.Producer
	logger     ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(reels, renderJobs *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		reels:      reels,
		renderJobs: renderJobs,
		logger:     logger,
	}
}

func (e *Emitter) publishReel(ctx context.Context, event *ReelEvent) error {
	if err := e.reels.Publish(ctx, event.ReelID, string(event.EventType), event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}
	return nil
}

// EmitReelCreated emits a reel created event
func (e *Emitter) EmitReelCreated(ctx context.Context, reel *models.Reel) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReelCreated")
	defer span.End()

	event := &ReelEvent{
		BaseEvent:  NewBaseEvent(EventTypeReelCreated),
		ReelID:     reel.ID,
		OwnerID:    reel.OwnerID,
		Status:     reel.Status,
		TemplateID: reel.TemplateID,
		TrackID:    reel.TrackID,
		RemixOfID:  reel.RemixOfID,
	}
	return e.publishReel(ctx, event)
}

// EmitReelPublished emits a reel published event
func (e *Emitter) EmitReelPublished(ctx context.Context, reel *models.Reel) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReelPublished")
	defer span.End()

	event := &ReelEvent{
		BaseEvent:  NewBaseEvent(EventTypeReelPublished),
		ReelID:     reel.ID,
		OwnerID:    reel.OwnerID,
		Status:     models.ReelStatusPublic,
		TemplateID: reel.TemplateID,
		TrackID:    reel.TrackID,
		RemixOfID:  reel.RemixOfID,
	}
	return e.publishReel(ctx, event)
}

// EmitReelFlagged emits a reel flagged event
func (e *Emitter) EmitReelFlagged(ctx context.Context, reel *models.Reel, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReelFlagged")
	defer span.End()

	event := &ReelEvent{
		BaseEvent:  NewBaseEvent(EventTypeReelFlagged),
		ReelID:     reel.ID,
		OwnerID:    reel.OwnerID,
		Status:     models.ReelStatusFlagged,
		TemplateID: reel.TemplateID,
		TrackID:    reel.TrackID,
		Reason:     reason,
	}
	return e.publishReel(ctx, event)
}

// EmitReelRemoved emits a reel removed event
func (e *Emitter) EmitReelRemoved(ctx context.Context, reel *models.Reel, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReelRemoved")
	defer span.End()

	event := &ReelEvent{
		BaseEvent:  NewBaseEvent(EventTypeReelRemoved),
		ReelID:     reel.ID,
		OwnerID:    reel.OwnerID,
		Status:     models.ReelStatusRemoved,
		TemplateID: reel.TemplateID,
		TrackID:    reel.TrackID,
		Reason:     reason,
	}
	return e.publishReel(ctx, event)
}

// EmitRenderRequested enqueues a render job. Unlike the advisory events this
// one must land; the caller rolls the reel back to draft if it does not.
// The job carries the reel's own composition snapshot, not the template's
// current spec.
func (e *Emitter) EmitRenderRequested(ctx context.Context, reel *models.Reel, clips []models.Clip, trackRef string, attempt int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRenderRequested")
	defer span.End()

	jobClips := make([]RenderClip, len(clips))
	for i, clip := range clips {
		jobClips[i] = RenderClip{
			OrderIndex:  clip.OrderIndex,
			MediaRef:    clip.MediaRef,
			TrimStartMS: clip.TrimStartMS,
			TrimEndMS:   clip.TrimEndMS,
			Caption:     clip.Caption,
		}
	}

	job := &RenderJob{
		BaseEvent:       NewBaseEvent(EventTypeRenderRequested),
		ReelID:          reel.ID,
		TemplateID:      reel.TemplateID,
		CompositionSpec: reel.CompositionSpec,
		Clips:           jobClips,
		TrackID:         reel.TrackID,
		TrackRef:        trackRef,
		Watermark:       reel.Watermark,
		Attempt:         attempt,
	}

	if err := e.renderJobs.Publish(ctx, job.ReelID, string(EventTypeRenderRequested), job); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to enqueue render job")
		return err
	}
	return nil
}

// EmitRenderFailed emits a render failed event
func (e *Emitter) EmitRenderFailed(ctx context.Context, reel *models.Reel, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRenderFailed")
	defer span.End()

	event := &ReelEvent{
		BaseEvent:  NewBaseEvent(EventTypeRenderFailed),
		ReelID:     reel.ID,
		OwnerID:    reel.OwnerID,
		Status:     models.ReelStatusDraft,
		TemplateID: reel.TemplateID,
		TrackID:    reel.TrackID,
		Reason:     reason,
	}
	return e.publishReel(ctx, event)
}

// EmitShareRecorded emits a share recorded event
func (e *Emitter) EmitShareRecorded(ctx context.Context, share *models.ShareEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitShareRecorded")
	defer span.End()

	event := &ShareEvent{
		BaseEvent:    NewBaseEvent(EventTypeShareRecorded),
		ReelID:       share.ReelID,
		ReferrerID:   share.ReferrerID,
		ActingUserID: share.ActingUserID,
		Channel:      share.Channel,
	}

	if err := e.reels.Publish(ctx, event.ReelID, string(EventTypeShareRecorded), event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit share.recorded event")
		return err
	}
	return nil
}

// EmitInstallAttributed emits an install attributed event
func (e *Emitter) EmitInstallAttributed(ctx context.Context, attr *models.InstallAttribution) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitInstallAttributed")
	defer span.End()

	event := &InstallEvent{
		BaseEvent:     NewBaseEvent(EventTypeInstallAttributed),
		ReelID:        attr.ReelID,
		InstallUserID: attr.InstallUserID,
	}

	if err := e.reels.Publish(ctx, event.ReelID, string(EventTypeInstallAttributed), event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit install.attributed event")
		return err
	}
	return nil
}

// EmitFlagCreated emits a moderation flag created event
func (e *Emitter) EmitFlagCreated(ctx context.Context, flag *models.ModerationFlag) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitFlagCreated")
	defer span.End()

	event := &ModerationEvent{
		BaseEvent: NewBaseEvent(EventTypeFlagCreated),
		FlagID:    flag.ID,
		ReelID:    flag.ReelID,
		Kind:      flag.Kind,
		Score:     flag.Score,
		Verdict:   flag.Verdict,
	}

	if err := e.reels.Publish(ctx, event.ReelID, string(EventTypeFlagCreated), event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit moderation.flag_created event")
		return err
	}
	return nil
}

// EmitModerationRejected emits a rejected verdict event
func (e *Emitter) EmitModerationRejected(ctx context.Context, flag *models.ModerationFlag) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitModerationRejected")
	defer span.End()

	event := &ModerationEvent{
		BaseEvent: NewBaseEvent(EventTypeModerationRejected),
		FlagID:    flag.ID,
		ReelID:    flag.ReelID,
		Kind:      flag.Kind,
		Score:     flag.Score,
		Verdict:   models.FlagVerdictRejected,
	}

	if err := e.reels.Publish(ctx, event.ReelID, string(EventTypeModerationRejected), event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit moderation.rejected event")
		return err
	}
	return nil
}
