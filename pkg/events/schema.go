package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/sprig/pkg/kafka"
	"github.com/Ramsey-B/sprig/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	// Reel lifecycle events
	EventTypeReelCreated   EventType = "reel.created"
	EventTypeReelPublished EventType = "reel.published"
	EventTypeReelFlagged   EventType = "reel.flagged"
	EventTypeReelRemoved   EventType = "reel.removed"

	// Render pipeline events
	EventTypeRenderRequested EventType = "render.requested"
	EventTypeRenderFailed    EventType = "render.failed"

	// Moderation events
	EventTypeFlagCreated        EventType = "moderation.flag_created"
	EventTypeModerationRejected EventType = "moderation.rejected"

	// Virality events
	EventTypeShareRecorded     EventType = "share.recorded"
	EventTypeInstallAttributed EventType = "install.attributed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// ReelEvent is emitted on every reel lifecycle transition
type ReelEvent struct {
	BaseEvent
	ReelID     string            `json:"reel_id"`
	OwnerID    string            `json:"owner_id"`
	Status     models.ReelStatus `json:"status"`
	TemplateID string            `json:"template_id"`
	TrackID    string            `json:"track_id"`
	RemixOfID  *string           `json:"remix_of_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// RenderClip is one entry of a render job's ordered clip list
type RenderClip struct {
	OrderIndex  int     `json:"order_index"`
	MediaRef    string  `json:"media_ref"`
	TrimStartMS int     `json:"trim_start_ms"`
	TrimEndMS   int     `json:"trim_end_ms"`
	Caption     *string `json:"caption,omitempty"`
}

// RenderJob is the work order handed to the render worker fleet. It is
// self-contained: the worker gets the reel's composition spec snapshot, the
// ordered clips, and the track media reference, and never has to call back
// for inputs.
type RenderJob struct {
	BaseEvent
	ReelID          string          `json:"reel_id"`
	TemplateID      string          `json:"template_id"`
	CompositionSpec json.RawMessage `json:"composition_spec"`
	Clips           []RenderClip    `json:"clips"`
	TrackID         string          `json:"track_id"`
	TrackRef        string          `json:"track_ref"`
	Watermark       bool            `json:"watermark"`
	CallbackURL     string          `json:"callback_url,omitempty"`
	Attempt         int             `json:"attempt"`
}

// ShareEvent is emitted whenever a reel is shared
type ShareEvent struct {
	BaseEvent
	ReelID       string              `json:"reel_id"`
	ReferrerID   *string             `json:"referrer_id,omitempty"`
	ActingUserID *string             `json:"acting_user_id,omitempty"`
	Channel      models.ShareChannel `json:"channel"`
}

// InstallEvent is emitted when an install is attributed to a reel
type InstallEvent struct {
	BaseEvent
	ReelID        string `json:"reel_id"`
	InstallUserID string `json:"install_user_id"`
}

// ModerationEvent is emitted for flag creation and rejected verdicts
type ModerationEvent struct {
	BaseEvent
	FlagID  string             `json:"flag_id"`
	ReelID  string             `json:"reel_id"`
	Kind    models.FlagKind    `json:"kind"`
	Score   float64            `json:"score"`
	Verdict models.FlagVerdict `json:"verdict"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: kafka.SchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
