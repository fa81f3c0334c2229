package models

import (
	"encoding/json"
	"time"
)

// ReelStatus is the lifecycle state of a reel.
type ReelStatus string

const (
	// ReelStatusDraft is editable; clips may be replaced and render requested.
	ReelStatusDraft ReelStatus = "draft"
	// ReelStatusRendering is waiting on the external render worker.
	ReelStatusRendering ReelStatus = "rendering"
	// ReelStatusPublic is the only state exposed on the public feed.
	ReelStatusPublic ReelStatus = "public"
	// ReelStatusFlagged was blocked or pulled by moderation.
	ReelStatusFlagged ReelStatus = "flagged"
	// ReelStatusRemoved is terminal.
	ReelStatusRemoved ReelStatus = "removed"
)

// Valid reports whether s is a known lifecycle state.
func (s ReelStatus) Valid() bool {
	switch s {
	case ReelStatusDraft, ReelStatusRendering, ReelStatusPublic, ReelStatusFlagged, ReelStatusRemoved:
		return true
	}
	return false
}

// Reel is the aggregate root of one submission. The composition spec is
// snapshotted from the template at creation time; later template edits can
// never retroactively change a rendered reel. RemixOfID is the source of
// truth for lineage; remix_edges is a rebuildable index over it.
type Reel struct {
	ID                 string          `json:"id" db:"id"`
	OwnerID            string          `json:"owner_id" db:"owner_id"`
	TemplateID         string          `json:"template_id" db:"template_id"`
	TrackID            string          `json:"track_id" db:"track_id"`
	CompositionSpec    json.RawMessage `json:"composition_spec" db:"composition_spec"`
	MediaRef           *string         `json:"media_ref,omitempty" db:"media_ref"`
	PosterRef          *string         `json:"poster_ref,omitempty" db:"poster_ref"`
	DurationSeconds    *int            `json:"duration_seconds,omitempty" db:"duration_seconds"`
	RemixOfID          *string         `json:"remix_of_id,omitempty" db:"remix_of_id"`
	Watermark          bool            `json:"watermark" db:"watermark"`
	Locale             string          `json:"locale" db:"locale"`
	Status             ReelStatus      `json:"status" db:"status"`
	RenderError        *string         `json:"render_error,omitempty" db:"render_error"`
	KPIShares          int             `json:"kpi_shares" db:"kpi_shares"`
	KPIDerivedInstalls int             `json:"kpi_derived_installs" db:"kpi_derived_installs"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateReelRequest creates a draft reel (optionally as a remix).
type CreateReelRequest struct {
	TemplateID string  `json:"template_id" validate:"required"`
	TrackID    string  `json:"track_id" validate:"required"`
	Locale     string  `json:"locale"`
	Watermark  bool    `json:"watermark"`
	RemixOfID  *string `json:"remix_of_id,omitempty"`
}

// ReelDetail is a reel with its ordered clips and catalog context.
type ReelDetail struct {
	Reel     *Reel     `json:"reel"`
	Clips    []Clip    `json:"clips"`
	Template *Template `json:"template,omitempty"`
	Track    *Track    `json:"track,omitempty"`
}

// CreateRemixRequest creates a remix of an existing public reel. Template,
// track and locale default to the parent's unless overridden.
type CreateRemixRequest struct {
	TemplateID *string `json:"template_id,omitempty"`
	TrackID    *string `json:"track_id,omitempty"`
	Locale     *string `json:"locale,omitempty"`
	Watermark  bool    `json:"watermark"`
}

// RenderResult is the render worker's callback payload.
type RenderResult struct {
	ReelID          string  `json:"reel_id" validate:"required"`
	Success         bool    `json:"success"`
	MediaRef        *string `json:"media_ref,omitempty"`
	PosterRef       *string `json:"poster_ref,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	FailureReason   *string `json:"failure_reason,omitempty"`
}

// ReelPage is one page of a listing, newest first.
type ReelPage struct {
	Items  []Reel `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
