package models

import (
	"encoding/json"
	"time"
)

// Template bounds and shapes a reel composition. Templates are immutable
// once referenced by a reel: operator edits create a new row (linked via
// ReplacesID) and retire the old one, so rendered history never shifts.
type Template struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Theme            string          `json:"theme" db:"theme"`
	CompositionSpec  json.RawMessage `json:"composition_spec" db:"composition_spec"`
	ThumbnailRef     string          `json:"thumbnail_ref" db:"thumbnail_ref"`
	MinClips         int             `json:"min_clips" db:"min_clips"`
	MaxClips         int             `json:"max_clips" db:"max_clips"`
	DurationSeconds  int             `json:"duration_seconds" db:"duration_seconds"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	ExperimentVariant *string        `json:"experiment_variant,omitempty" db:"experiment_variant"`
	ReplacesID       *string         `json:"replaces_id,omitempty" db:"replaces_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

const (
	// TemplateMinClipBound and friends bound operator input, not user input.
	TemplateMinClipBound     = 1
	TemplateMaxClipBound     = 30
	TemplateMinDurationSecs  = 3
	TemplateMaxDurationSecs  = 60
)

// CreateTemplateRequest is the operator request to register a template.
type CreateTemplateRequest struct {
	Name              string          `json:"name" validate:"required"`
	Theme             string          `json:"theme"`
	CompositionSpec   json.RawMessage `json:"composition_spec" validate:"required"`
	ThumbnailRef      string          `json:"thumbnail_ref"`
	MinClips          int             `json:"min_clips" validate:"required,min=1,max=30"`
	MaxClips          int             `json:"max_clips" validate:"required,min=1,max=30"`
	DurationSeconds   int             `json:"duration_seconds" validate:"required,min=3,max=60"`
	ExperimentVariant *string         `json:"experiment_variant,omitempty"`
	ReplacesID        *string         `json:"replaces_id,omitempty"`
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	Theme      *string
	ActiveOnly bool
}
