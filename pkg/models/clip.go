package models

import (
	"time"
)

// Clip is one trimmed media segment in a reel's ordered sequence. Order
// indices are assigned from array position on every wholesale replace, so
// they can never carry gaps or duplicates.
type Clip struct {
	ID          string    `json:"id" db:"id"`
	ReelID      string    `json:"reel_id" db:"reel_id"`
	OrderIndex  int       `json:"order_index" db:"order_index"`
	MediaRef    string    `json:"media_ref" db:"media_ref"`
	TrimStartMS int       `json:"trim_start_ms" db:"trim_start_ms"`
	TrimEndMS   int       `json:"trim_end_ms" db:"trim_end_ms"`
	Caption     *string   `json:"caption,omitempty" db:"caption"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ClipInput is a caller-supplied clip; the order index comes from its
// position in the submitted slice, never from the caller.
type ClipInput struct {
	MediaRef    string  `json:"media_ref" validate:"required"`
	TrimStartMS int     `json:"trim_start_ms" validate:"min=0"`
	TrimEndMS   int     `json:"trim_end_ms" validate:"required"`
	Caption     *string `json:"caption,omitempty"`
}

// Validate checks the trim window.
func (c *ClipInput) Validate() error {
	if c.MediaRef == "" {
		return ErrClipMediaRefRequired
	}
	if c.TrimStartMS < 0 {
		return ErrClipTrimNegative
	}
	if c.TrimEndMS <= c.TrimStartMS {
		return ErrClipTrimInverted
	}
	return nil
}
