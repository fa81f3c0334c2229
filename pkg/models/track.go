package models

import (
	"time"
)

// Track is a licensed audio asset. Usability is computed at query time from
// the active flag and the license expiry, never stored or cached, since the
// expiry is a moving target.
type Track struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Artist        string     `json:"artist" db:"artist"`
	BPM           int        `json:"bpm" db:"bpm"`
	DurationSecs  int        `json:"duration_seconds" db:"duration_seconds"`
	LicenseID     string     `json:"license_id" db:"license_id"`
	LicenseExpiry time.Time  `json:"license_expiry" db:"license_expiry"`
	MediaRef      string     `json:"media_ref" db:"media_ref"`
	WaveformRef   *string    `json:"waveform_ref,omitempty" db:"waveform_ref"`
	Genre         string     `json:"genre" db:"genre"`
	Mood          string     `json:"mood" db:"mood"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// TrackMaxDurationSecs caps licensed track length.
const TrackMaxDurationSecs = 300

// IsUsable reports whether the track may back a new reel right now.
func (t *Track) IsUsable(now time.Time) bool {
	return t.IsActive && now.Before(t.LicenseExpiry)
}

// CreateTrackRequest is the operator request to register a track.
type CreateTrackRequest struct {
	Title         string    `json:"title" validate:"required"`
	Artist        string    `json:"artist" validate:"required"`
	BPM           int       `json:"bpm"`
	DurationSecs  int       `json:"duration_seconds" validate:"required,min=1,max=300"`
	LicenseID     string    `json:"license_id" validate:"required"`
	LicenseExpiry time.Time `json:"license_expiry" validate:"required"`
	MediaRef      string    `json:"media_ref" validate:"required"`
	WaveformRef   *string   `json:"waveform_ref,omitempty"`
	Genre         string    `json:"genre"`
	Mood          string    `json:"mood"`
}

// TrackFilter narrows track listings.
type TrackFilter struct {
	Genre      *string
	Mood       *string
	UsableOnly bool
}
