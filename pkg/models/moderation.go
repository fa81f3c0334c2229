package models

import (
	"time"
)

// FlagKind labels what an automated classifier (or a human) objected to.
type FlagKind string

const (
	FlagKindNSFW          FlagKind = "nsfw"
	FlagKindViolence      FlagKind = "violence"
	FlagKindWeapon        FlagKind = "weapon"
	FlagKindHateSpeech    FlagKind = "hate_speech"
	FlagKindCopyright     FlagKind = "copyright"
	FlagKindSpam          FlagKind = "spam"
	FlagKindAnimalAbuse   FlagKind = "animal_abuse"
	FlagKindBackground    FlagKind = "inappropriate_background"
)

// Valid reports whether k is a known flag kind.
func (k FlagKind) Valid() bool {
	switch k {
	case FlagKindNSFW, FlagKindViolence, FlagKindWeapon, FlagKindHateSpeech,
		FlagKindCopyright, FlagKindSpam, FlagKindAnimalAbuse, FlagKindBackground:
		return true
	}
	return false
}

// FlagVerdict is the review state of a moderation flag. Flags start pending;
// a human verdict always wins over the automated score.
type FlagVerdict string

const (
	FlagVerdictPending  FlagVerdict = "pending"
	FlagVerdictApproved FlagVerdict = "approved"
	FlagVerdictRejected FlagVerdict = "rejected"
)

// Valid reports whether v is a known verdict.
func (v FlagVerdict) Valid() bool {
	switch v {
	case FlagVerdictPending, FlagVerdictApproved, FlagVerdictRejected:
		return true
	}
	return false
}

// ModerationFlag is one classifier or reviewer objection against a reel.
// Rows are append-only: a human review inserts a new row whose
// SupersedesFlagID points at the flag it settles, so the pre-review record
// survives as an audit trail.
type ModerationFlag struct {
	ID               string      `json:"id" db:"id"`
	ReelID           string      `json:"reel_id" db:"reel_id"`
	Kind             FlagKind    `json:"kind" db:"kind"`
	Score            float64     `json:"score" db:"score"`
	Source           string      `json:"source" db:"source"`
	Verdict          FlagVerdict `json:"verdict" db:"verdict"`
	ReviewerID       *string     `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewedAt       *time.Time  `json:"reviewed_at,omitempty" db:"reviewed_at"`
	SupersedesFlagID *string     `json:"supersedes_flag_id,omitempty" db:"supersedes_flag_id"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}

// CreateFlagRequest records a new flag against a reel.
type CreateFlagRequest struct {
	ReelID string   `json:"reel_id" validate:"required"`
	Kind   FlagKind `json:"kind" validate:"required"`
	Score  float64  `json:"score" validate:"min=0,max=1"`
	Source string   `json:"source" validate:"required"`
}

// ReviewFlagRequest applies a human verdict to a pending flag.
type ReviewFlagRequest struct {
	Verdict FlagVerdict `json:"verdict" validate:"required"`
}
