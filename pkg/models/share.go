package models

import (
	"time"
)

// ShareChannel is where a reel was shared to.
type ShareChannel string

const (
	ShareChannelInstagram ShareChannel = "instagram"
	ShareChannelTikTok    ShareChannel = "tiktok"
	ShareChannelSnapchat  ShareChannel = "snapchat"
	ShareChannelTwitter   ShareChannel = "twitter"
	ShareChannelFacebook  ShareChannel = "facebook"
	ShareChannelCopyLink  ShareChannel = "copy-link"
	ShareChannelSave      ShareChannel = "save"
)

// Valid reports whether c is a known share channel.
func (c ShareChannel) Valid() bool {
	switch c {
	case ShareChannelInstagram, ShareChannelTikTok, ShareChannelSnapchat,
		ShareChannelTwitter, ShareChannelFacebook, ShareChannelCopyLink, ShareChannelSave:
		return true
	}
	return false
}

// ShareEvent is the append-only record of one share action. The referrer is
// the sharer whose link drives K-factor attribution; the acting user is
// whoever performed the share, when known. Both are optional so shares on
// links to since-removed reels still land. The reel's kpi_shares counter is
// incremented in the same transaction that inserts the event, so the two
// can never drift.
type ShareEvent struct {
	ID           string       `json:"id" db:"id"`
	ReelID       string       `json:"reel_id" db:"reel_id"`
	ReferrerID   *string      `json:"referrer_id,omitempty" db:"referrer_id"`
	ActingUserID *string      `json:"acting_user_id,omitempty" db:"acting_user_id"`
	Channel      ShareChannel `json:"channel" db:"channel"`
	SharedAt     time.Time    `json:"shared_at" db:"shared_at"`
}

// RecordShareRequest records one share of a reel. The acting user is filled
// from the authenticated identity when present.
type RecordShareRequest struct {
	Channel    ShareChannel `json:"channel" validate:"required"`
	ReferrerID *string      `json:"referrer_id,omitempty"`
}

// InstallAttribution ties a new app install back to the shared reel that
// drove it, and through the reel to the owner whose link was shared. These
// are the K-factor numerator.
type InstallAttribution struct {
	ID             string    `json:"id" db:"id"`
	ReelID         string    `json:"reel_id" db:"reel_id"`
	InstallUserID  string    `json:"install_user_id" db:"install_user_id"`
	ReferrerUserID *string   `json:"referrer_user_id,omitempty" db:"referrer_user_id"`
	Channel        *string   `json:"channel,omitempty" db:"channel"`
	InstalledAt    time.Time `json:"installed_at" db:"installed_at"`
}

// RecordInstallRequest attributes an install to a reel.
type RecordInstallRequest struct {
	ReelID         string  `json:"reel_id" validate:"required"`
	InstallUserID  string  `json:"install_user_id" validate:"required"`
	ReferrerUserID *string `json:"referrer_user_id,omitempty"`
	Channel        *string `json:"channel,omitempty"`
}

// KFactorReport is one owner's viral coefficient over a time window:
// distinct installs referred through that owner's shared links, divided by
// the owner's public reels in the window.
type KFactorReport struct {
	OwnerID          string    `json:"owner_id"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	Shares           int       `json:"shares"`
	ReferredInstalls int       `json:"referred_installs"`
	PublicReels      int       `json:"public_reels"`
	KFactor          float64   `json:"k_factor"`
}
