package models

import "errors"

var (
	ErrClipMediaRefRequired = errors.New("clip media_ref is required")
	ErrClipTrimNegative     = errors.New("clip trim_start_ms must be >= 0")
	ErrClipTrimInverted     = errors.New("clip trim_end_ms must be greater than trim_start_ms")
)
