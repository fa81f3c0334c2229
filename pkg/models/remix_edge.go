package models

import (
	"time"
)

// RemixEdge is one parent->child link in the remix lineage. Edges are only
// ever written at reel creation, pointing at the brand-new child, so the
// graph stays acyclic by construction.
type RemixEdge struct {
	ID           string    `json:"id" db:"id"`
	ParentReelID string    `json:"parent_reel_id" db:"parent_reel_id"`
	ChildReelID  string    `json:"child_reel_id" db:"child_reel_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// LineageNode is one reel in an ancestry or descendant traversal.
type LineageNode struct {
	ReelID  string     `json:"reel_id" db:"reel_id"`
	OwnerID string     `json:"owner_id" db:"owner_id"`
	Status  ReelStatus `json:"status" db:"status"`
	Depth   int        `json:"depth" db:"depth"`
}

// Lineage is the response for a lineage query rooted at one reel.
type Lineage struct {
	ReelID      string        `json:"reel_id"`
	Ancestors   []LineageNode `json:"ancestors"`
	Descendants []LineageNode `json:"descendants"`
}

// RemixStats summarizes direct remix fan-out for one reel.
type RemixStats struct {
	ReelID           string `json:"reel_id"`
	DirectRemixes    int    `json:"direct_remixes"`
	TotalDescendants int    `json:"total_descendants"`
}
