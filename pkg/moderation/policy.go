// Package moderation implements the publication gate: automated flags plus
// human verdicts decide whether a reel may be (or stay) public.
package moderation

import (
	"github.com/Ramsey-B/sprig/pkg/models"
)

// DefaultHighRiskThreshold applies to flag kinds with no configured
// threshold.
const DefaultHighRiskThreshold = 0.8

// Decision is the gate's answer for one reel.
type Decision struct {
	Allowed bool
	Reason  string
	FlagID  string
}

// GatePolicy decides publication from a reel's flag history. A human
// verdict always outranks the automated score: an approved flag never
// blocks, a rejected flag always does.
type GatePolicy struct {
	thresholds map[string]float64
}

// NewGatePolicy creates a gate policy from the per-kind threshold table.
func NewGatePolicy(thresholds map[string]float64) *GatePolicy {
	if thresholds == nil {
		thresholds = map[string]float64{}
	}
	return &GatePolicy{thresholds: thresholds}
}

// Threshold returns the high-risk score threshold for a flag kind.
func (p *GatePolicy) Threshold(kind models.FlagKind) float64 {
	if t, ok := p.thresholds[string(kind)]; ok {
		return t
	}
	return DefaultHighRiskThreshold
}

// IsHighRisk reports whether a single flag trips the gate on its own.
func (p *GatePolicy) IsHighRisk(flag *models.ModerationFlag) bool {
	return flag.Score >= p.Threshold(flag.Kind)
}

// Evaluate runs the gate over a reel's full flag history. Flags that a
// later review row superseded no longer count; only the verdict row speaks
// for them.
func (p *GatePolicy) Evaluate(flags []models.ModerationFlag) Decision {
	superseded := make(map[string]bool)
	for i := range flags {
		if flags[i].SupersedesFlagID != nil {
			superseded[*flags[i].SupersedesFlagID] = true
		}
	}

	for i := range flags {
		f := &flags[i]
		if superseded[f.ID] {
			continue
		}
		if f.Verdict == models.FlagVerdictRejected {
			return Decision{
				Allowed: false,
				Reason:  "rejected by human review: " + string(f.Kind),
				FlagID:  f.ID,
			}
		}
	}

	for i := range flags {
		f := &flags[i]
		if superseded[f.ID] {
			continue
		}
		if f.Verdict == models.FlagVerdictPending && p.IsHighRisk(f) {
			return Decision{
				Allowed: false,
				Reason:  "high risk flag pending review: " + string(f.Kind),
				FlagID:  f.ID,
			}
		}
	}

	return Decision{Allowed: true}
}
