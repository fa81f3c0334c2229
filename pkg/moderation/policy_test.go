package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sprig/pkg/models"
)

func TestGatePolicyEvaluate(t *testing.T) {
	gate := NewGatePolicy(map[string]float64{"nsfw": 0.9})

	t.Run("no flags allows publication", func(t *testing.T) {
		d := gate.Evaluate(nil)
		assert.True(t, d.Allowed)
	})

	t.Run("pending flag below threshold allows publication", func(t *testing.T) {
		d := gate.Evaluate([]models.ModerationFlag{
			{Kind: models.FlagKindNSFW, Score: 0.85, Verdict: models.FlagVerdictPending},
		})
		assert.True(t, d.Allowed)
	})

	t.Run("pending flag at threshold blocks", func(t *testing.T) {
		d := gate.Evaluate([]models.ModerationFlag{
			{ID: "flag-1", Kind: models.FlagKindNSFW, Score: 0.9, Verdict: models.FlagVerdictPending},
		})
		assert.False(t, d.Allowed)
		assert.Equal(t, "flag-1", d.FlagID)
		assert.Contains(t, d.Reason, "pending review")
	})

	t.Run("unconfigured kind falls back to the default threshold", func(t *testing.T) {
		d := gate.Evaluate([]models.ModerationFlag{
			{Kind: models.FlagKindViolence, Score: 0.8, Verdict: models.FlagVerdictPending},
		})
		assert.False(t, d.Allowed)

		d = gate.Evaluate([]models.ModerationFlag{
			{Kind: models.FlagKindViolence, Score: 0.79, Verdict: models.FlagVerdictPending},
		})
		assert.True(t, d.Allowed)
	})

	t.Run("approved flag never blocks, whatever the score", func(t *testing.T) {
		d := gate.Evaluate([]models.ModerationFlag{
			{Kind: models.FlagKindNSFW, Score: 0.99, Verdict: models.FlagVerdictApproved},
		})
		assert.True(t, d.Allowed)
	})

	t.Run("rejected flag always blocks, even at score zero", func(t *testing.T) {
		d := gate.Evaluate([]models.ModerationFlag{
			{ID: "flag-2", Kind: models.FlagKindSpam, Score: 0, Verdict: models.FlagVerdictRejected},
		})
		assert.False(t, d.Allowed)
		assert.Equal(t, "flag-2", d.FlagID)
		assert.Contains(t, d.Reason, "rejected by human review")
	})

	t.Run("a superseded pending flag no longer blocks", func(t *testing.T) {
		flagID := "flag-1"
		d := gate.Evaluate([]models.ModerationFlag{
			{ID: flagID, Kind: models.FlagKindNSFW, Score: 0.95, Verdict: models.FlagVerdictPending},
			{ID: "flag-2", Kind: models.FlagKindNSFW, Score: 0.95, Verdict: models.FlagVerdictApproved, SupersedesFlagID: &flagID},
		})
		assert.True(t, d.Allowed, "the approval verdict speaks for the settled flag")
	})

	t.Run("rejection outranks a pending high risk flag in the reason", func(t *testing.T) {
		d := gate.Evaluate([]models.ModerationFlag{
			{Kind: models.FlagKindNSFW, Score: 0.95, Verdict: models.FlagVerdictPending},
			{Kind: models.FlagKindCopyright, Score: 0.1, Verdict: models.FlagVerdictRejected},
		})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "copyright")
	})
}

func TestGatePolicyIsHighRisk(t *testing.T) {
	gate := NewGatePolicy(map[string]float64{"violence": 0.5})

	assert.True(t, gate.IsHighRisk(&models.ModerationFlag{Kind: models.FlagKindViolence, Score: 0.5}))
	assert.False(t, gate.IsHighRisk(&models.ModerationFlag{Kind: models.FlagKindViolence, Score: 0.49}))
	assert.True(t, gate.IsHighRisk(&models.ModerationFlag{Kind: models.FlagKindNSFW, Score: DefaultHighRiskThreshold}))
}
