package moderation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sprig/pkg/kafka"
	"github.com/Ramsey-B/sprig/pkg/models"
)

func verdictMessage(t *testing.T, v VerdictMessage) *kafka.IncomingMessage {
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return &kafka.IncomingMessage{
		Key:   "flag",
		Value: payload,
		Topic: "moderation-verdicts",
	}
}

func TestVerdictListenerHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("applies a rejection verdict", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})
		flag, err := f.svc.RecordFlag(ctx, models.CreateFlagRequest{
			ReelID: "reel-1", Kind: models.FlagKindNSFW, Score: 0.5, Source: "classifier",
		})
		require.NoError(t, err)

		listener := NewVerdictListener(f.svc, testLogger())
		err = listener.Handle(ctx, verdictMessage(t, VerdictMessage{
			FlagID:     flag.ID,
			Verdict:    models.FlagVerdictRejected,
			ReviewerID: "mod-1",
		}))
		require.NoError(t, err)

		flags, err := f.flags.ListByReel(ctx, "reel-1")
		require.NoError(t, err)
		var verdictRow *models.ModerationFlag
		for i := range flags {
			if flags[i].SupersedesFlagID != nil && *flags[i].SupersedesFlagID == flag.ID {
				verdictRow = &flags[i]
			}
		}
		require.NotNil(t, verdictRow)
		assert.Equal(t, models.FlagVerdictRejected, verdictRow.Verdict)
		assert.Equal(t, []string{"reel-1"}, f.flagger.pulled)
	})

	t.Run("malformed payloads are dropped, not retried", func(t *testing.T) {
		f := newFixture()
		listener := NewVerdictListener(f.svc, testLogger())

		err := listener.Handle(ctx, &kafka.IncomingMessage{Value: []byte("not json")})
		assert.NoError(t, err, "a commit-and-skip must look like success to the consumer")
	})

	t.Run("unknown flags are skipped", func(t *testing.T) {
		f := newFixture()
		listener := NewVerdictListener(f.svc, testLogger())

		err := listener.Handle(ctx, verdictMessage(t, VerdictMessage{
			FlagID:     "missing",
			Verdict:    models.FlagVerdictApproved,
			ReviewerID: "mod-1",
		}))
		assert.NoError(t, err)
	})

	t.Run("already reviewed flags are skipped", func(t *testing.T) {
		f := newFixture(&models.Reel{ID: "reel-1", Status: models.ReelStatusPublic})
		flag, err := f.svc.RecordFlag(ctx, models.CreateFlagRequest{
			ReelID: "reel-1", Kind: models.FlagKindSpam, Score: 0.2, Source: "report",
		})
		require.NoError(t, err)

		_, err = f.svc.Review(ctx, flag.ID, models.FlagVerdictApproved, "mod-1")
		require.NoError(t, err)

		listener := NewVerdictListener(f.svc, testLogger())
		err = listener.Handle(ctx, verdictMessage(t, VerdictMessage{
			FlagID:     flag.ID,
			Verdict:    models.FlagVerdictRejected,
			ReviewerID: "mod-2",
		}))
		assert.NoError(t, err)
		assert.Empty(t, f.flagger.pulled, "the first verdict stands, the reel is never pulled")
	})
}
