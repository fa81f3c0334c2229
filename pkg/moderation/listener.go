package moderation

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sprig/pkg/kafka"
	"github.com/Ramsey-B/sprig/pkg/models"
	"github.com/Ramsey-B/sprig/pkg/tracing"
)

// VerdictMessage is the payload the external review tool publishes to the
// verdicts topic.
type VerdictMessage struct {
	FlagID     string             `json:"flag_id"`
	Verdict    models.FlagVerdict `json:"verdict"`
	ReviewerID string             `json:"reviewer_id"`
}

// VerdictListener applies review verdicts arriving over Kafka
type VerdictListener struct {
	service *Service
	logger  ectologger.Logger
}

// NewVerdictListener creates a new verdict listener
func NewVerdictListener(service *Service, logger ectologger.Logger) *VerdictListener {
	return &VerdictListener{
		service: service,
		logger:  logger,
	}
}

// Handle processes one verdict message. Verdicts for unknown or already
// reviewed flags are logged and committed; anything else is retried.
func (l *VerdictListener) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "moderation.VerdictListener.Handle")
	defer span.End()

	log := l.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":  msg.Topic,
		"offset": msg.Offset,
	})

	var verdict VerdictMessage
	if err := msg.Decode(&verdict); err != nil {
		log.WithError(err).Error("Dropping malformed verdict message")
		return nil
	}

	if _, err := l.service.Review(ctx, verdict.FlagID, verdict.Verdict, verdict.ReviewerID); err != nil {
		switch httperror.GetStatusCode(err) {
		case http.StatusNotFound, http.StatusConflict, http.StatusBadRequest:
			// permanent: retrying cannot help
			log.WithError(err).WithFields(map[string]any{"flag_id": verdict.FlagID}).Warn("Skipping unprocessable verdict")
			return nil
		default:
			return err
		}
	}

	return nil
}
