package outbox

import (
	"context"
	"log/slog"

	"testament/internal/testament/models"
)

// LogPublisher writes notifications to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events []models.Event) error {
	for _, ev := range events {
		p.logger.InfoContext(ctx, string(ev.Kind),
			"event", string(ev.Kind),
			"log_type", "notification",
			"event_id", ev.ID,
			"testament_id", ev.TestamentID,
			"seq", ev.Seq,
			"doctor", ev.Doctor,
			"owner", ev.Owner,
			"beneficiary", ev.Beneficiary,
			"amount", ev.Amount.Int64(),
		)
	}
	return nil
}
