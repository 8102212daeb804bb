package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier pushes a human-readable event to a cardholder.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// Event is the payload handed to the delivery subsystem.
type Event struct {
	UserID     uuid.UUID `json:"userId"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// LogNotifier writes notifications to the log. It is used when no broker is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, message string) error {
	n.logger.Info().
		Str("event", "notification").
		Str("user_id", userID.String()).
		Msg(message)
	return nil
}
