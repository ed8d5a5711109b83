package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/Thedurancode/aitickets/internal/ports"
)

// Sink is a named notifier.
type Sink struct {
	Name     string
	Notifier ports.Notifier
}

// Multi delivers to every sink. Sink failures are logged and counted and
// never returned, so delivery stays fire-and-forget for the caller.
type Multi struct {
	logger zerolog.Logger
	sinks  []Sink
}

func NewMulti(logger zerolog.Logger, sinks ...Sink) *Multi {
	return &Multi{
		logger: logger.With().Str("component", "notify").Logger(),
		sinks:  sinks,
	}
}

func (m *Multi) Notify(ctx context.Context, msg ports.Message) error {
	for _, s := range m.sinks {
		if err := s.Notifier.Notify(ctx, msg); err != nil {
			metrics.NotificationsSent.WithLabelValues(s.Name, "error").Inc()
			m.logger.Warn().Err(err).Str("sink", s.Name).Str("type", msg.Type).Msg("notification failed")
			continue
		}
		metrics.NotificationsSent.WithLabelValues(s.Name, "ok").Inc()
	}
	return nil
}
