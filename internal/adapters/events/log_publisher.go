package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	p.logger.InfoContext(ctx, "change published",
		"event_id", event.EventID,
		"kind", event.Kind,
		"action", event.Action,
		"key", event.Key.String(),
		"actor", event.Actor,
	)
	return nil
}

// Fanout delivers every event to all publishers and joins their errors.
type Fanout []ports.ChangePublisher

func (f Fanout) Publish(ctx context.Context, event domain.ChangeEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
