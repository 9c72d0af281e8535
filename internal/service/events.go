package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zmartlabs/zmartd/internal/domain"
)

// publishEvent serializes and publishes an event on the signal bus. Event
// delivery is best effort; a failure is logged and never fails the
// originating operation, since the state transition already committed.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, ev domain.Event) {
	if bus == nil {
		return
	}
	ev.ID = uuid.New().String()

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorContext(ctx, "event marshal failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog appends an audit entry, logging rather than failing on error.
func auditLog(ctx context.Context, audit domain.AuditStore, logger *slog.Logger, event string, detail map[string]any) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, event, detail); err != nil {
		logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
