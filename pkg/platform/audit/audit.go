package audit

import (
	"context"
	"errors"
	"log/slog"

	"tokenhold/pkg/requestcontext"
)

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Log writes event to the structured logger and emits it through pub when one
// is configured. Emission failures are logged, never returned: events are
// published after the unit of work has committed.
func Log(ctx context.Context, logger *slog.Logger, pub Emitter, action AuditEvent, event Event) {
	event.Action = string(action)
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if logger != nil {
		args := []any{
			"event", event.Action,
			"log_type", "audit",
			"token", event.Token.String(),
			"actor", event.Actor.String(),
		}
		if !event.HoldID.IsZero() {
			args = append(args, "hold_id", event.HoldID.String())
		}
		if !event.Value.IsZero() {
			args = append(args, "value", event.Value.String())
		}
		if event.Reason != "" {
			args = append(args, "reason", event.Reason)
		}
		if event.RequestID != "" {
			args = append(args, "request_id", event.RequestID)
		}
		logger.InfoContext(ctx, event.Action, args...)
	}

	if pub == nil {
		return
	}
	if err := pub.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}

// Fanout appends every event to each store in order and returns the joined
// errors of the stores that failed.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
