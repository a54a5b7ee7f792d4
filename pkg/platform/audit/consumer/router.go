package consumer

import (
	"context"
	"log/slog"

	audit "boreal/pkg/platform/audit"
)

// Router dispatches messages to category-specific handlers. Events whose
// category has no registered handler go to the fallback, or are dropped with
// a warning when no fallback is set.
type Router struct {
	handlers map[audit.EventCategory]Handler
	fallback Handler
	logger   *slog.Logger
}

// NewRouter creates a router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[audit.EventCategory]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for one category.
func (r *Router) Register(category audit.EventCategory, handler Handler) {
	r.handlers[category] = handler
}

// Handle routes a message by its event category.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	handler, ok := r.handlers[msg.Event.Category]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, msg)
		}
		r.logger.WarnContext(ctx, "no handler for audit category",
			"category", msg.Event.Category, "action", msg.Event.Action)
		return nil
	}
	return handler.Handle(ctx, msg)
}
