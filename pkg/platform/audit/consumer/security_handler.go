package consumer

import (
	"context"
	"log/slog"
)

// SecurityHandler archives security events and raises a warning log for each
// one so alerting can key off the structured output. Plan limit rejections
// and soft deletions land here.
type SecurityHandler struct {
	archive Archiver
	logger  *slog.Logger
}

// NewSecurityHandler creates a security event handler.
func NewSecurityHandler(archive Archiver, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{archive: archive, logger: logger}
}

func (h *SecurityHandler) Handle(ctx context.Context, msg Message) error {
	if err := h.archive.AppendWithID(ctx, msg.ID, msg.Event); err != nil {
		return err
	}
	h.logger.WarnContext(ctx, "security audit event",
		"event_id", msg.ID,
		"action", msg.Event.Action,
		"tenant_id", msg.Event.TenantID,
		"case_id", msg.Event.CaseID,
		"actor_id", msg.Event.ActorID,
		"reason", msg.Event.Reason,
	)
	return nil
}
