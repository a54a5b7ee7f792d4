package consumer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	audit "boreal/pkg/platform/audit"
)

// Archiver materializes stream events into the queryable audit_events table.
// Implemented by the postgres audit store.
type Archiver interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// ComplianceHandler archives compliance events. Every event is kept; the
// archive insert is idempotent on the event ID, so redelivery is safe.
type ComplianceHandler struct {
	archive Archiver
	logger  *slog.Logger
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(archive Archiver, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{archive: archive, logger: logger}
}

func (h *ComplianceHandler) Handle(ctx context.Context, msg Message) error {
	if err := h.archive.AppendWithID(ctx, msg.ID, msg.Event); err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "compliance event archived",
		"event_id", msg.ID, "action", msg.Event.Action, "case_id", msg.Event.CaseID)
	return nil
}
