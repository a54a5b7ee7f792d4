package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "boreal/pkg/domain"
	audit "boreal/pkg/platform/audit"
	txcontext "boreal/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction and
// published to Kafka by the outbox worker. Kafka is the source of truth for
// the downstream audit trail; the audit_events table is the queryable
// materialization.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by the consumer.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	TenantID  string `json:"TenantID,omitempty"`
	CaseID    string `json:"CaseID,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
// When the context carries a transaction, the outbox insert joins it so the
// event commits atomically with the state change it describes.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	if !event.TenantID.IsNil() {
		payload.TenantID = event.TenantID.String()
	}
	if !event.CaseID.IsNil() {
		payload.CaseID = event.CaseID.String()
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Determine aggregate type and ID
	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.CaseID.IsNil() {
		aggregateType = "case"
		aggregateID = event.CaseID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), // outbox entry ID
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a specific ID.
// Used by the Kafka consumer to materialize events for querying.
// This is idempotent - duplicate inserts are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, tenant_id, case_id, actor_id,
			subject, action, decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	var tenantID, caseID, actorID *uuid.UUID
	if !event.TenantID.IsNil() {
		v := uuid.UUID(event.TenantID)
		tenantID = &v
	}
	if !event.CaseID.IsNil() {
		v := uuid.UUID(event.CaseID)
		caseID = &v
	}
	if !event.ActorID.IsNil() {
		v := uuid.UUID(event.ActorID)
		actorID = &v
	}

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		tenantID,
		caseID,
		actorID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByTenant returns events for a specific tenant.
func (s *Store) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, tenant_id, case_id, actor_id,
			   subject, action, decision, reason, request_id
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListByCase returns events for a specific case within a tenant.
func (s *Store) ListByCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, tenant_id, case_id, actor_id,
			   subject, action, decision, reason, request_id
		FROM audit_events
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, tenant_id, case_id, actor_id,
			   subject, action, decision, reason, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// scanEvents scans multiple rows into audit.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category string
			event    audit.Event
			tenantID *uuid.UUID
			caseID   *uuid.UUID
			actorID  *uuid.UUID
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&tenantID,
			&caseID,
			&actorID,
			&event.Subject,
			&event.Action,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		if tenantID != nil {
			event.TenantID = id.TenantID(*tenantID)
		}
		if caseID != nil {
			event.CaseID = id.CaseID(*caseID)
		}
		if actorID != nil {
			event.ActorID = id.UserID(*actorID)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
