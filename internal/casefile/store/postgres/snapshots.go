package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"boreal/internal/casefile/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
)

// SnapshotStore implements store.SnapshotStore. The UNIQUE(tenant_id,
// case_id, version) constraint is the backstop against concurrent
// transitions racing NextVersion; the loser gets ErrConflict and retries.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Append(ctx context.Context, snap *models.Snapshot) error {
	query := `
		INSERT INTO case_snapshots (id, tenant_id, case_id, version, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(snap.ID), uuid.UUID(snap.TenantID), uuid.UUID(snap.CaseID),
		snap.Version, snap.Payload, snap.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) NextVersion(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (int, error) {
	var next int
	query := `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM case_snapshots
		WHERE tenant_id = $1 AND case_id = $2
	`
	err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next snapshot version: %w", err)
	}
	return next, nil
}

func (s *SnapshotStore) List(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Snapshot, error) {
	query := `
		SELECT id, tenant_id, case_id, version, payload, created_at
		FROM case_snapshots
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY version
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.Snapshot
	for rows.Next() {
		var (
			snap                     models.Snapshot
			snapID, tenantU, caseU   uuid.UUID
		)
		if err := rows.Scan(&snapID, &tenantU, &caseU, &snap.Version, &snap.Payload, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.ID = id.SnapshotID(snapID)
		snap.TenantID = id.TenantID(tenantU)
		snap.CaseID = id.CaseID(caseU)
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// EventStore implements store.EventStore.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, e *models.CaseEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	query := `
		INSERT INTO case_events (id, tenant_id, case_id, event_type, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var actor *uuid.UUID
	if !e.ActorID.IsNil() {
		v := uuid.UUID(e.ActorID)
		actor = &v
	}
	_, err = execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.TenantID), uuid.UUID(e.CaseID),
		e.EventType, actor, metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}
	return nil
}

func (s *EventStore) List(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.CaseEvent, error) {
	query := `
		SELECT id, tenant_id, case_id, event_type, actor_id, metadata, created_at
		FROM case_events
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY created_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query case events: %w", err)
	}
	defer rows.Close()

	var events []*models.CaseEvent
	for rows.Next() {
		var (
			e                       models.CaseEvent
			eventID, tenantU, caseU uuid.UUID
			actor                   *uuid.UUID
			metadata                []byte
		)
		if err := rows.Scan(&eventID, &tenantU, &caseU, &e.EventType, &actor, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case event: %w", err)
		}
		e.ID = id.EventID(eventID)
		e.TenantID = id.TenantID(tenantU)
		e.CaseID = id.CaseID(caseU)
		if actor != nil {
			e.ActorID = id.UserID(*actor)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// DocumentStore implements store.DocumentStore.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Add(ctx context.Context, d *models.Document) error {
	query := `
		INSERT INTO case_documents (id, tenant_id, case_id, document_type, category, filename, status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(d.ID), uuid.UUID(d.TenantID), uuid.UUID(d.CaseID),
		d.DocumentType, d.Category, d.Filename, d.Status, d.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case document: %w", err)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Document, error) {
	query := `
		SELECT id, tenant_id, case_id, document_type, category, filename, status, uploaded_at
		FROM case_documents
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY uploaded_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query case documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var (
			d                     models.Document
			docID, tenantU, caseU uuid.UUID
		)
		if err := rows.Scan(&docID, &tenantU, &caseU, &d.DocumentType, &d.Category, &d.Filename, &d.Status, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan case document: %w", err)
		}
		d.ID = id.DocumentID(docID)
		d.TenantID = id.TenantID(tenantU)
		d.CaseID = id.CaseID(caseU)
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// TenantStore implements store.TenantStore.
type TenantStore struct {
	db *sql.DB
}

func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) Create(ctx context.Context, t *models.Tenant) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal tenant metadata: %w", err)
	}
	query := `
		INSERT INTO tenants (id, name, plan, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Name, t.Plan, metadata, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *TenantStore) Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `SELECT id, name, plan, metadata, created_at, updated_at FROM tenants WHERE id = $1`
	var (
		t        models.Tenant
		tenantU  uuid.UUID
		metadata []byte
	)
	err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID)).
		Scan(&tenantU, &t.Name, &t.Plan, &metadata, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	t.ID = id.TenantID(tenantU)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal tenant metadata: %w", err)
		}
	}
	return &t, nil
}

func (s *TenantStore) Update(ctx context.Context, t *models.Tenant) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal tenant metadata: %w", err)
	}
	query := `UPDATE tenants SET name = $2, plan = $3, metadata = $4, updated_at = $5 WHERE id = $1`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Name, t.Plan, metadata, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return requireRow(result)
}
