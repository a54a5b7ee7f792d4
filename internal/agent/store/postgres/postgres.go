// Package postgres implements the agent session and action stores on
// PostgreSQL. Idempotency keys are enforced with unique indexes; writes join
// the caller's transaction when the context carries one.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"boreal/internal/agent/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
	txcontext "boreal/pkg/platform/tx"
)

const uniqueViolation = "23505"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SessionStore implements store.SessionStore.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	contextJSON, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	query := `
		INSERT INTO agent_sessions (
			id, tenant_id, case_id, agent_name, status, started_by,
			idempotency_key, context, started_at, ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(session.ID), uuid.UUID(session.TenantID), uuid.UUID(session.CaseID),
		session.AgentName, string(session.Status), uuid.UUID(session.StartedBy),
		session.IdempotencyKey, contextJSON, session.StartedAt, session.EndedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, tenant_id, case_id, agent_name, status, started_by,
	idempotency_key, context, started_at, ended_at`

func (s *SessionStore) Get(ctx context.Context, tenantID id.TenantID, sessionID id.SessionID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM agent_sessions WHERE tenant_id = $1 AND id = $2`
	return scanSession(execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(sessionID)))
}

func (s *SessionStore) FindByIdempotencyKey(ctx context.Context, tenantID id.TenantID, key string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM agent_sessions WHERE tenant_id = $1 AND idempotency_key = $2`
	return scanSession(execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), key))
}

func (s *SessionStore) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE agent_sessions
		SET status = $3, ended_at = $4
		WHERE tenant_id = $1 AND id = $2
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(session.TenantID), uuid.UUID(session.ID),
		string(session.Status), session.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(result)
}

func (s *SessionStore) ListByCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM agent_sessions
		WHERE tenant_id = $1 AND case_id = $2 ORDER BY started_at`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session     models.Session
		sessionID   uuid.UUID
		tenantID    uuid.UUID
		caseID      uuid.UUID
		status      string
		startedBy   uuid.NullUUID
		contextJSON []byte
	)
	err := row.Scan(&sessionID, &tenantID, &caseID, &session.AgentName, &status,
		&startedBy, &session.IdempotencyKey, &contextJSON, &session.StartedAt, &session.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.ID = id.SessionID(sessionID)
	session.TenantID = id.TenantID(tenantID)
	session.CaseID = id.CaseID(caseID)
	session.Status = models.SessionStatus(status)
	if startedBy.Valid {
		session.StartedBy = id.UserID(startedBy.UUID)
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &session.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	return &session, nil
}

// ActionStore implements store.ActionStore.
type ActionStore struct {
	db *sql.DB
}

func NewActionStore(db *sql.DB) *ActionStore {
	return &ActionStore{db: db}
}

func (s *ActionStore) Append(ctx context.Context, action *models.Action) error {
	payloadJSON, err := json.Marshal(action.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	query := `
		INSERT INTO agent_actions (
			id, tenant_id, session_id, action_type, status, auto_mode,
			idempotency_key, payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(action.ID), uuid.UUID(action.TenantID), uuid.UUID(action.SessionID),
		action.ActionType, string(action.Status), action.AutoMode,
		action.IdempotencyKey, payloadJSON, action.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

const actionColumns = `id, tenant_id, session_id, action_type, status, auto_mode,
	idempotency_key, payload, created_at`

func (s *ActionStore) FindByIdempotencyKey(ctx context.Context, tenantID id.TenantID, key string) (*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM agent_actions WHERE tenant_id = $1 AND idempotency_key = $2`
	return scanAction(execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), key))
}

func (s *ActionStore) ListBySession(ctx context.Context, tenantID id.TenantID, sessionID id.SessionID) ([]*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM agent_actions
		WHERE tenant_id = $1 AND session_id = $2 ORDER BY created_at`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func scanAction(row rowScanner) (*models.Action, error) {
	var (
		action      models.Action
		actionID    uuid.UUID
		tenantID    uuid.UUID
		sessionID   uuid.UUID
		status      string
		payloadJSON []byte
	)
	err := row.Scan(&actionID, &tenantID, &sessionID, &action.ActionType, &status,
		&action.AutoMode, &action.IdempotencyKey, &payloadJSON, &action.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan action: %w", err)
	}
	action.ID = id.ActionID(actionID)
	action.TenantID = id.TenantID(tenantID)
	action.SessionID = id.SessionID(sessionID)
	action.Status = models.ActionStatus(status)
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &action.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &action, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
