// Package postgres implements the task store on PostgreSQL. Dependency edges
// live in a separate table keyed by (tenant, task, depends_on). Writes join
// the caller's transaction when the context carries one.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"boreal/internal/tasks/models"
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

// TaskStore implements store.TaskStore.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO case_tasks (
			id, tenant_id, case_id, title, status, assignee,
			due_at, reminder_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(task.ID), uuid.UUID(task.TenantID), uuid.UUID(task.CaseID),
		task.Title, string(task.Status), uuid.UUID(task.Assignee),
		task.DueAt, task.ReminderAt, task.CreatedAt, task.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, tenantID id.TenantID, taskID id.TaskID) (*models.Task, error) {
	query := `
		SELECT id, tenant_id, case_id, title, status, assignee,
		       due_at, reminder_at, created_at, updated_at
		FROM case_tasks
		WHERE tenant_id = $1 AND id = $2
	`
	task, err := scanTask(execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(taskID)))
	if err != nil {
		return nil, err
	}
	deps, err := s.dependencies(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	task.DependsOn = deps
	return task, nil
}

func (s *TaskStore) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE case_tasks
		SET title = $3, status = $4, assignee = $5, due_at = $6,
		    reminder_at = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(task.TenantID), uuid.UUID(task.ID),
		task.Title, string(task.Status), uuid.UUID(task.Assignee),
		task.DueAt, task.ReminderAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(result)
}

func (s *TaskStore) ListByCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Task, error) {
	query := `
		SELECT id, tenant_id, case_id, title, status, assignee,
		       due_at, reminder_at, created_at, updated_at
		FROM case_tasks
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY created_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for _, task := range tasks {
		deps, err := s.dependencies(ctx, tenantID, task.ID)
		if err != nil {
			return nil, err
		}
		task.DependsOn = deps
	}
	return tasks, nil
}

func (s *TaskStore) AddDependency(ctx context.Context, tenantID id.TenantID, taskID, dependsOn id.TaskID) error {
	query := `INSERT INTO case_task_deps (tenant_id, task_id, depends_on) VALUES ($1, $2, $3)`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(taskID), uuid.UUID(dependsOn))
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert dependency: %w", err)
	}
	return nil
}

func (s *TaskStore) dependencies(ctx context.Context, tenantID id.TenantID, taskID id.TaskID) ([]id.TaskID, error) {
	query := `SELECT depends_on FROM case_task_deps WHERE tenant_id = $1 AND task_id = $2 ORDER BY depends_on`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(taskID))
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []id.TaskID
	for rows.Next() {
		var dep uuid.UUID
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, id.TaskID(dep))
	}
	return deps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task     models.Task
		taskID   uuid.UUID
		tenantID uuid.UUID
		caseID   uuid.UUID
		status   string
		assignee uuid.NullUUID
	)
	err := row.Scan(&taskID, &tenantID, &caseID, &task.Title, &status,
		&assignee, &task.DueAt, &task.ReminderAt, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.ID = id.TaskID(taskID)
	task.TenantID = id.TenantID(tenantID)
	task.CaseID = id.CaseID(caseID)
	task.Status = models.TaskStatus(status)
	if assignee.Valid {
		task.Assignee = id.UserID(assignee.UUID)
	}
	return &task, nil
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
