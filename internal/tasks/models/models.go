// Package models defines workflow tasks attached to a case.
package models

import (
	"fmt"
	"time"

	id "boreal/pkg/domain"
)

// TaskStatus is the lifecycle state of a workflow task.
type TaskStatus string

const (
	StatusReady      TaskStatus = "ready"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// ParseTaskStatus validates a status string.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case StatusReady, StatusInProgress, StatusBlocked, StatusDone, StatusCancelled:
		return TaskStatus(s), nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Task is a unit of case work. DependsOn edges form a DAG per case; the
// service rejects inserts that would close a cycle.
type Task struct {
	ID         id.TaskID   `json:"id"`
	TenantID   id.TenantID `json:"tenant_id"`
	CaseID     id.CaseID   `json:"case_id"`
	Title      string      `json:"title"`
	Status     TaskStatus  `json:"status"`
	Assignee   id.UserID   `json:"assignee,omitempty"`
	DueAt      *time.Time  `json:"due_at,omitempty"`
	ReminderAt *time.Time  `json:"reminder_at,omitempty"`
	DependsOn  []id.TaskID `json:"depends_on,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
