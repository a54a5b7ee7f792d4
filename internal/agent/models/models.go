// Package models defines agent sessions and their recorded suggestions.
package models

import (
	"time"

	id "boreal/pkg/domain"
)

// SessionStatus is the state of an agent session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// ActionStatus is the state of a recorded agent action. Actions touching
// case state never reach executed.
type ActionStatus string

const (
	ActionSuggested ActionStatus = "suggested"
	ActionExecuted  ActionStatus = "executed"
	ActionError     ActionStatus = "error"
)

// Session records one agent run against a case.
type Session struct {
	ID             id.SessionID      `json:"id"`
	TenantID       id.TenantID       `json:"tenant_id"`
	CaseID         id.CaseID         `json:"case_id"`
	AgentName      string            `json:"agent_name"`
	Status         SessionStatus     `json:"status"`
	StartedBy      id.UserID         `json:"started_by"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Context        map[string]string `json:"context,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        *time.Time        `json:"ended_at,omitempty"`
}

// Action is one suggestion produced within a session. Side effects live in
// the payload only.
type Action struct {
	ID             id.ActionID    `json:"id"`
	TenantID       id.TenantID    `json:"tenant_id"`
	SessionID      id.SessionID   `json:"session_id"`
	ActionType     string         `json:"action_type"`
	Status         ActionStatus   `json:"status"`
	AutoMode       bool           `json:"auto_mode"`
	IdempotencyKey string         `json:"idempotency_key"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
