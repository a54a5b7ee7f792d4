// Package domain holds typed identifiers and shared domain primitives.
//
// Every aggregate gets its own UUID newtype so tenant, case and document
// identifiers can never be swapped silently. Parse functions enforce the
// invariant that IDs are valid, non-empty, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "boreal/pkg/domain-errors"
)

type (
	// TenantID identifies a consulting firm (tenant). Every repository call
	// is scoped by one.
	TenantID uuid.UUID

	// UserID identifies an actor within a tenant.
	UserID uuid.UUID

	// CaseID identifies an immigration case.
	CaseID uuid.UUID

	// SnapshotID identifies an immutable case snapshot.
	SnapshotID uuid.UUID

	// EventID identifies an append-only case event.
	EventID uuid.UUID

	// DocumentID identifies an uploaded document record.
	DocumentID uuid.UUID

	// TaskID identifies a workflow task.
	TaskID uuid.UUID

	// SessionID identifies an agent session.
	SessionID uuid.UUID

	// ActionID identifies a recorded agent action.
	ActionID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is not a valid uuid", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is nil", kind)
	}
	return u, nil
}

// ParseTenantID parses and validates a tenant ID string.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID("tenant", s)
	return TenantID(u), err
}

// ParseUserID parses and validates a user ID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user", s)
	return UserID(u), err
}

// ParseCaseID parses and validates a case ID string.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID("case", s)
	return CaseID(u), err
}

// ParseSnapshotID parses and validates a snapshot ID string.
func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID("snapshot", s)
	return SnapshotID(u), err
}

// ParseEventID parses and validates an event ID string.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("event", s)
	return EventID(u), err
}

// ParseDocumentID parses and validates a document ID string.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document", s)
	return DocumentID(u), err
}

// ParseTaskID parses and validates a task ID string.
func ParseTaskID(s string) (TaskID, error) {
	u, err := parseUUID("task", s)
	return TaskID(u), err
}

// ParseSessionID parses and validates an agent session ID string.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session", s)
	return SessionID(u), err
}

// ParseActionID parses and validates an agent action ID string.
func ParseActionID(s string) (ActionID, error) {
	u, err := parseUUID("action", s)
	return ActionID(u), err
}

func (v TenantID) String() string   { return uuid.UUID(v).String() }
func (v UserID) String() string     { return uuid.UUID(v).String() }
func (v CaseID) String() string     { return uuid.UUID(v).String() }
func (v SnapshotID) String() string { return uuid.UUID(v).String() }
func (v EventID) String() string    { return uuid.UUID(v).String() }
func (v DocumentID) String() string { return uuid.UUID(v).String() }
func (v TaskID) String() string     { return uuid.UUID(v).String() }
func (v SessionID) String() string  { return uuid.UUID(v).String() }
func (v ActionID) String() string   { return uuid.UUID(v).String() }

// MarshalText renders IDs as canonical UUID strings in JSON and text
// encodings; UnmarshalText accepts the same form.
func (v TenantID) MarshalText() ([]byte, error)   { return []byte(v.String()), nil }
func (v UserID) MarshalText() ([]byte, error)     { return []byte(v.String()), nil }
func (v CaseID) MarshalText() ([]byte, error)     { return []byte(v.String()), nil }
func (v SnapshotID) MarshalText() ([]byte, error) { return []byte(v.String()), nil }
func (v EventID) MarshalText() ([]byte, error)    { return []byte(v.String()), nil }
func (v DocumentID) MarshalText() ([]byte, error) { return []byte(v.String()), nil }
func (v TaskID) MarshalText() ([]byte, error)     { return []byte(v.String()), nil }
func (v SessionID) MarshalText() ([]byte, error)  { return []byte(v.String()), nil }
func (v ActionID) MarshalText() ([]byte, error)   { return []byte(v.String()), nil }

func unmarshalUUID(kind string, text []byte) (uuid.UUID, error) {
	return parseUUID(kind, string(text))
}

func (v *TenantID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("tenant", text)
	*v = TenantID(u)
	return err
}

func (v *UserID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("user", text)
	*v = UserID(u)
	return err
}

func (v *CaseID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("case", text)
	*v = CaseID(u)
	return err
}

func (v *SnapshotID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("snapshot", text)
	*v = SnapshotID(u)
	return err
}

func (v *EventID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("event", text)
	*v = EventID(u)
	return err
}

func (v *DocumentID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("document", text)
	*v = DocumentID(u)
	return err
}

func (v *TaskID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("task", text)
	*v = TaskID(u)
	return err
}

func (v *SessionID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("session", text)
	*v = SessionID(u)
	return err
}

func (v *ActionID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("action", text)
	*v = ActionID(u)
	return err
}

func (v TenantID) IsNil() bool   { return uuid.UUID(v) == uuid.Nil }
func (v UserID) IsNil() bool     { return uuid.UUID(v) == uuid.Nil }
func (v CaseID) IsNil() bool     { return uuid.UUID(v) == uuid.Nil }
func (v SnapshotID) IsNil() bool { return uuid.UUID(v) == uuid.Nil }
func (v EventID) IsNil() bool    { return uuid.UUID(v) == uuid.Nil }
func (v DocumentID) IsNil() bool { return uuid.UUID(v) == uuid.Nil }
func (v TaskID) IsNil() bool     { return uuid.UUID(v) == uuid.Nil }
func (v SessionID) IsNil() bool  { return uuid.UUID(v) == uuid.Nil }
func (v ActionID) IsNil() bool   { return uuid.UUID(v) == uuid.Nil }

// NewTenantID generates a fresh tenant ID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewUserID generates a fresh user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewCaseID generates a fresh case ID.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewSnapshotID generates a fresh snapshot ID.
func NewSnapshotID() SnapshotID { return SnapshotID(uuid.New()) }

// NewEventID generates a fresh event ID.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewDocumentID generates a fresh document ID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// NewTaskID generates a fresh task ID.
func NewTaskID() TaskID { return TaskID(uuid.New()) }

// NewSessionID generates a fresh agent session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewActionID generates a fresh agent action ID.
func NewActionID() ActionID { return ActionID(uuid.New()) }
