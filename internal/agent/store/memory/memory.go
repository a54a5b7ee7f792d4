// Package memory provides in-memory agent stores for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"boreal/internal/agent/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
)

type sessionKey struct {
	tenant  id.TenantID
	session id.SessionID
}

// SessionStore is an in-memory store.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*models.Session
	byKey    map[id.TenantID]map[string]id.SessionID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[sessionKey]*models.Session),
		byKey:    make(map[id.TenantID]map[string]id.SessionID),
	}
}

func copySession(s *models.Session) *models.Session {
	cp := *s
	if s.Context != nil {
		cp.Context = make(map[string]string, len(s.Context))
		for k, v := range s.Context {
			cp.Context[k] = v
		}
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		cp.EndedAt = &ended
	}
	return &cp
}

func (s *SessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{session.TenantID, session.ID}
	if _, ok := s.sessions[key]; ok {
		return sentinel.ErrConflict
	}
	if session.IdempotencyKey != "" {
		if _, ok := s.byKey[session.TenantID][session.IdempotencyKey]; ok {
			return sentinel.ErrConflict
		}
		if s.byKey[session.TenantID] == nil {
			s.byKey[session.TenantID] = make(map[string]id.SessionID)
		}
		s.byKey[session.TenantID][session.IdempotencyKey] = session.ID
	}
	s.sessions[key] = copySession(session)
	return nil
}

func (s *SessionStore) Get(_ context.Context, tenantID id.TenantID, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey{tenantID, sessionID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(session), nil
}

func (s *SessionStore) FindByIdempotencyKey(_ context.Context, tenantID id.TenantID, key string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byKey[tenantID][key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(s.sessions[sessionKey{tenantID, sessionID}]), nil
}

func (s *SessionStore) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{session.TenantID, session.ID}
	if _, ok := s.sessions[key]; !ok {
		return sentinel.ErrNotFound
	}
	s.sessions[key] = copySession(session)
	return nil
}

func (s *SessionStore) ListByCase(_ context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for key, session := range s.sessions {
		if key.tenant == tenantID && session.CaseID == caseID {
			out = append(out, copySession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ActionStore is an in-memory store.ActionStore.
type ActionStore struct {
	mu      sync.RWMutex
	actions []*models.Action
}

func NewActionStore() *ActionStore {
	return &ActionStore{}
}

func copyAction(a *models.Action) *models.Action {
	cp := *a
	if a.Payload != nil {
		cp.Payload = make(map[string]any, len(a.Payload))
		for k, v := range a.Payload {
			cp.Payload[k] = v
		}
	}
	return &cp
}

func (s *ActionStore) Append(_ context.Context, action *models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.actions {
		if existing.TenantID == action.TenantID && existing.IdempotencyKey == action.IdempotencyKey {
			return sentinel.ErrConflict
		}
	}
	s.actions = append(s.actions, copyAction(action))
	return nil
}

func (s *ActionStore) FindByIdempotencyKey(_ context.Context, tenantID id.TenantID, key string) (*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, action := range s.actions {
		if action.TenantID == tenantID && action.IdempotencyKey == key {
			return copyAction(action), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *ActionStore) ListBySession(_ context.Context, tenantID id.TenantID, sessionID id.SessionID) ([]*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Action
	for _, action := range s.actions {
		if action.TenantID == tenantID && action.SessionID == sessionID {
			out = append(out, copyAction(action))
		}
	}
	return out, nil
}

type throttleKey struct {
	tenant id.TenantID
	caseID id.CaseID
	agent  string
}

// ThrottleStore is an in-memory store.ThrottleStore.
type ThrottleStore struct {
	mu   sync.Mutex
	runs map[throttleKey]time.Time
}

func NewThrottleStore() *ThrottleStore {
	return &ThrottleStore{runs: make(map[throttleKey]time.Time)}
}

func (s *ThrottleStore) LastRun(_ context.Context, tenantID id.TenantID, caseID id.CaseID, agentName string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.runs[throttleKey{tenantID, caseID, agentName}]
	return at, ok, nil
}

func (s *ThrottleStore) MarkRun(_ context.Context, tenantID id.TenantID, caseID id.CaseID, agentName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[throttleKey{tenantID, caseID, agentName}] = at
	return nil
}
