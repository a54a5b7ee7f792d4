// Package memory provides in-memory implementations of the case stores for
// tests and local development. All methods are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"

	"boreal/internal/casefile/models"
	id "boreal/pkg/domain"
	"boreal/pkg/platform/sentinel"
)

type caseKey struct {
	tenant id.TenantID
	caseID id.CaseID
}

// CaseStore is an in-memory store.CaseStore.
type CaseStore struct {
	mu    sync.RWMutex
	cases map[caseKey]*models.Case
}

func NewCaseStore() *CaseStore {
	return &CaseStore{cases: make(map[caseKey]*models.Case)}
}

func (s *CaseStore) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := caseKey{c.TenantID, c.ID}
	if _, ok := s.cases[key]; ok {
		return sentinel.ErrConflict
	}
	cp := *c
	s.cases[key] = &cp
	return nil
}

func (s *CaseStore) Get(_ context.Context, tenantID id.TenantID, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseKey{tenantID, caseID}]
	if !ok || c.Deleted {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CaseStore) Update(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := caseKey{c.TenantID, c.ID}
	existing, ok := s.cases[key]
	if !ok || existing.Deleted {
		return sentinel.ErrNotFound
	}
	cp := *c
	s.cases[key] = &cp
	return nil
}

func (s *CaseStore) List(_ context.Context, tenantID id.TenantID) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Case
	for key, c := range s.cases {
		if key.tenant != tenantID || c.Deleted {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *CaseStore) SoftDelete(_ context.Context, tenantID id.TenantID, caseID id.CaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[caseKey{tenantID, caseID}]
	if !ok || c.Deleted {
		return sentinel.ErrNotFound
	}
	c.Deleted = true
	return nil
}

func (s *CaseStore) CountActive(_ context.Context, tenantID id.TenantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key, c := range s.cases {
		if key.tenant == tenantID && !c.Deleted {
			count++
		}
	}
	return count, nil
}

// SnapshotStore is an in-memory store.SnapshotStore.
type SnapshotStore struct {
	mu        sync.Mutex
	snapshots map[caseKey][]*models.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[caseKey][]*models.Snapshot)}
}

func (s *SnapshotStore) Append(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := caseKey{snap.TenantID, snap.CaseID}
	for _, existing := range s.snapshots[key] {
		if existing.Version == snap.Version {
			return sentinel.ErrConflict
		}
	}
	cp := *snap
	s.snapshots[key] = append(s.snapshots[key], &cp)
	return nil
}

func (s *SnapshotStore) NextVersion(_ context.Context, tenantID id.TenantID, caseID id.CaseID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, snap := range s.snapshots[caseKey{tenantID, caseID}] {
		if snap.Version > max {
			max = snap.Version
		}
	}
	return max + 1, nil
}

func (s *SnapshotStore) List(_ context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.snapshots[caseKey{tenantID, caseID}]
	out := make([]*models.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		cp := *snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// EventStore is an in-memory store.EventStore.
type EventStore struct {
	mu     sync.Mutex
	events map[caseKey][]*models.CaseEvent
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[caseKey][]*models.CaseEvent)}
}

func (s *EventStore) Append(_ context.Context, e *models.CaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	key := caseKey{e.TenantID, e.CaseID}
	s.events[key] = append(s.events[key], &cp)
	return nil
}

func (s *EventStore) List(_ context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.CaseEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[caseKey{tenantID, caseID}]
	out := make([]*models.CaseEvent, 0, len(events))
	for _, e := range events {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// DocumentStore is an in-memory store.DocumentStore.
type DocumentStore struct {
	mu   sync.Mutex
	docs map[caseKey][]*models.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[caseKey][]*models.Document)}
}

func (s *DocumentStore) Add(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	key := caseKey{d.TenantID, d.CaseID}
	s.docs[key] = append(s.docs[key], &cp)
	return nil
}

func (s *DocumentStore) List(_ context.Context, tenantID id.TenantID, caseID id.CaseID) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.docs[caseKey{tenantID, caseID}]
	out := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

// TenantStore is an in-memory store.TenantStore.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
}

func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[id.TenantID]*models.Tenant)}
}

func (s *TenantStore) Create(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *TenantStore) Get(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TenantStore) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}
