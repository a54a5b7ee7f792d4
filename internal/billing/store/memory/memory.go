// Package memory provides an in-memory usage store for tests and local
// development.
package memory

import (
	"context"
	"sync"

	id "boreal/pkg/domain"
)

type usageKey struct {
	tenant id.TenantID
	event  string
	month  string
}

// UsageStore is an in-memory billing.UsageStore.
type UsageStore struct {
	mu       sync.Mutex
	counters map[usageKey]int64
}

func NewUsageStore() *UsageStore {
	return &UsageStore{counters: make(map[usageKey]int64)}
}

func (s *UsageStore) Increment(_ context.Context, tenantID id.TenantID, event, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[usageKey{tenantID, event, month}]++
	return nil
}

func (s *UsageStore) Count(_ context.Context, tenantID id.TenantID, event, month string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[usageKey{tenantID, event, month}], nil
}
