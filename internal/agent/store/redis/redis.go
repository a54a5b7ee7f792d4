// Package redis implements the agent throttle store on Redis. Timestamps
// are stored as RFC 3339 strings keyed by tenant, case and agent.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "boreal/pkg/domain"
)

// ThrottleStore is a Redis-backed store.ThrottleStore.
type ThrottleStore struct {
	client *redis.Client
}

func NewThrottleStore(client *redis.Client) *ThrottleStore {
	return &ThrottleStore{client: client}
}

func key(tenantID id.TenantID, caseID id.CaseID, agentName string) string {
	return fmt.Sprintf("agent:lastrun:%s:%s:%s", tenantID, caseID, agentName)
}

func (s *ThrottleStore) LastRun(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, agentName string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, key(tenantID, caseID, agentName)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last run: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last run: %w", err)
	}
	return at, true, nil
}

func (s *ThrottleStore) MarkRun(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, agentName string, at time.Time) error {
	if err := s.client.Set(ctx, key(tenantID, caseID, agentName), at.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("mark run: %w", err)
	}
	return nil
}
