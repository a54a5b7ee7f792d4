// Package postgres implements the usage store on PostgreSQL via pgx. The
// counter upsert is a single statement, so concurrent increments never lose
// updates.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "boreal/pkg/domain"
)

// UsageStore is a pgx-backed billing.UsageStore.
type UsageStore struct {
	pool *pgxpool.Pool
}

func NewUsageStore(pool *pgxpool.Pool) *UsageStore {
	return &UsageStore{pool: pool}
}

func (s *UsageStore) Increment(ctx context.Context, tenantID id.TenantID, event, month string) error {
	query := `
		INSERT INTO billing_usage (tenant_id, event, month, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, event, month)
		DO UPDATE SET count = billing_usage.count + 1
	`
	if _, err := s.pool.Exec(ctx, query, tenantID.String(), event, month); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func (s *UsageStore) Count(ctx context.Context, tenantID id.TenantID, event, month string) (int64, error) {
	var count int64
	query := `SELECT count FROM billing_usage WHERE tenant_id = $1 AND event = $2 AND month = $3`
	err := s.pool.QueryRow(ctx, query, tenantID.String(), event, month).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return count, nil
}
