// Package outbox relays committed outbox rows to the Kafka audit stream.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"boreal/pkg/platform/circuit"
)

// Sink receives relayed outbox payloads. Implemented by the kafka publisher.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Relay polls the outbox table and forwards unpublished entries to the sink.
// Entries are marked published only after the sink acknowledges, so delivery
// is at-least-once; consumers deduplicate on event ID.
type Relay struct {
	db       *sql.DB
	sink     Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

// WithBatchSize overrides the per-poll batch size.
func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batch = n }
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// New creates an outbox relay.
func New(db *sql.DB, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		db:       db,
		sink:     sink,
		breaker:  circuit.New("audit-relay"),
		logger:   slog.Default(),
		interval: time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
			}
		}
	}
}

type entry struct {
	id          uuid.UUID
	aggregateID string
	payload     []byte
}

func (r *Relay) relayBatch(ctx context.Context) error {
	// While the breaker is open, relay a single probe entry per poll instead
	// of the full batch. Unpublished rows wait in the outbox.
	limit := r.batch
	if r.breaker.IsOpen() {
		limit = 1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.aggregateID, &e.payload); err != nil {
			return fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox: %w", err)
	}

	for _, e := range entries {
		if err := r.sink.Publish(ctx, e.aggregateID, e.payload); err != nil {
			if _, change := r.breaker.RecordFailure(); change.Opened {
				r.logger.WarnContext(ctx, "audit sink circuit opened")
			}
			// Stop the batch; unpublished entries are retried next poll.
			return err
		}
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.logger.InfoContext(ctx, "audit sink circuit closed")
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = $2`,
			time.Now(), e.id,
		); err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return nil
}
