// Package publisher emits audit events to an audit.Store, either synchronously
// or through a bounded async buffer.
//
// Synchronous mode blocks the caller until the store accepts the event; use it
// for compliance-significant actions where the business operation must not
// proceed on audit failure. Async mode trades delivery guarantees for latency:
// a full buffer drops the event rather than blocking the request path.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "boreal/pkg/domain"
	audit "boreal/pkg/platform/audit"
)

// ErrBufferFull is returned in async mode when the buffer cannot accept more events.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes audit events to a store.
type Publisher struct {
	store audit.Store

	buffer  chan audit.Event
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async mode with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, size)
	}
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		// Background persistence: a fresh context so request cancellation
		// does not lose already-buffered events.
		_ = p.store.Append(context.Background(), event)
	}
}

// Emit records an audit event. Sets the timestamp if the caller left it zero.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns events recorded for a tenant.
func (p *Publisher) List(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error) {
	return p.store.ListByTenant(ctx, tenantID)
}

// Close drains the async buffer and stops the background worker.
// Safe to call multiple times.
func (p *Publisher) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
		p.wg.Wait()
	}
	return nil
}
