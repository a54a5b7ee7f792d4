// Package consumer reads the Kafka audit stream and materializes events for
// querying and monitoring.
//
// The outbox relay makes Kafka the durable audit trail; this package is the
// read side. Delivery is at-least-once, so every handler must be idempotent
// on the event ID carried in the payload.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	id "boreal/pkg/domain"
	audit "boreal/pkg/platform/audit"
)

// Message is one decoded audit record from the stream.
type Message struct {
	ID    uuid.UUID
	Event audit.Event
}

// Handler processes messages for one event category.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// payload matches the JSON written by the postgres audit store's outbox.
type payload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	TenantID  string `json:"TenantID,omitempty"`
	CaseID    string `json:"CaseID,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

func decode(value []byte) (Message, error) {
	var p payload
	if err := json.Unmarshal(value, &p); err != nil {
		return Message{}, fmt.Errorf("decode audit payload: %w", err)
	}
	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		return Message{}, fmt.Errorf("parse audit event id: %w", err)
	}

	msg := Message{
		ID: eventID,
		Event: audit.Event{
			Category:  audit.EventCategory(p.Category),
			Subject:   p.Subject,
			Action:    p.Action,
			Decision:  p.Decision,
			Reason:    p.Reason,
			RequestID: p.RequestID,
		},
	}
	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return Message{}, fmt.Errorf("parse audit timestamp: %w", err)
		}
		msg.Event.Timestamp = ts
	}
	if p.TenantID != "" {
		tenantID, err := id.ParseTenantID(p.TenantID)
		if err != nil {
			return Message{}, err
		}
		msg.Event.TenantID = tenantID
	}
	if p.CaseID != "" {
		caseID, err := id.ParseCaseID(p.CaseID)
		if err != nil {
			return Message{}, err
		}
		msg.Event.CaseID = caseID
	}
	if p.ActorID != "" {
		actorID, err := id.ParseUserID(p.ActorID)
		if err != nil {
			return Message{}, err
		}
		msg.Event.ActorID = actorID
	}
	return msg, nil
}

// Consumer polls the audit topic as part of a consumer group and dispatches
// each record through the router.
type Consumer struct {
	client *kgo.Client
	router *Router
	logger *slog.Logger
}

// New connects a group consumer to the audit topic.
func New(brokers []string, topic, group string, router *Router, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit consumer: %w", err)
	}
	return &Consumer{client: client, router: router, logger: logger}, nil
}

// Run polls until the context is cancelled. A record that cannot be decoded
// is logged and skipped; a handler error stops the run so offsets are not
// committed past the failure.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "audit fetch error",
				"topic", topic, "partition", partition, "error", err)
		})

		var handleErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg, err := decode(record.Value)
			if err != nil {
				c.logger.ErrorContext(ctx, "skipping malformed audit record",
					"offset", record.Offset, "error", err)
				return
			}
			handleErr = c.router.Handle(ctx, msg)
		})
		if handleErr != nil {
			return handleErr
		}
	}
}

// Close releases the Kafka client.
func (c *Consumer) Close() {
	c.client.Close()
}
