// Package events publishes billing domain events so downstream services can
// react to subscription changes without polling the store.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the billing synchronizer.
const (
	TypeSubscriptionUpdated  = "billing.subscription.updated"
	TypeSubscriptionCanceled = "billing.subscription.canceled"
	TypeCatalogChanged       = "billing.catalog.changed"
)

// Event represents a domain event
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Aggregate string         `json:"aggregate"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
	Version   int            `json:"version"`
}

// Publisher defines the interface for publishing events
type Publisher interface {
	// Publish publishes an event
	Publish(ctx context.Context, event *Event) error

	// Close closes the publisher
	Close() error
}

// NewEvent creates a new event
func NewEvent(eventType, aggregate string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Aggregate: aggregate,
		Data:      data,
		Timestamp: time.Now().Unix(),
		Version:   1,
	}
}

// NopPublisher discards all events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NopPublisher) Close() error                                    { return nil }
