// Package events carries order lifecycle notifications to Kafka and to
// connected admin dashboards.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types published by the order services.
const (
	TypeOrderCreated   = "order.created"
	TypeOrderVerified  = "order.verified"
	TypeOrderRejected  = "order.rejected"
	TypeOrderReminded  = "order.reminded"
	TypeOrderNoteAdded = "order.note_added"
	TypeOrderDeleted   = "order.deleted"
)

// Event is one order change.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Type    string    `json:"type"`
	OrderID string    `json:"order_id"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

func New(typ, orderID, status string) Event {
	return Event{
		ID:      uuid.New(),
		Type:    typ,
		OrderID: orderID,
		Status:  status,
		At:      time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
