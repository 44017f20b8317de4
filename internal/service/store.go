package service

import (
	"context"
	"log"
	"time"

	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/events"
)

// IntakeStore persists new orders.
// Satisfied by *database.Queries and *gormstore.Store.
type IntakeStore interface {
	InsertOrder(ctx context.Context, arg database.InsertOrderParams) (database.Order, error)
}

// QueryStore reads orders and aggregate counters.
// Satisfied by *database.Queries and *gormstore.Store.
type QueryStore interface {
	GetOrder(ctx context.Context, orderID string) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	GetOrderStats(ctx context.Context) (database.OrderStats, error)
}

// LifecycleStore mutates existing orders.
// Satisfied by *database.Queries and *gormstore.Store.
type LifecycleStore interface {
	GetOrder(ctx context.Context, orderID string) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SetEmailSent(ctx context.Context, arg database.SetEmailSentParams) error
	AppendOrderNote(ctx context.Context, arg database.AppendOrderNoteParams) (database.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// OrderStore is the full Order Store.
type OrderStore interface {
	IntakeStore
	QueryStore
	LifecycleStore
}

// Notifier sends buyer emails. Satisfied by *notify.EmailNotifier.
type Notifier interface {
	OrderConfirmation(ctx context.Context, o database.Order) error
	EbookDelivery(ctx context.Context, o database.Order) error
	PaymentRejection(ctx context.Context, o database.Order) error
	PaymentReminder(ctx context.Context, o database.Order) error
}

const (
	eventTimeout         = 2 * time.Second
	defaultNotifyTimeout = 15 * time.Second
)

// publish delivers ev best-effort. Request cancellation does not abort it.
func publish(ctx context.Context, p events.Publisher, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		log.Printf("WARN: publish %s for %s: %v", ev.Type, ev.OrderID, err)
	}
}
