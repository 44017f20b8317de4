package service

import (
	"context"
	"sync"

	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/events"
)

// --- Mock implementations ---

// mockStore implements OrderStore with configurable behavior.
type mockStore struct {
	insertOrderFn       func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error)
	getOrderFn          func(ctx context.Context, orderID string) (database.Order, error)
	listOrdersFn        func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	countOrdersFn       func(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	getOrderStatsFn     func(ctx context.Context) (database.OrderStats, error)
	updateOrderStatusFn func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	setEmailSentFn      func(ctx context.Context, arg database.SetEmailSentParams) error
	appendOrderNoteFn   func(ctx context.Context, arg database.AppendOrderNoteParams) (database.Order, error)
	deleteOrderFn       func(ctx context.Context, orderID string) error
}

func (m *mockStore) InsertOrder(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
	return m.insertOrderFn(ctx, arg)
}
func (m *mockStore) GetOrder(ctx context.Context, orderID string) (database.Order, error) {
	return m.getOrderFn(ctx, orderID)
}
func (m *mockStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return m.listOrdersFn(ctx, arg)
}
func (m *mockStore) CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
	return m.countOrdersFn(ctx, arg)
}
func (m *mockStore) GetOrderStats(ctx context.Context) (database.OrderStats, error) {
	return m.getOrderStatsFn(ctx)
}
func (m *mockStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockStore) SetEmailSent(ctx context.Context, arg database.SetEmailSentParams) error {
	return m.setEmailSentFn(ctx, arg)
}
func (m *mockStore) AppendOrderNote(ctx context.Context, arg database.AppendOrderNoteParams) (database.Order, error) {
	return m.appendOrderNoteFn(ctx, arg)
}
func (m *mockStore) DeleteOrder(ctx context.Context, orderID string) error {
	return m.deleteOrderFn(ctx, orderID)
}

// mockNotifier records which emails were sent. err applies to every kind.
type mockNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockNotifier) record(kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, kind)
	return m.err
}

func (m *mockNotifier) OrderConfirmation(ctx context.Context, o database.Order) error {
	return m.record("confirmation")
}
func (m *mockNotifier) EbookDelivery(ctx context.Context, o database.Order) error {
	return m.record("delivery")
}
func (m *mockNotifier) PaymentRejection(ctx context.Context, o database.Order) error {
	return m.record("rejection")
}
func (m *mockNotifier) PaymentReminder(ctx context.Context, o database.Order) error {
	return m.record("reminder")
}

func (m *mockNotifier) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}
