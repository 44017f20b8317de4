package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/enum"
	"github.com/m2b-ebook/api/internal/events"
	"github.com/m2b-ebook/api/internal/notify"
)

// allowedTransitions defines valid status transitions.
var allowedTransitions = map[string][]string{
	enum.PaymentStatusPending: {enum.PaymentStatusVerified, enum.PaymentStatusFailed},
}

// isAllowedTransition checks if a status transition is valid.
func isAllowedTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const maxNoteLen = 2000

// LifecycleConfig holds the lifecycle settings taken from config.
type LifecycleConfig struct {
	EbookURL      string
	Links         notify.WhatsApp
	Location      *time.Location
	NotifyTimeout time.Duration
}

// VerifyResult reports a verify action. EmailSent is the outcome of this
// call's dispatch, or the stored flag when AlreadyProcessed.
type VerifyResult struct {
	Order            database.Order
	EmailSent        bool
	WhatsAppURL      string
	AlreadyProcessed bool
}

// LifecycleService applies operator actions to existing orders.
type LifecycleService struct {
	store     LifecycleStore
	notifier  Notifier
	publisher events.Publisher
	cfg       LifecycleConfig
	now       func() time.Time
}

func NewLifecycleService(store LifecycleStore, notifier Notifier, publisher events.Publisher, cfg LifecycleConfig) *LifecycleService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &LifecycleService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func requireOrderID(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", invalid("order_id", "is required")
	}
	return orderID, nil
}

// Approve moves a pending order to verified, then sends the e-book. The
// status change stands even when the email fails. Approving a verified
// order is a no-op.
func (s *LifecycleService) Approve(ctx context.Context, orderID string) (*VerifyResult, error) {
	order, done, err := s.begin(ctx, orderID, enum.PaymentStatusVerified)
	if err != nil || done != nil {
		return done, err
	}

	now := s.now()
	params := database.UpdateOrderStatusParams{
		OrderID:    order.OrderID,
		FromStatus: order.PaymentStatus,
		ToStatus:   enum.PaymentStatusVerified,
		VerifiedAt: pgtype.Timestamptz{Time: now, Valid: true},
		UpdatedAt:  now,
	}
	if s.cfg.EbookURL != "" {
		params.EbookUrl = pgtype.Text{String: s.cfg.EbookURL, Valid: true}
	}

	updated, err := s.store.UpdateOrderStatus(ctx, params)
	if err != nil {
		return s.lostRace(ctx, order.OrderID, enum.PaymentStatusVerified, err)
	}

	sent := s.dispatch(ctx, updated, s.notifier.EbookDelivery, "delivery")
	if sent {
		if err := s.store.SetEmailSent(ctx, database.SetEmailSentParams{OrderID: updated.OrderID, EmailSent: true}); err != nil {
			log.Printf("WARN: record email_sent for %s: %v", updated.OrderID, err)
		} else {
			updated.EmailSent = true
		}
	}

	publish(ctx, s.publisher, events.New(events.TypeOrderVerified, updated.OrderID, updated.PaymentStatus))

	return &VerifyResult{
		Order:       updated,
		EmailSent:   sent,
		WhatsAppURL: s.cfg.Links.DeliveryLink(updated, s.ebookURL(updated)),
	}, nil
}

// Reject moves a pending order to failed and notifies the buyer
// best-effort. Rejecting a failed order is a no-op.
func (s *LifecycleService) Reject(ctx context.Context, orderID string) (*VerifyResult, error) {
	order, done, err := s.begin(ctx, orderID, enum.PaymentStatusFailed)
	if err != nil || done != nil {
		return done, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		OrderID:    order.OrderID,
		FromStatus: order.PaymentStatus,
		ToStatus:   enum.PaymentStatusFailed,
		UpdatedAt:  s.now(),
	})
	if err != nil {
		return s.lostRace(ctx, order.OrderID, enum.PaymentStatusFailed, err)
	}

	sent := s.dispatch(ctx, updated, s.notifier.PaymentRejection, "rejection")
	publish(ctx, s.publisher, events.New(events.TypeOrderRejected, updated.OrderID, updated.PaymentStatus))

	return &VerifyResult{
		Order:       updated,
		EmailSent:   sent,
		WhatsAppURL: s.cfg.Links.RejectionLink(updated),
	}, nil
}

// Remind re-sends payment instructions for a pending order.
func (s *LifecycleService) Remind(ctx context.Context, orderID string) (*VerifyResult, error) {
	orderID, err := requireOrderID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeError("get order", err)
	}
	if order.PaymentStatus != enum.PaymentStatusPending {
		return nil, fmt.Errorf("%w: cannot remind a %s order", ErrInvalidTransition, order.PaymentStatus)
	}

	sent := s.dispatch(ctx, order, s.notifier.PaymentReminder, "reminder")
	publish(ctx, s.publisher, events.New(events.TypeOrderReminded, order.OrderID, order.PaymentStatus))

	return &VerifyResult{
		Order:       order,
		EmailSent:   sent,
		WhatsAppURL: s.cfg.Links.ReminderLink(order),
	}, nil
}

// AddNote appends a timestamped line to the order's notes.
func (s *LifecycleService) AddNote(ctx context.Context, orderID, note string) (database.Order, error) {
	orderID, err := requireOrderID(orderID)
	if err != nil {
		return database.Order{}, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return database.Order{}, invalid("note", "is required")
	}
	if len(note) > maxNoteLen {
		return database.Order{}, invalid("note", "is too long")
	}

	entry := fmt.Sprintf("\n[%s] %s", s.now().In(s.cfg.Location).Format("2006-01-02 15:04"), note)
	o, err := s.store.AppendOrderNote(ctx, database.AppendOrderNoteParams{OrderID: orderID, Entry: entry})
	if err != nil {
		return database.Order{}, storeError("append note", err)
	}

	publish(ctx, s.publisher, events.New(events.TypeOrderNoteAdded, o.OrderID, o.PaymentStatus))
	return o, nil
}

// Delete removes the order permanently.
func (s *LifecycleService) Delete(ctx context.Context, orderID string) error {
	orderID, err := requireOrderID(orderID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return storeError("delete order", err)
	}
	publish(ctx, s.publisher, events.New(events.TypeOrderDeleted, orderID, ""))
	return nil
}

// begin loads the order and decides what a move to target means for it:
// proceed (order returned), already done (result returned), or refused.
func (s *LifecycleService) begin(ctx context.Context, orderID, target string) (database.Order, *VerifyResult, error) {
	orderID, err := requireOrderID(orderID)
	if err != nil {
		return database.Order{}, nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, nil, storeError("get order", err)
	}
	if order.PaymentStatus == target {
		return order, s.alreadyProcessed(order), nil
	}
	if !isAllowedTransition(order.PaymentStatus, target) {
		return order, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.PaymentStatus, target)
	}
	return order, nil, nil
}

// lostRace handles a guarded update that matched no row: the order was
// deleted or another request changed its status first.
func (s *LifecycleService) lostRace(ctx context.Context, orderID, target string, updateErr error) (*VerifyResult, error) {
	if !errors.Is(updateErr, database.ErrNotFound) {
		return nil, storeError("update status", updateErr)
	}
	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeError("get order", err)
	}
	if current.PaymentStatus == target {
		return s.alreadyProcessed(current), nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.PaymentStatus, target)
}

func (s *LifecycleService) alreadyProcessed(o database.Order) *VerifyResult {
	res := &VerifyResult{Order: o, EmailSent: o.EmailSent, AlreadyProcessed: true}
	if o.PaymentStatus == enum.PaymentStatusVerified {
		res.WhatsAppURL = s.cfg.Links.DeliveryLink(o, s.ebookURL(o))
	} else {
		res.WhatsAppURL = s.cfg.Links.RejectionLink(o)
	}
	return res
}

func (s *LifecycleService) ebookURL(o database.Order) string {
	if o.EbookUrl.Valid && o.EbookUrl.String != "" {
		return o.EbookUrl.String
	}
	return s.cfg.EbookURL
}

// dispatch sends one email bounded by NotifyTimeout. The operator leaving
// the page does not abort it.
func (s *LifecycleService) dispatch(ctx context.Context, o database.Order, send func(context.Context, database.Order) error, kind string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()
	if err := send(ctx, o); err != nil {
		log.Printf("WARN: %s email for %s: %v", kind, o.OrderID, err)
		return false
	}
	return true
}
