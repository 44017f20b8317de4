package service

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/enum"
	"github.com/m2b-ebook/api/internal/events"
	"github.com/m2b-ebook/api/internal/notify"
)

const maxOrderIDRetries = 3

const (
	minWhatsAppDigits = 8
	maxWhatsAppDigits = 15
	maxTextLen        = 255
	maxCityLen        = 128
)

// IntakeRequest is the raw buyer form.
type IntakeRequest struct {
	Name     string
	Email    string
	WhatsApp string
	City     string
	Purpose  string
}

// IntakeResult is what the buyer gets back. DBSaved is false when the
// order could not be persisted; OrderID and WhatsAppURL are still usable.
type IntakeResult struct {
	OrderID     string
	WhatsAppURL string
	DBSaved     bool
}

// IntakeConfig holds the intake settings taken from config.
type IntakeConfig struct {
	Price         int64
	Links         notify.WhatsApp
	Location      *time.Location
	NotifyTimeout time.Duration
}

// IntakeService validates and records new orders.
type IntakeService struct {
	store     IntakeStore
	notifier  Notifier
	publisher events.Publisher
	cfg       IntakeConfig

	now        func() time.Time
	newOrderID func(time.Time) (string, error)

	// tracks background confirmation emails
	wg sync.WaitGroup
}

func NewIntakeService(store IntakeStore, notifier Notifier, publisher events.Publisher, cfg IntakeConfig) *IntakeService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &IntakeService{
		store:      store,
		notifier:   notifier,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
		newOrderID: NewOrderID,
	}
}

// Submit validates the form, stores a pending order and queues the
// confirmation email. Only validation errors and ID generation failures are
// returned; store outages degrade to DBSaved=false.
func (s *IntakeService) Submit(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	req, err := ValidateIntake(req)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.cfg.Location)
	order := database.Order{
		BuyerName:       req.Name,
		BuyerEmail:      req.Email,
		BuyerWhatsapp:   req.WhatsApp,
		BuyerCity:       req.City,
		PurchasePurpose: enum.PurposeLabel(req.Purpose),
		Amount:          s.cfg.Price,
		PaymentStatus:   enum.PaymentStatusPending,
		CreatedAt:       now,
	}

	saved := false
	for attempt := 0; attempt < maxOrderIDRetries; attempt++ {
		if order.OrderID, err = s.newOrderID(now); err != nil {
			return nil, err
		}

		stored, err := s.store.InsertOrder(ctx, database.InsertOrderParams{
			OrderID:         order.OrderID,
			BuyerName:       order.BuyerName,
			BuyerEmail:      order.BuyerEmail,
			BuyerWhatsapp:   order.BuyerWhatsapp,
			BuyerCity:       order.BuyerCity,
			PurchasePurpose: order.PurchasePurpose,
			Amount:          order.Amount,
			CreatedAt:       order.CreatedAt,
		})
		if err == nil {
			order = stored
			saved = true
			break
		}
		if errors.Is(err, database.ErrDuplicateKey) {
			log.Printf("WARN: order id %s already taken, regenerating (attempt %d)", order.OrderID, attempt+1)
			continue
		}
		log.Printf("ERROR: intake for %s not persisted: %v", order.OrderID, storeError("insert order", err))
		break
	}

	if !saved {
		// Never hand out an ID that already belongs to another order.
		if order.OrderID, err = s.newOrderID(now); err != nil {
			return nil, err
		}
	}

	if saved {
		s.sendConfirmation(order)
		publish(ctx, s.publisher, events.New(events.TypeOrderCreated, order.OrderID, order.PaymentStatus))
	}

	return &IntakeResult{
		OrderID:     order.OrderID,
		WhatsAppURL: s.cfg.Links.IntakeLink(order),
		DBSaved:     saved,
	}, nil
}

func (s *IntakeService) sendConfirmation(o database.Order) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.OrderConfirmation(ctx, o); err != nil {
			log.Printf("WARN: confirmation email for %s: %v", o.OrderID, err)
		}
	}()
}

// Wait blocks until queued confirmation emails have finished.
func (s *IntakeService) Wait() {
	s.wg.Wait()
}

// ValidateIntake trims every field, checks required ones and normalizes
// email and WhatsApp.
func ValidateIntake(req IntakeRequest) (IntakeRequest, error) {
	out := IntakeRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		WhatsApp: strings.TrimSpace(req.WhatsApp),
		City:     strings.TrimSpace(req.City),
		Purpose:  strings.TrimSpace(req.Purpose),
	}

	switch {
	case out.Name == "":
		return out, invalid("name", "is required")
	case utf8.RuneCountInString(out.Name) > maxTextLen:
		return out, invalid("name", "is too long")
	case out.Email == "":
		return out, invalid("email", "is required")
	case out.WhatsApp == "":
		return out, invalid("whatsapp", "is required")
	case out.City == "":
		return out, invalid("city", "is required")
	case utf8.RuneCountInString(out.City) > maxCityLen:
		return out, invalid("city", "is too long")
	case utf8.RuneCountInString(out.Purpose) > maxTextLen:
		return out, invalid("purpose", "is too long")
	}

	email, err := normalizeEmail(out.Email)
	if err != nil {
		return out, err
	}
	out.Email = email

	phone := notify.NormalizePhone(out.WhatsApp)
	if len(phone) < minWhatsAppDigits || len(phone) > maxWhatsAppDigits {
		return out, invalid("whatsapp", "is not a valid phone number")
	}
	out.WhatsApp = phone

	return out, nil
}

// normalizeEmail accepts a bare address only: no display name, no angle
// brackets, and a dotted domain.
func normalizeEmail(s string) (string, error) {
	if len(s) > maxTextLen {
		return "", invalid("email", "is too long")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", invalid("email", "is not a valid address")
	}
	at := strings.LastIndexByte(s, '@')
	if domain := s[at+1:]; !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", invalid("email", "is not a valid address")
	}
	return s, nil
}
