package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/events"
	"github.com/m2b-ebook/api/internal/notify"
)

var wib = time.FixedZone("WIB", 7*60*60)

func validIntake() IntakeRequest {
	return IntakeRequest{
		Name:     "  Budi Santoso ",
		Email:    "budi@example.com",
		WhatsApp: "0812-3456-7890",
		City:     "Surabaya",
		Purpose:  "umkm",
	}
}

// echoInsert returns the inserted row as stored.
func echoInsert(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
	return database.Order{
		ID:              1,
		OrderID:         arg.OrderID,
		BuyerName:       arg.BuyerName,
		BuyerEmail:      arg.BuyerEmail,
		BuyerWhatsapp:   arg.BuyerWhatsapp,
		BuyerCity:       arg.BuyerCity,
		PurchasePurpose: arg.PurchasePurpose,
		Amount:          arg.Amount,
		PaymentStatus:   "pending",
		CreatedAt:       arg.CreatedAt,
	}, nil
}

func newTestIntake(store *mockStore) (*IntakeService, *mockNotifier, *mockPublisher) {
	n := &mockNotifier{}
	p := &mockPublisher{}
	svc := NewIntakeService(store, n, p, IntakeConfig{
		Price:    49000,
		Links:    notify.WhatsApp{AdminNumber: "6282261846811", ProductName: "E-book Ekspor Impor v2.0"},
		Location: wib,
	})
	return svc, n, p
}

func TestNewOrderIDFormat(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 30, 0, 0, wib)
	id, err := NewOrderID(now)
	if err != nil {
		t.Fatalf("NewOrderID: %v", err)
	}
	if !regexp.MustCompile(`^M2B-20261019-[0-9A-F]{6}$`).MatchString(id) {
		t.Errorf("order id %q does not match format", id)
	}
}

func TestNewOrderIDUniqueWithinProcess(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, wib)
	const calls = 5000

	seen := make(map[string]bool, calls)
	for i := 0; i < calls; i++ {
		id, err := NewOrderID(now)
		if err != nil {
			t.Fatalf("NewOrderID: %v", err)
		}
		if seen[id] {
			t.Fatalf("order id %q issued twice after %d calls", id, i)
		}
		seen[id] = true
	}
}

func TestSubmit_OrderIDsNeverRepeat(t *testing.T) {
	store := &mockStore{insertOrderFn: echoInsert}
	svc, _, _ := newTestIntake(store)

	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		res, err := svc.Submit(context.Background(), validIntake())
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if seen[res.OrderID] {
			t.Fatalf("order id %q returned twice", res.OrderID)
		}
		seen[res.OrderID] = true
	}
	svc.Wait()
}

func TestSubmit_Success(t *testing.T) {
	var inserted database.InsertOrderParams
	store := &mockStore{
		insertOrderFn: func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
			inserted = arg
			return echoInsert(ctx, arg)
		},
	}
	svc, n, p := newTestIntake(store)

	res, err := svc.Submit(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()

	if !res.DBSaved {
		t.Error("expected db_saved=true")
	}
	if res.OrderID != inserted.OrderID {
		t.Errorf("order id: got %q, want %q", res.OrderID, inserted.OrderID)
	}
	if inserted.BuyerName != "Budi Santoso" {
		t.Errorf("name not trimmed: %q", inserted.BuyerName)
	}
	if inserted.BuyerWhatsapp != "6281234567890" {
		t.Errorf("whatsapp: got %q, want 6281234567890", inserted.BuyerWhatsapp)
	}
	if inserted.PurchasePurpose != "Scale Up UMKM ke Pasar Global" {
		t.Errorf("purpose: got %q", inserted.PurchasePurpose)
	}
	if inserted.Amount != 49000 {
		t.Errorf("amount: got %d, want 49000", inserted.Amount)
	}

	u, err := url.Parse(res.WhatsAppURL)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Path != "/6282261846811" {
		t.Errorf("link should target admin, got %q", u.Path)
	}
	text := u.Query().Get("text")
	if !strings.Contains(text, res.OrderID) || !strings.Contains(text, "Rp 49.000") {
		t.Errorf("link text missing order summary:\n%s", text)
	}

	if got := n.kinds(); len(got) != 1 || got[0] != "confirmation" {
		t.Errorf("emails: got %v, want [confirmation]", got)
	}
	if got := p.types(); len(got) != 1 || got[0] != events.TypeOrderCreated {
		t.Errorf("events: got %v", got)
	}
}

func TestSubmit_EmptyPurpose(t *testing.T) {
	var inserted database.InsertOrderParams
	store := &mockStore{
		insertOrderFn: func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
			inserted = arg
			return echoInsert(ctx, arg)
		},
	}
	svc, _, _ := newTestIntake(store)

	req := validIntake()
	req.Purpose = " "
	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()
	if inserted.PurchasePurpose != "Tidak dipilih" {
		t.Errorf("purpose: got %q, want %q", inserted.PurchasePurpose, "Tidak dipilih")
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*IntakeRequest)
		field string
	}{
		{"missing name", func(r *IntakeRequest) { r.Name = "  " }, "name"},
		{"missing email", func(r *IntakeRequest) { r.Email = "" }, "email"},
		{"malformed email", func(r *IntakeRequest) { r.Email = "budi@" }, "email"},
		{"email with display name", func(r *IntakeRequest) { r.Email = "Budi <budi@example.com>" }, "email"},
		{"email without dotted domain", func(r *IntakeRequest) { r.Email = "budi@localhost" }, "email"},
		{"missing whatsapp", func(r *IntakeRequest) { r.WhatsApp = "" }, "whatsapp"},
		{"short whatsapp", func(r *IntakeRequest) { r.WhatsApp = "0812" }, "whatsapp"},
		{"missing city", func(r *IntakeRequest) { r.City = "" }, "city"},
		{"long name", func(r *IntakeRequest) { r.Name = strings.Repeat("a", 256) }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{
				insertOrderFn: func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
					t.Fatal("store should not be called")
					return database.Order{}, nil
				},
			}
			svc, n, _ := newTestIntake(store)

			req := validIntake()
			tt.mod(&req)
			_, err := svc.Submit(context.Background(), req)

			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("field: got %+v, want %q", ve, tt.field)
			}
			if len(n.kinds()) != 0 {
				t.Error("no email should be sent")
			}
		})
	}
}

func TestSubmit_RetriesDuplicateOrderID(t *testing.T) {
	calls := 0
	store := &mockStore{
		insertOrderFn: func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
			calls++
			if calls < 3 {
				return database.Order{}, database.ErrDuplicateKey
			}
			return echoInsert(ctx, arg)
		},
	}
	svc, _, _ := newTestIntake(store)
	seq := 0
	svc.newOrderID = func(time.Time) (string, error) {
		seq++
		return fmt.Sprintf("M2B-20261019-00000%d", seq), nil
	}

	res, err := svc.Submit(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()

	if calls != 3 {
		t.Errorf("insert calls: got %d, want 3", calls)
	}
	if !res.DBSaved || res.OrderID != "M2B-20261019-000003" {
		t.Errorf("got %+v, want saved M2B-20261019-000003", res)
	}
}

func TestSubmit_RetriesExhausted(t *testing.T) {
	calls := 0
	store := &mockStore{
		insertOrderFn: func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
			calls++
			return database.Order{}, database.ErrDuplicateKey
		},
	}
	svc, n, p := newTestIntake(store)
	seq := 0
	svc.newOrderID = func(time.Time) (string, error) {
		seq++
		return fmt.Sprintf("M2B-20261019-00000%d", seq), nil
	}

	res, err := svc.Submit(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()

	if calls != maxOrderIDRetries {
		t.Errorf("insert calls: got %d, want %d", calls, maxOrderIDRetries)
	}
	if res.DBSaved {
		t.Error("expected db_saved=false")
	}
	if res.OrderID == "" || res.OrderID == "M2B-20261019-000003" {
		t.Errorf("expected a fresh unused order id, got %q", res.OrderID)
	}
	if len(n.kinds()) != 0 || len(p.types()) != 0 {
		t.Error("unsaved orders must not trigger email or events")
	}
}

func TestSubmit_StoreDownDegrades(t *testing.T) {
	store := &mockStore{
		insertOrderFn: func(ctx context.Context, arg database.InsertOrderParams) (database.Order, error) {
			return database.Order{}, errors.New("connection refused")
		},
	}
	svc, n, _ := newTestIntake(store)

	res, err := svc.Submit(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("buyer must not see store failures: %v", err)
	}
	svc.Wait()

	if res.DBSaved {
		t.Error("expected db_saved=false")
	}
	if res.OrderID == "" || res.WhatsAppURL == "" {
		t.Errorf("expected usable id and link, got %+v", res)
	}
	if len(n.kinds()) != 0 {
		t.Error("confirmation must only be sent for saved orders")
	}
}

func TestSubmit_EmailFailureDoesNotFail(t *testing.T) {
	store := &mockStore{insertOrderFn: echoInsert}
	svc, n, _ := newTestIntake(store)
	n.err = errors.New("smtp down")

	res, err := svc.Submit(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.Wait()
	if !res.DBSaved {
		t.Error("expected db_saved=true")
	}
}
