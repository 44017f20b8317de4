package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/handler"
	"github.com/m2b-ebook/api/internal/service"
)

// --- Mocks ---

type mockQuerier struct {
	listFn func(ctx context.Context, p service.ListParams) (*service.ListResult, error)
	getFn  func(ctx context.Context, orderID string) (database.Order, error)
	eachFn func(ctx context.Context, status, search string, fn func(database.Order) error) error
}

func (m *mockQuerier) List(ctx context.Context, p service.ListParams) (*service.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, p)
	}
	return &service.ListResult{Orders: []database.Order{}}, nil
}

func (m *mockQuerier) Get(ctx context.Context, orderID string) (database.Order, error) {
	if m.getFn != nil {
		return m.getFn(ctx, orderID)
	}
	return database.Order{}, database.ErrNotFound
}

func (m *mockQuerier) Each(ctx context.Context, status, search string, fn func(database.Order) error) error {
	if m.eachFn != nil {
		return m.eachFn(ctx, status, search, fn)
	}
	return nil
}

type mockLifecycle struct {
	approveFn func(ctx context.Context, orderID string) (*service.VerifyResult, error)
	rejectFn  func(ctx context.Context, orderID string) (*service.VerifyResult, error)
	remindFn  func(ctx context.Context, orderID string) (*service.VerifyResult, error)
	addNoteFn func(ctx context.Context, orderID, note string) (database.Order, error)
	deleteFn  func(ctx context.Context, orderID string) error
}

func (m *mockLifecycle) Approve(ctx context.Context, orderID string) (*service.VerifyResult, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, orderID)
	}
	return &service.VerifyResult{}, nil
}

func (m *mockLifecycle) Reject(ctx context.Context, orderID string) (*service.VerifyResult, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, orderID)
	}
	return &service.VerifyResult{}, nil
}

func (m *mockLifecycle) Remind(ctx context.Context, orderID string) (*service.VerifyResult, error) {
	if m.remindFn != nil {
		return m.remindFn(ctx, orderID)
	}
	return &service.VerifyResult{}, nil
}

func (m *mockLifecycle) AddNote(ctx context.Context, orderID, note string) (database.Order, error) {
	if m.addNoteFn != nil {
		return m.addNoteFn(ctx, orderID, note)
	}
	return database.Order{OrderID: orderID}, nil
}

func (m *mockLifecycle) Delete(ctx context.Context, orderID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, orderID)
	}
	return nil
}

// --- Helpers ---

func testOrder(id, status string) database.Order {
	return database.Order{
		ID:              1,
		OrderID:         id,
		BuyerName:       "Siti Rahma",
		BuyerEmail:      "siti@example.com",
		BuyerWhatsapp:   "6281234567890",
		BuyerCity:       "Bandung",
		PurchasePurpose: "Belajar",
		Amount:          49000,
		PaymentStatus:   status,
		CreatedAt:       time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC),
	}
}

func setupOrderRouter(q *mockQuerier, l *mockLifecycle) *chi.Mux {
	h := handler.NewOrderHandler(q, l)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func getPath(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// --- List tests ---

func TestListOrders(t *testing.T) {
	var got service.ListParams
	q := &mockQuerier{
		listFn: func(ctx context.Context, p service.ListParams) (*service.ListResult, error) {
			got = p
			return &service.ListResult{
				Orders: []database.Order{testOrder("M2B-20261019-AAA111", "pending")},
				Stats:  database.OrderStats{Total: 7, Pending: 3, Verified: 4, Revenue: 196000},
				Pagination: service.Pagination{
					Page: 2, PerPage: 5, Total: 6, TotalPages: 2,
				},
			}, nil
		},
	}
	router := setupOrderRouter(q, &mockLifecycle{})

	rr := getPath(t, router, "/orders?status=pending&search=siti&page=2&per_page=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got.Status != "pending" || got.Search != "siti" || got.Page != 2 || got.PerPage != 5 {
		t.Errorf("params: got %+v", got)
	}

	resp := decodeResponse(t, rr)
	orders, ok := resp["orders"].([]interface{})
	if !ok || len(orders) != 1 {
		t.Fatalf("orders: got %v", resp["orders"])
	}
	first := orders[0].(map[string]interface{})
	if first["order_id"] != "M2B-20261019-AAA111" {
		t.Errorf("order_id: got %v", first["order_id"])
	}
	if first["status_label"] != "Menunggu Bayar" {
		t.Errorf("status_label: got %v", first["status_label"])
	}
	if first["notes"] != nil || first["verified_at"] != nil {
		t.Errorf("null fields: notes=%v verified_at=%v", first["notes"], first["verified_at"])
	}

	stats := resp["stats"].(map[string]interface{})
	if stats["revenue"] != float64(196000) || stats["verified"] != float64(4) {
		t.Errorf("stats: got %v", stats)
	}
	pagination := resp["pagination"].(map[string]interface{})
	if pagination["total_pages"] != float64(2) || pagination["per_page"] != float64(5) {
		t.Errorf("pagination: got %v", pagination)
	}
}

func TestListOrders_BadPagingFallsBackToDefaults(t *testing.T) {
	var got service.ListParams
	q := &mockQuerier{
		listFn: func(ctx context.Context, p service.ListParams) (*service.ListResult, error) {
			got = p
			return &service.ListResult{Orders: []database.Order{}}, nil
		},
	}
	router := setupOrderRouter(q, &mockLifecycle{})

	rr := getPath(t, router, "/orders?page=abc&per_page=")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got.Page != 0 || got.PerPage != 0 {
		t.Errorf("params: got %+v, want zero paging", got)
	}
	resp := decodeResponse(t, rr)
	if orders, ok := resp["orders"].([]interface{}); !ok || len(orders) != 0 {
		t.Errorf("orders: got %v, want []", resp["orders"])
	}
}

func TestListOrders_SingleOrder(t *testing.T) {
	verifiedAt := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	q := &mockQuerier{
		getFn: func(ctx context.Context, orderID string) (database.Order, error) {
			if orderID != "M2B-20261019-AAA111" {
				return database.Order{}, database.ErrNotFound
			}
			o := testOrder(orderID, "verified")
			o.Notes = pgtype.Text{String: "\n[2026-10-19 10:00] lunas", Valid: true}
			o.VerifiedAt = pgtype.Timestamptz{Time: verifiedAt, Valid: true}
			return o, nil
		},
	}
	router := setupOrderRouter(q, &mockLifecycle{})

	rr := getPath(t, router, "/orders?id=M2B-20261019-AAA111")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	order := decodeResponse(t, rr)["order"].(map[string]interface{})
	if order["notes"] != "\n[2026-10-19 10:00] lunas" {
		t.Errorf("notes: got %v", order["notes"])
	}
	if order["verified_at"] != verifiedAt.Format(time.RFC3339) {
		t.Errorf("verified_at: got %v", order["verified_at"])
	}

	rr = getPath(t, router, "/orders?id=M2B-20261019-ZZZ999")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListOrders_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", &service.ValidationError{Field: "status", Message: "is not a known status"}, http.StatusBadRequest},
		{"store down", fmt.Errorf("%w: count orders: %w", service.ErrUpstreamUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{
				listFn: func(ctx context.Context, p service.ListParams) (*service.ListResult, error) {
					return nil, tt.err
				},
			}
			rr := getPath(t, setupOrderRouter(q, &mockLifecycle{}), "/orders?status=refunded")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			resp := decodeResponse(t, rr)
			if resp["success"] != false {
				t.Errorf("success: got %v, want false", resp["success"])
			}
		})
	}
}

// --- Action tests ---

func TestOrderAction_AddNote(t *testing.T) {
	var gotID, gotNote string
	l := &mockLifecycle{
		addNoteFn: func(ctx context.Context, orderID, note string) (database.Order, error) {
			gotID, gotNote = orderID, note
			o := testOrder(orderID, "pending")
			o.Notes = pgtype.Text{String: "\n[2026-10-19 09:05] " + note, Valid: true}
			return o, nil
		},
	}
	router := setupOrderRouter(&mockQuerier{}, l)

	rr := postJSON(t, router, "/orders", map[string]string{
		"action":   "add_note",
		"order_id": "M2B-20261019-AAA111",
		"note":     "transfer diterima",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotID != "M2B-20261019-AAA111" || gotNote != "transfer diterima" {
		t.Errorf("called with (%q, %q)", gotID, gotNote)
	}
	resp := decodeResponse(t, rr)
	if resp["success"] != true || resp["message"] == "" {
		t.Errorf("response: got %v", resp)
	}
}

func TestOrderAction_Delete(t *testing.T) {
	deleted := map[string]bool{"M2B-20261019-AAA111": false}
	l := &mockLifecycle{
		deleteFn: func(ctx context.Context, orderID string) error {
			if done, ok := deleted[orderID]; !ok || done {
				return database.ErrNotFound
			}
			deleted[orderID] = true
			return nil
		},
	}
	router := setupOrderRouter(&mockQuerier{}, l)
	body := map[string]string{"action": "delete", "order_id": "M2B-20261019-AAA111"}

	rr := postJSON(t, router, "/orders", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("first delete: got %d, want %d", rr.Code, http.StatusOK)
	}
	rr = postJSON(t, router, "/orders", body)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestOrderAction_BadRequests(t *testing.T) {
	l := &mockLifecycle{
		addNoteFn: func(ctx context.Context, orderID, note string) (database.Order, error) {
			return database.Order{}, &service.ValidationError{Field: "note", Message: "is required"}
		},
	}
	router := setupOrderRouter(&mockQuerier{}, l)

	tests := []struct {
		name string
		body interface{}
	}{
		{"unknown action", map[string]string{"action": "archive", "order_id": "M2B-20261019-AAA111"}},
		{"missing action", map[string]string{"order_id": "M2B-20261019-AAA111"}},
		{"empty note", map[string]string{"action": "add_note", "order_id": "M2B-20261019-AAA111"}},
		{"not an object", "delete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, router, "/orders", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}
