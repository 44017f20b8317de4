package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/enum"
	"github.com/m2b-ebook/api/internal/service"
)

// OrderQuerier is satisfied by *service.QueryService.
type OrderQuerier interface {
	List(ctx context.Context, p service.ListParams) (*service.ListResult, error)
	Get(ctx context.Context, orderID string) (database.Order, error)
}

// OrderEditor is satisfied by *service.LifecycleService.
type OrderEditor interface {
	AddNote(ctx context.Context, orderID, note string) (database.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// OrderHandler serves the admin order table and its row actions.
type OrderHandler struct {
	query  OrderQuerier
	editor OrderEditor
}

func NewOrderHandler(query OrderQuerier, editor OrderEditor) *OrderHandler {
	return &OrderHandler{query: query, editor: editor}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Post("/orders", h.Action)
}

// --- Request / Response types ---

type orderResponse struct {
	ID              int64      `json:"id"`
	OrderID         string     `json:"order_id"`
	BuyerName       string     `json:"buyer_name"`
	BuyerEmail      string     `json:"buyer_email"`
	BuyerWhatsapp   string     `json:"buyer_whatsapp"`
	BuyerCity       string     `json:"buyer_city"`
	PurchasePurpose string     `json:"purchase_purpose"`
	Amount          int64      `json:"amount"`
	PaymentStatus   string     `json:"payment_status"`
	StatusLabel     string     `json:"status_label"`
	Notes           *string    `json:"notes"`
	EmailSent       bool       `json:"email_sent"`
	EbookURL        *string    `json:"ebook_url"`
	CreatedAt       time.Time  `json:"created_at"`
	VerifiedAt      *time.Time `json:"verified_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

type listOrdersResponse struct {
	Success    bool                `json:"success"`
	Orders     []orderResponse     `json:"orders"`
	Stats      database.OrderStats `json:"stats"`
	Pagination service.Pagination  `json:"pagination"`
}

type getOrderResponse struct {
	Success bool          `json:"success"`
	Order   orderResponse `json:"order"`
}

type orderActionRequest struct {
	Action  string `json:"action"`
	OrderID string `json:"order_id"`
	Note    string `json:"note"`
}

type orderActionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Order   *orderResponse `json:"order,omitempty"`
}

// --- Handlers ---

// List returns one page of orders plus dashboard counters, or a single
// order when ?id= is given.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		o, err := h.query.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, getOrderResponse{Success: true, Order: toOrderResponse(o)})
		return
	}

	res, err := h.query.List(r.Context(), service.ListParams{
		Status:  q.Get("status"),
		Search:  q.Get("search"),
		Page:    queryInt(q.Get("page")),
		PerPage: queryInt(q.Get("per_page")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	orders := make([]orderResponse, len(res.Orders))
	for i, o := range res.Orders {
		orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{
		Success:    true,
		Orders:     orders,
		Stats:      res.Stats,
		Pagination: res.Pagination,
	})
}

// Action applies add_note or delete to one order.
func (h *OrderHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req orderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "add_note":
		o, err := h.editor.AddNote(r.Context(), req.OrderID, req.Note)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := toOrderResponse(o)
		writeJSON(w, http.StatusOK, orderActionResponse{Success: true, Message: "note added", Order: &resp})
	case "delete":
		if err := h.editor.Delete(r.Context(), req.OrderID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderActionResponse{Success: true, Message: "order deleted"})
	default:
		writeError(w, http.StatusBadRequest, "action must be add_note or delete")
	}
}

// --- Helpers ---

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderID:         o.OrderID,
		BuyerName:       o.BuyerName,
		BuyerEmail:      o.BuyerEmail,
		BuyerWhatsapp:   o.BuyerWhatsapp,
		BuyerCity:       o.BuyerCity,
		PurchasePurpose: o.PurchasePurpose,
		Amount:          o.Amount,
		PaymentStatus:   o.PaymentStatus,
		StatusLabel:     enum.StatusLabel(o.PaymentStatus),
		EmailSent:       o.EmailSent,
		CreatedAt:       o.CreatedAt,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.EbookUrl.Valid {
		resp.EbookURL = &o.EbookUrl.String
	}
	if o.VerifiedAt.Valid {
		resp.VerifiedAt = &o.VerifiedAt.Time
	}
	if o.UpdatedAt.Valid {
		resp.UpdatedAt = &o.UpdatedAt.Time
	}
	return resp
}

// queryInt parses a paging parameter; anything unparsable means "default".
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// writeServiceError maps service and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, database.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "order already exists")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUpstreamUnavailable):
		log.Printf("ERROR: %v", err)
		writeError(w, http.StatusServiceUnavailable, "order store unavailable, try again")
	default:
		log.Printf("ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
