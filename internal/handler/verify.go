package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m2b-ebook/api/internal/service"
)

// Verifier is satisfied by *service.LifecycleService.
type Verifier interface {
	Approve(ctx context.Context, orderID string) (*service.VerifyResult, error)
	Reject(ctx context.Context, orderID string) (*service.VerifyResult, error)
	Remind(ctx context.Context, orderID string) (*service.VerifyResult, error)
}

type VerifyHandler struct {
	lifecycle Verifier
}

func NewVerifyHandler(lifecycle Verifier) *VerifyHandler {
	return &VerifyHandler{lifecycle: lifecycle}
}

func (h *VerifyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.Verify)
}

// --- Request / Response types ---

type verifyRequest struct {
	OrderID string `json:"order_id"`
	Action  string `json:"action"`
}

type verifyResponse struct {
	Success          bool           `json:"success"`
	EmailSent        bool           `json:"email_sent"`
	WhatsAppURL      string         `json:"whatsapp_url,omitempty"`
	Message          string         `json:"message"`
	AlreadyProcessed bool           `json:"already_processed,omitempty"`
	Order            *orderResponse `json:"order,omitempty"`
}

// --- Handlers ---

// Verify runs approve, reject or remind. A failed email never fails the
// request: the status change stands and email_sent reports the outcome.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		res *service.VerifyResult
		err error
	)
	switch req.Action {
	case "approve":
		res, err = h.lifecycle.Approve(r.Context(), req.OrderID)
	case "reject":
		res, err = h.lifecycle.Reject(r.Context(), req.OrderID)
	case "remind":
		res, err = h.lifecycle.Remind(r.Context(), req.OrderID)
	default:
		writeError(w, http.StatusBadRequest, "action must be approve, reject or remind")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	order := toOrderResponse(res.Order)
	writeJSON(w, http.StatusOK, verifyResponse{
		Success:          true,
		EmailSent:        res.EmailSent,
		WhatsAppURL:      res.WhatsAppURL,
		Message:          verifyMessage(req.Action, res),
		AlreadyProcessed: res.AlreadyProcessed,
		Order:            &order,
	})
}

func verifyMessage(action string, res *service.VerifyResult) string {
	if res.AlreadyProcessed {
		return "order was already processed, nothing changed"
	}
	switch action {
	case "approve":
		if res.EmailSent {
			return "payment verified and e-book sent by email"
		}
		return "payment verified but the email could not be sent, deliver via WhatsApp"
	case "reject":
		if res.EmailSent {
			return "order rejected and buyer notified by email"
		}
		return "order rejected but the email could not be sent, notify via WhatsApp"
	default:
		if res.EmailSent {
			return "payment reminder sent by email"
		}
		return "reminder email could not be sent, remind via WhatsApp"
	}
}
