package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m2b-ebook/api/internal/service"
)

// OrderSubmitter is satisfied by *service.IntakeService.
type OrderSubmitter interface {
	Submit(ctx context.Context, req service.IntakeRequest) (*service.IntakeResult, error)
}

// IntakeHandler accepts the public purchase form.
type IntakeHandler struct {
	intake OrderSubmitter
}

func NewIntakeHandler(intake OrderSubmitter) *IntakeHandler {
	return &IntakeHandler{intake: intake}
}

func (h *IntakeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/intake", h.Submit)
}

// --- Request / Response types ---

type intakeRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
	City     string `json:"city"`
	Purpose  string `json:"purpose"`
}

type intakeResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	WhatsAppURL string `json:"whatsapp_url"`
	DBSaved     bool   `json:"db_saved"`
}

type fieldErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// --- Handlers ---

// Submit records the order and hands back the WhatsApp link. Store and
// email failures are absorbed by the service; only bad input fails here.
func (h *IntakeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.intake.Submit(r.Context(), service.IntakeRequest{
		Name:     req.Name,
		Email:    req.Email,
		WhatsApp: req.WhatsApp,
		City:     req.City,
		Purpose:  req.Purpose,
	})
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, fieldErrorResponse{Message: ve.Error(), Field: ve.Field})
			return
		}
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !res.DBSaved {
		status = http.StatusOK
	}
	writeJSON(w, status, intakeResponse{
		Success:     true,
		OrderID:     res.OrderID,
		WhatsAppURL: res.WhatsAppURL,
		DBSaved:     res.DBSaved,
	})
}
