package handler

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/export"
)

// OrderIterator is satisfied by *service.QueryService.
type OrderIterator interface {
	Each(ctx context.Context, status, search string, fn func(database.Order) error) error
}

// ExportHandler streams the filtered order set as CSV.
type ExportHandler struct {
	orders OrderIterator
	loc    *time.Location
	now    func() time.Time
}

func NewExportHandler(orders OrderIterator, loc *time.Location) *ExportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportHandler{orders: orders, loc: loc, now: time.Now}
}

func (h *ExportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/export", h.Export)
}

// Export renders into memory first so a failure part way through still
// yields a proper error status instead of a truncated file.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var buf bytes.Buffer
	cw, err := export.NewWriter(&buf, h.loc)
	if err != nil {
		log.Printf("ERROR: start csv export: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.orders.Each(r.Context(), q.Get("status"), q.Get("search"), cw.Write); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := cw.Flush(); err != nil {
		log.Printf("ERROR: flush csv export: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	filename := fmt.Sprintf("m2b_orders_%s.csv", h.now().In(h.loc).Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("WARN: write csv export: %v", err)
	}
}
