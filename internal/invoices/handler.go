package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/proformas"
	"github.com/fakturo/fakturo/internal/shared"
)

// Exporter enqueues background PDF exports.
type Exporter interface {
	EnqueueInvoicePDFExport(ctx context.Context, invoiceID int64) (string, error)
}

// Handler manages final invoice HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	exporter  Exporter
	validator *validator.Validate
}

// NewHandler constructs a Handler. exporter may be nil; the export route then
// responds 503.
func NewHandler(logger *slog.Logger, service *Service, exporter Exporter) *Handler {
	return &Handler{logger: logger, service: service, exporter: exporter, validator: validator.New()}
}

// MountRoutes registers invoice routes. Conversion is addressed by the
// source proforma since the invoice does not exist yet.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.list)
	r.Get("/invoices/{id}", h.show)
	r.Post("/invoices/{id}/mark-paid", h.markPaid)
	r.Post("/invoices/{id}/export-pdf", h.exportPDF)
	r.Post("/proformas/{id}/convert", h.convert)
	r.Post("/proformas/{id}/undo-convert", h.undoConvert)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)

	req := ListInvoicesRequest{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64); err == nil {
		req.ClientID = &clientID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		if !status.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown invoice status filter")
			return
		}
		req.Status = &status
	}
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		req.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		req.DateTo = &to
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	invoices, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.MarkPaid(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "background exports are not configured")
		return
	}
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	// Verify the invoice exists before queueing work for it.
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	taskID, err := h.exporter.EnqueueInvoicePDFExport(r.Context(), id)
	if err != nil {
		h.logger.Error("enqueue invoice pdf export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	proformaID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	result, err := h.service.ConvertFromProforma(r.Context(), proformaID, h.currentUserID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) undoConvert(w http.ResponseWriter, r *http.Request) {
	proformaID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	p, err := h.service.UndoConvert(r.Context(), proformaID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) currentUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, proformas.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("invoices handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
