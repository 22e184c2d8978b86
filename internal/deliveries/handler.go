package deliveries

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/products"
	"github.com/fakturo/fakturo/internal/shared"
)

// Handler manages delivery note HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers delivery note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/delivery-notes", h.list)
	r.Get("/delivery-notes/{id}", h.show)
	r.Post("/delivery-notes", h.create)
	r.Put("/delivery-notes/{id}", h.update)
	r.Delete("/delivery-notes/{id}", h.delete)
	r.Post("/delivery-notes/{id}/mark-delivered", h.markDelivered)
	r.Post("/delivery-notes/{id}/cancel", h.cancel)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)

	req := ListDeliveryNotesRequest{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64); err == nil {
		req.ClientID = &clientID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		if !status.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown delivery note status filter")
			return
		}
		req.Status = &status
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	notes, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list delivery notes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"delivery_notes": notes,
		"pagination":     shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	note, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	note, err := h.service.Create(r.Context(), req, h.currentUserID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req UpdateDeliveryNoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	note, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.MarkDelivered)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Cancel)
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*DeliveryNote, error)) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	note, err := fn(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid delivery note ID")
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
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, clients.ErrNotFound), errors.Is(err, products.ErrNotFound), errors.Is(err, invoices.ErrNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("deliveries handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
