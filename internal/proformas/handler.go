package proformas

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/products"
	"github.com/fakturo/fakturo/internal/shared"
)

// Handler manages proforma HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers proforma routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/proformas", h.list)
	r.Get("/proformas/{id}", h.show)
	r.Post("/proformas", h.create)
	r.Put("/proformas/{id}", h.update)
	r.Delete("/proformas/{id}", h.delete)
	r.Post("/proformas/{id}/send", h.send)
	r.Post("/proformas/{id}/approve", h.approve)
	r.Post("/proformas/{id}/reject", h.reject)
	r.Post("/proformas/{id}/undo-approve", h.undoApprove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)

	req := ListProformasRequest{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64); err == nil {
		req.ClientID = &clientID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		if !status.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown proforma status filter")
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

	proformas, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list proformas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"proformas":  proformas,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	proforma, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proforma)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProformaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	proforma, err := h.service.Create(r.Context(), req, h.currentUserID(r))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, proforma)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req UpdateProformaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	proforma, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proforma)
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

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Send)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Reject)
}

func (h *Handler) undoApprove(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.UndoApprove)
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*Proforma, error)) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	proforma, err := fn(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proforma)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid proforma ID")
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
	case errors.Is(err, clients.ErrNotFound), errors.Is(err, products.ErrNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("proformas handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
