package reports

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/fakturo/fakturo/internal/platform/httpx"
	"github.com/fakturo/fakturo/internal/shared"
)

// PDFRenderClient is the subset of the report client used here.
type PDFRenderClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Renderer turns a built report into printable HTML.
type Renderer func(Etat104Report) (string, error)

// Exporter enqueues background export jobs.
type Exporter interface {
	EnqueueEtat104Export(ctx context.Context, year int, month time.Month) (string, error)
}

// Handler manages report HTTP endpoints. Exports carry their own rate limit
// since a report build walks every invoice of the month.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pdfClient PDFRenderClient
	renderer  Renderer
	exporter  Exporter
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. pdfClient and exporter may be nil; the
// matching routes then respond 503.
func NewHandler(logger *slog.Logger, service *Service, pdfClient PDFRenderClient, renderer Renderer, exporter Exporter) *Handler {
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			return sess.ID, nil
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr, nil
		}
		return host, nil
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		pdfClient: pdfClient,
		renderer:  renderer,
		exporter:  exporter,
		rateLimit: limiter,
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/etat-104", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/reports/etat-104/export.csv", h.exportCSV)
		r.Get("/reports/etat-104/export.pdf", h.exportPDF)
		r.Post("/reports/etat-104/export", h.enqueueExport)
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	report, err := h.service.BuildEtat104(r.Context(), year, month)
	if err != nil {
		h.logger.Error("build etat 104", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	report, err := h.service.BuildEtat104(r.Context(), year, month)
	if err != nil {
		h.logger.Error("build etat 104", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="etat104-%04d-%02d.csv"`, year, month))
	if err := WriteEtat104CSV(w, report); err != nil {
		h.logger.Error("stream etat 104 csv", slog.Any("error", err))
	}
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdfClient == nil || h.renderer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "PDF rendering is not configured")
		return
	}
	year, month, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	report, err := h.service.BuildEtat104(r.Context(), year, month)
	if err != nil {
		h.logger.Error("build etat 104", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	html, err := h.renderer(report)
	if err != nil {
		h.logger.Error("render etat 104", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.pdfClient.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render etat 104 pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "PDF rendering failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="etat104-%04d-%02d.pdf"`, year, month))
	_, _ = w.Write(pdf)
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "background exports are not configured")
		return
	}
	year, month, ok := h.parsePeriod(w, r)
	if !ok {
		return
	}
	taskID, err := h.exporter.EnqueueEtat104Export(r.Context(), year, month)
	if err != nil {
		h.logger.Error("enqueue etat 104 export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
}

func (h *Handler) parsePeriod(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year must be a four digit year")
		return 0, 0, false
	}
	monthNum, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be between 1 and 12")
		return 0, 0, false
	}
	return year, time.Month(monthNum), true
}
