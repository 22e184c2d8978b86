package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/report"
)

// InvoiceLoader loads the invoice to render.
type InvoiceLoader interface {
	Get(ctx context.Context, id int64) (*invoices.Invoice, error)
}

// ClientLoader resolves the client name printed on the document.
type ClientLoader interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
}

// PDFRenderer converts HTML into PDF bytes.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// ExportInvoicePDFJob renders invoices to PDF files under ExportDir.
type ExportInvoicePDFJob struct {
	Invoices  InvoiceLoader
	Clients   ClientLoader
	PDF       PDFRenderer
	Logger    *slog.Logger
	ExportDir string
}

// NewExportInvoicePDFJob constructs the job handler.
func NewExportInvoicePDFJob(invoiceRepo InvoiceLoader, clientRepo ClientLoader, pdf PDFRenderer, logger *slog.Logger, exportDir string) *ExportInvoicePDFJob {
	return &ExportInvoicePDFJob{
		Invoices:  invoiceRepo,
		Clients:   clientRepo,
		PDF:       pdf,
		Logger:    logger,
		ExportDir: exportDir,
	}
}

// Handle processes TaskExportInvoicePDF tasks.
func (j *ExportInvoicePDFJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExportInvoicePDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	inv, err := j.Invoices.Get(ctx, payload.InvoiceID)
	if err != nil {
		return fmt.Errorf("load invoice %d: %w", payload.InvoiceID, err)
	}
	client, err := j.Clients.Get(ctx, inv.ClientID)
	if err != nil {
		return fmt.Errorf("load client %d for invoice %s: %w", inv.ClientID, inv.Number, err)
	}

	html, err := report.RenderInvoiceHTML(report.InvoiceDocument{Invoice: inv, ClientName: client.Name})
	if err != nil {
		return err
	}
	pdf, err := j.PDF.RenderHTML(ctx, html)
	if err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}

	if err := os.MkdirAll(j.ExportDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(j.ExportDir, fmt.Sprintf("invoice-%s.pdf", inv.Number))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	j.Logger.Info("invoice pdf exported",
		slog.String("number", inv.Number),
		slog.String("path", path),
		slog.Int("bytes", len(pdf)),
	)
	return nil
}
