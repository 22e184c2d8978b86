// Package jobs contains background export tasks and the Asynq worker shell.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExportInvoicePDF renders a final invoice to PDF and stores it.
	TaskExportInvoicePDF = "export:invoice_pdf"
	// TaskExportEtat104 builds the monthly report and stores CSV + PDF.
	TaskExportEtat104 = "export:etat104"
)

// ExportInvoicePDFPayload identifies the invoice to render.
type ExportInvoicePDFPayload struct {
	InvoiceID int64 `json:"invoice_id"`
}

// NewExportInvoicePDFTask constructs an Asynq task.
func NewExportInvoicePDFTask(payload ExportInvoicePDFPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportInvoicePDF, data, asynq.Queue(QueueDefault)), nil
}

// ExportEtat104Payload selects the reporting period. A zero year means the
// month preceding the task's execution time, which is what the monthly cron
// registration relies on.
type ExportEtat104Payload struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewExportEtat104Task constructs an Asynq task.
func NewExportEtat104Task(payload ExportEtat104Payload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportEtat104, data, asynq.Queue(QueueDefault)), nil
}
