package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fakturo/fakturo/internal/reports"
	"github.com/fakturo/fakturo/report"
)

// Etat104Builder builds the monthly report.
type Etat104Builder interface {
	BuildEtat104(ctx context.Context, year int, month time.Month) (reports.Etat104Report, error)
}

// ExportEtat104Job builds the monthly report and stores CSV and PDF files
// under ExportDir.
type ExportEtat104Job struct {
	Reports   Etat104Builder
	PDF       PDFRenderer
	Logger    *slog.Logger
	ExportDir string
	clock     func() time.Time
}

// NewExportEtat104Job constructs the job handler.
func NewExportEtat104Job(builder Etat104Builder, pdf PDFRenderer, logger *slog.Logger, exportDir string) *ExportEtat104Job {
	return &ExportEtat104Job{
		Reports:   builder,
		PDF:       pdf,
		Logger:    logger,
		ExportDir: exportDir,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskExportEtat104 tasks. A zero year in the payload means
// the month preceding execution, used by the monthly cron entry.
func (j *ExportEtat104Job) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExportEtat104Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	year, month := payload.Year, payload.Month
	if year == 0 {
		prev := j.clock().AddDate(0, -1, 0)
		year, month = prev.Year(), prev.Month()
	}
	if month < time.January || month > time.December {
		return asynq.SkipRetry
	}

	rep, err := j.Reports.BuildEtat104(ctx, year, month)
	if err != nil {
		return fmt.Errorf("build etat 104 %04d-%02d: %w", year, month, err)
	}

	if err := os.MkdirAll(j.ExportDir, 0o755); err != nil {
		return err
	}
	base := fmt.Sprintf("etat104-%04d-%02d", year, month)

	csvPath := filepath.Join(j.ExportDir, base+".csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	if err := reports.WriteEtat104CSV(csvFile, rep); err != nil {
		_ = csvFile.Close()
		return fmt.Errorf("write %s: %w", csvPath, err)
	}
	if err := csvFile.Close(); err != nil {
		return err
	}

	if j.PDF != nil {
		html, err := report.RenderEtat104HTML(rep)
		if err != nil {
			return err
		}
		pdf, err := j.PDF.RenderHTML(ctx, html)
		if err != nil {
			return fmt.Errorf("render etat 104 %04d-%02d: %w", year, month, err)
		}
		pdfPath := filepath.Join(j.ExportDir, base+".pdf")
		if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", pdfPath, err)
		}
	}

	j.Logger.Info("etat 104 exported",
		slog.Int("year", year),
		slog.Int("month", int(month)),
		slog.Int("clients", len(rep.Rows)),
		slog.String("dir", j.ExportDir),
	)
	return nil
}
