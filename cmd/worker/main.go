package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fakturo/fakturo/internal/app"
	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/platform/db"
	"github.com/fakturo/fakturo/internal/reports"
	"github.com/fakturo/fakturo/jobs"
	"github.com/fakturo/fakturo/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	invoiceRepo := invoices.NewRepository(pool)
	clientRepo := clients.NewRepository(pool)
	reportService := reports.NewService(invoiceRepo)
	pdfClient := report.NewClient(cfg.GotenbergURL)

	invoicePDFJob := jobs.NewExportInvoicePDFJob(invoiceRepo, clientRepo, pdfClient, logger, cfg.ExportDir)
	etat104Job := jobs.NewExportEtat104Job(reportService, pdfClient, logger, cfg.ExportDir)

	// Previous month's report on the first of each month.
	monthlyEtat104, err := jobs.NewExportEtat104Task(jobs.ExportEtat104Payload{})
	if err != nil {
		logger.Error("build cron task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExportInvoicePDF, Handler: invoicePDFJob.Handle},
			{Type: jobs.TaskExportEtat104, Handler: etat104Job.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 1 * *", Task: monthlyEtat104},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
