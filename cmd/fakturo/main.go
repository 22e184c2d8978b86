package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fakturo/fakturo/internal/app"
	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/deliveries"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/observability"
	"github.com/fakturo/fakturo/internal/platform/db"
	"github.com/fakturo/fakturo/internal/products"
	"github.com/fakturo/fakturo/internal/proformas"
	"github.com/fakturo/fakturo/internal/reports"
	"github.com/fakturo/fakturo/internal/shared"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "fakturo_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	clientRepo := clients.NewRepository(pool)
	clientService := clients.NewService(clientRepo)
	clientHandler := clients.NewHandler(logger, clientService)

	productRepo := products.NewRepository(pool)
	productService := products.NewService(productRepo)
	productHandler := products.NewHandler(logger, productService)

	proformaRepo := proformas.NewRepository(pool)
	proformaService := proformas.NewService(proformaRepo, clientRepo, productRepo)
	proformaHandler := proformas.NewHandler(logger, proformaService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, proformaRepo, metrics)
	invoiceHandler := invoices.NewHandler(logger, invoiceService, jobClient)

	deliveryRepo := deliveries.NewRepository(pool)
	deliveryService := deliveries.NewService(deliveryRepo, clientRepo, productRepo, invoiceRepo)
	deliveryHandler := deliveries.NewHandler(logger, deliveryService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportService := reports.NewService(invoiceRepo)
	reportHandler := reports.NewHandler(logger, reportService, reportClient, report.RenderEtat104HTML, jobClient)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		AuthHandler:       authHandler,
		ClientsHandler:    clientHandler,
		ProductsHandler:   productHandler,
		ProformasHandler:  proformaHandler,
		InvoicesHandler:   invoiceHandler,
		DeliveriesHandler: deliveryHandler,
		ReportsHandler:    reportHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
