package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"invoiceapi/docs"
	"invoiceapi/internal/audit"
	"invoiceapi/internal/changefeed"
	"invoiceapi/internal/config"
	"invoiceapi/internal/database"
	"invoiceapi/internal/database/migration"
	handlers "invoiceapi/internal/http/handler"
	"invoiceapi/internal/http/middleware"
	"invoiceapi/internal/logging"
	"invoiceapi/internal/metrics"
	"invoiceapi/internal/model"
	"invoiceapi/internal/otel"
	"invoiceapi/internal/realtime"
	"invoiceapi/internal/repository/postgres"
	"invoiceapi/internal/service"
	"invoiceapi/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Invoice Import API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := cfg.Location()
	logger := logging.New(os.Stdout, cfg.LogLevel, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		fatal(logger, "tracing_init_failed", err)
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		fatal(logger, "db_connect_failed", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		fatal(logger, "db_migration_failed", err)
	}

	objStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		fatal(logger, "storage_init_failed", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		fatal(logger, "metrics_init_failed", err)
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal(logger, "metrics_init_failed", err)
	}

	// Repositories
	txRepo := postgres.NewTransactionPostgres(db, cfg.Import.ReceivedGrace())
	invoiceRepo := postgres.NewInvoicePostgres(db)
	eventRepo := postgres.NewInvoiceEventPostgres(db)

	// Audit sink; without one the events are only logged
	var auditor audit.Publisher = audit.Nop{Logger: logger}
	var ceAuditor *audit.CloudEventsPublisher
	if cfg.Audit.SinkURL != "" {
		ceAuditor, err = audit.NewCloudEvents(cfg.Audit, logger, m)
		if err != nil {
			fatal(logger, "audit_init_failed", err)
		}
		auditor = ceAuditor
	}

	// Realtime channel and actions
	hub := realtime.NewHub(logger, m, cfg.Realtime.WriteTimeout())
	router := realtime.NewRouter(hub, logger, cfg.Import.HandlerTimeout())
	issuer := service.NewUploadIssuer(txRepo, objStore, hub, cfg.Import, cfg.Realtime.Endpoint, logger)
	canceller := service.NewCanceller(txRepo, hub, m, logger)
	router.Handle(model.ActionGetImportURL, issuer.Handle)
	router.Handle(model.ActionCancelImport, canceller.Handle)

	processor := service.NewImportProcessor(service.ProcessorDeps{
		Transactions: txRepo,
		Invoices:     invoiceRepo,
		Events:       eventRepo,
		Store:        objStore,
		Notifier:     hub,
		Audit:        auditor,
		Validate:     service.MinInvoiceNumberLength(cfg.Import.MinInvoiceNumberLength),
		AuditSource:  cfg.Audit.Source,
		Metrics:      m,
		Logger:       logger,
	})

	expiry := service.NewExpiryListener(hub, auditor, cfg.Audit.Source, logger)
	reaper := changefeed.NewReaper(txRepo, eventRepo, expiry,
		cfg.Import.ReaperInterval(), cfg.Import.ReaperBatchSize, m, logger)

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	background := make(chan struct{}, 2)

	go func() {
		reaper.Run(bgCtx)
		background <- struct{}{}
	}()

	listening := false
	if l, ok := objStore.(storage.Listener); ok && cfg.Storage.MinIO.Listen {
		listening = true
		go func() {
			err := l.Listen(bgCtx, func(ctx context.Context, events []storage.ObjectEvent) {
				if d := cfg.Import.HandlerTimeout(); d > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, d)
					defer cancel()
				}
				if err := processor.HandleObjectEvents(ctx, events); err != nil {
					logger.ErrorContext(ctx, "storage_events_failed", "source", "bucket_listener", "error", err)
				}
			}, func(err error) {
				logger.WarnContext(bgCtx, "bucket_listener_error", "error", err)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bucket_listener_stopped", "error", err)
			}
			background <- struct{}{}
		}()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.LoggerWithWriter(os.Stdout, loc))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:             db,
		Hub:            hub,
		Router:         router,
		Processor:      processor,
		WebhookToken:   cfg.Realtime.WebhookToken,
		HandlerTimeout: cfg.Import.HandlerTimeout(),
		Gatherer:       reg,
		Logger:         logger,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server_started", "addr", addr, "storage_driver", cfg.Storage.Driver, "bucket_listener", listening)
		serverErr <- app.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server_failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown_started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	cancelBackground()
	waitFor := 1
	if listening {
		waitFor++
	}
	for i := 0; i < waitFor; i++ {
		<-background
	}
	router.Wait()
	if ceAuditor != nil {
		if err := ceAuditor.Flush(shutdownCtx); err != nil {
			logger.Warn("audit_flush_incomplete", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
