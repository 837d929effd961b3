// MBFlow Server - sales-order intake workflow engine
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smilemakc/mbflow/internal/accounting"
	"github.com/smilemakc/mbflow/internal/application/filestorage"
	"github.com/smilemakc/mbflow/internal/casestore"
	"github.com/smilemakc/mbflow/internal/committee"
	"github.com/smilemakc/mbflow/internal/config"
	"github.com/smilemakc/mbflow/internal/httpapi"
	"github.com/smilemakc/mbflow/internal/infrastructure/cache"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	"github.com/smilemakc/mbflow/internal/infrastructure/storage"
	"github.com/smilemakc/mbflow/internal/infrastructure/tracing"
	"github.com/smilemakc/mbflow/internal/notifier"
	"github.com/smilemakc/mbflow/internal/orderworkflow"
	"github.com/smilemakc/mbflow/internal/outbox"
	"github.com/smilemakc/mbflow/internal/parser"
	"github.com/smilemakc/mbflow/internal/retryqueue"
	"github.com/smilemakc/mbflow/internal/workflowengine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("Starting MBFlow order-intake server",
		"version", "1.0.0",
		"port", cfg.Server.Port,
	)

	tracingProvider, err := tracing.NewProvider(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		appLogger.Error("Failed to initialize tracing provider", "error", err)
		os.Exit(1)
	}
	if tracingProvider != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracingProvider.Shutdown(ctx); err != nil {
				appLogger.Warn("Tracing provider shutdown failed", "error", err)
			}
		}()
		appLogger.Info("Tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	dbConfig := &storage.Config{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MinConnections,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		ConnMaxIdleTime: cfg.Database.MaxIdleTime,
		Debug:           cfg.Logging.Level == "debug",
	}

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		appLogger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	appLogger.Info("Database connected", "max_conns", cfg.Database.MaxConnections)

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		appLogger.Warn("Failed to initialize Redis cache, catalog lookups will hit the accounting system on every call", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
		appLogger.Info("Redis cache connected")
	}

	oc := cfg.OrderProcessing

	// C5: case store and fingerprint idempotency store.
	cases := casestore.New(db)
	fingerprints := casestore.NewFingerprintStore(db)

	// C3: accounting-system client (OAuth token provider, customer/item
	// catalog caches), and C4: its retry queue.
	tokenProvider := accounting.NewTokenProvider(oc.OAuthTokenURL, oc.OAuthClientID, oc.OAuthClientSecret, nil)
	accountingClient := accounting.NewClient(oc.AccountingURL, tokenProvider, redisCache, appLogger)

	retryQueue := retryqueue.New(db)
	retrier := accounting.NewRetrier(accountingClient, fingerprints)

	// Outbox: append-only case-lifecycle event log plus its background
	// publisher, delivering to the bot collaborator surface.
	outboxStore := outbox.New(db)
	outboxNotifier := notifier.NewClient(oc.BotURL)
	outboxAdapter := notifier.NewOutboxAdapter(outboxNotifier, cases)
	outboxPublisher := outbox.NewPublisher(outboxStore, outboxAdapter, appLogger)

	retrySweeper := retryqueue.NewSweeper(retryQueue, retrier, outboxStore, appLogger)
	retrySweeper.Concurrency = oc.RetrySweeperConcurrency

	// Remaining collaborators: committee consensus, file storage, parser.
	committeeClient := committee.NewClient(oc.CommitteeURL)

	// BLOB_CONNECTION_STRING names a future remote-provider swap point
	// (orderworkflow.Blobs); today only the local disk provider exists, so
	// it is ignored in favor of MBFLOW_FILE_STORAGE_PATH.
	blobProvider, err := filestorage.NewLocalProvider(cfg.FileStorage.StoragePath)
	if err != nil {
		appLogger.Error("Failed to initialize blob storage provider", "error", err)
		os.Exit(1)
	}
	blobs := orderworkflow.NewBlobs(blobProvider)

	xlsxParser := parser.New(parser.Options{
		MaxRows:       oc.MaxParseRows,
		ParserVersion: "1.0.0",
	})

	activities := orderworkflow.NewActivities(
		xlsxParser,
		committeeClient,
		accountingClient,
		outboxNotifier,
		blobs,
		fingerprints,
		retryQueue,
		outboxStore,
		appLogger,
		orderworkflow.Config{
			MaxUploadMB:   oc.MaxUploadMB,
			MaxParseRows:  oc.MaxParseRows,
			ParserVersion: "1.0.0",
		},
	)
	saga := orderworkflow.NewSaga(activities, cases)

	registry := workflowengine.NewRegistry()
	registry.Register(saga.WorkflowType())

	engine := workflowengine.NewEngine(db, registry, appLogger)

	escalationAdapter := notifier.NewEscalationAdapter(outboxNotifier, cases)
	escalationSweeper := workflowengine.NewEscalationSweeper(db, escalationAdapter, appLogger, workflowengine.EscalationConfig{
		ReminderAfter: time.Duration(oc.TimeoutReminderHours) * time.Hour,
		EscalateAfter: time.Duration(oc.TimeoutEscalationHours) * time.Hour,
		MaxWait:       time.Duration(oc.TimeoutMaxWaitDays) * 24 * time.Hour,
	})

	// Background processes: retry sweeper, outbox publisher, escalation
	// sweeper. Each owns its own cancellable context so shutdown can stop
	// them independently of the HTTP server.
	bgCtx, cancelBG := context.WithCancel(context.Background())
	defer cancelBG()

	go retrySweeper.Run(bgCtx, 5*time.Second)
	go outboxPublisher.Run(bgCtx, oc.OutboxPollInterval)
	escalationSweeper.Start(time.Minute)
	defer escalationSweeper.Stop()

	appLogger.Info("Background processes started",
		"retrySweeperConcurrency", retrySweeper.Concurrency,
		"outboxPollInterval", oc.OutboxPollInterval,
	)

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return storage.Ping(ctx, db)
	}

	router := httpapi.Router(engine, ping, appLogger, oc.MaxUploadMB*1024*1024)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		appLogger.Error("Server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		appLogger.Info("Server shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		cancelBG()
		escalationSweeper.Stop()

		if err := server.Shutdown(ctx); err != nil {
			appLogger.Error("Graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				appLogger.Error("Server close failed", "error", err)
			}
		}

		appLogger.Info("Server stopped")
	}
}
