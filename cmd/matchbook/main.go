package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/evanmarshall/matchbook/internal/audit"
	"github.com/evanmarshall/matchbook/internal/config"
	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/engine"
	"github.com/evanmarshall/matchbook/internal/handler"
	"github.com/evanmarshall/matchbook/internal/refdata"
	"github.com/evanmarshall/matchbook/internal/service"
	"github.com/evanmarshall/matchbook/internal/store"
	"github.com/evanmarshall/matchbook/internal/store/postgres"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	fees, err := domain.NewFeeSchedule(cfg.FeeRate)
	if err != nil {
		log.WithError(err).Fatal("invalid fee rate")
	}

	// Stores.
	orderStore := store.NewOrderStore()
	execStore := store.NewExecutionStore()
	tradeStore := store.NewTradeStore()
	snapshotStore := store.NewSnapshotStore()

	// Optional write-behind archive. The in-memory stores stay
	// authoritative; the archive only trails them.
	var archive *postgres.Archive
	if cfg.DatabaseURL != "" {
		archive, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer archive.Close()
		if err := archive.EnsureSchema(context.Background()); err != nil {
			log.WithError(err).Fatal("failed to ensure archive schema")
		}
		log.Info("postgres archive enabled")
	}

	// Audit emitter with configured sinks.
	sinks := []audit.Sink{audit.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.WithField("topic", cfg.KafkaAuditTopic).Info("kafka audit sink enabled")
	}
	if archive != nil {
		sinks = append(sinks, archive)
	}
	emitter := audit.NewEmitter(cfg.AuditBuffer, log, sinks...)

	// Reference data: remote directory when configured, seeded registry
	// otherwise.
	var dir refdata.Directory
	if cfg.CompaniesURL != "" {
		dir = refdata.NewClient(cfg.CompaniesURL, cfg.CompaniesTimeout)
		log.WithField("url", cfg.CompaniesURL).Info("using remote company directory")
	} else {
		registry := refdata.NewRegistry()
		if cfg.CompanySeed != "" {
			registry.Seed(cfg.CompanySeed)
		} else {
			log.Warn("no COMPANY_SEED configured; all submissions will be rejected until companies are registered")
		}
		dir = registry
	}

	// Engine.
	books := engine.NewBookIndex()
	var ledger engine.Ledger
	if archive != nil {
		ledger = archive
	}
	recorder := engine.NewRecorder(orderStore, execStore, tradeStore, snapshotStore, books, fees, emitter, ledger, log)
	matcher := engine.NewMatcher(books, orderStore, recorder, cfg.MaxMatchIterations, cfg.SettleRetries, log)
	expiryMgr := engine.NewExpiryManager(cfg.ExpirationInterval, books, orderStore, emitter, log)

	// Services.
	orderSvc := service.NewOrderService(matcher, expiryMgr, orderStore, execStore, dir, emitter, log)
	bookSvc := service.NewBookService(books, orderStore, snapshotStore, dir, cfg.BookDepth)

	// Router.
	router := handler.NewRouter(orderSvc, bookSvc, log)

	// Start background goroutines with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter.Start(ctx)
	expiryMgr.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.WithField("addr", addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutdown signal received")

	// Graceful shutdown: stop HTTP server, cancel context (stops the
	// expiry goroutine and the audit drain), flush remaining audit records.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	cancel()
	emitter.Wait()

	log.Info("server stopped")
}
