// Package main starts the shared passwords diagnostics server: it wires
// configuration, logging, the credential backend, the audit journal and
// metrics, then serves the diagnostics API over HTTPS (plain HTTP when no
// certificate is configured).
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/sharedpasswords/internal/app"
	"github.com/atinyakov/sharedpasswords/internal/certgen"
	"github.com/atinyakov/sharedpasswords/internal/config"
	"github.com/atinyakov/sharedpasswords/internal/db"
	"github.com/atinyakov/sharedpasswords/internal/logger"
	"github.com/atinyakov/sharedpasswords/internal/metrics"
	"github.com/atinyakov/sharedpasswords/internal/repository"
	"github.com/atinyakov/sharedpasswords/internal/server/handler/http"
	"github.com/atinyakov/sharedpasswords/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	facadeOpts := []service.Option{service.WithRecorder(m)}

	// The audit journal is optional.
	var auditHandler *http.AuditHandler
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()

		db.StartAuditCleaner(ctx, postgresDB,
			time.Duration(options.CleanupInterval),
			time.Duration(options.AuditRetention),
			zapLogger,
		)

		auditRepo := repository.NewPostgresAuditRepository(postgresDB)
		facadeOpts = append(facadeOpts, service.WithAuditSink(auditRepo))
		auditHandler = &http.AuditHandler{Audit: auditRepo}
	} else {
		zapLogger.Info("no database configured, audit journal disabled")
	}

	facade, cleanup, err := app.DefaultPublisher().NewFacade(options, zapLogger, facadeOpts...)
	if err != nil {
		zapLogger.Fatal("cannot install credential backend", zap.Error(err))
	}
	defer cleanup()

	router := http.NewRouter(
		&http.DiagnosticsHandler{Facade: facade},
		auditHandler,
		m.Handler(),
		options.AdminToken,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if options.TLSEnabled() {
		tlsConfig, err := certgen.ServerConfig(options.TLSCert, options.TLSKey, options.TLSClientCA)
		if err != nil {
			zapLogger.Fatal("failed to load server TLS config", zap.Error(err))
		}
		server.TLSConfig = tlsConfig
	} else if options.AdminToken != "" {
		zapLogger.Warn("admin token configured without TLS, it will travel in cleartext")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting diagnostics server",
		zap.String("addr", options.Port),
		zap.Bool("tls", server.TLSConfig != nil),
	)
	if server.TLSConfig != nil {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}
}
