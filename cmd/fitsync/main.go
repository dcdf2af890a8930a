package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/fitsync/internal/adapter/driven/googlefit"
	sentryadapter "github.com/ericfisherdev/fitsync/internal/adapter/driven/sentry"
	sqliteadapter "github.com/ericfisherdev/fitsync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/fitsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid or missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.LogLevel))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"timezone", cfg.Location.String(),
		"sync_interval", cfg.SyncInterval,
		"environment", cfg.Environment,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	if v, dirty, err := sqliteadapter.SchemaVersion(db.Writer); err == nil {
		slog.Info("migrations complete", "schema_version", v, "dirty", dirty)
	}

	// 5. Wire stores.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	recordStore := sqliteadapter.NewDailyRecordRepo(db, cfg.Location)

	// 6. Error reporting (no-op without a DSN).
	reporter, err := sentryadapter.NewReporter(sentryadapter.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     "fitsync@" + version,
	}, slog.Default())
	if err != nil {
		return err
	}
	defer reporter.Flush(2 * time.Second)

	// 7. Provider client: shared transport, OAuth config, refresher, executor.
	if !cfg.HasGoogleCredentials() {
		slog.Warn("no google oauth client configured, credential refresh and authorization will fail")
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = googlefit.DefaultBaseURL
	}
	transportCfg := googlefit.DefaultTransportConfig()
	transportCfg.Timeout = cfg.HTTPTimeout
	transportCfg.RequestsPerSecond = cfg.ProviderRate
	transportCfg.Burst = cfg.ProviderBurst
	httpClient, err := googlefit.NewHTTPClient(transportCfg)
	if err != nil {
		return err
	}
	oauthCfg := googlefit.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.AuthURL, cfg.TokenURL)
	refresher := googlefit.NewRefresher(oauthCfg, httpClient, credentialStore, slog.Default())
	executor := googlefit.NewExecutor(httpClient, baseURL, credentialStore, refresher, slog.Default())
	fitClient := googlefit.NewClient(executor, slog.Default())
	exchanger := googlefit.NewCodeExchanger(oauthCfg, httpClient)

	// 8. Create and start the sync service.
	syncSvc := application.NewSyncService(fitClient, credentialStore, recordStore, reporter, application.SyncConfig{
		Location:      cfg.Location,
		Interval:      cfg.SyncInterval,
		BackfillDelay: cfg.BackfillDelay,
	}, slog.Default())
	go syncSvc.Start(ctx)

	// 9. Create the authorization service.
	authSvc, err := application.NewAuthService(exchanger, credentialStore, cfg.AuthStateTTL, slog.Default())
	if err != nil {
		return err
	}

	// 10. Create HTTP handler and router.
	apiHandler := httphandler.NewHandler(syncSvc, authSvc, recordStore, db, slog.Default())

	// Backfill walks days with a delay between them, so writes may take a while.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewRouter(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("fitsync started",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"sentry_enabled", reporter.Enabled(),
	)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 12. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
