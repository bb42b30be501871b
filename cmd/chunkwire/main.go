package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chunkwire/chunkwire/internal/chunk"
	"github.com/chunkwire/chunkwire/internal/cleanup"
	"github.com/chunkwire/chunkwire/internal/config"
	"github.com/chunkwire/chunkwire/internal/crypto"
	"github.com/chunkwire/chunkwire/internal/downloader"
	"github.com/chunkwire/chunkwire/internal/http/rest"
	"github.com/chunkwire/chunkwire/internal/logctx"
	"github.com/chunkwire/chunkwire/internal/netstatus"
	"github.com/chunkwire/chunkwire/internal/notifier"
	"github.com/chunkwire/chunkwire/internal/resolver"
	"github.com/chunkwire/chunkwire/internal/storage/sqlite"
	"github.com/chunkwire/chunkwire/internal/telemetry"
	"github.com/chunkwire/chunkwire/internal/transport"
	"github.com/go-chi/chi/v5"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("chunkwire agent starting...", "version", version, "log_level", cfg.LogLevel, "mode", cfg.Mode)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("DB error: %w", err)
	}
	defer database.Close()

	repo := sqlite.NewTransferRepository(database)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(telemetry.Config{
		Enabled:        true,
		ServiceName:    "chunkwire",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	// =========================================================================
	// Resolve Endpoint
	endpoint, err := url.Parse(cfg.EndpointBaseURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint base URL: %w", err)
	}

	res := resolver.New(endpoint.Hostname(), cfg.DNSFallback, nil)
	logger.Info("endpoint servers", "servers", res.Servers(ctx, true))

	// =========================================================================
	// Build Transfer Pipeline
	key, err := hex.DecodeString(cfg.FileKeyHex)
	if err != nil {
		return fmt.Errorf("invalid file key: %w", err)
	}

	cipher, err := crypto.NewAES(key)
	if err != nil {
		return fmt.Errorf("failed to build cipher: %w", err)
	}

	detector := netstatus.NewDetector(nil)
	tio := transport.New(transport.WithToken(cfg.EndpointToken))

	// =========================================================================
	// Start API Service
	serverErrors := make(chan error, 1)
	server := setupServer(cfg, repo, detector, tel)

	go func() {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Start Transfer
	transferDone := make(chan error, 1)

	go func() {
		transferDone <- runTransfer(ctx, cfg, tio, cipher, repo, detector, tel)
	}()

	// =========================================================================
	// Start Cleanup
	cleanupTicker := time.NewTicker(cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case err := <-transferDone:
			notifyResult(cfg, logger, err)

			if err != nil {
				return fmt.Errorf("transfer error: %w", err)
			}
		case <-cleanupTicker.C:
			records, err := repo.GetTransfers()
			if err != nil {
				logger.Error("failed to load transfer records for cleanup", "err", err)

				continue
			}

			if err := cleanup.DeleteExpiredFiles(ctx, records, cfg.KeepTransferredFor); err != nil {
				logger.Error("cleanup failed", "err", err)
			}
		case <-ctx.Done():
			logger.Info("start shutdown")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err = server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			return nil
		}
	}
}

func runTransfer(
	ctx context.Context,
	cfg *config.Config,
	tio *transport.HTTPIO,
	cipher *crypto.AES,
	repo *sqlite.TransferRepository,
	detector *netstatus.Detector,
	tel *telemetry.Telemetry,
) error {
	logger := logctx.LoggerFromContext(ctx)

	var (
		ledger *chunk.MacLedger
		err    error
	)

	switch cfg.Mode {
	case "download":
		d := downloader.NewDownloader(tio, cipher, repo, detector, tel, cfg.ChunkSize, cfg.MaxParallel)
		ledger, err = d.DownloadFile(ctx, cfg.EndpointBaseURL, cfg.FileCounterSeed, cfg.FileSize,
			filepath.Join(cfg.TargetDir, cfg.FileName))
	case "upload":
		u := downloader.NewUploader(tio, cipher, detector, tel, cfg.ChunkSize, cfg.MaxParallel)
		ledger, err = u.UploadFile(ctx, cfg.EndpointBaseURL, cfg.FileCounterSeed,
			filepath.Join(cfg.TargetDir, cfg.FileName))
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if err != nil {
		return err
	}

	logger.Info("transfer finished", "mode", cfg.Mode, "chunks", ledger.Len())

	return nil
}

func notifyResult(cfg *config.Config, logger *slog.Logger, err error) {
	if cfg.WebhookURL == "" {
		return
	}

	n := &notifier.WebhookNotifier{WebhookURL: cfg.WebhookURL}

	ev := notifier.Event{
		Event:  cfg.Mode + "_finished",
		File:   cfg.FileName,
		Status: "completed",
	}

	if err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
	}

	if nerr := n.Notify(ev); nerr != nil {
		logger.Error("failed to notify webhook", "err", nerr)
	}
}

func setupServer(cfg *config.Config, repo *sqlite.TransferRepository, detector *netstatus.Detector, tel *telemetry.Telemetry) *http.Server {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)

	r.Mount("/", rest.NewStatusHandler(repo, detector).Routes())
	r.Handle("/metrics", tel.Handler())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		Handler:      r,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
	}
}
