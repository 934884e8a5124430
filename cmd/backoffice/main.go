// Package main is the entry point for the PREDICT back-office admin server.
// It follows the ledger journal in PostgreSQL into a read-only replica and
// exposes admin-only reporting endpoints on a separate port.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/predict/internal/archive"
	"github.com/evetabi/predict/internal/backoffice"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/repository"
	"github.com/evetabi/predict/internal/service"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting predict backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
	// The backoffice has no state of its own: without the shared journal there
	// is nothing to report on.
	if cfg.DB.DSN == "" {
		logger.Error("DATABASE_DSN is required for the backoffice")
		os.Exit(1)
	}
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	logger.Info("database connected")

	events := repository.NewEventRepository(db)

	// ── Replica ───────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	replica := backoffice.NewReplica(events, cfg.Scheduler.ReplicaSync, logger)
	n, err := replica.Sync(ctx)
	if err != nil {
		logger.Error("initial journal sync failed", "err", err)
		os.Exit(1)
	}
	logger.Info("replica caught up", "events", n, "last_seq", replica.LastSeq())

	// ── Journal archive (optional) ────────────────────────────────────────────
	var archiver *archive.Archiver
	if cfg.Archive.Bucket != "" {
		store, err := archive.NewS3Store(ctx, archive.S3Config{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			logger.Error("archive store init failed", "err", err)
			os.Exit(1)
		}
		if err := store.Health(ctx); err != nil {
			logger.Warn("archive bucket not reachable yet", "err", err)
		}
		archiver = archive.NewArchiver(events, store, cfg.Archive.Prefix,
			cfg.Archive.SegmentSize, cfg.Archive.Interval, logger)
		logger.Info("journal archive enabled", "bucket", cfg.Archive.Bucket, "interval", cfg.Archive.Interval)
	}

	// Admin tokens are issued by the API server's wallet login; the backoffice
	// only verifies them, so its nonce store is never written.
	authSvc := service.NewAuthService(repository.NewMemoryNonceStore(), cfg)

	// ── Router ────────────────────────────────────────────────────────────────
	deps := backoffice.BackofficeDeps{
		AuthSvc: authSvc,
		Replica: replica,
		Events:  events,
		Cfg:     cfg,
	}
	if archiver != nil {
		deps.Archive = archiver
	}
	router := backoffice.SetupBackofficeRouter(deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return replica.Run(gctx) })
	if archiver != nil {
		g.Go(func() error { return archiver.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("backoffice http server: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("backoffice stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("backoffice server stopped cleanly")
}
