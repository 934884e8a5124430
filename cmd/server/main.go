// Package main is the entry point for the PREDICT market ledger API server.
// It rebuilds the ledger from its journal, then serves the REST API, the ABI
// calldata endpoints and the WebSocket feed until it receives a signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/evetabi/predict/internal/api"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/contract"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/ledger"
	"github.com/evetabi/predict/internal/repository"
	"github.com/evetabi/predict/internal/scheduler"
	"github.com/evetabi/predict/internal/service"
	"github.com/evetabi/predict/internal/ws"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"golang.org/x/sync/errgroup"
)

// journalStore is what the server needs from a journal backend: the ledger
// appends to it, the market service reads history from it and startup
// replays it.
type journalStore interface {
	ledger.Journal
	service.EventReader
	LoadAll(ctx context.Context) ([]domain.Event, error)
}

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting predict ledger server",
		"env", cfg.Server.Env, "port", cfg.Server.Port, "chain", cfg.Chain.Name, "chain_id", cfg.Chain.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 2. Journal ────────────────────────────────────────────────────────────
	var journal journalStore = repository.NewMemoryJournal()
	switch {
	case cfg.DB.DSN != "":
		db, err := openDB(cfg.DB)
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("database connected")

		if err = runMigrations(ctx, db, "migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		journal = repository.NewEventRepository(db)
	case cfg.DB.JournalDir != "":
		bj, err := repository.OpenBadgerJournal(cfg.DB.JournalDir)
		if err != nil {
			logger.Error("journal open failed", "err", err)
			os.Exit(1)
		}
		defer bj.Close()
		journal = bj
		logger.Info("embedded journal opened", "dir", cfg.DB.JournalDir)
	default:
		logger.Warn("no DATABASE_DSN or JOURNAL_DIR: journal kept in memory, state is lost on exit")
	}

	// ── 3. Ledger (rebuilt from the journal) ─────────────────────────────────
	l := ledger.New(journal, ledger.WithMaxQuestionLength(cfg.Ledger.MaxQuestionLength))
	events, err := journal.LoadAll(ctx)
	if err != nil {
		logger.Error("journal load failed", "err", err)
		os.Exit(1)
	}
	if err = l.Replay(events); err != nil {
		logger.Error("journal replay failed", "err", err)
		os.Exit(1)
	}
	logger.Info("ledger restored", "events", len(events), "markets", l.NextMarketID(), "last_seq", l.LastSeq())

	// ── 4. Nonce store ────────────────────────────────────────────────────────
	var nonces service.NonceStore = repository.NewMemoryNonceStore()
	if cfg.Redis.Addr != "" {
		rdb, err := repository.NewRedisClient(ctx, repository.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			logger.Error("redis connection failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		nonces = repository.NewRedisNonceStore(rdb, cfg.Redis.NoncePrefix)
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// ── 5. Services ───────────────────────────────────────────────────────────
	marketSvc := service.NewMarketService(l, journal, logger)
	authSvc := service.NewAuthService(nonces, cfg)

	codec, err := contract.NewCodec()
	if err != nil {
		logger.Error("abi codec failed", "err", err)
		os.Exit(1)
	}
	executor := contract.NewExecutor(marketSvc, codec)

	// ── 6. WebSocket Hub ──────────────────────────────────────────────────────
	hub := ws.NewHub(authSvc, cfg.Server.AllowedOrigins)
	marketSvc.SetBroadcaster(hub)

	// ── 7. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(l, hub, cfg.Scheduler.Tick, logger)

	// ── 8. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:   authSvc,
		MarketSvc: marketSvc,
		Executor:  executor,
		Hub:       hub,
		Cfg:       cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 9. Run until a signal or the first failure ────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, draining connections…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped cleanly", "last_seq", l.LastSeq())
}

func openDB(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// runMigrations applies every *.sql file in dir that is not yet recorded in
// schema_migrations, in file-name order, each inside its own transaction.
func runMigrations(ctx context.Context, db *sqlx.DB, dir string) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT        PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("runMigrations: bootstrap: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations`); err != nil {
		return fmt.Errorf("runMigrations: list applied: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("runMigrations: glob %q: %w", dir, err)
	}
	sort.Strings(files)

	for _, f := range files {
		name := filepath.Base(f)
		if done[name] {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("runMigrations: begin %q: %w", name, err)
		}
		if _, err = tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("runMigrations: exec %q: %w", name, err)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("runMigrations: record %q: %w", name, err)
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("runMigrations: commit %q: %w", name, err)
		}
		slog.Info("migration applied", "file", name)
	}
	return nil
}
