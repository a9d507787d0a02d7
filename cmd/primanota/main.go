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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/primanota/primanota/internal/accounts"
	"github.com/primanota/primanota/internal/app"
	"github.com/primanota/primanota/internal/audit"
	"github.com/primanota/primanota/internal/closures"
	"github.com/primanota/primanota/internal/ledger"
	"github.com/primanota/primanota/internal/periods"
	"github.com/primanota/primanota/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("instance", uuid.NewString()))

	store, err := db.Open(db.Config{
		Path:             cfg.StoragePath,
		BusyRetryMax:     cfg.BusyRetryMax,
		BusyRetryInitial: cfg.BusyRetryInitial,
	})
	if err != nil {
		logger.Error("open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logger.Error("init schema", slog.Any("error", err))
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(store)
	if err := accountsRepo.EnsureSeed(ctx); err != nil {
		logger.Error("seed chart of accounts", slog.Any("error", err))
		os.Exit(1)
	}

	periodsRepo := periods.NewRepository(store)
	if err := periodsRepo.EnsureYearOpen(ctx, time.Now().Format("2006")); err != nil {
		logger.Error("open current year", slog.Any("error", err))
		os.Exit(1)
	}

	auditSvc := audit.NewService(store)
	ledgerRepo := ledger.NewRepository(store)
	engine := ledger.NewEngine(ledgerRepo, auditSvc, accountsRepo, periodsRepo).
		WithDefaultSeries(cfg.DefaultProtocolSeries)
	query := ledger.NewQuery(store)
	ledgerSvc := ledger.NewService(engine, query, ledger.DefaultAccountMap())
	closuresSvc := closures.NewService(store, engine, periodsRepo, auditSvc, cfg.EquityAccountCode)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ledger.NewHandler(logger, ledgerSvc, auditSvc),
		ClosuresHandler: closures.NewHandler(logger, closuresSvc),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
