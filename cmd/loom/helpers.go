package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/fernwick/ledgerloom/internal/classify"
	"github.com/fernwick/ledgerloom/internal/config"
	"github.com/fernwick/ledgerloom/internal/engine"
	"github.com/fernwick/ledgerloom/internal/ledger"
	"github.com/fernwick/ledgerloom/internal/match"
	"github.com/fernwick/ledgerloom/internal/service"
	"github.com/fernwick/ledgerloom/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initSink builds the ledger sink from config.
func initSink() (service.LedgerSink, error) {
	path := config.ExpandPath(viper.GetString("ledger.path"))
	if path == "" {
		path = config.ExpandPath("~/.local/share/loom/ledger.json")
	}
	return ledger.NewFileSink(path)
}

// initEngine wires storage, classification provider, and ledger sink into a
// reconciliation engine.
func initEngine(store service.Storage, settings *config.Settings) (*engine.Engine, error) {
	sink, err := initSink()
	if err != nil {
		return nil, err
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  settings.RetryMaxAttempts,
		InitialDelay: settings.RetryInitialDelay,
		MaxDelay:     settings.RetryMaxDelay,
		Multiplier:   2.0,
	}

	cfg := engine.Config{
		Payee: settings.LedgerPayee,
		Match: match.Config{
			ShipWindowDays: settings.ShipWindowDays,
			ShipLagDays:    settings.ShipLagDays,
			ToleranceMinor: settings.AmountTolerance,
		},
		Classify: classify.Config{
			Policy: classify.Policy{
				AutoThreshold: settings.AutoThreshold,
				FlagThreshold: settings.FlagThreshold,
				FallbackCap:   settings.FallbackCap,
			},
			BatchSize: settings.BatchSize,
			RetryOpts: retryOpts,
		},
		RetryOpts:    retryOpts,
		AsyncBatches: settings.UseAsyncBatches,
	}

	return engine.New(store, classify.NewKeywordService(), sink, cfg, slog.Default()), nil
}
