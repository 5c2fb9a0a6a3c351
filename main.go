package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradeledger/config"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/adapters/postgres"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/engine"
	"tradeledger/internal/importer"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Store (driver chosen by configuration)
	store, err := newStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize store")
		log.Fatalf("FATAL: Failed to initialize store: %v", err) // Also log to stderr
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing store")
		}
	}()
	appLogger.Info(ctx, "Store initialized", map[string]interface{}{"driver": cfg.StorageDriver})

	// 4. Seed Chart of Accounts (idempotent; existing balances survive re-runs)
	if err := engine.SeedChartOfAccounts(ctx, store, cfg.Chart, appLogger); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to seed chart of accounts")
		log.Fatalf("FATAL: Failed to seed chart of accounts: %v", err)
	}

	// 5. Initialize Engine and Committer
	poster, err := ledger.NewPoster(appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize poster")
		log.Fatalf("FATAL: Failed to initialize poster: %v", err)
	}
	eng, err := engine.New(cfg.Chart, poster, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize engine")
		log.Fatalf("FATAL: Failed to initialize engine: %v", err)
	}
	committer, err := engine.NewCommitter(store, eng, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize committer")
		log.Fatalf("FATAL: Failed to initialize committer: %v", err)
	}

	// 6. Import legs if an export file is configured
	if cfg.ImportFile != "" {
		imp, err := importer.New(store, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize importer")
			log.Fatalf("FATAL: Failed to initialize importer: %v", err)
		}
		if _, err := imp.ImportFile(ctx, cfg.ImportFile); err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to import leg export")
			log.Fatalf("FATAL: Failed to import leg export: %v", err)
		}
	}

	// 7. Commit every trade that still has unprocessed legs
	tradeNums, err := store.Legs().ListUnprocessedTradeNums(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to list unprocessed trades")
		log.Fatalf("FATAL: Failed to list unprocessed trades: %v", err)
	}

	var committed, skipped, failed int
	for _, tradeNum := range tradeNums {
		legs, err := store.Legs().FindByTradeNum(ctx, tradeNum)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to load trade legs", map[string]interface{}{"tradeNum": tradeNum})
			failed++
			continue
		}
		strategy := ""
		if len(legs) > 0 {
			strategy = legs[0].Strategy
		}
		res, err := committer.CommitTrade(ctx, strategy, tradeNum, legs)
		if err != nil {
			// The failed trade rolled back whole; later trades are independent.
			failed++
			continue
		}
		committed += len(res.Results)
		skipped += len(res.Skipped)
	}

	appLogger.Info(ctx, "Trade processing finished", map[string]interface{}{
		"trades":    len(tradeNums),
		"committed": committed,
		"skipped":   skipped,
		"failed":    failed,
	})
}

func newStore(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (ports.Store, error) {
	if cfg.StorageDriver == config.DriverPostgres {
		return postgres.NewStore(ctx, postgres.Config{DSN: cfg.PostgresDSN, Logger: appLogger})
	}
	return sqlite.NewStore(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
}
