// Command ledger-report prints the chart of accounts with stored balances and
// re-derives each balance from the journal to prove the two agree. Read-only.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"tradeledger/config"
	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/adapters/postgres"
	"tradeledger/internal/adapters/sqlite"
	"tradeledger/internal/ports"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// Report output goes to stdout; keep log noise down to warnings.
	appLogger := logger.NewStdLogger(logger.LevelWarn)

	store, err := newStore(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize store: %v", err)
	}
	defer store.Close()

	accounts, err := store.Accounts().FindAll(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to load accounts: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tTYPE\tBALANCE\tJOURNAL\tVERSION\tOK")

	mismatches := 0
	for _, acc := range accounts {
		derived, err := store.Journal().SumEntryEffects(ctx, acc.Code)
		if err != nil {
			log.Fatalf("FATAL: Failed to derive balance for %s: %v", acc.Code, err)
		}
		ok := "yes"
		if derived != acc.Balance {
			ok = "NO"
			mismatches++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			acc.Code, acc.Name, acc.Type, acc.Balance, derived, acc.Version, ok)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("FATAL: Failed to write report: %v", err)
	}

	txns, err := store.Journal().FindTransactions(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to load journal: %v", err)
	}
	fmt.Printf("\n%d journal transactions, %d accounts", len(txns), len(accounts))
	if mismatches > 0 {
		fmt.Printf(", %d balance mismatches\n", mismatches)
		os.Exit(1)
	}
	fmt.Println(", all balances consistent with the journal")
}

func newStore(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (ports.Store, error) {
	if cfg.StorageDriver == config.DriverPostgres {
		return postgres.NewStore(ctx, postgres.Config{DSN: cfg.PostgresDSN, Logger: appLogger})
	}
	return sqlite.NewStore(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
}
