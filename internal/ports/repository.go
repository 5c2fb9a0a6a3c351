package ports

import (
	"context"
	"time"

	"tradeledger/internal/domain"
)

// AccountRepository defines storage for the chart of accounts.
type AccountRepository interface {
	// Create saves a new account and returns its assigned ID.
	Create(ctx context.Context, acc *domain.Account) (int64, error)
	// FindByCode retrieves an account by its public code.
	// Returns nil, nil if no account with that code exists.
	FindByCode(ctx context.Context, code string) (*domain.Account, error)
	// FindAll retrieves all accounts ordered by code.
	FindAll(ctx context.Context) ([]*domain.Account, error)
	// ApplyEntryEffect adjusts an account balance by a signed delta and bumps
	// its version, as a single atomic statement. This is the only balance
	// mutation path; the version bump rides the same statement so no unguarded
	// read-modify-write exists anywhere.
	ApplyEntryEffect(ctx context.Context, code string, delta domain.Money) error
}

// JournalRepository defines storage for journal transactions and their entries.
// Both are append-only; the single permitted mutation is the reversal back-link.
type JournalRepository interface {
	// CreateTransaction saves a new journal transaction and returns its ID.
	CreateTransaction(ctx context.Context, txn *domain.JournalTransaction) (int64, error)
	// CreateEntry saves one ledger entry line and returns its ID.
	CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (int64, error)
	// FindTransaction retrieves a journal transaction by ID.
	// Returns nil, nil if not found.
	FindTransaction(ctx context.Context, id int64) (*domain.JournalTransaction, error)
	// FindEntriesByTransaction retrieves the entry lines of one transaction.
	FindEntriesByTransaction(ctx context.Context, txnID int64) ([]*domain.LedgerEntry, error)
	// FindTransactions retrieves all transactions ordered by posting time.
	FindTransactions(ctx context.Context) ([]*domain.JournalTransaction, error)
	// SumEntryEffects computes the signed sum of all entry effects against an
	// account since creation, used to verify stored balances.
	SumEntryEffects(ctx context.Context, accountCode string) (domain.Money, error)
	// MarkReversed links both directions of a reversal: the original gets its
	// reversed-by back-link, the reversal gets its is-reversal flag and the
	// original's ID.
	MarkReversed(ctx context.Context, originalID, reversalID int64) error
}

// PositionRepository defines storage for option trading positions.
type PositionRepository interface {
	// Create saves a new position and returns its assigned ID.
	Create(ctx context.Context, pos *domain.TradingPosition) (int64, error)
	// Update modifies an existing position (used exactly once, at close).
	Update(ctx context.Context, pos *domain.TradingPosition) error
	// FindOldestOpenByContract retrieves the oldest open position with the
	// given contract identity (FIFO by open date). Returns nil, nil if none.
	FindOldestOpenByContract(ctx context.Context, symbol string, strike domain.Money, optionType domain.OptionType, expiry time.Time) (*domain.TradingPosition, error)
	// FindOldestOpenByTradeNum retrieves the oldest open position tagged with
	// the given trade number (FIFO by open date). Returns nil, nil if none.
	FindOldestOpenByTradeNum(ctx context.Context, tradeNum string) (*domain.TradingPosition, error)
	// FindAll retrieves all positions ordered by open date.
	FindAll(ctx context.Context) ([]*domain.TradingPosition, error)
}

// StockLotRepository defines storage for stock cost-basis lots.
type StockLotRepository interface {
	// Create saves a new lot and returns its assigned ID.
	Create(ctx context.Context, lot *domain.StockLot) (int64, error)
	// FindOpenBySymbol retrieves open lots for a symbol in acquisition order.
	// This is the seam for future FIFO sell-side consumption.
	FindOpenBySymbol(ctx context.Context, symbol string) ([]*domain.StockLot, error)
}

// LegRepository defines storage for raw imported legs. The importer writes
// them; the commit orchestrator back-annotates them as processed.
type LegRepository interface {
	// Create saves an imported leg and returns its assigned ID.
	Create(ctx context.Context, leg *domain.Leg) (int64, error)
	// FindByTradeNum retrieves all legs of one trade in import order.
	FindByTradeNum(ctx context.Context, tradeNum string) ([]*domain.Leg, error)
	// ListUnprocessedTradeNums lists trade numbers that still have
	// unprocessed legs, in first-import order.
	ListUnprocessedTradeNums(ctx context.Context) ([]string, error)
	// MarkProcessed tags a leg with its trade metadata and, when a posting was
	// produced, the account code it hit. Skipped legs get empty accountCode.
	MarkProcessed(ctx context.Context, legID int64, strategy, tradeNum, accountCode string) error
}

// Tx groups the repositories that share one transactional scope.
type Tx interface {
	Accounts() AccountRepository
	Journal() JournalRepository
	Positions() PositionRepository
	StockLots() StockLotRepository
	Legs() LegRepository
}

// Store is the transactional data store consumed by the engine. Repository
// methods called directly on the Store run in autocommit mode; WithinTx runs
// fn inside one storage transaction that commits iff fn returns nil.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
