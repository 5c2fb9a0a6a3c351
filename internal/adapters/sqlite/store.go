package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeledger/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements ports.Store using SQLite.
type Store struct {
	repos
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewStore creates a new SQLite store instance.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for SQLite store", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradeledger.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		repos:  repos{q: db, logger: cfg.Logger},
		db:     db,
		logger: cfg.Logger,
	}

	if err := s.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite store initialized", map[string]interface{}{"path": dbPath})

	return s, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		normal_balance TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS journal_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TIMESTAMP NOT NULL,
		description TEXT NOT NULL,
		external_transaction_id TEXT,
		strategy TEXT,
		trade_num TEXT,
		amount INTEGER NOT NULL,
		posted_at TIMESTAMP NOT NULL,
		is_reversal INTEGER NOT NULL DEFAULT 0,
		reverses_journal_id INTEGER,
		reversed_by_transaction_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES journal_transactions(id),
		account_code TEXT NOT NULL REFERENCES accounts(code),
		amount INTEGER NOT NULL,
		entry_type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trading_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		option_type TEXT NOT NULL,
		strike_price INTEGER NOT NULL,
		expiration_date TIMESTAMP NOT NULL,
		position_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		open_price INTEGER NOT NULL,
		open_fees INTEGER NOT NULL,
		open_date TIMESTAMP NOT NULL,
		cost_basis INTEGER NOT NULL,
		status TEXT NOT NULL,
		close_price INTEGER DEFAULT NULL,
		close_fees INTEGER DEFAULT NULL,
		close_date TIMESTAMP DEFAULT NULL,
		proceeds INTEGER DEFAULT NULL,
		realized_pl INTEGER DEFAULT NULL,
		strategy TEXT,
		trade_num TEXT,
		open_leg_id INTEGER,
		close_leg_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS stock_lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		acquired_date TIMESTAMP NOT NULL,
		original_quantity INTEGER NOT NULL,
		remaining_quantity INTEGER NOT NULL,
		cost_per_share INTEGER NOT NULL,
		total_cost_basis INTEGER NOT NULL,
		fees INTEGER NOT NULL,
		status TEXT NOT NULL,
		open_leg_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS legs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT,
		date TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		strike TEXT NOT NULL,
		expiry TIMESTAMP,
		contract_type TEXT NOT NULL,
		action TEXT NOT NULL,
		position_effect TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		fees TEXT NOT NULL,
		amount TEXT NOT NULL,
		name TEXT,
		kind TEXT NOT NULL,
		strategy TEXT,
		trade_num TEXT,
		account_code TEXT,
		processed INTEGER NOT NULL DEFAULT 0
	);

	-- Indexes for the engine's hot lookups
	CREATE INDEX IF NOT EXISTS idx_entries_transaction ON ledger_entries (transaction_id);
	CREATE INDEX IF NOT EXISTS idx_entries_account ON ledger_entries (account_code);
	CREATE INDEX IF NOT EXISTS idx_positions_contract ON trading_positions (symbol, strike_price, option_type, expiration_date, status);
	CREATE INDEX IF NOT EXISTS idx_positions_trade ON trading_positions (trade_num, status);
	CREATE INDEX IF NOT EXISTS idx_lots_symbol_status ON stock_lots (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_legs_trade ON legs (trade_num, processed);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// WithinTx runs fn inside one SQLite transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(repos{q: dbTx, logger: s.logger}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			s.logger.Error(ctx, rbErr, "Failed to roll back transaction")
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite database connection")
		return s.db.Close()
	}
	return nil
}

var _ ports.Store = (*Store)(nil)

// querier abstracts *sql.DB and *sql.Tx so every repository works both in
// autocommit mode and inside WithinTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// repos bundles the repository implementations over one querier.
type repos struct {
	q      querier
	logger ports.Logger
}

func (r repos) Accounts() ports.AccountRepository   { return accountRepo{r} }
func (r repos) Journal() ports.JournalRepository    { return journalRepo{r} }
func (r repos) Positions() ports.PositionRepository { return positionRepo{r} }
func (r repos) StockLots() ports.StockLotRepository { return lotRepo{r} }
func (r repos) Legs() ports.LegRepository           { return legRepo{r} }

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}
