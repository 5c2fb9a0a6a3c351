// Package postgres implements ports.Store on PostgreSQL via pgx. Semantics
// mirror the sqlite adapter exactly; deployments pick the driver in config.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradeledger/internal/ports"
)

// Store implements ports.Store using a pgx connection pool.
type Store struct {
	repos
	pool   *pgxpool.Pool
	logger ports.Logger
}

// Config holds configuration for the Postgres store.
type Config struct {
	DSN    string
	Logger ports.Logger
}

// NewStore creates a new Postgres store and verifies connectivity.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for Postgres store", ports.ErrConfigurationError)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{
		repos:  repos{q: pool, logger: cfg.Logger},
		pool:   pool,
		logger: cfg.Logger,
	}
	if err := s.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize postgres schema: %w", err)
	}
	cfg.Logger.Info(ctx, "Postgres store initialized")
	return s, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		normal_balance TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS journal_transactions (
		id BIGSERIAL PRIMARY KEY,
		date TIMESTAMPTZ NOT NULL,
		description TEXT NOT NULL,
		external_transaction_id TEXT,
		strategy TEXT,
		trade_num TEXT,
		amount BIGINT NOT NULL,
		posted_at TIMESTAMPTZ NOT NULL,
		is_reversal BOOLEAN NOT NULL DEFAULT FALSE,
		reverses_journal_id BIGINT,
		reversed_by_transaction_id BIGINT
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		transaction_id BIGINT NOT NULL REFERENCES journal_transactions(id),
		account_code TEXT NOT NULL REFERENCES accounts(code),
		amount BIGINT NOT NULL,
		entry_type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trading_positions (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		option_type TEXT NOT NULL,
		strike_price BIGINT NOT NULL,
		expiration_date TIMESTAMPTZ NOT NULL,
		position_type TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		open_price BIGINT NOT NULL,
		open_fees BIGINT NOT NULL,
		open_date TIMESTAMPTZ NOT NULL,
		cost_basis BIGINT NOT NULL,
		status TEXT NOT NULL,
		close_price BIGINT,
		close_fees BIGINT,
		close_date TIMESTAMPTZ,
		proceeds BIGINT,
		realized_pl BIGINT,
		strategy TEXT,
		trade_num TEXT,
		open_leg_id BIGINT,
		close_leg_id BIGINT
	);

	CREATE TABLE IF NOT EXISTS stock_lots (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		acquired_date TIMESTAMPTZ NOT NULL,
		original_quantity BIGINT NOT NULL,
		remaining_quantity BIGINT NOT NULL,
		cost_per_share BIGINT NOT NULL,
		total_cost_basis BIGINT NOT NULL,
		fees BIGINT NOT NULL,
		status TEXT NOT NULL,
		open_leg_id BIGINT
	);

	CREATE TABLE IF NOT EXISTS legs (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT,
		date TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		strike TEXT NOT NULL,
		expiry TIMESTAMPTZ,
		contract_type TEXT NOT NULL,
		action TEXT NOT NULL,
		position_effect TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		price TEXT NOT NULL,
		fees TEXT NOT NULL,
		amount TEXT NOT NULL,
		name TEXT,
		kind TEXT NOT NULL,
		strategy TEXT,
		trade_num TEXT,
		account_code TEXT,
		processed BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_transaction ON ledger_entries (transaction_id);
	CREATE INDEX IF NOT EXISTS idx_entries_account ON ledger_entries (account_code);
	CREATE INDEX IF NOT EXISTS idx_positions_contract ON trading_positions (symbol, strike_price, option_type, expiration_date, status);
	CREATE INDEX IF NOT EXISTS idx_positions_trade ON trading_positions (trade_num, status);
	CREATE INDEX IF NOT EXISTS idx_lots_symbol_status ON stock_lots (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_legs_trade ON legs (trade_num, processed);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// WithinTx runs fn inside one Postgres transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(repos{q: pgTx, logger: s.logger}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ ports.Store = (*Store)(nil)

// querier abstracts *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repos struct {
	q      querier
	logger ports.Logger
}

func (r repos) Accounts() ports.AccountRepository   { return accountRepo{r} }
func (r repos) Journal() ports.JournalRepository    { return journalRepo{r} }
func (r repos) Positions() ports.PositionRepository { return positionRepo{r} }
func (r repos) StockLots() ports.StockLotRepository { return lotRepo{r} }
func (r repos) Legs() ports.LegRepository           { return legRepo{r} }

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
