package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// --- AccountRepository ---

type accountRepo struct{ repos }

func (r accountRepo) Create(ctx context.Context, acc *domain.Account) (int64, error) {
	const query = `
	INSERT INTO accounts (code, name, account_type, normal_balance, balance, version)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.q.ExecContext(ctx, query,
		acc.Code, acc.Name, acc.Type, acc.NormalBalance, acc.Balance, acc.Version)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account %s: %w", acc.Code, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for account %s: %w", acc.Code, err)
	}
	acc.ID = id
	r.logger.Debug(ctx, "Account created", map[string]interface{}{"code": acc.Code, "accountID": id})
	return id, nil
}

func (r accountRepo) FindByCode(ctx context.Context, code string) (*domain.Account, error) {
	const query = `
	SELECT id, code, name, account_type, normal_balance, balance, version
	FROM accounts WHERE code = ?`

	acc, err := scanAccount(r.q.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query account %s: %w", code, err)
	}
	return acc, nil
}

func (r accountRepo) FindAll(ctx context.Context) ([]*domain.Account, error) {
	const query = `
	SELECT id, code, name, account_type, normal_balance, balance, version
	FROM accounts ORDER BY code`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// ApplyEntryEffect moves balance and version in one statement, so there is no
// read-modify-write window for the version counter to miss an update.
func (r accountRepo) ApplyEntryEffect(ctx context.Context, code string, delta domain.Money) error {
	const query = `UPDATE accounts SET balance = balance + ?, version = version + 1 WHERE code = ?`

	result, err := r.q.ExecContext(ctx, query, delta, code)
	if err != nil {
		return fmt.Errorf("failed to update balance of account %s: %w", code, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for account %s: %w", code, err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s not found for balance update: %w", code, ports.ErrNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	a := &domain.Account{}
	err := s.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.Balance, &a.Version)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return a, nil
}

// --- JournalRepository ---

type journalRepo struct{ repos }

func (r journalRepo) CreateTransaction(ctx context.Context, txn *domain.JournalTransaction) (int64, error) {
	const query = `
	INSERT INTO journal_transactions
		(date, description, external_transaction_id, strategy, trade_num, amount,
		 posted_at, is_reversal, reverses_journal_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var reverses sql.NullInt64
	if txn.ReversesJournalID != 0 {
		reverses = sql.NullInt64{Int64: txn.ReversesJournalID, Valid: true}
	}
	result, err := r.q.ExecContext(ctx, query,
		txn.Date, txn.Description, txn.ExternalTransactionID, txn.Strategy, txn.TradeNum,
		txn.Amount, txn.PostedAt, txn.IsReversal, reverses)
	if err != nil {
		return 0, fmt.Errorf("failed to insert journal transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for journal transaction: %w", err)
	}
	txn.ID = id
	return id, nil
}

func (r journalRepo) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	const query = `
	INSERT INTO ledger_entries (transaction_id, account_code, amount, entry_type)
	VALUES (?, ?, ?, ?)`

	result, err := r.q.ExecContext(ctx, query,
		entry.TransactionID, entry.AccountCode, entry.Amount, entry.Type)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger entry for %s: %w", entry.AccountCode, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for ledger entry: %w", err)
	}
	entry.ID = id
	return id, nil
}

func (r journalRepo) FindTransaction(ctx context.Context, id int64) (*domain.JournalTransaction, error) {
	const query = `
	SELECT id, date, description, COALESCE(external_transaction_id, ''), COALESCE(strategy, ''),
	       COALESCE(trade_num, ''), amount, posted_at, is_reversal,
	       COALESCE(reverses_journal_id, 0), COALESCE(reversed_by_transaction_id, 0)
	FROM journal_transactions WHERE id = ?`

	txn, err := scanTransaction(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query journal transaction %d: %w", id, err)
	}
	return txn, nil
}

func (r journalRepo) FindEntriesByTransaction(ctx context.Context, txnID int64) ([]*domain.LedgerEntry, error) {
	const query = `
	SELECT id, transaction_id, account_code, amount, entry_type
	FROM ledger_entries WHERE transaction_id = ? ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries of transaction %d: %w", txnID, err)
	}
	defer rows.Close()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		e := &domain.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountCode, &e.Amount, &e.Type); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}
	return entries, nil
}

func (r journalRepo) FindTransactions(ctx context.Context) ([]*domain.JournalTransaction, error) {
	const query = `
	SELECT id, date, description, COALESCE(external_transaction_id, ''), COALESCE(strategy, ''),
	       COALESCE(trade_num, ''), amount, posted_at, is_reversal,
	       COALESCE(reverses_journal_id, 0), COALESCE(reversed_by_transaction_id, 0)
	FROM journal_transactions ORDER BY posted_at, id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]*domain.JournalTransaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal transaction rows: %w", err)
	}
	return txns, nil
}

func (r journalRepo) SumEntryEffects(ctx context.Context, accountCode string) (domain.Money, error) {
	const query = `
	SELECT COALESCE(SUM(CASE WHEN e.entry_type = a.normal_balance THEN e.amount ELSE -e.amount END), 0)
	FROM ledger_entries e
	JOIN accounts a ON a.code = e.account_code
	WHERE e.account_code = ?`

	var sum domain.Money
	if err := r.q.QueryRowContext(ctx, query, accountCode).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum entry effects for %s: %w", accountCode, err)
	}
	return sum, nil
}

func (r journalRepo) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	const markOriginal = `UPDATE journal_transactions SET reversed_by_transaction_id = ? WHERE id = ?`
	const markReversal = `UPDATE journal_transactions SET is_reversal = 1, reverses_journal_id = ? WHERE id = ?`

	if _, err := r.q.ExecContext(ctx, markOriginal, reversalID, originalID); err != nil {
		return fmt.Errorf("failed to back-link journal transaction %d: %w", originalID, err)
	}
	if _, err := r.q.ExecContext(ctx, markReversal, originalID, reversalID); err != nil {
		return fmt.Errorf("failed to flag reversal transaction %d: %w", reversalID, err)
	}
	return nil
}

func scanTransaction(s scanner) (*domain.JournalTransaction, error) {
	t := &domain.JournalTransaction{}
	err := s.Scan(&t.ID, &t.Date, &t.Description, &t.ExternalTransactionID, &t.Strategy,
		&t.TradeNum, &t.Amount, &t.PostedAt, &t.IsReversal,
		&t.ReversesJournalID, &t.ReversedByTransactionID)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return t, nil
}

// --- PositionRepository ---

type positionRepo struct{ repos }

const positionColumns = `
	id, symbol, option_type, strike_price, expiration_date, position_type, quantity,
	open_price, open_fees, open_date, cost_basis, status,
	COALESCE(close_price, 0), COALESCE(close_fees, 0), close_date,
	COALESCE(proceeds, 0), COALESCE(realized_pl, 0),
	COALESCE(strategy, ''), COALESCE(trade_num, ''),
	COALESCE(open_leg_id, 0), COALESCE(close_leg_id, 0)`

func (r positionRepo) Create(ctx context.Context, pos *domain.TradingPosition) (int64, error) {
	const query = `
	INSERT INTO trading_positions
		(symbol, option_type, strike_price, expiration_date, position_type, quantity,
		 open_price, open_fees, open_date, cost_basis, status, strategy, trade_num, open_leg_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.q.ExecContext(ctx, query,
		pos.Symbol, pos.OptionType, pos.StrikePrice, pos.ExpirationDate, pos.PositionType,
		pos.Quantity, pos.OpenPrice, pos.OpenFees, pos.OpenDate, pos.CostBasis, pos.Status,
		pos.Strategy, pos.TradeNum, pos.OpenLegID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "symbol": pos.Symbol})
	return id, nil
}

func (r positionRepo) Update(ctx context.Context, pos *domain.TradingPosition) error {
	const query = `
	UPDATE trading_positions
	SET status = ?, close_price = ?, close_fees = ?, close_date = ?,
	    proceeds = ?, realized_pl = ?, close_leg_id = ?
	WHERE id = ?`

	var closeDate sql.NullTime
	if !pos.CloseDate.IsZero() {
		closeDate = sql.NullTime{Time: pos.CloseDate, Valid: true}
	}
	result, err := r.q.ExecContext(ctx, query,
		pos.Status, pos.ClosePrice, pos.CloseFees, closeDate,
		pos.Proceeds, pos.RealizedPL, pos.CloseLegID, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position ID %d: %w", pos.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
	return nil
}

func (r positionRepo) FindOldestOpenByContract(ctx context.Context, symbol string, strike domain.Money, optionType domain.OptionType, expiry time.Time) (*domain.TradingPosition, error) {
	query := `
	SELECT ` + positionColumns + `
	FROM trading_positions
	WHERE symbol = ? AND strike_price = ? AND option_type = ? AND expiration_date = ? AND status = ?
	ORDER BY open_date, id LIMIT 1`

	pos, err := scanPosition(r.q.QueryRowContext(ctx, query, symbol, strike, optionType, expiry, domain.StatusOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for %s: %w", symbol, err)
	}
	return pos, nil
}

func (r positionRepo) FindOldestOpenByTradeNum(ctx context.Context, tradeNum string) (*domain.TradingPosition, error) {
	query := `
	SELECT ` + positionColumns + `
	FROM trading_positions
	WHERE trade_num = ? AND status = ?
	ORDER BY open_date, id LIMIT 1`

	pos, err := scanPosition(r.q.QueryRowContext(ctx, query, tradeNum, domain.StatusOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for trade %s: %w", tradeNum, err)
	}
	return pos, nil
}

func (r positionRepo) FindAll(ctx context.Context) ([]*domain.TradingPosition, error) {
	query := `
	SELECT ` + positionColumns + `
	FROM trading_positions ORDER BY open_date, id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.TradingPosition, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindAll: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

func scanPosition(s scanner) (*domain.TradingPosition, error) {
	p := &domain.TradingPosition{}
	var closeDate sql.NullTime
	err := s.Scan(
		&p.ID, &p.Symbol, &p.OptionType, &p.StrikePrice, &p.ExpirationDate, &p.PositionType,
		&p.Quantity, &p.OpenPrice, &p.OpenFees, &p.OpenDate, &p.CostBasis, &p.Status,
		&p.ClosePrice, &p.CloseFees, &closeDate, &p.Proceeds, &p.RealizedPL,
		&p.Strategy, &p.TradeNum, &p.OpenLegID, &p.CloseLegID)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if closeDate.Valid {
		p.CloseDate = closeDate.Time
	}
	return p, nil
}

// --- StockLotRepository ---

type lotRepo struct{ repos }

func (r lotRepo) Create(ctx context.Context, lot *domain.StockLot) (int64, error) {
	const query = `
	INSERT INTO stock_lots
		(symbol, acquired_date, original_quantity, remaining_quantity,
		 cost_per_share, total_cost_basis, fees, status, open_leg_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.q.ExecContext(ctx, query,
		lot.Symbol, lot.AcquiredDate, lot.OriginalQuantity, lot.RemainingQuantity,
		lot.CostPerShare, lot.TotalCostBasis, lot.Fees, lot.Status, lot.OpenLegID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert stock lot for %s: %w", lot.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for stock lot %s: %w", lot.Symbol, err)
	}
	lot.ID = id
	r.logger.Debug(ctx, "Stock lot created", map[string]interface{}{"lotID": id, "symbol": lot.Symbol})
	return id, nil
}

func (r lotRepo) FindOpenBySymbol(ctx context.Context, symbol string) ([]*domain.StockLot, error) {
	const query = `
	SELECT id, symbol, acquired_date, original_quantity, remaining_quantity,
	       cost_per_share, total_cost_basis, fees, status, COALESCE(open_leg_id, 0)
	FROM stock_lots
	WHERE symbol = ? AND status = ?
	ORDER BY acquired_date, id`

	rows, err := r.q.QueryContext(ctx, query, symbol, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open lots for %s: %w", symbol, err)
	}
	defer rows.Close()

	lots := make([]*domain.StockLot, 0)
	for rows.Next() {
		l := &domain.StockLot{}
		err := rows.Scan(&l.ID, &l.Symbol, &l.AcquiredDate, &l.OriginalQuantity,
			&l.RemainingQuantity, &l.CostPerShare, &l.TotalCostBasis, &l.Fees, &l.Status, &l.OpenLegID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock lot: %w", err)
		}
		lots = append(lots, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock lot rows: %w", err)
	}
	return lots, nil
}

// --- LegRepository ---

type legRepo struct{ repos }

func (r legRepo) Create(ctx context.Context, leg *domain.Leg) (int64, error) {
	const query = `
	INSERT INTO legs
		(external_id, date, symbol, strike, expiry, contract_type, action, position_effect,
		 quantity, price, fees, amount, name, kind, strategy, trade_num, processed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`

	result, err := r.q.ExecContext(ctx, query,
		leg.ExternalID, leg.Date, leg.Symbol, leg.Strike, leg.Expiry, leg.Contract,
		leg.Action, leg.Effect, leg.Quantity, leg.Price, leg.Fees, leg.Amount,
		leg.Name, leg.Kind, leg.Strategy, leg.TradeNum)
	if err != nil {
		return 0, fmt.Errorf("failed to insert leg for %s: %w", leg.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for leg %s: %w", leg.Symbol, err)
	}
	leg.ID = id
	return id, nil
}

func (r legRepo) FindByTradeNum(ctx context.Context, tradeNum string) ([]*domain.Leg, error) {
	const query = `
	SELECT id, COALESCE(external_id, ''), date, symbol, strike, expiry, contract_type,
	       action, position_effect, quantity, price, fees, amount, COALESCE(name, ''),
	       kind, COALESCE(strategy, ''), COALESCE(trade_num, ''),
	       COALESCE(account_code, ''), processed
	FROM legs WHERE trade_num = ? ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, tradeNum)
	if err != nil {
		return nil, fmt.Errorf("failed to query legs for trade %s: %w", tradeNum, err)
	}
	defer rows.Close()

	legs := make([]*domain.Leg, 0)
	for rows.Next() {
		l := &domain.Leg{}
		err := rows.Scan(&l.ID, &l.ExternalID, &l.Date, &l.Symbol, &l.Strike, &l.Expiry,
			&l.Contract, &l.Action, &l.Effect, &l.Quantity, &l.Price, &l.Fees, &l.Amount,
			&l.Name, &l.Kind, &l.Strategy, &l.TradeNum, &l.AccountCode, &l.Processed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leg: %w", err)
		}
		legs = append(legs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leg rows: %w", err)
	}
	return legs, nil
}

func (r legRepo) ListUnprocessedTradeNums(ctx context.Context) ([]string, error) {
	const query = `
	SELECT trade_num FROM legs
	WHERE processed = 0 AND COALESCE(trade_num, '') != ''
	GROUP BY trade_num ORDER BY MIN(id)`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed trades: %w", err)
	}
	defer rows.Close()

	nums := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan trade number: %w", err)
		}
		nums = append(nums, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade number rows: %w", err)
	}
	return nums, nil
}

func (r legRepo) MarkProcessed(ctx context.Context, legID int64, strategy, tradeNum, accountCode string) error {
	const query = `
	UPDATE legs SET strategy = ?, trade_num = ?, account_code = ?, processed = 1 WHERE id = ?`

	result, err := r.q.ExecContext(ctx, query, strategy, tradeNum, accountCode, legID)
	if err != nil {
		return fmt.Errorf("failed to mark leg %d processed: %w", legID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for leg %d: %w", legID, err)
	}
	if affected == 0 {
		return fmt.Errorf("leg %d not found: %w", legID, ports.ErrNotFound)
	}
	return nil
}
