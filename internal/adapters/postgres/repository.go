package postgres

import (
	"context"
	"fmt"
	"time"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"

	"github.com/jackc/pgx/v5"
)

// --- AccountRepository ---

type accountRepo struct{ repos }

func (r accountRepo) Create(ctx context.Context, acc *domain.Account) (int64, error) {
	const query = `
	INSERT INTO accounts (code, name, account_type, normal_balance, balance, version)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	err := r.q.QueryRow(ctx, query,
		acc.Code, acc.Name, acc.Type, acc.NormalBalance, acc.Balance, acc.Version).Scan(&acc.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, fmt.Errorf("account %s: %w", acc.Code, ports.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("insert account %s: %w", acc.Code, err)
	}
	return acc.ID, nil
}

func (r accountRepo) FindByCode(ctx context.Context, code string) (*domain.Account, error) {
	const query = `
	SELECT id, code, name, account_type, normal_balance, balance, version
	FROM accounts WHERE code = $1`

	acc, err := scanAccount(r.q.QueryRow(ctx, query, code))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query account %s: %w", code, err)
	}
	return acc, nil
}

func (r accountRepo) FindAll(ctx context.Context) ([]*domain.Account, error) {
	const query = `
	SELECT id, code, name, account_type, normal_balance, balance, version
	FROM accounts ORDER BY code`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

func (r accountRepo) ApplyEntryEffect(ctx context.Context, code string, delta domain.Money) error {
	const query = `UPDATE accounts SET balance = balance + $1, version = version + 1 WHERE code = $2`

	tag, err := r.q.Exec(ctx, query, int64(delta), code)
	if err != nil {
		return fmt.Errorf("update balance of account %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found for balance update: %w", code, ports.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.Balance, &a.Version)
	if err != nil {
		return nil, err
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
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0))
	RETURNING id`

	err := r.q.QueryRow(ctx, query,
		txn.Date, txn.Description, txn.ExternalTransactionID, txn.Strategy, txn.TradeNum,
		int64(txn.Amount), txn.PostedAt, txn.IsReversal, txn.ReversesJournalID).Scan(&txn.ID)
	if err != nil {
		return 0, fmt.Errorf("insert journal transaction: %w", err)
	}
	return txn.ID, nil
}

func (r journalRepo) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	const query = `
	INSERT INTO ledger_entries (transaction_id, account_code, amount, entry_type)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	err := r.q.QueryRow(ctx, query,
		entry.TransactionID, entry.AccountCode, int64(entry.Amount), entry.Type).Scan(&entry.ID)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry for %s: %w", entry.AccountCode, err)
	}
	return entry.ID, nil
}

const transactionColumns = `
	id, date, description, COALESCE(external_transaction_id, ''), COALESCE(strategy, ''),
	COALESCE(trade_num, ''), amount, posted_at, is_reversal,
	COALESCE(reverses_journal_id, 0), COALESCE(reversed_by_transaction_id, 0)`

func (r journalRepo) FindTransaction(ctx context.Context, id int64) (*domain.JournalTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM journal_transactions WHERE id = $1`

	txn, err := scanTransaction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query journal transaction %d: %w", id, err)
	}
	return txn, nil
}

func (r journalRepo) FindEntriesByTransaction(ctx context.Context, txnID int64) ([]*domain.LedgerEntry, error) {
	const query = `
	SELECT id, transaction_id, account_code, amount, entry_type
	FROM ledger_entries WHERE transaction_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("query entries of transaction %d: %w", txnID, err)
	}
	defer rows.Close()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		e := &domain.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountCode, &e.Amount, &e.Type); err != nil {
			return nil, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, nil
}

func (r journalRepo) FindTransactions(ctx context.Context) ([]*domain.JournalTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM journal_transactions ORDER BY posted_at, id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query journal transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]*domain.JournalTransaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal transaction row: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal transaction rows: %w", err)
	}
	return txns, nil
}

func (r journalRepo) SumEntryEffects(ctx context.Context, accountCode string) (domain.Money, error) {
	const query = `
	SELECT COALESCE(SUM(CASE WHEN e.entry_type = a.normal_balance THEN e.amount ELSE -e.amount END), 0)
	FROM ledger_entries e
	JOIN accounts a ON a.code = e.account_code
	WHERE e.account_code = $1`

	var sum int64
	if err := r.q.QueryRow(ctx, query, accountCode).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum entry effects for %s: %w", accountCode, err)
	}
	return domain.Money(sum), nil
}

func (r journalRepo) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	const markOriginal = `UPDATE journal_transactions SET reversed_by_transaction_id = $1 WHERE id = $2`
	const markReversal = `UPDATE journal_transactions SET is_reversal = TRUE, reverses_journal_id = $1 WHERE id = $2`

	if _, err := r.q.Exec(ctx, markOriginal, reversalID, originalID); err != nil {
		return fmt.Errorf("back-link journal transaction %d: %w", originalID, err)
	}
	if _, err := r.q.Exec(ctx, markReversal, originalID, reversalID); err != nil {
		return fmt.Errorf("flag reversal transaction %d: %w", reversalID, err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.JournalTransaction, error) {
	t := &domain.JournalTransaction{}
	err := row.Scan(&t.ID, &t.Date, &t.Description, &t.ExternalTransactionID, &t.Strategy,
		&t.TradeNum, &t.Amount, &t.PostedAt, &t.IsReversal,
		&t.ReversesJournalID, &t.ReversedByTransactionID)
	if err != nil {
		return nil, err
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
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`

	err := r.q.QueryRow(ctx, query,
		pos.Symbol, pos.OptionType, int64(pos.StrikePrice), pos.ExpirationDate, pos.PositionType,
		pos.Quantity, int64(pos.OpenPrice), int64(pos.OpenFees), pos.OpenDate,
		int64(pos.CostBasis), pos.Status, pos.Strategy, pos.TradeNum, pos.OpenLegID).Scan(&pos.ID)
	if err != nil {
		return 0, fmt.Errorf("insert position for %s: %w", pos.Symbol, err)
	}
	return pos.ID, nil
}

func (r positionRepo) Update(ctx context.Context, pos *domain.TradingPosition) error {
	const query = `
	UPDATE trading_positions
	SET status = $1, close_price = $2, close_fees = $3, close_date = $4,
	    proceeds = $5, realized_pl = $6, close_leg_id = $7
	WHERE id = $8`

	var closeDate *time.Time
	if !pos.CloseDate.IsZero() {
		closeDate = &pos.CloseDate
	}
	tag, err := r.q.Exec(ctx, query,
		pos.Status, int64(pos.ClosePrice), int64(pos.CloseFees), closeDate,
		int64(pos.Proceeds), int64(pos.RealizedPL), pos.CloseLegID, pos.ID)
	if err != nil {
		return fmt.Errorf("update position %d: %w", pos.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	return nil
}

func (r positionRepo) FindOldestOpenByContract(ctx context.Context, symbol string, strike domain.Money, optionType domain.OptionType, expiry time.Time) (*domain.TradingPosition, error) {
	query := `
	SELECT ` + positionColumns + `
	FROM trading_positions
	WHERE symbol = $1 AND strike_price = $2 AND option_type = $3 AND expiration_date = $4 AND status = $5
	ORDER BY open_date, id LIMIT 1`

	pos, err := scanPosition(r.q.QueryRow(ctx, query, symbol, int64(strike), optionType, expiry, domain.StatusOpen))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query open position for %s: %w", symbol, err)
	}
	return pos, nil
}

func (r positionRepo) FindOldestOpenByTradeNum(ctx context.Context, tradeNum string) (*domain.TradingPosition, error) {
	query := `
	SELECT ` + positionColumns + `
	FROM trading_positions
	WHERE trade_num = $1 AND status = $2
	ORDER BY open_date, id LIMIT 1`

	pos, err := scanPosition(r.q.QueryRow(ctx, query, tradeNum, domain.StatusOpen))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query open position for trade %s: %w", tradeNum, err)
	}
	return pos, nil
}

func (r positionRepo) FindAll(ctx context.Context) ([]*domain.TradingPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM trading_positions ORDER BY open_date, id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.TradingPosition, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}

func scanPosition(row pgx.Row) (*domain.TradingPosition, error) {
	p := &domain.TradingPosition{}
	var closeDate *time.Time
	err := row.Scan(
		&p.ID, &p.Symbol, &p.OptionType, &p.StrikePrice, &p.ExpirationDate, &p.PositionType,
		&p.Quantity, &p.OpenPrice, &p.OpenFees, &p.OpenDate, &p.CostBasis, &p.Status,
		&p.ClosePrice, &p.CloseFees, &closeDate, &p.Proceeds, &p.RealizedPL,
		&p.Strategy, &p.TradeNum, &p.OpenLegID, &p.CloseLegID)
	if err != nil {
		return nil, err
	}
	if closeDate != nil {
		p.CloseDate = *closeDate
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
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id`

	err := r.q.QueryRow(ctx, query,
		lot.Symbol, lot.AcquiredDate, lot.OriginalQuantity, lot.RemainingQuantity,
		int64(lot.CostPerShare), int64(lot.TotalCostBasis), int64(lot.Fees),
		lot.Status, lot.OpenLegID).Scan(&lot.ID)
	if err != nil {
		return 0, fmt.Errorf("insert stock lot for %s: %w", lot.Symbol, err)
	}
	return lot.ID, nil
}

func (r lotRepo) FindOpenBySymbol(ctx context.Context, symbol string) ([]*domain.StockLot, error) {
	const query = `
	SELECT id, symbol, acquired_date, original_quantity, remaining_quantity,
	       cost_per_share, total_cost_basis, fees, status, COALESCE(open_leg_id, 0)
	FROM stock_lots
	WHERE symbol = $1 AND status = $2
	ORDER BY acquired_date, id`

	rows, err := r.q.Query(ctx, query, symbol, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("query open lots for %s: %w", symbol, err)
	}
	defer rows.Close()

	lots := make([]*domain.StockLot, 0)
	for rows.Next() {
		l := &domain.StockLot{}
		err := rows.Scan(&l.ID, &l.Symbol, &l.AcquiredDate, &l.OriginalQuantity,
			&l.RemainingQuantity, &l.CostPerShare, &l.TotalCostBasis, &l.Fees, &l.Status, &l.OpenLegID)
		if err != nil {
			return nil, fmt.Errorf("scan stock lot row: %w", err)
		}
		lots = append(lots, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock lot rows: %w", err)
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
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, FALSE)
	RETURNING id`

	err := r.q.QueryRow(ctx, query,
		leg.ExternalID, leg.Date, leg.Symbol, leg.Strike.String(), leg.Expiry, leg.Contract,
		leg.Action, leg.Effect, leg.Quantity, leg.Price.String(), leg.Fees.String(),
		leg.Amount.String(), leg.Name, leg.Kind, leg.Strategy, leg.TradeNum).Scan(&leg.ID)
	if err != nil {
		return 0, fmt.Errorf("insert leg for %s: %w", leg.Symbol, err)
	}
	return leg.ID, nil
}

func (r legRepo) FindByTradeNum(ctx context.Context, tradeNum string) ([]*domain.Leg, error) {
	const query = `
	SELECT id, COALESCE(external_id, ''), date, symbol, strike, expiry, contract_type,
	       action, position_effect, quantity, price, fees, amount, COALESCE(name, ''),
	       kind, COALESCE(strategy, ''), COALESCE(trade_num, ''),
	       COALESCE(account_code, ''), processed
	FROM legs WHERE trade_num = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, tradeNum)
	if err != nil {
		return nil, fmt.Errorf("query legs for trade %s: %w", tradeNum, err)
	}
	defer rows.Close()

	legs := make([]*domain.Leg, 0)
	for rows.Next() {
		l := &domain.Leg{}
		err := rows.Scan(&l.ID, &l.ExternalID, &l.Date, &l.Symbol, &l.Strike, &l.Expiry,
			&l.Contract, &l.Action, &l.Effect, &l.Quantity, &l.Price, &l.Fees, &l.Amount,
			&l.Name, &l.Kind, &l.Strategy, &l.TradeNum, &l.AccountCode, &l.Processed)
		if err != nil {
			return nil, fmt.Errorf("scan leg row: %w", err)
		}
		legs = append(legs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leg rows: %w", err)
	}
	return legs, nil
}

func (r legRepo) ListUnprocessedTradeNums(ctx context.Context) ([]string, error) {
	const query = `
	SELECT trade_num FROM legs
	WHERE processed = FALSE AND COALESCE(trade_num, '') != ''
	GROUP BY trade_num ORDER BY MIN(id)`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed trades: %w", err)
	}
	defer rows.Close()

	nums := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan trade number: %w", err)
		}
		nums = append(nums, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade number rows: %w", err)
	}
	return nums, nil
}

func (r legRepo) MarkProcessed(ctx context.Context, legID int64, strategy, tradeNum, accountCode string) error {
	const query = `
	UPDATE legs SET strategy = $1, trade_num = $2, account_code = $3, processed = TRUE WHERE id = $4`

	tag, err := r.q.Exec(ctx, query, strategy, tradeNum, accountCode, legID)
	if err != nil {
		return fmt.Errorf("mark leg %d processed: %w", legID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("leg %d not found: %w", legID, ports.ErrNotFound)
	}
	return nil
}
