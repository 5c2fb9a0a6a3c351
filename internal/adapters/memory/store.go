// Package memory implements ports.Store entirely in process. It exists so the
// engine and ledger tests can run against an isolated store with real
// rollback semantics, in place of the hand-rolled per-interface mocks the
// sqlite adapter tests use.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Store keeps every table as an ordered slice so FIFO queries are
// deterministic. A single mutex serializes access; WithinTx snapshots the
// whole state and restores it when the callback fails.
type Store struct {
	mu sync.Mutex

	accounts     []*domain.Account
	transactions []*domain.JournalTransaction
	entries      []*domain.LedgerEntry
	positions    []*domain.TradingPosition
	lots         []*domain.StockLot
	legs         []*domain.Leg

	nextID int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

var _ ports.Store = (*Store)(nil)

func (s *Store) Accounts() ports.AccountRepository   { return (*accountRepo)(s) }
func (s *Store) Journal() ports.JournalRepository    { return (*journalRepo)(s) }
func (s *Store) Positions() ports.PositionRepository { return (*positionRepo)(s) }
func (s *Store) StockLots() ports.StockLotRepository { return (*lotRepo)(s) }
func (s *Store) Legs() ports.LegRepository           { return (*legRepo)(s) }

// Close implements ports.Store; nothing to release.
func (s *Store) Close() error { return nil }

// WithinTx runs fn against the store and rolls every table back if it errors.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	accounts     []*domain.Account
	transactions []*domain.JournalTransaction
	entries      []*domain.LedgerEntry
	positions    []*domain.TradingPosition
	lots         []*domain.StockLot
	legs         []*domain.Leg
	nextID       int64
}

func cloneSlice[T any](in []*T) []*T {
	out := make([]*T, len(in))
	for i, v := range in {
		c := *v
		out[i] = &c
	}
	return out
}

func (s *Store) snapshot() snapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotState{
		accounts:     cloneSlice(s.accounts),
		transactions: cloneSlice(s.transactions),
		entries:      cloneSlice(s.entries),
		positions:    cloneSlice(s.positions),
		lots:         cloneSlice(s.lots),
		legs:         cloneSlice(s.legs),
		nextID:       s.nextID,
	}
}

func (s *Store) restore(snap snapshotState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.transactions = snap.transactions
	s.entries = snap.entries
	s.positions = snap.positions
	s.lots = snap.lots
	s.legs = snap.legs
	s.nextID = snap.nextID
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

// --- AccountRepository ---

type accountRepo Store

func (r *accountRepo) Create(ctx context.Context, acc *domain.Account) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Code == acc.Code {
			return 0, fmt.Errorf("account %s: %w", acc.Code, ports.ErrDuplicateEntry)
		}
	}
	c := *acc
	c.ID = s.newID()
	s.accounts = append(s.accounts, &c)
	acc.ID = c.ID
	return c.ID, nil
}

func (r *accountRepo) FindByCode(ctx context.Context, code string) (*domain.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Code == code {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *accountRepo) FindAll(ctx context.Context) ([]*domain.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := cloneSlice(s.accounts)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Code < out[j-1].Code; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (r *accountRepo) ApplyEntryEffect(ctx context.Context, code string, delta domain.Money) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Code == code {
			a.Balance += delta
			a.Version++
			return nil
		}
	}
	return fmt.Errorf("account %s: %w", code, ports.ErrNotFound)
}

// --- JournalRepository ---

type journalRepo Store

func (r *journalRepo) CreateTransaction(ctx context.Context, txn *domain.JournalTransaction) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *txn
	c.ID = s.newID()
	s.transactions = append(s.transactions, &c)
	txn.ID = c.ID
	return c.ID, nil
}

func (r *journalRepo) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *entry
	c.ID = s.newID()
	s.entries = append(s.entries, &c)
	entry.ID = c.ID
	return c.ID, nil
}

func (r *journalRepo) FindTransaction(ctx context.Context, id int64) (*domain.JournalTransaction, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r *journalRepo) FindEntriesByTransaction(ctx context.Context, txnID int64) ([]*domain.LedgerEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.TransactionID == txnID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *journalRepo) FindTransactions(ctx context.Context) ([]*domain.JournalTransaction, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.transactions), nil
}

func (r *journalRepo) SumEntryEffects(ctx context.Context, accountCode string) (domain.Money, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var normal domain.EntryType
	found := false
	for _, a := range s.accounts {
		if a.Code == accountCode {
			normal = a.NormalBalance
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("account %s: %w", accountCode, ports.ErrNotFound)
	}
	var sum domain.Money
	for _, e := range s.entries {
		if e.AccountCode != accountCode {
			continue
		}
		if e.Type == normal {
			sum += e.Amount
		} else {
			sum -= e.Amount
		}
	}
	return sum, nil
}

func (r *journalRepo) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var orig, rev *domain.JournalTransaction
	for _, t := range s.transactions {
		switch t.ID {
		case originalID:
			orig = t
		case reversalID:
			rev = t
		}
	}
	if orig == nil || rev == nil {
		return fmt.Errorf("journal transaction pair %d/%d: %w", originalID, reversalID, ports.ErrNotFound)
	}
	orig.ReversedByTransactionID = reversalID
	rev.IsReversal = true
	rev.ReversesJournalID = originalID
	return nil
}

// --- PositionRepository ---

type positionRepo Store

func (r *positionRepo) Create(ctx context.Context, pos *domain.TradingPosition) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *pos
	c.ID = s.newID()
	s.positions = append(s.positions, &c)
	pos.ID = c.ID
	return c.ID, nil
}

func (r *positionRepo) Update(ctx context.Context, pos *domain.TradingPosition) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.positions {
		if p.ID == pos.ID {
			c := *pos
			s.positions[i] = &c
			return nil
		}
	}
	return fmt.Errorf("position %d: %w", pos.ID, ports.ErrNotFound)
}

func (r *positionRepo) FindOldestOpenByContract(ctx context.Context, symbol string, strike domain.Money, optionType domain.OptionType, expiry time.Time) (*domain.TradingPosition, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.TradingPosition
	for _, p := range s.positions {
		if p.Status != domain.StatusOpen || p.Symbol != symbol ||
			p.StrikePrice != strike || p.OptionType != optionType ||
			!p.ExpirationDate.Equal(expiry) {
			continue
		}
		if best == nil || p.OpenDate.Before(best.OpenDate) ||
			(p.OpenDate.Equal(best.OpenDate) && p.ID < best.ID) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (r *positionRepo) FindOldestOpenByTradeNum(ctx context.Context, tradeNum string) (*domain.TradingPosition, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *domain.TradingPosition
	for _, p := range s.positions {
		if p.Status != domain.StatusOpen || p.TradeNum != tradeNum {
			continue
		}
		if best == nil || p.OpenDate.Before(best.OpenDate) ||
			(p.OpenDate.Equal(best.OpenDate) && p.ID < best.ID) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (r *positionRepo) FindAll(ctx context.Context) ([]*domain.TradingPosition, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.positions), nil
}

// --- StockLotRepository ---

type lotRepo Store

func (r *lotRepo) Create(ctx context.Context, lot *domain.StockLot) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *lot
	c.ID = s.newID()
	s.lots = append(s.lots, &c)
	lot.ID = c.ID
	return c.ID, nil
}

func (r *lotRepo) FindOpenBySymbol(ctx context.Context, symbol string) ([]*domain.StockLot, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.StockLot
	for _, l := range s.lots {
		if l.Symbol == symbol && l.Status == domain.StatusOpen {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- LegRepository ---

type legRepo Store

func (r *legRepo) Create(ctx context.Context, leg *domain.Leg) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *leg
	c.ID = s.newID()
	s.legs = append(s.legs, &c)
	leg.ID = c.ID
	return c.ID, nil
}

func (r *legRepo) FindByTradeNum(ctx context.Context, tradeNum string) ([]*domain.Leg, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Leg
	for _, l := range s.legs {
		if l.TradeNum == tradeNum {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *legRepo) ListUnprocessedTradeNums(ctx context.Context) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.legs {
		if l.Processed || l.TradeNum == "" || seen[l.TradeNum] {
			continue
		}
		seen[l.TradeNum] = true
		out = append(out, l.TradeNum)
	}
	return out, nil
}

func (r *legRepo) MarkProcessed(ctx context.Context, legID int64, strategy, tradeNum, accountCode string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.legs {
		if l.ID == legID {
			l.Strategy = strategy
			l.TradeNum = tradeNum
			l.AccountCode = accountCode
			l.Processed = true
			return nil
		}
	}
	return fmt.Errorf("leg %d: %w", legID, ports.ErrNotFound)
}
