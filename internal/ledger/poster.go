// Package ledger holds the posting primitive: the only code path that creates
// journal transactions, ledger entries and account balance changes. Everything
// above it (position engine, importers, reports) routes through Post and knows
// nothing about how balances are stored.
package ledger

import (
	"context"
	"fmt"
	"time"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Line is one debit or credit against an account code. Amount must be positive;
// the side is carried by Type.
type Line struct {
	AccountCode string
	Amount      domain.Money
	Type        domain.EntryType
}

// Posting is the input to Post: one balanced accounting event.
type Posting struct {
	Date        time.Time
	Description string
	ExternalID  string // originating leg reference, optional
	Strategy    string
	TradeNum    string
	Amount      domain.Money // informational headline amount
	Lines       []Line
}

// Poster creates balanced journal transactions inside a caller-supplied
// transactional scope.
type Poster struct {
	logger ports.Logger
	now    func() time.Time
}

// NewPoster creates a posting primitive.
func NewPoster(logger ports.Logger) (*Poster, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required for Poster", ports.ErrConfigurationError)
	}
	return &Poster{logger: logger, now: time.Now}, nil
}

// Post atomically creates one journal transaction, one ledger entry per line,
// and applies each line's effect to its account balance. Preconditions are
// checked before any write: every account code must resolve, and debit and
// credit totals must match exactly in minor units. Atomicity is the caller's
// tx; a returned error must make the caller roll the whole scope back.
func (p *Poster) Post(ctx context.Context, tx ports.Tx, in Posting) (*domain.JournalTransaction, error) {
	if len(in.Lines) == 0 {
		return nil, ports.ErrEmptyPosting
	}

	var debits, credits domain.Money
	for _, ln := range in.Lines {
		if ln.Amount <= 0 {
			return nil, fmt.Errorf("%w: line amount must be positive, got %s on %s",
				ports.ErrInvalidRequest, ln.Amount, ln.AccountCode)
		}
		switch ln.Type {
		case domain.Debit:
			debits += ln.Amount
		case domain.Credit:
			credits += ln.Amount
		default:
			return nil, fmt.Errorf("%w: unknown entry type %q", ports.ErrInvalidRequest, ln.Type)
		}
	}
	if debits != credits {
		return nil, &ports.UnbalancedEntryError{Debits: debits, Credits: credits}
	}

	// Resolve every account up front so an unknown code fails before any write.
	accounts := make(map[string]*domain.Account, len(in.Lines))
	for _, ln := range in.Lines {
		if _, ok := accounts[ln.AccountCode]; ok {
			continue
		}
		acc, err := tx.Accounts().FindByCode(ctx, ln.AccountCode)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve account %s: %w", ln.AccountCode, err)
		}
		if acc == nil {
			return nil, &ports.UnknownAccountError{Code: ln.AccountCode}
		}
		accounts[ln.AccountCode] = acc
	}

	txn := &domain.JournalTransaction{
		Date:                  in.Date,
		Description:           in.Description,
		ExternalTransactionID: in.ExternalID,
		Strategy:              in.Strategy,
		TradeNum:              in.TradeNum,
		Amount:                in.Amount,
		PostedAt:              p.now().UTC(),
	}
	txnID, err := tx.Journal().CreateTransaction(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal transaction: %w", err)
	}
	txn.ID = txnID

	for _, ln := range in.Lines {
		entry := &domain.LedgerEntry{
			TransactionID: txnID,
			AccountCode:   ln.AccountCode,
			Amount:        ln.Amount,
			Type:          ln.Type,
		}
		if _, err := tx.Journal().CreateEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to create ledger entry for %s: %w", ln.AccountCode, err)
		}
		effect := accounts[ln.AccountCode].EntryEffect(ln.Type, ln.Amount)
		if err := tx.Accounts().ApplyEntryEffect(ctx, ln.AccountCode, effect); err != nil {
			return nil, fmt.Errorf("failed to apply balance effect to %s: %w", ln.AccountCode, err)
		}
	}

	p.logger.Debug(ctx, "Journal transaction posted", map[string]interface{}{
		"journalID": txnID,
		"lines":     len(in.Lines),
		"amount":    debits.String(),
		"tradeNum":  in.TradeNum,
	})
	return txn, nil
}

// Reverse posts a mirror image of an existing transaction (debits and credits
// swapped) and links the two. The original is never edited or deleted beyond
// the back-link. Reversing a reversal, or reversing twice, is rejected.
func (p *Poster) Reverse(ctx context.Context, tx ports.Tx, journalID int64, date time.Time, description string) (*domain.JournalTransaction, error) {
	orig, err := tx.Journal().FindTransaction(ctx, journalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal transaction %d: %w", journalID, err)
	}
	if orig == nil {
		return nil, fmt.Errorf("journal transaction %d: %w", journalID, ports.ErrNotFound)
	}
	if orig.IsReversal {
		return nil, fmt.Errorf("journal transaction %d is itself a reversal: %w", journalID, ports.ErrInvalidRequest)
	}
	if orig.ReversedByTransactionID != 0 {
		return nil, fmt.Errorf("journal transaction %d: %w", journalID, ports.ErrAlreadyReversed)
	}

	entries, err := tx.Journal().FindEntriesByTransaction(ctx, journalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries of journal transaction %d: %w", journalID, err)
	}

	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{
			AccountCode: e.AccountCode,
			Amount:      e.Amount,
			Type:        e.Type.Opposite(),
		})
	}

	rev, err := p.Post(ctx, tx, Posting{
		Date:        date,
		Description: description,
		ExternalID:  orig.ExternalTransactionID,
		Strategy:    orig.Strategy,
		TradeNum:    orig.TradeNum,
		Amount:      orig.Amount,
		Lines:       lines,
	})
	if err != nil {
		return nil, err
	}
	rev.IsReversal = true
	rev.ReversesJournalID = journalID
	if err := tx.Journal().MarkReversed(ctx, journalID, rev.ID); err != nil {
		return nil, fmt.Errorf("failed to link reversal %d to %d: %w", rev.ID, journalID, err)
	}

	p.logger.Info(ctx, "Journal transaction reversed", map[string]interface{}{
		"journalID":  journalID,
		"reversalID": rev.ID,
	})
	return rev, nil
}
