package domain

import "time"

// JournalTransaction is one atomic accounting event. Created once, immutable
// afterwards except for the reversal back-link; reversals are new transactions,
// never edits or deletes.
type JournalTransaction struct {
	ID                    int64
	Date                  time.Time
	Description           string
	ExternalTransactionID string // originating leg reference, optional
	Strategy              string
	TradeNum              string
	Amount                Money // informational headline amount
	PostedAt              time.Time

	IsReversal              bool
	ReversesJournalID       int64 // 0 unless IsReversal
	ReversedByTransactionID int64 // 0 until reversed
}

// LedgerEntry is one debit or credit line of a journal transaction.
// Amount is always positive; the side is carried by Type.
type LedgerEntry struct {
	ID            int64
	TransactionID int64
	AccountCode   string
	Amount        Money
	Type          EntryType
}
