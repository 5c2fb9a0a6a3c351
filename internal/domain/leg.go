package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg is one imported trade line: a single buy or sell event that may open or
// close a position. Decimal fields hold the broker export verbatim; the engine
// converts them to Money when it computes.
type Leg struct {
	ID         int64
	ExternalID string // importer-assigned, referenced by journal transactions
	Date       time.Time
	Symbol     string
	Strike     decimal.Decimal
	Expiry     time.Time
	Contract   ContractType
	Action     LegAction
	Effect     PositionEffect
	Quantity   int64
	Price      decimal.Decimal // per share/contract, major units
	Fees       decimal.Decimal
	Amount     decimal.Decimal // signed cash amount from the export
	Name       string          // free-text description from the export
	Kind       LegKind

	// Back-annotated by the commit orchestrator.
	Strategy    string
	TradeNum    string
	AccountCode string
	Processed   bool
}

// IsBuy reports whether the leg is a buy.
func (l *Leg) IsBuy() bool { return l.Action == Buy }
