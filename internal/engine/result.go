package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// LegAction names what the engine did with a leg.
type LegAction string

const (
	ActionOpenPosition  LegAction = "OPEN_POSITION"
	ActionClosePosition LegAction = "CLOSE_POSITION"
	ActionSettlement    LegAction = "EXERCISE_SETTLEMENT"
	ActionOpenStockLot  LegAction = "OPEN_STOCK_LOT"
)

// LegResult reports one committed (or flagged) leg. JournalID and AccountCode
// are zero for flagged results; CostBasis is set by open paths, RealizedPL by
// the close path.
type LegResult struct {
	LegID       int64
	JournalID   int64
	AccountCode string
	CostBasis   domain.Money
	RealizedPL  domain.Money
	Action      LegAction
	Skipped     bool
	Reason      domain.SkipReason
}

// SkippedLeg reports a close leg the batch carried past: enough contract
// identity to find the missing counterpart later.
type SkippedLeg struct {
	LegID    int64
	Reason   domain.SkipReason
	Symbol   string
	Strike   decimal.Decimal
	Contract domain.ContractType
	Expiry   time.Time
}

// CommitResult is the terminal output of one trade commit. Skips are per-leg
// outcomes, not batch failures: Success stays true when legs were skipped.
type CommitResult struct {
	Success bool
	Results []LegResult
	Skipped []SkippedLeg
}
