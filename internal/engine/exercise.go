package engine

import (
	"context"
	"fmt"

	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// ResolveSettlement handles stock legs that settle an exercised or assigned
// option. These legs carry no option identity, so matching is by trade number.
// Per-leg realized PnL is intentionally not posted: PnL for settled trades is
// attributed at the trade level by reporting, and the position closes with a
// zero placeholder.
//
// Legs whose amount or price is exactly zero are pure share-transfer artifacts
// of the exercise, not economic events: no journal rows are written, but the
// leg is still reported (and later marked processed) with a structured reason.
// A missing trade match is recoverable and returns nil, nil.
func (e *Engine) ResolveSettlement(ctx context.Context, tx ports.Tx, leg *domain.Leg) (*LegResult, error) {
	if leg.Amount.IsZero() || leg.Price.IsZero() {
		e.logger.Debug(ctx, "Zero-amount settlement transfer, no posting", map[string]interface{}{
			"legID":    leg.ID,
			"symbol":   leg.Symbol,
			"tradeNum": leg.TradeNum,
		})
		return &LegResult{
			LegID:   leg.ID,
			Action:  ActionSettlement,
			Skipped: true,
			Reason:  domain.SkipZeroAmountTransfer,
		}, nil
	}

	pos, err := tx.Positions().FindOldestOpenByTradeNum(ctx, leg.TradeNum)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open position for trade %s: %w", leg.TradeNum, err)
	}
	if pos == nil {
		return nil, nil
	}

	// The leg itself is a stock transaction: post its cash movement against
	// the stock position account. Only the gain/loss lines are skipped.
	// Cash normally moves out on a buy and in on a sell; fees larger than a
	// small sell amount flip the cash side, and a net of exactly zero posts
	// nothing (mirrors the close path's sign handling).
	var amount domain.Money
	cashSide := domain.Credit
	if leg.IsBuy() {
		amount = domain.MoneyFromDecimal(leg.Amount.Abs().Add(leg.Fees))
	} else {
		amount = domain.MoneyFromDecimal(leg.Amount.Abs().Sub(leg.Fees))
		cashSide = domain.Debit
	}
	if amount < 0 {
		cashSide = cashSide.Opposite()
	}

	var journalID int64
	if amount != 0 {
		lines := []ledger.Line{
			{AccountCode: e.chart.Cash, Amount: amount.Abs(), Type: cashSide},
			{AccountCode: e.chart.StockPosition, Amount: amount.Abs(), Type: cashSide.Opposite()},
		}
		txn, err := e.poster.Post(ctx, tx, ledger.Posting{
			Date:        leg.Date,
			Description: fmt.Sprintf("%s settlement %s x%d", leg.Kind, leg.Symbol, leg.Quantity),
			ExternalID:  leg.ExternalID,
			Strategy:    leg.Strategy,
			TradeNum:    leg.TradeNum,
			Amount:      amount,
			Lines:       lines,
		})
		if err != nil {
			return nil, err
		}
		journalID = txn.ID
	}

	pos.Status = domain.StatusClosed
	pos.ClosePrice = domain.MoneyFromDecimal(leg.Price)
	pos.CloseFees = domain.MoneyFromDecimal(leg.Fees)
	pos.CloseDate = leg.Date
	pos.Proceeds = amount
	pos.RealizedPL = 0
	pos.CloseLegID = leg.ID
	if err := tx.Positions().Update(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to close settled position %d: %w", pos.ID, err)
	}

	e.logger.Debug(ctx, "Position settled by exercise/assignment", map[string]interface{}{
		"legID":      leg.ID,
		"journalID":  journalID,
		"positionID": pos.ID,
		"kind":       leg.Kind,
	})
	return &LegResult{
		LegID:       leg.ID,
		JournalID:   journalID,
		AccountCode: e.chart.StockPosition,
		Action:      ActionSettlement,
	}, nil
}
