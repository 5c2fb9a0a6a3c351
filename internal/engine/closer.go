package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// ClosePosition converts a plain close leg into a realized-PnL posting and
// closes the matched position. Matching is FIFO over open positions with the
// same contract identity. A missing match is recoverable: the method returns
// nil, nil and the committer records the skip without aborting the batch.
func (e *Engine) ClosePosition(ctx context.Context, tx ports.Tx, leg *domain.Leg) (*LegResult, error) {
	optionType, ok := leg.Contract.OptionType()
	if !ok {
		return nil, fmt.Errorf("%w: close leg %d has contract type %q, want CALL or PUT",
			ports.ErrMalformedLeg, leg.ID, leg.Contract)
	}

	pos, err := tx.Positions().FindOldestOpenByContract(ctx,
		leg.Symbol, domain.MoneyFromDecimal(leg.Strike), optionType, leg.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open position for leg %d: %w", leg.ID, err)
	}
	if pos == nil {
		return nil, nil
	}

	// Selling to close collects premium net of fees; buying to close pays
	// premium plus fees. Mirrors the opener's fee handling.
	gross := leg.Price.Mul(decimal.NewFromInt(leg.Quantity)).Mul(optionMultiplier)
	var proceeds domain.Money
	if leg.IsBuy() {
		proceeds = domain.MoneyFromDecimal(gross.Add(leg.Fees))
	} else {
		proceeds = domain.MoneyFromDecimal(gross.Sub(leg.Fees))
	}

	var realizedPL domain.Money
	if pos.PositionType == domain.Long {
		realizedPL = proceeds - pos.CostBasis
	} else {
		realizedPL = pos.CostBasis - proceeds
	}

	accountCode, err := e.chart.PositionAccount(pos.PositionType, pos.OptionType)
	if err != nil {
		return nil, err
	}

	// Release the position account at original cost, settle cash at proceeds,
	// balance the difference into the gain or loss account.
	// Cash normally moves toward the closer on a long close and away on a
	// short close; fees larger than the premium flip the cash side.
	cashSide := domain.Debit
	if pos.PositionType == domain.Short {
		cashSide = domain.Credit
	}
	if proceeds < 0 {
		cashSide = cashSide.Opposite()
	}
	var lines []ledger.Line
	if proceeds != 0 {
		lines = append(lines, ledger.Line{AccountCode: e.chart.Cash, Amount: proceeds.Abs(), Type: cashSide})
	}
	releaseSide := domain.Credit
	if pos.PositionType == domain.Short {
		releaseSide = domain.Debit
	}
	lines = append(lines, ledger.Line{AccountCode: accountCode, Amount: pos.CostBasis, Type: releaseSide})
	if realizedPL > 0 {
		lines = append(lines, ledger.Line{AccountCode: e.chart.RealizedGain, Amount: realizedPL, Type: domain.Credit})
	} else if realizedPL < 0 {
		lines = append(lines, ledger.Line{AccountCode: e.chart.RealizedLoss, Amount: realizedPL.Abs(), Type: domain.Debit})
	}

	txn, err := e.poster.Post(ctx, tx, ledger.Posting{
		Date: leg.Date,
		Description: fmt.Sprintf("Close %s %s %s %s x%d",
			pos.PositionType, pos.Symbol, pos.OptionType, leg.Strike.StringFixed(2), leg.Quantity),
		ExternalID: leg.ExternalID,
		Strategy:   leg.Strategy,
		TradeNum:   leg.TradeNum,
		Amount:     proceeds,
		Lines:      lines,
	})
	if err != nil {
		return nil, err
	}

	pos.Status = domain.StatusClosed
	pos.ClosePrice = domain.MoneyFromDecimal(leg.Price)
	pos.CloseFees = domain.MoneyFromDecimal(leg.Fees)
	pos.CloseDate = leg.Date
	pos.Proceeds = proceeds
	pos.RealizedPL = realizedPL
	pos.CloseLegID = leg.ID
	if err := tx.Positions().Update(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to close position %d: %w", pos.ID, err)
	}

	e.logger.Debug(ctx, "Position closed", map[string]interface{}{
		"legID":      leg.ID,
		"journalID":  txn.ID,
		"positionID": pos.ID,
		"proceeds":   proceeds.String(),
		"realizedPL": realizedPL.String(),
	})
	return &LegResult{
		LegID:       leg.ID,
		JournalID:   txn.ID,
		AccountCode: accountCode,
		RealizedPL:  realizedPL,
		Action:      ActionClosePosition,
	}, nil
}
