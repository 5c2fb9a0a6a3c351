package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// OpenPosition converts an option open leg into an OPEN position and a
// two-line journal posting. Buying opens LONG (debit the position account,
// credit cash); selling opens SHORT (debit cash, credit the position account).
// Fees add to a buy's cost basis and reduce a sell's premium received.
func (e *Engine) OpenPosition(ctx context.Context, tx ports.Tx, leg *domain.Leg) (*LegResult, error) {
	optionType, ok := leg.Contract.OptionType()
	if !ok {
		return nil, fmt.Errorf("%w: open leg %d has contract type %q, want CALL or PUT",
			ports.ErrMalformedLeg, leg.ID, leg.Contract)
	}
	if leg.Quantity <= 0 {
		return nil, fmt.Errorf("%w: open leg %d has non-positive quantity %d",
			ports.ErrMalformedLeg, leg.ID, leg.Quantity)
	}

	positionType := domain.Short
	if leg.IsBuy() {
		positionType = domain.Long
	}
	accountCode, err := e.chart.PositionAccount(positionType, optionType)
	if err != nil {
		return nil, err
	}

	// price x quantity x 100, fees folded in before the single cent rounding.
	gross := leg.Price.Mul(decimal.NewFromInt(leg.Quantity)).Mul(optionMultiplier)
	var costBasis domain.Money
	if leg.IsBuy() {
		costBasis = domain.MoneyFromDecimal(gross.Add(leg.Fees))
	} else {
		costBasis = domain.MoneyFromDecimal(gross.Sub(leg.Fees))
	}

	lines := []ledger.Line{
		{AccountCode: accountCode, Amount: costBasis, Type: domain.Debit},
		{AccountCode: e.chart.Cash, Amount: costBasis, Type: domain.Credit},
	}
	if !leg.IsBuy() {
		lines[0].Type = domain.Credit
		lines[1].Type = domain.Debit
	}

	txn, err := e.poster.Post(ctx, tx, ledger.Posting{
		Date: leg.Date,
		Description: fmt.Sprintf("Open %s %s %s %s x%d",
			positionType, leg.Symbol, optionType, leg.Strike.StringFixed(2), leg.Quantity),
		ExternalID: leg.ExternalID,
		Strategy:   leg.Strategy,
		TradeNum:   leg.TradeNum,
		Amount:     costBasis,
		Lines:      lines,
	})
	if err != nil {
		return nil, err
	}

	pos := &domain.TradingPosition{
		Symbol:         leg.Symbol,
		OptionType:     optionType,
		StrikePrice:    domain.MoneyFromDecimal(leg.Strike),
		ExpirationDate: leg.Expiry,
		PositionType:   positionType,
		Quantity:       leg.Quantity,
		OpenPrice:      domain.MoneyFromDecimal(leg.Price),
		OpenFees:       domain.MoneyFromDecimal(leg.Fees),
		OpenDate:       leg.Date,
		CostBasis:      costBasis,
		Status:         domain.StatusOpen,
		Strategy:       leg.Strategy,
		TradeNum:       leg.TradeNum,
		OpenLegID:      leg.ID,
	}
	if _, err := tx.Positions().Create(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to create position for leg %d: %w", leg.ID, err)
	}

	e.logger.Debug(ctx, "Position opened", map[string]interface{}{
		"legID":     leg.ID,
		"journalID": txn.ID,
		"symbol":    leg.Symbol,
		"type":      string(positionType) + "/" + string(optionType),
		"costBasis": costBasis.String(),
	})
	return &LegResult{
		LegID:       leg.ID,
		JournalID:   txn.ID,
		AccountCode: accountCode,
		CostBasis:   costBasis,
		Action:      ActionOpenPosition,
	}, nil
}
