package engine

import (
	"context"
	"fmt"

	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// OpenStockLot converts a plain stock buy into a cost-basis lot and a two-line
// posting. Stocks trade 1:1, so unlike options there is no contract
// multiplier; cost basis is the export's cash amount plus fees.
func (e *Engine) OpenStockLot(ctx context.Context, tx ports.Tx, leg *domain.Leg) (*LegResult, error) {
	if leg.Contract != domain.ContractStock || !leg.IsBuy() {
		return nil, fmt.Errorf("%w: leg %d is not a stock buy (%s %s)",
			ports.ErrMalformedLeg, leg.ID, leg.Action, leg.Contract)
	}
	if leg.Quantity <= 0 {
		return nil, fmt.Errorf("%w: stock leg %d has non-positive quantity %d",
			ports.ErrMalformedLeg, leg.ID, leg.Quantity)
	}

	costBasis := domain.MoneyFromDecimal(leg.Amount.Abs().Add(leg.Fees))

	txn, err := e.poster.Post(ctx, tx, ledger.Posting{
		Date:        leg.Date,
		Description: fmt.Sprintf("Buy %s x%d", leg.Symbol, leg.Quantity),
		ExternalID:  leg.ExternalID,
		Strategy:    leg.Strategy,
		TradeNum:    leg.TradeNum,
		Amount:      costBasis,
		Lines: []ledger.Line{
			{AccountCode: e.chart.StockPosition, Amount: costBasis, Type: domain.Debit},
			{AccountCode: e.chart.Cash, Amount: costBasis, Type: domain.Credit},
		},
	})
	if err != nil {
		return nil, err
	}

	lot := &domain.StockLot{
		Symbol:            leg.Symbol,
		AcquiredDate:      leg.Date,
		OriginalQuantity:  leg.Quantity,
		RemainingQuantity: leg.Quantity,
		CostPerShare:      domain.Money(int64(costBasis) / leg.Quantity),
		TotalCostBasis:    costBasis,
		Fees:              domain.MoneyFromDecimal(leg.Fees),
		Status:            domain.StatusOpen,
		OpenLegID:         leg.ID,
	}
	if _, err := tx.StockLots().Create(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to create stock lot for leg %d: %w", leg.ID, err)
	}

	e.logger.Debug(ctx, "Stock lot opened", map[string]interface{}{
		"legID":     leg.ID,
		"journalID": txn.ID,
		"symbol":    leg.Symbol,
		"costBasis": costBasis.String(),
	})
	return &LegResult{
		LegID:       leg.ID,
		JournalID:   txn.ID,
		AccountCode: e.chart.StockPosition,
		CostBasis:   costBasis,
		Action:      ActionOpenStockLot,
	}, nil
}
