package domain

import "time"

// TradingPosition tracks one option contract from open to close.
// Created by the position opener; mutated exactly once, at close, by the
// position closer or the exercise/assignment resolver; never deleted.
type TradingPosition struct {
	ID int64

	// Contract identity. StrikePrice is minor units for exact matching.
	Symbol         string
	OptionType     OptionType
	StrikePrice    Money
	ExpirationDate time.Time

	PositionType PositionType // LONG if opened by buying, SHORT by selling
	Quantity     int64
	OpenPrice    Money // per contract, minor units
	OpenFees     Money
	OpenDate     time.Time
	CostBasis    Money
	Status       PositionStatus

	// Close-side fields, zero until the position is closed.
	ClosePrice Money
	CloseFees  Money
	CloseDate  time.Time
	Proceeds   Money
	RealizedPL Money

	Strategy   string
	TradeNum   string
	OpenLegID  int64
	CloseLegID int64
}

// IsOpen checks if the position status is open.
func (p *TradingPosition) IsOpen() bool {
	return p.Status == StatusOpen
}

// StockLot is a stock acquisition tracked for cost basis. Sell-side FIFO
// consumption (drawing down RemainingQuantity, splitting lots) is an extension
// point, not implemented here.
type StockLot struct {
	ID                int64
	Symbol            string
	AcquiredDate      time.Time
	OriginalQuantity  int64
	RemainingQuantity int64
	CostPerShare      Money
	TotalCostBasis    Money
	Fees              Money
	Status            PositionStatus
	OpenLegID         int64
}
