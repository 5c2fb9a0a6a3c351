package engine

import (
	"context"
	"fmt"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Committer runs the whole leg set of one trade through the engine as a single
// storage transaction: opens first, then closes, then leg back-annotation.
// Closes that find no open counterpart are skipped and reported, never fatal —
// a close may depend on an open created earlier in the same batch, and broker
// exports are not guaranteed complete. Fatal errors (malformed opens, posting
// integrity failures) roll back the entire trade.
type Committer struct {
	store  ports.Store
	engine *Engine
	logger ports.Logger
}

// NewCommitter creates the trade commit orchestrator.
func NewCommitter(store ports.Store, eng *Engine, logger ports.Logger) (*Committer, error) {
	if store == nil || eng == nil || logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Committer", ports.ErrConfigurationError)
	}
	return &Committer{store: store, engine: eng, logger: logger}, nil
}

// CommitTrade posts all legs belonging to one trade. On success the returned
// result lists every committed leg and every skipped close; a non-nil error
// means nothing of this trade was persisted.
func (c *Committer) CommitTrade(ctx context.Context, strategy, tradeNum string, legs []*domain.Leg) (*CommitResult, error) {
	if tradeNum == "" {
		return nil, fmt.Errorf("%w: trade number is required", ports.ErrInvalidRequest)
	}

	res := &CommitResult{}
	err := c.store.WithinTx(ctx, func(tx ports.Tx) error {
		// Tag legs up front so every posting carries the trade metadata.
		for _, leg := range legs {
			leg.Strategy = strategy
			leg.TradeNum = tradeNum
			switch leg.Effect {
			case domain.EffectOpen, domain.EffectClose:
			default:
				return fmt.Errorf("%w: leg %d has position effect %q",
					ports.ErrMalformedLeg, leg.ID, leg.Effect)
			}
		}

		// Phase 1: opens. Unconditional; a malformed open aborts the commit.
		for _, leg := range legs {
			if leg.Effect != domain.EffectOpen {
				continue
			}
			var (
				lr  *LegResult
				err error
			)
			if leg.Contract == domain.ContractStock {
				lr, err = c.engine.OpenStockLot(ctx, tx, leg)
			} else {
				lr, err = c.engine.OpenPosition(ctx, tx, leg)
			}
			if err != nil {
				return err
			}
			res.Results = append(res.Results, *lr)
		}

		// Phase 2: closes. Settlement legs match by trade number; plain
		// closes by contract identity. No match means skip, not abort.
		for _, leg := range legs {
			if leg.Effect != domain.EffectClose {
				continue
			}
			var (
				lr  *LegResult
				err error
			)
			if leg.Kind.IsSettlement() {
				lr, err = c.engine.ResolveSettlement(ctx, tx, leg)
			} else {
				lr, err = c.engine.ClosePosition(ctx, tx, leg)
			}
			if err != nil {
				return err
			}
			if lr == nil {
				c.logger.Warn(ctx, "Close leg has no matching open position, skipping", map[string]interface{}{
					"legID":    leg.ID,
					"symbol":   leg.Symbol,
					"tradeNum": tradeNum,
				})
				res.Skipped = append(res.Skipped, SkippedLeg{
					LegID:    leg.ID,
					Reason:   domain.SkipNoOpenPosition,
					Symbol:   leg.Symbol,
					Strike:   leg.Strike,
					Contract: leg.Contract,
					Expiry:   leg.Expiry,
				})
				continue
			}
			res.Results = append(res.Results, *lr)
		}

		// Phase 3: back-annotate every leg as seen. Skipped legs keep the
		// strategy/trade tags but carry no account code.
		accountCodes := make(map[int64]string, len(res.Results))
		for _, lr := range res.Results {
			accountCodes[lr.LegID] = lr.AccountCode
		}
		for _, leg := range legs {
			if err := tx.Legs().MarkProcessed(ctx, leg.ID, strategy, tradeNum, accountCodes[leg.ID]); err != nil {
				return fmt.Errorf("failed to mark leg %d processed: %w", leg.ID, err)
			}
			leg.AccountCode = accountCodes[leg.ID]
			leg.Processed = true
		}
		return nil
	})
	if err != nil {
		c.logger.Error(ctx, err, "Trade commit aborted", map[string]interface{}{
			"tradeNum": tradeNum,
			"legs":     len(legs),
		})
		return nil, err
	}

	res.Success = true
	c.logger.Info(ctx, "Trade committed", map[string]interface{}{
		"tradeNum":  tradeNum,
		"committed": len(res.Results),
		"skipped":   len(res.Skipped),
	})
	return res, nil
}
