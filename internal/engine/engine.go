// Package engine turns raw imported trade legs into balanced journal postings
// and position lifecycle records. Opens become positions or stock lots plus a
// two-line posting; closes locate their open position, realize PnL and post it;
// exercise/assignment settlements close by trade identity without PnL lines.
// The trade committer sequences all of that per trade inside one storage
// transaction.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// optionMultiplier is the standard equity-option contract size.
var optionMultiplier = decimal.NewFromInt(100)

// Engine implements the per-leg operations: position open, position close,
// exercise/assignment settlement and stock lot open. It owns no storage; every
// operation runs against a caller-supplied transactional scope.
type Engine struct {
	chart  Chart
	poster *ledger.Poster
	logger ports.Logger
}

// New creates the leg engine.
func New(chart Chart, poster *ledger.Poster, logger ports.Logger) (*Engine, error) {
	if poster == nil || logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Engine", ports.ErrConfigurationError)
	}
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	return &Engine{chart: chart, poster: poster, logger: logger}, nil
}
