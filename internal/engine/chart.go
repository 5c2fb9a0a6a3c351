package engine

import (
	"context"
	"fmt"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Chart holds the deployment-configured account codes the engine posts
// against. Exact codes are configuration, not engine logic; the engine only
// cares which role each code plays.
type Chart struct {
	Cash          string
	LongCall      string
	LongPut       string
	ShortCall     string
	ShortPut      string
	StockPosition string
	RealizedGain  string
	RealizedLoss  string
}

// Validate checks that every role has a code.
func (c Chart) Validate() error {
	roles := map[string]string{
		"cash":           c.Cash,
		"long call":      c.LongCall,
		"long put":       c.LongPut,
		"short call":     c.ShortCall,
		"short put":      c.ShortPut,
		"stock position": c.StockPosition,
		"realized gain":  c.RealizedGain,
		"realized loss":  c.RealizedLoss,
	}
	for role, code := range roles {
		if code == "" {
			return fmt.Errorf("%w: missing account code for %s", ports.ErrConfigurationError, role)
		}
	}
	return nil
}

// PositionAccount maps (position type, option type) to the account holding
// that contract. Long positions are assets, short positions liabilities.
func (c Chart) PositionAccount(pt domain.PositionType, ot domain.OptionType) (string, error) {
	switch {
	case pt == domain.Long && ot == domain.Call:
		return c.LongCall, nil
	case pt == domain.Long && ot == domain.Put:
		return c.LongPut, nil
	case pt == domain.Short && ot == domain.Call:
		return c.ShortCall, nil
	case pt == domain.Short && ot == domain.Put:
		return c.ShortPut, nil
	}
	return "", fmt.Errorf("%w: no position account for %s/%s", ports.ErrConfigurationError, pt, ot)
}

// seedAccount describes one chart row for SeedChartOfAccounts.
type seedAccount struct {
	code          string
	name          string
	accountType   domain.AccountType
	normalBalance domain.EntryType
}

func (c Chart) seedAccounts() []seedAccount {
	return []seedAccount{
		{c.Cash, "Cash", domain.AccountAsset, domain.Debit},
		{c.LongCall, "Long Call Options", domain.AccountAsset, domain.Debit},
		{c.LongPut, "Long Put Options", domain.AccountAsset, domain.Debit},
		{c.ShortCall, "Short Call Options", domain.AccountLiability, domain.Credit},
		{c.ShortPut, "Short Put Options", domain.AccountLiability, domain.Credit},
		{c.StockPosition, "Stock Positions", domain.AccountAsset, domain.Debit},
		{c.RealizedGain, "Realized Gains", domain.AccountRevenue, domain.Credit},
		{c.RealizedLoss, "Realized Losses", domain.AccountExpense, domain.Debit},
	}
}

// SeedChartOfAccounts idempotently creates the configured accounts. Existing
// accounts are left untouched, so balances survive re-runs.
func SeedChartOfAccounts(ctx context.Context, store ports.Store, chart Chart, log ports.Logger) error {
	if err := chart.Validate(); err != nil {
		return err
	}
	for _, s := range chart.seedAccounts() {
		existing, err := store.Accounts().FindByCode(ctx, s.code)
		if err != nil {
			return fmt.Errorf("failed to check account %s: %w", s.code, err)
		}
		if existing != nil {
			continue
		}
		acc := &domain.Account{
			Code:          s.code,
			Name:          s.name,
			Type:          s.accountType,
			NormalBalance: s.normalBalance,
		}
		if _, err := store.Accounts().Create(ctx, acc); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", s.code, err)
		}
		log.Info(ctx, "Account seeded", map[string]interface{}{"code": s.code, "name": s.name})
	}
	return nil
}
