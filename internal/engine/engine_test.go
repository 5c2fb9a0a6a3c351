package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/adapters/memory"
	"tradeledger/internal/domain"
	"tradeledger/internal/ledger"
	"tradeledger/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func testChart() Chart {
	return Chart{
		Cash:          "CASH",
		LongCall:      "LONG_CALL",
		LongPut:       "LONG_PUT",
		ShortCall:     "SHORT_CALL",
		ShortPut:      "SHORT_PUT",
		StockPosition: "STOCK_POSITION",
		RealizedGain:  "REALIZED_GAIN",
		RealizedLoss:  "REALIZED_LOSS",
	}
}

func setupCommitter(t *testing.T) (*Committer, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	log := &mockLogger{}
	require.NoError(t, SeedChartOfAccounts(context.Background(), store, testChart(), log))

	poster, err := ledger.NewPoster(log)
	require.NoError(t, err)
	eng, err := New(testChart(), poster, log)
	require.NoError(t, err)
	committer, err := NewCommitter(store, eng, log)
	require.NoError(t, err)
	return committer, store
}

func storeLeg(t *testing.T, store *memory.Store, leg *domain.Leg) *domain.Leg {
	t.Helper()
	_, err := store.Legs().Create(context.Background(), leg)
	require.NoError(t, err)
	return leg
}

func balance(t *testing.T, store *memory.Store, code string) domain.Money {
	t.Helper()
	acc, err := store.Accounts().FindByCode(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc.Balance
}

// assertBalancesConsistent re-derives every account balance from the journal
// and checks it matches the stored value.
func assertBalancesConsistent(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	accounts, err := store.Accounts().FindAll(ctx)
	require.NoError(t, err)
	for _, acc := range accounts {
		derived, err := store.Journal().SumEntryEffects(ctx, acc.Code)
		require.NoError(t, err)
		assert.Equal(t, acc.Balance, derived, "account %s", acc.Code)
	}
}

var (
	dec        = decimal.RequireFromString
	openDate   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closeDate  = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	expiryDate = time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC)
)

func TestSeedChartOfAccounts(t *testing.T) {
	store := memory.NewStore()
	log := &mockLogger{}
	ctx := context.Background()

	require.NoError(t, SeedChartOfAccounts(ctx, store, testChart(), log))
	accounts, err := store.Accounts().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 8)

	cash, err := store.Accounts().FindByCode(ctx, "CASH")
	require.NoError(t, err)
	require.NotNil(t, cash)
	assert.Equal(t, domain.AccountAsset, cash.Type)
	assert.Equal(t, domain.Debit, cash.NormalBalance)

	shortPut, err := store.Accounts().FindByCode(ctx, "SHORT_PUT")
	require.NoError(t, err)
	require.NotNil(t, shortPut)
	assert.Equal(t, domain.AccountLiability, shortPut.Type)
	assert.Equal(t, domain.Credit, shortPut.NormalBalance)

	// Re-seeding must not duplicate or reset anything.
	require.NoError(t, store.Accounts().ApplyEntryEffect(ctx, "CASH", 500))
	require.NoError(t, SeedChartOfAccounts(ctx, store, testChart(), log))
	accounts, err = store.Accounts().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 8)
	assert.Equal(t, domain.Money(500), balance(t, store, "CASH"))
}

func TestCommitTrade_ShortCallLifecycle(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	// Sell 1 XYZ 100 call at 2.00 with 0.65 fees: premium net of fees.
	open := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.00"), Fees: dec("0.65"), Amount: dec("200.00"),
		Kind: domain.KindStandard, TradeNum: "T-1",
	})
	res, err := committer.CommitTrade(ctx, "covered call", "T-1", []*domain.Leg{open})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionOpenPosition, res.Results[0].Action)
	assert.Equal(t, domain.Money(19935), res.Results[0].CostBasis)
	assert.Equal(t, "SHORT_CALL", res.Results[0].AccountCode)

	// Premium received: cash up, short liability up.
	assert.Equal(t, domain.Money(19935), balance(t, store, "CASH"))
	assert.Equal(t, domain.Money(19935), balance(t, store, "SHORT_CALL"))

	// Buy it back at 0.50 with 0.65 fees.
	closeLeg := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Buy, Effect: domain.EffectClose,
		Quantity: 1, Price: dec("0.50"), Fees: dec("0.65"), Amount: dec("-50.00"),
		Kind: domain.KindStandard, TradeNum: "T-1",
	})
	res, err = committer.CommitTrade(ctx, "covered call", "T-1", []*domain.Leg{closeLeg})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionClosePosition, res.Results[0].Action)
	assert.Equal(t, domain.Money(14870), res.Results[0].RealizedPL)

	// 199.35 received minus 50.65 paid back.
	assert.Equal(t, domain.Money(14870), balance(t, store, "CASH"))
	assert.Equal(t, domain.Money(0), balance(t, store, "SHORT_CALL"))
	assert.Equal(t, domain.Money(14870), balance(t, store, "REALIZED_GAIN"))

	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, domain.StatusClosed, pos.Status)
	assert.Equal(t, domain.Short, pos.PositionType)
	assert.Equal(t, domain.Money(19935), pos.CostBasis)
	assert.Equal(t, domain.Money(5065), pos.Proceeds)
	assert.Equal(t, domain.Money(14870), pos.RealizedPL)
	assert.Equal(t, closeLeg.ID, pos.CloseLegID)

	// Both legs back-annotated with the account they hit.
	legs, err := store.Legs().FindByTradeNum(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.True(t, leg.Processed)
		assert.Equal(t, "SHORT_CALL", leg.AccountCode)
		assert.Equal(t, "covered call", leg.Strategy)
	}

	assertBalancesConsistent(t, store)
}

func TestCommitTrade_LongPutLoss(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	// Buy 1 put at 3.00 with 1.00 fees, sell it at 1.00 with 1.00 fees.
	open := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "ABC", Strike: dec("50"), Expiry: expiryDate,
		Contract: domain.ContractPut, Action: domain.Buy, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("3.00"), Fees: dec("1.00"), Amount: dec("-300.00"),
		Kind: domain.KindStandard, TradeNum: "T-2",
	})
	closeLeg := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "ABC", Strike: dec("50"), Expiry: expiryDate,
		Contract: domain.ContractPut, Action: domain.Sell, Effect: domain.EffectClose,
		Quantity: 1, Price: dec("1.00"), Fees: dec("1.00"), Amount: dec("100.00"),
		Kind: domain.KindStandard, TradeNum: "T-2",
	})

	// Open and close commit as one trade: opens run before closes.
	res, err := committer.CommitTrade(ctx, "protective put", "T-2", []*domain.Leg{open, closeLeg})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 2)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, domain.Money(30100), res.Results[0].CostBasis)
	assert.Equal(t, domain.Money(-20200), res.Results[1].RealizedPL)

	assert.Equal(t, domain.Money(-20200), balance(t, store, "CASH"))
	assert.Equal(t, domain.Money(0), balance(t, store, "LONG_PUT"))
	assert.Equal(t, domain.Money(20200), balance(t, store, "REALIZED_LOSS"))
	assert.Equal(t, domain.Money(0), balance(t, store, "REALIZED_GAIN"))

	assertBalancesConsistent(t, store)
}

func TestCommitTrade_FIFOMatchesOldestOpen(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	// Newer open imported first; the close must still match the older one.
	newer := storeLeg(t, store, &domain.Leg{
		Date: openDate.AddDate(0, 0, 5), Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.50"), Fees: dec("0.65"), Amount: dec("250.00"),
		Kind: domain.KindStandard, TradeNum: "T-3",
	})
	older := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.00"), Fees: dec("0.65"), Amount: dec("200.00"),
		Kind: domain.KindStandard, TradeNum: "T-3",
	})
	_, err := committer.CommitTrade(ctx, "", "T-3", []*domain.Leg{newer, older})
	require.NoError(t, err)

	closeLeg := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Buy, Effect: domain.EffectClose,
		Quantity: 1, Price: dec("0.50"), Fees: dec("0.65"), Amount: dec("-50.00"),
		Kind: domain.KindStandard, TradeNum: "T-3",
	})
	_, err = committer.CommitTrade(ctx, "", "T-3", []*domain.Leg{closeLeg})
	require.NoError(t, err)

	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	for _, pos := range positions {
		if pos.OpenLegID == older.ID {
			assert.Equal(t, domain.StatusClosed, pos.Status)
		} else {
			assert.Equal(t, newer.ID, pos.OpenLegID)
			assert.Equal(t, domain.StatusOpen, pos.Status)
		}
	}
}

func TestCommitTrade_SkipsCloseWithoutOpen(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	orphan := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Buy, Effect: domain.EffectClose,
		Quantity: 1, Price: dec("0.50"), Fees: dec("0.65"), Amount: dec("-50.00"),
		Kind: domain.KindStandard, TradeNum: "T-4",
	})
	res, err := committer.CommitTrade(ctx, "", "T-4", []*domain.Leg{orphan})
	require.NoError(t, err)

	// A skip is an outcome, not a failure.
	assert.True(t, res.Success)
	assert.Empty(t, res.Results)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, domain.SkipNoOpenPosition, res.Skipped[0].Reason)
	assert.Equal(t, orphan.ID, res.Skipped[0].LegID)
	assert.Equal(t, "XYZ", res.Skipped[0].Symbol)

	// Nothing posted, but the leg is consumed so re-runs stay idempotent.
	txns, err := store.Journal().FindTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)
	legs, err := store.Legs().FindByTradeNum(ctx, "T-4")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.True(t, legs[0].Processed)
	assert.Empty(t, legs[0].AccountCode)

	unprocessed, err := store.Legs().ListUnprocessedTradeNums(ctx)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestCommitTrade_AssignmentSettlement(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	// Short put gets assigned: the option leg opens the position, the stock
	// leg settles it by trade identity, not contract identity.
	open := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("45"), Expiry: expiryDate,
		Contract: domain.ContractPut, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("1.50"), Fees: dec("0.65"), Amount: dec("150.00"),
		Kind: domain.KindStandard, TradeNum: "T-5",
	})
	_, err := committer.CommitTrade(ctx, "", "T-5", []*domain.Leg{open})
	require.NoError(t, err)
	cashAfterOpen := balance(t, store, "CASH")

	assignment := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ",
		Contract: domain.ContractStock, Action: domain.Buy, Effect: domain.EffectClose,
		Quantity: 100, Price: dec("45.00"), Fees: dec("0"), Amount: dec("-4500.00"),
		Name: "Put assignment", Kind: domain.KindAssignment, TradeNum: "T-5",
	})
	res, err := committer.CommitTrade(ctx, "", "T-5", []*domain.Leg{assignment})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionSettlement, res.Results[0].Action)
	assert.False(t, res.Results[0].Skipped)
	assert.Equal(t, "STOCK_POSITION", res.Results[0].AccountCode)

	// Shares in at strike, cash out; no gain or loss lines for settlements.
	assert.Equal(t, domain.Money(450000), balance(t, store, "STOCK_POSITION"))
	assert.Equal(t, cashAfterOpen-450000, balance(t, store, "CASH"))
	assert.Equal(t, domain.Money(0), balance(t, store, "REALIZED_GAIN"))
	assert.Equal(t, domain.Money(0), balance(t, store, "REALIZED_LOSS"))

	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.StatusClosed, positions[0].Status)
	assert.Equal(t, domain.Money(0), positions[0].RealizedPL)
	assert.Equal(t, assignment.ID, positions[0].CloseLegID)

	assertBalancesConsistent(t, store)
}

func TestCommitTrade_SettlementFeesExceedSellAmount(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	open := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.00"), Fees: dec("0.65"), Amount: dec("200.00"),
		Kind: domain.KindStandard, TradeNum: "T-9",
	})
	_, err := committer.CommitTrade(ctx, "", "T-9", []*domain.Leg{open})
	require.NoError(t, err)
	cashAfterOpen := balance(t, store, "CASH")

	// Selling the settled shares nets less than the fees; the cash side flips
	// instead of aborting the trade on a non-positive line amount.
	settle := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ",
		Contract: domain.ContractStock, Action: domain.Sell, Effect: domain.EffectClose,
		Quantity: 50, Price: dec("0.01"), Fees: dec("0.65"), Amount: dec("0.50"),
		Name: "Exercise settlement", Kind: domain.KindExercise, TradeNum: "T-9",
	})
	res, err := committer.CommitTrade(ctx, "", "T-9", []*domain.Leg{settle})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionSettlement, res.Results[0].Action)
	assert.NotZero(t, res.Results[0].JournalID)

	// 0.50 received minus 0.65 fees: 0.15 leaves cash.
	assert.Equal(t, cashAfterOpen-15, balance(t, store, "CASH"))
	assert.Equal(t, domain.Money(15), balance(t, store, "STOCK_POSITION"))

	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.StatusClosed, positions[0].Status)
	assert.Equal(t, domain.Money(-15), positions[0].Proceeds)

	assertBalancesConsistent(t, store)
}

func TestCommitTrade_SettlementNetOfZeroPostsNothing(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	open := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.00"), Fees: dec("0.65"), Amount: dec("200.00"),
		Kind: domain.KindStandard, TradeNum: "T-10",
	})
	_, err := committer.CommitTrade(ctx, "", "T-10", []*domain.Leg{open})
	require.NoError(t, err)

	// Fees exactly cancel the sell amount; the position still closes but no
	// empty posting is attempted.
	settle := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ",
		Contract: domain.ContractStock, Action: domain.Sell, Effect: domain.EffectClose,
		Quantity: 50, Price: dec("0.01"), Fees: dec("0.50"), Amount: dec("0.50"),
		Name: "Exercise settlement", Kind: domain.KindExercise, TradeNum: "T-10",
	})
	res, err := committer.CommitTrade(ctx, "", "T-10", []*domain.Leg{settle})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.Zero(t, res.Results[0].JournalID)

	txns, err := store.Journal().FindTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txns, 1) // just the open

	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.StatusClosed, positions[0].Status)
	assert.Equal(t, domain.Money(0), positions[0].Proceeds)
}

func TestCommitTrade_ZeroAmountSettlementLeavesLedgerUntouched(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	open := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.00"), Fees: dec("0.65"), Amount: dec("200.00"),
		Kind: domain.KindStandard, TradeNum: "T-6",
	})
	_, err := committer.CommitTrade(ctx, "", "T-6", []*domain.Leg{open})
	require.NoError(t, err)

	// Zero-amount share transfer rides along with an exercise; it carries no
	// economics and must not post or close anything.
	transfer := storeLeg(t, store, &domain.Leg{
		Date: closeDate, Symbol: "XYZ",
		Contract: domain.ContractStock, Action: domain.Buy, Effect: domain.EffectClose,
		Quantity: 100, Price: dec("0"), Fees: dec("0"), Amount: dec("0"),
		Name: "Exercise share transfer", Kind: domain.KindExercise, TradeNum: "T-6",
	})
	res, err := committer.CommitTrade(ctx, "", "T-6", []*domain.Leg{transfer})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Skipped)
	assert.Equal(t, domain.SkipZeroAmountTransfer, res.Results[0].Reason)
	assert.Zero(t, res.Results[0].JournalID)

	txns, err := store.Journal().FindTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txns, 1) // just the open

	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.StatusOpen, positions[0].Status)
}

func TestCommitTrade_StockLotOpen(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	buy := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ",
		Contract: domain.ContractStock, Action: domain.Buy, Effect: domain.EffectOpen,
		Quantity: 100, Price: dec("45.00"), Fees: dec("1.00"), Amount: dec("-4500.00"),
		Kind: domain.KindStandard, TradeNum: "T-7",
	})
	res, err := committer.CommitTrade(ctx, "", "T-7", []*domain.Leg{buy})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionOpenStockLot, res.Results[0].Action)
	assert.Equal(t, domain.Money(450100), res.Results[0].CostBasis)

	lots, err := store.StockLots().FindOpenBySymbol(ctx, "XYZ")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	lot := lots[0]
	assert.Equal(t, int64(100), lot.OriginalQuantity)
	assert.Equal(t, int64(100), lot.RemainingQuantity)
	assert.Equal(t, domain.Money(450100), lot.TotalCostBasis)
	assert.Equal(t, domain.Money(4501), lot.CostPerShare)
	assert.Equal(t, buy.ID, lot.OpenLegID)

	assert.Equal(t, domain.Money(450100), balance(t, store, "STOCK_POSITION"))
	assert.Equal(t, domain.Money(-450100), balance(t, store, "CASH"))
}

func TestCommitTrade_MalformedOpenRollsBackWholeTrade(t *testing.T) {
	committer, store := setupCommitter(t)
	ctx := context.Background()

	good := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ", Strike: dec("100"), Expiry: expiryDate,
		Contract: domain.ContractCall, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 1, Price: dec("2.00"), Fees: dec("0.65"), Amount: dec("200.00"),
		Kind: domain.KindStandard, TradeNum: "T-8",
	})
	// A stock sell cannot open a lot; this leg is broken data.
	bad := storeLeg(t, store, &domain.Leg{
		Date: openDate, Symbol: "XYZ",
		Contract: domain.ContractStock, Action: domain.Sell, Effect: domain.EffectOpen,
		Quantity: 100, Price: dec("45.00"), Fees: dec("1.00"), Amount: dec("4500.00"),
		Kind: domain.KindStandard, TradeNum: "T-8",
	})

	_, err := committer.CommitTrade(ctx, "", "T-8", []*domain.Leg{good, bad})
	require.ErrorIs(t, err, ports.ErrMalformedLeg)

	// The good leg posted first inside the same transaction; everything rolls
	// back together.
	assert.Equal(t, domain.Money(0), balance(t, store, "CASH"))
	assert.Equal(t, domain.Money(0), balance(t, store, "SHORT_CALL"))
	txns, err := store.Journal().FindTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)
	positions, err := store.Positions().FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	legs, err := store.Legs().FindByTradeNum(ctx, "T-8")
	require.NoError(t, err)
	for _, leg := range legs {
		assert.False(t, leg.Processed)
	}
}

func TestCommitTrade_RequiresTradeNum(t *testing.T) {
	committer, _ := setupCommitter(t)
	_, err := committer.CommitTrade(context.Background(), "", "", nil)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestOpenPosition_Validation(t *testing.T) {
	_, store := setupCommitter(t)
	log := &mockLogger{}
	poster, err := ledger.NewPoster(log)
	require.NoError(t, err)
	eng, err := New(testChart(), poster, log)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("stock contract rejected", func(t *testing.T) {
		_, err := eng.OpenPosition(ctx, store, &domain.Leg{
			Contract: domain.ContractStock, Action: domain.Buy, Quantity: 1,
			Price: dec("1.00"), Fees: dec("0"),
		})
		assert.ErrorIs(t, err, ports.ErrMalformedLeg)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		_, err := eng.OpenPosition(ctx, store, &domain.Leg{
			Contract: domain.ContractCall, Action: domain.Buy, Quantity: 0,
			Price: dec("1.00"), Fees: dec("0"),
		})
		assert.ErrorIs(t, err, ports.ErrMalformedLeg)
	})
}
