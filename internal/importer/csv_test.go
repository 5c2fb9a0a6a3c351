package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/adapters/memory"
	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const sampleHeader = "date,symbol,strike,expiry,contract_type,action,position_effect,quantity,price,fees,amount,name,strategy,trade_num\n"

func setupImporter(t *testing.T) (*Importer, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	imp, err := New(store, &mockLogger{})
	require.NoError(t, err)
	return imp, store
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("parses legs and collects trade numbers in file order", func(t *testing.T) {
		imp, store := setupImporter(t)
		csv := sampleHeader +
			"2024-03-01,xyz,100,2024-04-19,CALL,SELL,OPEN,1,2.00,0.65,200.00,Sold to open,covered call,T-1\n" +
			"2024-03-01,ABC,50,2024-04-19,PUT,BUY,OPEN,1,3.00,1.00,-300.00,Bought to open,protective put,T-2\n" +
			"2024-03-20,XYZ,100,2024-04-19,CALL,BUY,CLOSE,1,0.50,0.65,-50.00,Bought to close,covered call,T-1\n"

		tradeNums, err := imp.Import(ctx, strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, []string{"T-1", "T-2"}, tradeNums)

		legs, err := store.Legs().FindByTradeNum(ctx, "T-1")
		require.NoError(t, err)
		require.Len(t, legs, 2)

		open := legs[0]
		assert.Equal(t, "XYZ", open.Symbol) // symbol uppercased
		assert.Equal(t, domain.ContractCall, open.Contract)
		assert.Equal(t, domain.Sell, open.Action)
		assert.Equal(t, domain.EffectOpen, open.Effect)
		assert.Equal(t, domain.KindStandard, open.Kind)
		assert.Equal(t, int64(1), open.Quantity)
		assert.True(t, open.Price.Equal(decimal.RequireFromString("2.00")))
		assert.True(t, open.Fees.Equal(decimal.RequireFromString("0.65")))
		assert.NotEmpty(t, open.ExternalID)
		assert.False(t, open.Processed)
	})

	t.Run("detects exercise and assignment kinds from the name", func(t *testing.T) {
		imp, store := setupImporter(t)
		csv := sampleHeader +
			"2024-03-20,XYZ,,,STOCK,BUY,CLOSE,100,45.00,0,-4500.00,Put Assignment settlement,,T-5\n" +
			"2024-03-20,XYZ,,,STOCK,SELL,CLOSE,100,100.00,0,10000.00,Call exercise settlement,,T-6\n" +
			"2024-03-20,XYZ,,,STOCK,BUY,OPEN,100,45.00,1.00,-4500.00,Plain purchase,,T-7\n"

		_, err := imp.Import(ctx, strings.NewReader(csv))
		require.NoError(t, err)

		for tradeNum, want := range map[string]domain.LegKind{
			"T-5": domain.KindAssignment,
			"T-6": domain.KindExercise,
			"T-7": domain.KindStandard,
		} {
			legs, err := store.Legs().FindByTradeNum(ctx, tradeNum)
			require.NoError(t, err)
			require.Len(t, legs, 1)
			assert.Equal(t, want, legs[0].Kind, "trade %s", tradeNum)
			assert.Equal(t, domain.ContractStock, legs[0].Contract)
		}
	})

	t.Run("rejects wrong header", func(t *testing.T) {
		imp, _ := setupImporter(t)
		_, err := imp.Import(ctx, strings.NewReader("date,symbol\n"))
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("rejects bad record with line number", func(t *testing.T) {
		imp, _ := setupImporter(t)
		csv := sampleHeader +
			"2024-03-01,XYZ,100,2024-04-19,CALL,SELL,OPEN,1,2.00,0.65,200.00,ok,,T-1\n" +
			"not-a-date,XYZ,100,2024-04-19,CALL,SELL,OPEN,1,2.00,0.65,200.00,bad,,T-1\n"
		_, err := imp.Import(ctx, strings.NewReader(csv))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 3")
	})

	t.Run("rejects unknown enums", func(t *testing.T) {
		imp, _ := setupImporter(t)
		tests := []struct {
			name string
			row  string
		}{
			{"contract", "2024-03-01,XYZ,100,2024-04-19,FUTURE,SELL,OPEN,1,2.00,0.65,200.00,x,,T-1\n"},
			{"action", "2024-03-01,XYZ,100,2024-04-19,CALL,HOLD,OPEN,1,2.00,0.65,200.00,x,,T-1\n"},
			{"effect", "2024-03-01,XYZ,100,2024-04-19,CALL,SELL,ROLL,1,2.00,0.65,200.00,x,,T-1\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := imp.Import(ctx, strings.NewReader(sampleHeader+tt.row))
				assert.ErrorIs(t, err, ports.ErrInvalidRequest)
			})
		}
	})
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, domain.KindExercise, DetectKind("Option Exercise"))
	assert.Equal(t, domain.KindAssignment, DetectKind("short put ASSIGNMENT"))
	assert.Equal(t, domain.KindStandard, DetectKind("Sold 1 XYZ call"))
	assert.Equal(t, domain.KindStandard, DetectKind(""))
}
