package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoneyFromDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Money
	}{
		{name: "whole dollars", input: "200", want: 20000},
		{name: "cents exact", input: "199.35", want: 19935},
		{name: "negative", input: "-50.65", want: -5065},
		{name: "zero", input: "0", want: 0},
		{name: "sub-cent rounds half away from zero", input: "0.005", want: 1},
		{name: "negative sub-cent rounds half away from zero", input: "-0.005", want: -1},
		{name: "sub-cent rounds down", input: "1.004", want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, MoneyFromDecimal(d))
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "199.35", Money(19935).String())
	assert.Equal(t, "-50.65", Money(-5065).String())
	assert.Equal(t, "0.00", Money(0).String())
	assert.Equal(t, "0.05", Money(5).String())
}

func TestMoneyAbs(t *testing.T) {
	assert.Equal(t, Money(5065), Money(-5065).Abs())
	assert.Equal(t, Money(5065), Money(5065).Abs())
	assert.Equal(t, Money(0), Money(0).Abs())
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := Money(14870)
	assert.Equal(t, m, MoneyFromDecimal(m.Decimal()))
	assert.True(t, m.Decimal().Equal(decimal.RequireFromString("148.70")))
}

func TestAccountEntryEffect(t *testing.T) {
	cash := &Account{Code: "CASH", NormalBalance: Debit}
	assert.Equal(t, Money(100), cash.EntryEffect(Debit, 100))
	assert.Equal(t, Money(-100), cash.EntryEffect(Credit, 100))

	shortCall := &Account{Code: "SHORT_CALL", NormalBalance: Credit}
	assert.Equal(t, Money(100), shortCall.EntryEffect(Credit, 100))
	assert.Equal(t, Money(-100), shortCall.EntryEffect(Debit, 100))
}

func TestEntryTypeOpposite(t *testing.T) {
	assert.Equal(t, Credit, Debit.Opposite())
	assert.Equal(t, Debit, Credit.Opposite())
}

func TestContractTypeOptionType(t *testing.T) {
	ot, ok := ContractCall.OptionType()
	assert.True(t, ok)
	assert.Equal(t, Call, ot)

	ot, ok = ContractPut.OptionType()
	assert.True(t, ok)
	assert.Equal(t, Put, ot)

	_, ok = ContractStock.OptionType()
	assert.False(t, ok)
}

func TestLegKindIsSettlement(t *testing.T) {
	assert.True(t, KindExercise.IsSettlement())
	assert.True(t, KindAssignment.IsSettlement())
	assert.False(t, KindStandard.IsSettlement())
}
