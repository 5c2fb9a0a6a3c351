package domain

// EntryType is the side of a ledger entry. It doubles as an account's normal
// balance: a debit-normal account grows when debited, shrinks when credited.
type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// Opposite returns the other side.
func (e EntryType) Opposite() EntryType {
	if e == Debit {
		return Credit
	}
	return Debit
}

// AccountType classifies a chart-of-accounts row.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// PositionType says how a position was opened: LONG by buying, SHORT by selling.
type PositionType string

const (
	Long  PositionType = "LONG"
	Short PositionType = "SHORT"
)

// OptionType is the contract flavor of an option position.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ContractType is what an imported leg traded.
type ContractType string

const (
	ContractCall  ContractType = "CALL"
	ContractPut   ContractType = "PUT"
	ContractStock ContractType = "STOCK"
)

// OptionType converts a call/put contract type to the position's option type.
// Returns false for stock legs.
func (c ContractType) OptionType() (OptionType, bool) {
	switch c {
	case ContractCall:
		return Call, true
	case ContractPut:
		return Put, true
	default:
		return "", false
	}
}

// LegAction is the trade direction of a leg.
type LegAction string

const (
	Buy  LegAction = "BUY"
	Sell LegAction = "SELL"
)

// PositionEffect says whether a leg opens or closes a position.
type PositionEffect string

const (
	EffectOpen  PositionEffect = "OPEN"
	EffectClose PositionEffect = "CLOSE"
)

// LegKind distinguishes ordinary legs from option-settlement stock legs.
// The importer assigns it while parsing; downstream code never inspects the
// free-text leg name.
type LegKind string

const (
	KindStandard   LegKind = "STANDARD"
	KindExercise   LegKind = "EXERCISE"
	KindAssignment LegKind = "ASSIGNMENT"
)

// IsSettlement reports whether the leg settles an exercised or assigned option.
func (k LegKind) IsSettlement() bool {
	return k == KindExercise || k == KindAssignment
}

// PositionStatus represents the lifecycle state of a position or stock lot.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// SkipReason explains why a leg was skipped instead of posted. Skips are data,
// not errors: the commit carries on and reports them.
type SkipReason string

const (
	SkipNoOpenPosition     SkipReason = "NO_OPEN_POSITION"
	SkipZeroAmountTransfer SkipReason = "ZERO_AMOUNT_TRANSFER"
)
