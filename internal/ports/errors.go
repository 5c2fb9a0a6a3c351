package ports

import (
	"errors"
	"fmt"

	"tradeledger/internal/domain"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine errors. All of these abort the current trade commit.
	ErrMalformedLeg    = errors.New("malformed leg")
	ErrEmptyPosting    = errors.New("posting has no ledger lines")
	ErrAlreadyClosed   = errors.New("position already closed")
	ErrAlreadyReversed = errors.New("journal transaction already reversed")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)

// UnbalancedEntryError reports a posting whose debit and credit totals differ.
// Always a data-integrity bug upstream, never a recoverable condition.
type UnbalancedEntryError struct {
	Debits  domain.Money
	Credits domain.Money
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("unbalanced journal entry: debits %s != credits %s", e.Debits, e.Credits)
}

// UnknownAccountError reports a ledger line referencing an account code missing
// from the chart of accounts. Raised before any mutation happens.
type UnknownAccountError struct {
	Code string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account code %q", e.Code)
}
