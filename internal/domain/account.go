package domain

// Account is one chart-of-accounts row. Code is the stable public identifier;
// everything else joins on it, never on the internal row id.
type Account struct {
	ID            int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance EntryType // which side increases the stored balance
	Balance       Money
	Version       int64 // bumped on every balance mutation, for lost-update detection
}

// EntryEffect returns the signed balance effect of an entry of the given type
// and amount against this account.
func (a *Account) EntryEffect(entryType EntryType, amount Money) Money {
	if entryType == a.NormalBalance {
		return amount
	}
	return -amount
}
