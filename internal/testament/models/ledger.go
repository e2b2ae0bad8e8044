package models

import (
	"sort"

	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
)

// Ledger maps each beneficiary to the amount still owed to them. Absent and zero
// entries are equivalent; entries grow by accumulation and are drained in full.
type Ledger map[id.AccountID]id.Amount

// Bequest is a single ledger entry.
type Bequest struct {
	Beneficiary id.AccountID `json:"beneficiary"`
	Amount      id.Amount    `json:"amount"`
}

// Of returns the amount owed to account (zero when absent).
func (l Ledger) Of(account id.AccountID) id.Amount {
	return l[account]
}

// Credited returns what the entry would hold after adding amount, without
// mutating the ledger.
func (l Ledger) Credited(beneficiary id.AccountID, amount id.Amount) (id.Amount, error) {
	if beneficiary.IsNil() {
		return id.Zero, dErrors.New(dErrors.CodeValidation, ReasonZeroBeneficiary)
	}
	return l.Of(beneficiary).Add(amount)
}

// Claimable returns the full amount owed to caller, failing when nothing is owed.
func (l Ledger) Claimable(caller id.AccountID) (id.Amount, error) {
	owed := l.Of(caller)
	if owed.IsZero() {
		return id.Zero, dErrors.New(dErrors.CodeInsufficientClaim, ReasonNothingForCaller)
	}
	return owed, nil
}

// Outstanding sums every entry.
func (l Ledger) Outstanding() id.Amount {
	var sum id.Amount
	for _, a := range l {
		sum += a
	}
	return sum
}

// Entries lists the non-zero entries in a stable order.
func (l Ledger) Entries() []Bequest {
	out := make([]Bequest, 0, len(l))
	for beneficiary, amount := range l {
		if amount.IsZero() {
			continue
		}
		out = append(out, Bequest{Beneficiary: beneficiary, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Beneficiary.String() < out[j].Beneficiary.String()
	})
	return out
}
