package models

import (
	"time"

	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
)

// Testament is the aggregate root of one custody arrangement.
//
// Invariants:
//   - Roles.Owner never changes and never equals Roles.Doctor
//   - Lifecycle only moves alive -> deceased
//   - bequests are accepted only while alive, withdrawals only while deceased
//   - Total >= Ledger.Outstanding() at every observable point
//
// The aggregate is mutated only through the Apply* methods below, each preceded
// by its Can* guard. Guards run in a fixed order: role, lifecycle, then target
// validation, so a caller without the role never learns anything about state.
type Testament struct {
	ID        id.TestamentID `json:"id"`
	Roles     Roles          `json:"roles"`
	Lifecycle Lifecycle      `json:"lifecycle"`
	Total     id.Amount      `json:"total"`
	Ledger    Ledger         `json:"-"`
	// Version counts committed mutations; caches use it to drop stale writes.
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

const msgLedgerExceedsTotal = "ledger exceeds pooled balance"

// NewTestament constructs an alive testament with an empty ledger.
func NewTestament(testamentID id.TestamentID, owner, doctor id.AccountID, now time.Time) (*Testament, error) {
	roles, err := NewRoles(owner, doctor)
	if err != nil {
		return nil, err
	}
	return &Testament{
		ID:        testamentID,
		Roles:     roles,
		Lifecycle: NewLifecycle(),
		Ledger:    Ledger{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Testament) IsAlive() bool { return t.Lifecycle.IsAlive() }

// CanChangeDoctor validates a doctor reassignment requested by caller.
func (t *Testament) CanChangeDoctor(caller, newDoctor id.AccountID) error {
	if err := t.Roles.RequireOwner(caller); err != nil {
		return err
	}
	if err := t.Lifecycle.RequireAlive(); err != nil {
		return err
	}
	return t.Roles.ValidateDoctor(newDoctor)
}

// ApplyDoctorChange overwrites the doctor. Call CanChangeDoctor first.
func (t *Testament) ApplyDoctorChange(newDoctor id.AccountID, now time.Time) Event {
	t.Roles.Doctor = newDoctor
	t.touch(now)
	return DoctorChanged(t.ID, newDoctor, now)
}

// ChangeDoctor validates and applies a doctor reassignment in one call.
func (t *Testament) ChangeDoctor(caller, newDoctor id.AccountID, now time.Time) (Event, error) {
	if err := t.CanChangeDoctor(caller, newDoctor); err != nil {
		return Event{}, err
	}
	return t.ApplyDoctorChange(newDoctor, now), nil
}

// CanDeclareDeath validates a death declaration by caller.
func (t *Testament) CanDeclareDeath(caller id.AccountID) error {
	if err := t.Roles.RequireDoctor(caller); err != nil {
		return err
	}
	return t.Lifecycle.CanDie()
}

// ApplyDeath performs the one-way transition. Call CanDeclareDeath first.
func (t *Testament) ApplyDeath(now time.Time) Event {
	t.Lifecycle.ApplyDeath(now)
	t.touch(now)
	return Died(t.ID, t.Roles.Doctor, t.Roles.Owner, now)
}

// DeclareDeath validates and applies the transition in one call.
func (t *Testament) DeclareDeath(caller id.AccountID, now time.Time) (Event, error) {
	if err := t.CanDeclareDeath(caller); err != nil {
		return Event{}, err
	}
	return t.ApplyDeath(now), nil
}

// CanBequeath validates an allocation of amount to beneficiary by caller,
// including overflow of both the entry and the pooled balance.
func (t *Testament) CanBequeath(caller, beneficiary id.AccountID, amount id.Amount) error {
	if err := t.Roles.RequireOwner(caller); err != nil {
		return err
	}
	if err := t.Lifecycle.RequireAlive(); err != nil {
		return err
	}
	if beneficiary.IsNil() {
		return dErrors.New(dErrors.CodeValidation, ReasonZeroBeneficiary)
	}
	if amount < 0 {
		return dErrors.New(dErrors.CodeValidation, id.ReasonNegativeAmount)
	}
	if _, err := t.Ledger.Credited(beneficiary, amount); err != nil {
		return err
	}
	_, err := t.Total.Add(amount)
	return err
}

// ApplyBequest records received funds against beneficiary. Call CanBequeath
// first: the additions below cannot fail once it has passed.
func (t *Testament) ApplyBequest(beneficiary id.AccountID, amount id.Amount, now time.Time) Event {
	if t.Ledger == nil {
		t.Ledger = Ledger{}
	}
	t.Ledger[beneficiary] += amount
	t.Total += amount
	t.touch(now)
	return Bequeathed(t.ID, beneficiary, amount, now)
}

// Bequeath validates and applies an allocation in one call.
func (t *Testament) Bequeath(caller, beneficiary id.AccountID, amount id.Amount, now time.Time) (Event, error) {
	if err := t.CanBequeath(caller, beneficiary, amount); err != nil {
		return Event{}, err
	}
	return t.ApplyBequest(beneficiary, amount, now), nil
}

// CanWithdraw returns the amount caller may withdraw. The pooled balance must
// cover it.
func (t *Testament) CanWithdraw(caller id.AccountID) (id.Amount, error) {
	if err := t.Lifecycle.RequireDeceased(); err != nil {
		return id.Zero, err
	}
	owed, err := t.Ledger.Claimable(caller)
	if err != nil {
		return id.Zero, err
	}
	if _, err := t.Total.Sub(owed); err != nil {
		return id.Zero, dErrors.New(dErrors.CodeInternal, msgLedgerExceedsTotal)
	}
	return owed, nil
}

// ApplyWithdrawal zeroes caller's entry and releases it from the pooled balance.
// Call CanWithdraw first. It must run, and be persisted, before any funds leave
// the system so that a reentrant withdrawal observes the zero entry.
func (t *Testament) ApplyWithdrawal(caller id.AccountID, now time.Time) id.Amount {
	owed := t.Ledger.Of(caller)
	t.Ledger[caller] = id.Zero
	t.Total -= owed
	t.touch(now)
	return owed
}

// RestoreWithdrawal undoes ApplyWithdrawal after a failed payout.
func (t *Testament) RestoreWithdrawal(caller id.AccountID, amount id.Amount, now time.Time) {
	if t.Ledger == nil {
		t.Ledger = Ledger{}
	}
	t.Ledger[caller] += amount
	t.Total += amount
	t.touch(now)
}

func (t *Testament) touch(now time.Time) {
	t.UpdatedAt = now
	t.Version++
}

// CheckConservation verifies the pooled balance covers every unclaimed entry.
func (t *Testament) CheckConservation() error {
	if t.Ledger.Outstanding() > t.Total {
		return dErrors.New(dErrors.CodeInternal, msgLedgerExceedsTotal)
	}
	return nil
}

// Snapshot is the read-only query surface of a testament.
type Snapshot struct {
	ID      id.TestamentID `json:"id"`
	Owner   id.AccountID   `json:"owner"`
	Doctor  id.AccountID   `json:"doctor"`
	Alive   bool           `json:"alive"`
	Total   id.Amount      `json:"total"`
	Version int64          `json:"version"`
}

func (t *Testament) Snapshot() Snapshot {
	return Snapshot{
		ID:      t.ID,
		Owner:   t.Roles.Owner,
		Doctor:  t.Roles.Doctor,
		Alive:   t.IsAlive(),
		Total:   t.Total,
		Version: t.Version,
	}
}

// Clone returns a deep copy so stores never hand out shared ledger maps.
func (t *Testament) Clone() *Testament {
	c := *t
	c.Ledger = make(Ledger, len(t.Ledger))
	for k, v := range t.Ledger {
		c.Ledger[k] = v
	}
	if t.Lifecycle.DiedAt != nil {
		diedAt := *t.Lifecycle.DiedAt
		c.Lifecycle.DiedAt = &diedAt
	}
	return &c
}
