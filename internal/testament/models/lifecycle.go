package models

import (
	"time"

	dErrors "testament/pkg/domain-errors"
)

// LifecycleState is the alive/deceased flag of a testament owner.
type LifecycleState string

const (
	LifecycleAlive    LifecycleState = "alive"
	LifecycleDeceased LifecycleState = "deceased"
)

// CanTransitionTo reports whether next is reachable from s. The only edge is
// alive -> deceased.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	return s == LifecycleAlive && next == LifecycleDeceased
}

func (s LifecycleState) String() string { return string(s) }

// Lifecycle gates which operations are permitted. DiedAt is set exactly once.
type Lifecycle struct {
	State  LifecycleState `json:"state"`
	DiedAt *time.Time     `json:"died_at,omitempty"`
}

// NewLifecycle returns the initial, alive lifecycle.
func NewLifecycle() Lifecycle {
	return Lifecycle{State: LifecycleAlive}
}

func (l Lifecycle) IsAlive() bool { return l.State == LifecycleAlive }

// RequireAlive guards owner operations (bequeath, doctor change).
func (l Lifecycle) RequireAlive() error {
	if !l.IsAlive() {
		return dErrors.New(dErrors.CodeInvalidState, ReasonOwnerDead)
	}
	return nil
}

// RequireDeceased guards withdrawals.
func (l Lifecycle) RequireDeceased() error {
	if l.IsAlive() {
		return dErrors.New(dErrors.CodeInvalidState, ReasonStillAlive)
	}
	return nil
}

// CanDie checks the one-way transition; a deceased owner cannot be declared dead again.
func (l Lifecycle) CanDie() error {
	if !l.State.CanTransitionTo(LifecycleDeceased) {
		return dErrors.New(dErrors.CodeInvalidState, ReasonAlreadyDead)
	}
	return nil
}

// ApplyDeath performs the transition. Call CanDie first.
func (l *Lifecycle) ApplyDeath(now time.Time) {
	l.State = LifecycleDeceased
	l.DiedAt = &now
}
