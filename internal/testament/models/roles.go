package models

import (
	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
)

// Roles holds the two privileged identities of a testament.
//
// Invariants:
//   - Owner is fixed at construction and never reassigned
//   - Doctor never equals Owner
//   - neither role is the null identity
type Roles struct {
	Owner  id.AccountID `json:"owner"`
	Doctor id.AccountID `json:"doctor"`
}

// NewRoles validates a fresh owner/doctor pair.
func NewRoles(owner, doctor id.AccountID) (Roles, error) {
	if owner.IsNil() || doctor.IsNil() {
		return Roles{}, dErrors.New(dErrors.CodeValidation, ReasonZeroRole)
	}
	if owner == doctor {
		return Roles{}, dErrors.New(dErrors.CodeValidation, ReasonOwnerIsDoctor)
	}
	return Roles{Owner: owner, Doctor: doctor}, nil
}

// RequireOwner fails unless caller is the owner.
func (r Roles) RequireOwner(caller id.AccountID) error {
	if caller != r.Owner {
		return dErrors.New(dErrors.CodeForbidden, ReasonNotOwner)
	}
	return nil
}

// RequireDoctor fails unless caller is the doctor at call time.
func (r Roles) RequireDoctor(caller id.AccountID) error {
	if caller != r.Doctor {
		return dErrors.New(dErrors.CodeForbidden, ReasonNotDoctor)
	}
	return nil
}

// ValidateDoctor checks a doctor candidate against the owner. Re-appointing the
// current doctor is allowed.
func (r Roles) ValidateDoctor(candidate id.AccountID) error {
	if candidate == r.Owner {
		return dErrors.New(dErrors.CodeValidation, ReasonSelfDoctor)
	}
	if candidate.IsNil() {
		return dErrors.New(dErrors.CodeValidation, ReasonZeroRole)
	}
	return nil
}
