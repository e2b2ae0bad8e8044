package models

// Stable failure reasons. Callers and clients match on these verbatim, so they
// are part of the API contract and must not be reworded.
const (
	ReasonOwnerIsDoctor    = "Testament: Owner cannot be his own doctor"
	ReasonZeroRole         = "Testament: zero address is not a valid role"
	ReasonNotOwner         = "Testament: Your are not the owner of this contract"
	ReasonNotDoctor        = "Testament: you are not the doctor of this contract"
	ReasonSelfDoctor       = "Testament: You cannot be your own doctor"
	ReasonOwnerDead        = "Testament: Sorry you are dead, probably"
	ReasonAlreadyDead      = "Testament: The owner is already dead"
	ReasonZeroBeneficiary  = "Testament: transfer to the zero address"
	ReasonStillAlive       = "Testament: the owner is still alive, be patient"
	ReasonNothingForCaller = "Testament: Sorry there is nothing for you"
)
