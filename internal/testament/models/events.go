package models

import (
	"time"

	id "testament/pkg/domain"
)

// EventKind names a notification emitted by a successful operation.
type EventKind string

const (
	EventDoctorChanged EventKind = "doctor_changed"
	EventDied          EventKind = "died"
	EventBequeathed    EventKind = "bequeathed"
	EventWithdrew      EventKind = "withdrew"
)

// Event is the notification payload of one successful operation. Only the fields
// relevant to Kind are set:
//
//	doctor_changed: Doctor
//	died:           Doctor, Owner
//	bequeathed:     Beneficiary, Amount
//	withdrew:       Beneficiary, Amount
//
// ID and Seq are assigned when the event is appended to the outbox; Seq is
// strictly increasing per testament. A Held event is recorded but neither
// listed nor published until the store releases it.
type Event struct {
	ID          id.EventID     `json:"id"`
	TestamentID id.TestamentID `json:"testament_id"`
	Seq         int64          `json:"seq"`
	Kind        EventKind      `json:"kind"`
	Doctor      id.AccountID   `json:"doctor"`
	Owner       id.AccountID   `json:"owner"`
	Beneficiary id.AccountID   `json:"beneficiary"`
	Amount      id.Amount      `json:"amount"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Held        bool           `json:"-"`
}

func DoctorChanged(testamentID id.TestamentID, doctor id.AccountID, now time.Time) Event {
	return Event{TestamentID: testamentID, Kind: EventDoctorChanged, Doctor: doctor, OccurredAt: now}
}

func Died(testamentID id.TestamentID, doctor, owner id.AccountID, now time.Time) Event {
	return Event{TestamentID: testamentID, Kind: EventDied, Doctor: doctor, Owner: owner, OccurredAt: now}
}

func Bequeathed(testamentID id.TestamentID, beneficiary id.AccountID, amount id.Amount, now time.Time) Event {
	return Event{TestamentID: testamentID, Kind: EventBequeathed, Beneficiary: beneficiary, Amount: amount, OccurredAt: now}
}

func Withdrew(testamentID id.TestamentID, beneficiary id.AccountID, amount id.Amount, now time.Time) Event {
	return Event{TestamentID: testamentID, Kind: EventWithdrew, Beneficiary: beneficiary, Amount: amount, OccurredAt: now}
}
