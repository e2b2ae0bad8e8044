package handler

import (
	"time"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
)

// DeployRequest creates a testament. An omitted owner defaults to the caller.
type DeployRequest struct {
	Owner  id.AccountID `json:"owner_id"`
	Doctor id.AccountID `json:"doctor_id"`
}

type ChangeDoctorRequest struct {
	Doctor id.AccountID `json:"doctor_id"`
}

type BequeathRequest struct {
	Beneficiary id.AccountID `json:"beneficiary_id"`
	Amount      id.Amount    `json:"amount"`
}

type TestamentResponse struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Doctor string `json:"doctor"`
	Alive  bool   `json:"alive"`
	Total  int64  `json:"total"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type BequestsResponse struct {
	Bequests []BalanceResponse `json:"bequests"`
}

type WithdrawalResponse struct {
	Amount int64 `json:"amount"`
}

type EventResponse struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Kind        string    `json:"kind"`
	Doctor      string    `json:"doctor,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	Beneficiary string    `json:"beneficiary,omitempty"`
	Amount      *int64    `json:"amount,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

func toTestamentResponse(s *models.Snapshot) TestamentResponse {
	return TestamentResponse{
		ID:     s.ID.String(),
		Owner:  s.Owner.String(),
		Doctor: s.Doctor.String(),
		Alive:  s.Alive,
		Total:  s.Total.Int64(),
	}
}

func toEventResponse(ev models.Event) EventResponse {
	out := EventResponse{
		ID:         ev.ID.String(),
		Seq:        ev.Seq,
		Kind:       string(ev.Kind),
		OccurredAt: ev.OccurredAt,
	}
	switch ev.Kind {
	case models.EventDoctorChanged:
		out.Doctor = ev.Doctor.String()
	case models.EventDied:
		out.Doctor = ev.Doctor.String()
		out.Owner = ev.Owner.String()
	case models.EventBequeathed, models.EventWithdrew:
		out.Beneficiary = ev.Beneficiary.String()
		amount := ev.Amount.Int64()
		out.Amount = &amount
	}
	return out
}
