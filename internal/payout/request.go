package payout

import (
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/money"
)

// Status of a payout request. The state machine is strictly forward:
//
//	pending    -> approved | rejected
//	approved   -> processing | rejected
//	processing -> completed
//
// completed and rejected are terminal. There is no path back from
// processing: once settlement starts the request either completes or stays
// in processing until a retried approve settles it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusRejected},
	StatusApproved:   {StatusProcessing, StatusRejected},
	StatusProcessing: {StatusCompleted},
}

// CanTransitionTo reports whether the move from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Request is one withdrawal attempt. Amount is the gross cash leaving the
// user's balance; Net = Amount - Fee is what the rail pays out.
type Request struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"user_id"`
	MethodID       uuid.UUID    `json:"method_id"`
	Amount         money.Amount `json:"amount"`
	Fee            money.Amount `json:"fee"`
	Net            money.Amount `json:"net"`
	Status         Status       `json:"status"`
	RiskScore      int          `json:"risk_score"`
	KYCStatus      string       `json:"kyc_status,omitempty"`
	ManualReview   bool         `json:"manual_review"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	ReservationID  uuid.UUID    `json:"reservation_id"`
	RequestedAt    time.Time    `json:"requested_at"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
	ProcessedBy    string       `json:"processed_by,omitempty"`
	Notes          string       `json:"notes,omitempty"`
}

// Live reports whether the request still holds its reservation.
func (r *Request) Live() bool {
	return !r.Status.Terminal()
}
