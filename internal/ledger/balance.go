package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/money"
)

// Balance is the per-user snapshot derived from completed transactions.
// Locked is a reserved subset of Cash, never additional money.
type Balance struct {
	UserID      uuid.UUID    `json:"user_id"`
	Cash        money.Amount `json:"cash_balance"`
	Bonus       money.Amount `json:"bonus_balance"`
	Locked      money.Amount `json:"locked_balance"`
	FreeTickets int64        `json:"free_tickets"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Available returns the cash usable for new debits and reservations.
func (b Balance) Available() money.Amount {
	return b.Cash - b.Locked
}

// check validates the balance invariants. A violation after a mutation is a
// ledger bug, not a caller error.
func (b Balance) check() error {
	if b.Cash < 0 {
		return fmt.Errorf("user %s: negative cash balance %d", b.UserID, b.Cash)
	}
	if b.Bonus < 0 {
		return fmt.Errorf("user %s: negative bonus balance %d", b.UserID, b.Bonus)
	}
	if b.Locked < 0 {
		return fmt.Errorf("user %s: negative locked balance %d", b.UserID, b.Locked)
	}
	if b.FreeTickets < 0 {
		return fmt.Errorf("user %s: negative free tickets %d", b.UserID, b.FreeTickets)
	}
	if b.Locked > b.Cash {
		return fmt.Errorf("user %s: locked %d exceeds cash %d", b.UserID, b.Locked, b.Cash)
	}
	return nil
}

// Available is the purchase-power breakdown returned to callers.
type Available struct {
	Cash        money.Amount `json:"cash"`
	Bonus       money.Amount `json:"bonus"`
	FreeTickets int64        `json:"free_tickets"`
	TicketValue money.Amount `json:"ticket_value"`
	Total       money.Amount `json:"total"`
}
