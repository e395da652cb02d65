package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/money"
)

// TxType classifies the business event behind a transaction.
type TxType string

const (
	TxCashPrize   TxType = "cash_prize"
	TxBonusCredit TxType = "bonus_credit"
	TxFreeTickets TxType = "free_tickets"
	TxPurchase    TxType = "purchase"
	TxWithdrawal  TxType = "withdrawal"
	TxDeposit     TxType = "deposit"
	TxTransfer    TxType = "transfer"
	TxFee         TxType = "fee"
)

// BalanceType selects which balance field a transaction touches.
type BalanceType string

const (
	BalanceCash        BalanceType = "cash"
	BalanceBonus       BalanceType = "bonus"
	BalanceFreeTickets BalanceType = "free_tickets"
)

// TxStatus is the lifecycle state of a transaction. Completed transactions
// are the source of truth for balances; the snapshot is a cache.
type TxStatus string

const (
	TxPending    TxStatus = "pending"
	TxProcessing TxStatus = "processing"
	TxCompleted  TxStatus = "completed"
	TxFailed     TxStatus = "failed"
)

// MetadataVersion is the current metadata schema version.
const MetadataVersion = 1

// Metadata is the typed, versioned context attached to a transaction.
// Known references are explicit fields so the ledger stays auditable;
// Extra holds provider-specific string pairs only.
type Metadata struct {
	Version         int               `json:"version"`
	RaffleID        *uuid.UUID        `json:"raffle_id,omitempty"`
	PayoutRequestID *uuid.UUID        `json:"payout_request_id,omitempty"`
	ReservationID   *uuid.UUID        `json:"reservation_id,omitempty"`
	AdminID         string            `json:"admin_id,omitempty"`
	Reference       string            `json:"reference,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Validate normalizes the version and rejects malformed metadata.
func (m *Metadata) Validate() error {
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	if m.Version != MetadataVersion {
		return fmt.Errorf("unsupported metadata version %d", m.Version)
	}
	for k := range m.Extra {
		if k == "" {
			return fmt.Errorf("metadata extra key must be non-empty")
		}
	}
	return nil
}

// Transaction is one immutable entry in the append-only balance log.
// Amount is signed: positive credits, negative debits. For the
// free_tickets balance type the amount is a ticket count, not øre.
type Transaction struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Type        TxType       `json:"type"`
	BalanceType BalanceType  `json:"balance_type"`
	Amount      money.Amount `json:"amount"`
	Status      TxStatus     `json:"status"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
	Metadata    Metadata     `json:"metadata"`
}

// Filter narrows a history query. Nil fields match everything.
type Filter struct {
	Type        *TxType
	BalanceType *BalanceType
	Status      *TxStatus
	Since       *time.Time
	Until       *time.Time
}

// Matches reports whether tx passes the filter.
func (f Filter) Matches(tx *Transaction) bool {
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.BalanceType != nil && tx.BalanceType != *f.BalanceType {
		return false
	}
	if f.Status != nil && tx.Status != *f.Status {
		return false
	}
	if f.Since != nil && tx.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !tx.Timestamp.Before(*f.Until) {
		return false
	}
	return true
}
