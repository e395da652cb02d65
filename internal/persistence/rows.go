// Package persistence is the write-behind durability layer: a batching
// worker drains the in-memory core's output channels into Postgres.
package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
	"github.com/krismatthes/drawdash-sub002/internal/risk"
)

// TransactionRow is a row in ledger.transactions. Append-only.
type TransactionRow struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        string
	BalanceType string
	Amount      int64
	Status      string
	Description string
	Metadata    []byte // JSON-encoded ledger.Metadata
	CreatedAt   time.Time
}

// BalanceRow is a row in ledger.balances. Upserted, last write wins.
type BalanceRow struct {
	UserID      uuid.UUID
	Cash        int64
	Bonus       int64
	Locked      int64
	FreeTickets int64
	UpdatedAt   time.Time
}

// RequestRow is a row in payout.requests. Upserted as the request moves
// through its state machine.
type RequestRow struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	MethodID       uuid.UUID
	Amount         int64
	Fee            int64
	Net            int64
	Status         string
	RiskScore      int
	KYCStatus      string
	ManualReview   bool
	IdempotencyKey string
	ReservationID  uuid.UUID
	RequestedAt    time.Time
	ProcessedAt    *time.Time
	ProcessedBy    string
	Notes          string
}

// MethodRow is a row in payout.methods. Upserted on verification and
// default changes.
type MethodRow struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      string
	Name      string
	Details   []byte // JSON-encoded masked details
	IsDefault bool
	Verified  bool
	CreatedAt time.Time
}

// FlagRow is a row in risk.fraud_flags. Upserted on resolution.
type FlagRow struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Type       string
	Severity   string
	Details    string
	Resolved   bool
	ResolvedBy string
	CreatedAt  time.Time
}

// Record is one unit of work for the persistence worker. Any combination
// of fields may be set; nil fields are skipped.
type Record struct {
	Tx      *TransactionRow
	Balance *BalanceRow
	Request *RequestRow
	Method  *MethodRow
	Flag    *FlagRow
}

// RecordFromLedger converts a ledger output into its durable form.
func RecordFromLedger(out ledger.Output) Record {
	rec := Record{Balance: balanceRow(out.Balance)}
	if out.Tx != nil {
		rec.Tx = transactionRow(out.Tx)
	}
	return rec
}

// RecordFromPayout converts a payout engine event into its durable form.
func RecordFromPayout(ev payout.Event) Record {
	var rec Record
	if ev.Request != nil {
		rec.Request = requestRow(ev.Request)
	}
	if ev.Method != nil {
		rec.Method = methodRow(ev.Method)
	}
	if ev.Flag != nil {
		rec.Flag = flagRow(ev.Flag)
	}
	return rec
}

func transactionRow(tx *ledger.Transaction) *TransactionRow {
	return &TransactionRow{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		BalanceType: string(tx.BalanceType),
		Amount:      int64(tx.Amount),
		Status:      string(tx.Status),
		Description: tx.Description,
		Metadata:    marshalJSON(tx.Metadata),
		CreatedAt:   tx.Timestamp,
	}
}

func balanceRow(b ledger.Balance) *BalanceRow {
	return &BalanceRow{
		UserID:      b.UserID,
		Cash:        int64(b.Cash),
		Bonus:       int64(b.Bonus),
		Locked:      int64(b.Locked),
		FreeTickets: b.FreeTickets,
		UpdatedAt:   b.UpdatedAt,
	}
}

func requestRow(r *payout.Request) *RequestRow {
	return &RequestRow{
		ID:             r.ID,
		UserID:         r.UserID,
		MethodID:       r.MethodID,
		Amount:         int64(r.Amount),
		Fee:            int64(r.Fee),
		Net:            int64(r.Net),
		Status:         string(r.Status),
		RiskScore:      r.RiskScore,
		KYCStatus:      r.KYCStatus,
		ManualReview:   r.ManualReview,
		IdempotencyKey: r.IdempotencyKey,
		ReservationID:  r.ReservationID,
		RequestedAt:    r.RequestedAt,
		ProcessedAt:    r.ProcessedAt,
		ProcessedBy:    r.ProcessedBy,
		Notes:          r.Notes,
	}
}

func methodRow(m *payout.Method) *MethodRow {
	return &MethodRow{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      string(m.Type),
		Name:      m.Name,
		Details:   marshalJSON(m.Details),
		IsDefault: m.IsDefault,
		Verified:  m.Verified,
		CreatedAt: m.CreatedAt,
	}
}

func flagRow(f *risk.FraudFlag) *FlagRow {
	return &FlagRow{
		ID:         f.ID,
		UserID:     f.UserID,
		Type:       f.Type,
		Severity:   string(f.Severity),
		Details:    f.Details,
		Resolved:   f.Resolved,
		ResolvedBy: f.ResolvedBy,
		CreatedAt:  f.Timestamp,
	}
}

func marshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("marshal persistence payload")
		return []byte("{}")
	}
	return data
}
