package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
	"github.com/krismatthes/drawdash-sub002/internal/risk"
)

// Loader streams persisted state back into the in-memory core on startup.
type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// LoadTransactions streams the full transaction log in append order and
// hands each transaction to fn. Used for the balance rebuild.
func (l *Loader) LoadTransactions(ctx context.Context, fn func(*ledger.Transaction) error) (int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, type, balance_type, amount, status, description, metadata, created_at
		FROM ledger.transactions
		ORDER BY created_at, id
	`)
	if err != nil {
		return 0, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var r TransactionRow
		var metadata []byte
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Type, &r.BalanceType, &r.Amount,
			&r.Status, &r.Description, &metadata, &r.CreatedAt,
		); err != nil {
			return count, fmt.Errorf("scan transaction: %w", err)
		}

		var md ledger.Metadata
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &md); err != nil {
				return count, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
			}
		}

		tx := &ledger.Transaction{
			ID:          r.ID,
			UserID:      r.UserID,
			Type:        ledger.TxType(r.Type),
			BalanceType: ledger.BalanceType(r.BalanceType),
			Amount:      money.Amount(r.Amount),
			Status:      ledger.TxStatus(r.Status),
			Description: r.Description,
			Timestamp:   r.CreatedAt,
			Metadata:    md,
		}
		if err := fn(tx); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

// LoadMethods returns all payout methods in registration order.
func (l *Loader) LoadMethods(ctx context.Context) ([]payout.Method, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, type, name, details, is_default, verified, created_at
		FROM payout.methods
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query methods: %w", err)
	}
	defer rows.Close()

	var out []payout.Method
	for rows.Next() {
		var r MethodRow
		var details []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Name, &details, &r.IsDefault, &r.Verified, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		m := payout.Method{
			ID:        r.ID,
			UserID:    r.UserID,
			Type:      payout.MethodType(r.Type),
			Name:      r.Name,
			IsDefault: r.IsDefault,
			Verified:  r.Verified,
			CreatedAt: r.CreatedAt,
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &m.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details for %s: %w", r.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadRequests returns every payout request, oldest first. Terminal
// requests are restored too: they back idempotent replay and history.
func (l *Loader) LoadRequests(ctx context.Context) ([]payout.Request, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, method_id, amount, fee, net, status, risk_score, kyc_status,
		       manual_review, idempotency_key, reservation_id, requested_at, processed_at,
		       processed_by, notes
		FROM payout.requests
		ORDER BY requested_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []payout.Request
	for rows.Next() {
		var r RequestRow
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.MethodID, &r.Amount, &r.Fee, &r.Net,
			&r.Status, &r.RiskScore, &r.KYCStatus, &r.ManualReview,
			&r.IdempotencyKey, &r.ReservationID, &r.RequestedAt,
			&r.ProcessedAt, &r.ProcessedBy, &r.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, payout.Request{
			ID:             r.ID,
			UserID:         r.UserID,
			MethodID:       r.MethodID,
			Amount:         money.Amount(r.Amount),
			Fee:            money.Amount(r.Fee),
			Net:            money.Amount(r.Net),
			Status:         payout.Status(r.Status),
			RiskScore:      r.RiskScore,
			KYCStatus:      r.KYCStatus,
			ManualReview:   r.ManualReview,
			IdempotencyKey: r.IdempotencyKey,
			ReservationID:  r.ReservationID,
			RequestedAt:    r.RequestedAt,
			ProcessedAt:    r.ProcessedAt,
			ProcessedBy:    r.ProcessedBy,
			Notes:          r.Notes,
		})
	}
	return out, rows.Err()
}

// LoadFlags returns every fraud flag, oldest first.
func (l *Loader) LoadFlags(ctx context.Context) ([]risk.FraudFlag, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, type, severity, details, resolved, resolved_by, created_at
		FROM risk.fraud_flags
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query fraud flags: %w", err)
	}
	defer rows.Close()

	var out []risk.FraudFlag
	for rows.Next() {
		var r FlagRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Severity, &r.Details, &r.Resolved, &r.ResolvedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fraud flag: %w", err)
		}
		out = append(out, risk.FraudFlag{
			ID:         r.ID,
			UserID:     r.UserID,
			Type:       r.Type,
			Severity:   risk.Severity(r.Severity),
			Details:    r.Details,
			Timestamp:  r.CreatedAt,
			Resolved:   r.Resolved,
			ResolvedBy: r.ResolvedBy,
		})
	}
	return out, rows.Err()
}
