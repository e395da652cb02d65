// Package query is the read side over Postgres: durable history, audit
// export, and the aggregates reconciliation runs on. It never touches the
// in-memory core.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/reconcile"
)

// Service answers queries from the durable log.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// History returns a user's persisted transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, balance_type, amount, status, description, metadata, created_at
		FROM ledger.transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// DailyWithdrawalTotal sums a user's completed withdrawals on a UTC date.
// Audit counterpart of the engine's in-memory limit tracking.
func (s *Service) DailyWithdrawalTotal(ctx context.Context, userID uuid.UUID, date time.Time) (money.Amount, error) {
	from, to := dayBounds(date)
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(-amount), 0)
		FROM ledger.transactions
		WHERE user_id = $1 AND type = 'withdrawal' AND status = 'completed'
		  AND created_at >= $2 AND created_at < $3
	`, userID, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("daily withdrawal total: %w", err)
	}
	return money.Amount(total), nil
}

// RevenueForDate implements reconcile.LedgerSource: ticket sales and payout
// fees in, prizes and gross withdrawals out, for one UTC date.
func (s *Service) RevenueForDate(ctx context.Context, date time.Time) (reconcile.RevenueFigures, error) {
	from, to := dayBounds(date)

	var f reconcile.RevenueFigures
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'purchase'   THEN -amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'cash_prize' THEN  amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'withdrawal' THEN -amount ELSE 0 END), 0),
			COUNT(*)
		FROM ledger.transactions
		WHERE status = 'completed' AND balance_type = 'cash'
		  AND created_at >= $1 AND created_at < $2
	`, from, to).Scan(&f.Sales, &f.Prizes, &f.Withdrawals, &f.TxCount)
	if err != nil {
		return reconcile.RevenueFigures{}, fmt.Errorf("revenue aggregates: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(fee), 0)
		FROM payout.requests
		WHERE status = 'completed' AND processed_at >= $1 AND processed_at < $2
	`, from, to).Scan(&f.Fees)
	if err != nil {
		return reconcile.RevenueFigures{}, fmt.Errorf("fee aggregate: %w", err)
	}
	return f, nil
}

// Settlement is one processor-reported settlement line.
type Settlement struct {
	ID        uuid.UUID    `json:"id"`
	SettledOn time.Time    `json:"settled_on"`
	Amount    money.Amount `json:"amount"`
	Provider  string       `json:"provider"`
	Reference string       `json:"reference"`
	CreatedAt time.Time    `json:"created_at"`
}

// RecordSettlement stores a settlement line imported from the processor.
func (s *Service) RecordSettlement(ctx context.Context, st Settlement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recon.settlements (id, settled_on, amount, provider, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, st.ID, st.SettledOn, int64(st.Amount), st.Provider, st.Reference, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}
	return nil
}

// SettledTotal implements reconcile.SettlementSource.
func (s *Service) SettledTotal(ctx context.Context, date time.Time) (money.Amount, error) {
	from, _ := dayBounds(date)
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM recon.settlements WHERE settled_on = $1
	`, from).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("settled total: %w", err)
	}
	return money.Amount(total), nil
}

// SaveReconciliation implements reconcile.RecordStore.
func (s *Service) SaveReconciliation(ctx context.Context, rec *reconcile.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recon.reconciliations
			(id, date, expected, actual, discrepancy, status, tx_count, reviewed_by, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reviewed_by = EXCLUDED.reviewed_by,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`, rec.ID, rec.Date, int64(rec.Expected), int64(rec.Actual), int64(rec.Discrepancy),
		string(rec.Status), rec.TxCount, rec.ReviewedBy, rec.Notes, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save reconciliation: %w", err)
	}
	return nil
}

// GetReconciliation implements reconcile.RecordStore.
func (s *Service) GetReconciliation(ctx context.Context, id uuid.UUID) (*reconcile.Record, error) {
	rec := &reconcile.Record{}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, expected, actual, discrepancy, status, tx_count, reviewed_by, notes, created_at, updated_at
		FROM recon.reconciliations WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Date, &rec.Expected, &rec.Actual, &rec.Discrepancy,
		&status, &rec.TxCount, &rec.ReviewedBy, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reconciliation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get reconciliation: %w", err)
	}
	rec.Status = reconcile.RecordStatus(status)
	return rec, nil
}

// ListReconciliations implements reconcile.RecordStore, newest date first.
func (s *Service) ListReconciliations(ctx context.Context, limit int) ([]*reconcile.Record, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, expected, actual, discrepancy, status, tx_count, reviewed_by, notes, created_at, updated_at
		FROM recon.reconciliations
		ORDER BY date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	var out []*reconcile.Record
	for rows.Next() {
		rec := &reconcile.Record{}
		var status string
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Expected, &rec.Actual, &rec.Discrepancy,
			&status, &rec.TxCount, &rec.ReviewedBy, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		rec.Status = reconcile.RecordStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExportRow is one line of the regulatory export. Amounts are exact DKK
// decimal strings, two places, no float involved.
type ExportRow struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Type          string          `json:"type"`
	BalanceType   string          `json:"balance_type"`
	AmountDKK     string          `json:"amount_dkk"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	Timestamp     string          `json:"timestamp"`
	Metadata      json.RawMessage `json:"metadata"`
}

// Export returns every transaction in [from, to) formatted for the
// regulator, oldest first.
func (s *Service) Export(ctx context.Context, from, to time.Time) ([]ExportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, balance_type, amount, status, description, metadata, created_at
		FROM ledger.transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		md, err := json.Marshal(tx.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata for %s: %w", tx.ID, err)
		}
		out = append(out, ExportRow{
			TransactionID: tx.ID.String(),
			UserID:        tx.UserID.String(),
			Type:          string(tx.Type),
			BalanceType:   string(tx.BalanceType),
			AmountDKK:     tx.Amount.String(),
			Status:        string(tx.Status),
			Description:   tx.Description,
			Timestamp:     tx.Timestamp.UTC().Format(time.RFC3339),
			Metadata:      md,
		})
	}
	return out, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var tx ledger.Transaction
	var txType, balanceType, status string
	var amount int64
	var metadata []byte
	if err := rows.Scan(&tx.ID, &tx.UserID, &txType, &balanceType, &amount,
		&status, &tx.Description, &metadata, &tx.Timestamp); err != nil {
		return ledger.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Type = ledger.TxType(txType)
	tx.BalanceType = ledger.BalanceType(balanceType)
	tx.Amount = money.Amount(amount)
	tx.Status = ledger.TxStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return ledger.Transaction{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return tx, nil
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
