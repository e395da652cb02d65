package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Writer issues the batch statements. Transactions are append-only with
// idempotent inserts; everything else is upserted so replayed batches
// converge on the latest state.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// WriteTransactionBatch appends ledger transactions using a multi-row
// INSERT. Conflicting IDs are skipped: a retried batch never duplicates.
func (w *Writer) WriteTransactionBatch(ctx context.Context, tx *sql.Tx, rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ledger.transactions
		(id, user_id, type, balance_type, amount, status, description, metadata, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*9)
	for i, r := range rows {
		values = append(values, placeholders(i*9, 9))
		args = append(args,
			r.ID, r.UserID, r.Type, r.BalanceType, r.Amount,
			r.Status, r.Description, r.Metadata, r.CreatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteBalanceBatch upserts balance snapshots. The worker dedupes by user
// before calling, so each user appears at most once per batch.
func (w *Writer) WriteBalanceBatch(ctx context.Context, tx *sql.Tx, rows []BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ledger.balances
		(user_id, cash, bonus, locked, free_tickets, updated_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)
	for i, r := range rows {
		values = append(values, placeholders(i*6, 6))
		args = append(args, r.UserID, r.Cash, r.Bonus, r.Locked, r.FreeTickets, r.UpdatedAt)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (user_id) DO UPDATE SET
		cash = EXCLUDED.cash,
		bonus = EXCLUDED.bonus,
		locked = EXCLUDED.locked,
		free_tickets = EXCLUDED.free_tickets,
		updated_at = EXCLUDED.updated_at`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteRequestBatch upserts payout requests, deduped by ID per batch.
func (w *Writer) WriteRequestBatch(ctx context.Context, tx *sql.Tx, rows []RequestRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO payout.requests
		(id, user_id, method_id, amount, fee, net, status, risk_score, kyc_status,
		 manual_review, idempotency_key, reservation_id, requested_at, processed_at,
		 processed_by, notes)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*16)
	for i, r := range rows {
		values = append(values, placeholders(i*16, 16))
		args = append(args,
			r.ID, r.UserID, r.MethodID, r.Amount, r.Fee, r.Net,
			r.Status, r.RiskScore, r.KYCStatus, r.ManualReview,
			r.IdempotencyKey, r.ReservationID, r.RequestedAt,
			r.ProcessedAt, r.ProcessedBy, r.Notes,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		manual_review = EXCLUDED.manual_review,
		processed_at = EXCLUDED.processed_at,
		processed_by = EXCLUDED.processed_by,
		notes = EXCLUDED.notes`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteMethodBatch upserts payout methods, deduped by ID per batch.
func (w *Writer) WriteMethodBatch(ctx context.Context, tx *sql.Tx, rows []MethodRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO payout.methods
		(id, user_id, type, name, details, is_default, verified, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)
	for i, r := range rows {
		values = append(values, placeholders(i*8, 8))
		args = append(args, r.ID, r.UserID, r.Type, r.Name, r.Details, r.IsDefault, r.Verified, r.CreatedAt)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (id) DO UPDATE SET
		is_default = EXCLUDED.is_default,
		verified = EXCLUDED.verified`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteFlagBatch upserts fraud flags, deduped by ID per batch.
func (w *Writer) WriteFlagBatch(ctx context.Context, tx *sql.Tx, rows []FlagRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO risk.fraud_flags
		(id, user_id, type, severity, details, resolved, resolved_by, created_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*8)
	for i, r := range rows {
		values = append(values, placeholders(i*8, 8))
		args = append(args, r.ID, r.UserID, r.Type, r.Severity, r.Details, r.Resolved, r.ResolvedBy, r.CreatedAt)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (id) DO UPDATE SET
		resolved = EXCLUDED.resolved,
		resolved_by = EXCLUDED.resolved_by`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// placeholders renders "($n+1, ..., $n+width)".
func placeholders(base, width int) string {
	parts := make([]string, width)
	for i := 0; i < width; i++ {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
