package query_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
	"github.com/krismatthes/drawdash-sub002/internal/persistence"
	"github.com/krismatthes/drawdash-sub002/internal/query"
	"github.com/krismatthes/drawdash-sub002/internal/reconcile"
	"github.com/krismatthes/drawdash-sub002/internal/testutil"
)

func flushTransactions(t *testing.T, db *sql.DB, rows []persistence.TransactionRow) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := persistence.NewWriter(db).WriteTransactionBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write transactions: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func flushRequests(t *testing.T, db *sql.DB, rows []persistence.RequestRow) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := persistence.NewWriter(db).WriteRequestBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write requests: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestHistoryAndExport(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := query.NewService(db)
	ctx := context.Background()

	userID := uuid.New()
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	rows := []persistence.TransactionRow{
		{
			ID: uuid.New(), UserID: userID,
			Type: string(ledger.TxCashPrize), BalanceType: string(ledger.BalanceCash),
			Amount: 100_000, Status: string(ledger.TxCompleted),
			Description: "weekly draw", CreatedAt: day.Add(9 * time.Hour),
		},
		{
			ID: uuid.New(), UserID: userID,
			Type: string(ledger.TxPurchase), BalanceType: string(ledger.BalanceCash),
			Amount: -2_550, Status: string(ledger.TxCompleted),
			Description: "tickets", CreatedAt: day.Add(10 * time.Hour),
		},
		{
			ID: uuid.New(), UserID: uuid.New(), // another user
			Type: string(ledger.TxCashPrize), BalanceType: string(ledger.BalanceCash),
			Amount: 5_000, Status: string(ledger.TxCompleted),
			Description: "consolation", CreatedAt: day.Add(11 * time.Hour),
		},
	}
	flushTransactions(t, db, rows)

	history, err := svc.History(ctx, userID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("%d transactions, want 2", len(history))
	}
	if history[0].Type != ledger.TxPurchase {
		t.Errorf("history not newest first: %+v", history[0])
	}

	export, err := svc.Export(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(export) != 3 {
		t.Fatalf("%d export rows, want 3", len(export))
	}
	if export[0].AmountDKK != "1000.00" {
		t.Errorf("amount %q, want 1000.00", export[0].AmountDKK)
	}
	if export[1].AmountDKK != "-25.50" {
		t.Errorf("amount %q, want -25.50", export[1].AmountDKK)
	}
}

func TestRevenueForDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := query.NewService(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()

	flushTransactions(t, db, []persistence.TransactionRow{
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxPurchase), BalanceType: string(ledger.BalanceCash),
			Amount: -100_000, Status: string(ledger.TxCompleted), CreatedAt: day.Add(time.Hour)},
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxCashPrize), BalanceType: string(ledger.BalanceCash),
			Amount: 40_000, Status: string(ledger.TxCompleted), CreatedAt: day.Add(2 * time.Hour)},
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxWithdrawal), BalanceType: string(ledger.BalanceCash),
			Amount: -30_000, Status: string(ledger.TxCompleted), CreatedAt: day.Add(3 * time.Hour)},
		// Bonus movements never count towards cash revenue.
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxBonusCredit), BalanceType: string(ledger.BalanceBonus),
			Amount: 9_999, Status: string(ledger.TxCompleted), CreatedAt: day.Add(4 * time.Hour)},
		// Next day is out of range.
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxPurchase), BalanceType: string(ledger.BalanceCash),
			Amount: -50_000, Status: string(ledger.TxCompleted), CreatedAt: day.AddDate(0, 0, 1).Add(time.Hour)},
	})

	processed := day.Add(3 * time.Hour)
	flushRequests(t, db, []persistence.RequestRow{
		{ID: uuid.New(), UserID: userID, MethodID: uuid.New(), Amount: 30_000, Fee: 600, Net: 29_400,
			Status: string(payout.StatusCompleted), ReservationID: uuid.New(),
			RequestedAt: day.Add(2 * time.Hour), ProcessedAt: &processed},
	})

	f, err := svc.RevenueForDate(ctx, day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	want := reconcile.RevenueFigures{Sales: 100_000, Fees: 600, Prizes: 40_000, Withdrawals: 30_000, TxCount: 3}
	if f != want {
		t.Errorf("figures = %+v, want %+v", f, want)
	}
	if f.Expected() != 30_600 {
		t.Errorf("expected %d, want 30600", f.Expected())
	}
}

func TestSettlementsAndReconciliationStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := query.NewService(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	for _, amount := range []money.Amount{20_000, 10_600} {
		st := query.Settlement{
			ID:        uuid.New(),
			SettledOn: day,
			Amount:    amount,
			Provider:  "clearhaus",
			Reference: uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		}
		if err := svc.RecordSettlement(ctx, st); err != nil {
			t.Fatalf("record settlement: %v", err)
		}
	}

	total, err := svc.SettledTotal(ctx, day)
	if err != nil {
		t.Fatalf("settled total: %v", err)
	}
	if total != 30_600 {
		t.Errorf("settled total %d, want 30600", total)
	}

	// Full reconciliation flow against the durable stores.
	rec := reconcile.New(reconcile.Config{
		Ledger:      svc,
		Settlements: svc,
		Records:     svc,
		Logger:      testutil.Logger(),
	})
	record, err := rec.Run(ctx, day)
	if err != nil {
		t.Fatalf("run reconciliation: %v", err)
	}
	// Empty ledger vs 30600 settled: a discrepancy.
	if record.Status != reconcile.StatusDiscrepancy {
		t.Fatalf("status %s, want discrepancy", record.Status)
	}

	if _, err := rec.Review(ctx, record.ID, "admin-1"); err != nil {
		t.Fatalf("review: %v", err)
	}
	resolved, err := rec.Resolve(ctx, record.ID, "admin-1", "missing export batch")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != reconcile.StatusResolved {
		t.Errorf("status %s, want resolved", resolved.Status)
	}

	stored, err := svc.GetReconciliation(ctx, record.ID)
	if err != nil {
		t.Fatalf("get reconciliation: %v", err)
	}
	if stored.Status != reconcile.StatusResolved || stored.Notes != "missing export batch" {
		t.Errorf("stored = %+v", stored)
	}

	list, err := svc.ListReconciliations(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("%d records, want 1", len(list))
	}
}

func TestDailyWithdrawalTotal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := query.NewService(db)
	ctx := context.Background()

	userID := uuid.New()
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	flushTransactions(t, db, []persistence.TransactionRow{
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxWithdrawal), BalanceType: string(ledger.BalanceCash),
			Amount: -30_000, Status: string(ledger.TxCompleted), CreatedAt: day.Add(time.Hour)},
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxWithdrawal), BalanceType: string(ledger.BalanceCash),
			Amount: -20_000, Status: string(ledger.TxCompleted), CreatedAt: day.Add(2 * time.Hour)},
		{ID: uuid.New(), UserID: userID, Type: string(ledger.TxWithdrawal), BalanceType: string(ledger.BalanceCash),
			Amount: -10_000, Status: string(ledger.TxCompleted), CreatedAt: day.AddDate(0, 0, -1)},
	})

	total, err := svc.DailyWithdrawalTotal(ctx, userID, day)
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if total != 50_000 {
		t.Errorf("total %d, want 50000", total)
	}
}
