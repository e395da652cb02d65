package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
)

type fakeLedger struct {
	figures RevenueFigures
}

func (f *fakeLedger) RevenueForDate(ctx context.Context, date time.Time) (RevenueFigures, error) {
	return f.figures, nil
}

type fakeSettlements struct {
	total money.Amount
}

func (f *fakeSettlements) SettledTotal(ctx context.Context, date time.Time) (money.Amount, error) {
	return f.total, nil
}

type memStore struct {
	records map[uuid.UUID]Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]Record)}
}

func (m *memStore) SaveReconciliation(ctx context.Context, rec *Record) error {
	m.records[rec.ID] = *rec
	return nil
}

func (m *memStore) GetReconciliation(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := rec
	return &cp, nil
}

func (m *memStore) ListReconciliations(ctx context.Context, limit int) ([]*Record, error) {
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		cp := rec
		out = append(out, &cp)
	}
	return out, nil
}

func newTestReconciler(figures RevenueFigures, settled money.Amount) (*Reconciler, *memStore) {
	store := newMemStore()
	r := New(Config{
		Ledger:      &fakeLedger{figures: figures},
		Settlements: &fakeSettlements{total: settled},
		Records:     store,
		Logger:      zerolog.Nop(),
	})
	return r, store
}

func TestRevenueFiguresExpected(t *testing.T) {
	f := RevenueFigures{Sales: 100_000, Fees: 1_200, Prizes: 40_000, Withdrawals: 30_000}
	if got := f.Expected(); got != 31_200 {
		t.Errorf("expected revenue %d, want 31200", got)
	}
}

func TestRunBalanced(t *testing.T) {
	figures := RevenueFigures{Sales: 100_000, Fees: 600, Prizes: 40_000, Withdrawals: 30_000, TxCount: 12}
	r, store := newTestReconciler(figures, figures.Expected())

	rec, err := r.Run(context.Background(), time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != StatusBalanced || rec.Discrepancy != 0 {
		t.Errorf("record = %+v, want balanced", rec)
	}
	if !rec.Date.Equal(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date not truncated to the day: %s", rec.Date)
	}
	if rec.TxCount != 12 {
		t.Errorf("tx count %d, want 12", rec.TxCount)
	}
	if _, ok := store.records[rec.ID]; !ok {
		t.Error("record not persisted")
	}
}

func TestRunDiscrepancyAndReview(t *testing.T) {
	figures := RevenueFigures{Sales: 100_000}
	r, _ := newTestReconciler(figures, 95_000)

	rec, err := r.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != StatusDiscrepancy || rec.Discrepancy != -5_000 {
		t.Fatalf("record = %+v, want discrepancy of -5000", rec)
	}

	reviewed, err := r.Review(context.Background(), rec.ID, "admin-1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != StatusUnderReview || reviewed.ReviewedBy != "admin-1" {
		t.Errorf("reviewed = %+v", reviewed)
	}

	resolved, err := r.Resolve(context.Background(), rec.ID, "admin-1", "processor batch delayed one day")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.Notes == "" {
		t.Errorf("resolved = %+v", resolved)
	}
}

func TestReviewTransitionsAreStrict(t *testing.T) {
	figures := RevenueFigures{Sales: 100_000}

	// Balanced records are terminal.
	r, _ := newTestReconciler(figures, figures.Expected())
	rec, err := r.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := r.Review(context.Background(), rec.ID, "admin-1"); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("review balanced: got %v, want ErrInvalidStateTransition", err)
	}

	// Resolving without review first is illegal.
	r2, _ := newTestReconciler(figures, 95_000)
	rec2, err := r2.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := r2.Resolve(context.Background(), rec2.ID, "admin-1", ""); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("resolve unreviewed: got %v, want ErrInvalidStateTransition", err)
	}
}
