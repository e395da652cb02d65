// Package reconcile compares the ledger's expected platform revenue against
// settlements reported by the payment processor and tracks discrepancies
// through review.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/observability"
)

// RecordStatus tracks a reconciliation record through review.
//
//	balanced                              (terminal)
//	discrepancy -> under_review -> resolved
type RecordStatus string

const (
	StatusBalanced    RecordStatus = "balanced"
	StatusDiscrepancy RecordStatus = "discrepancy"
	StatusUnderReview RecordStatus = "under_review"
	StatusResolved    RecordStatus = "resolved"
)

// CanTransitionTo reports whether the review move is legal.
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	switch s {
	case StatusDiscrepancy:
		return next == StatusUnderReview
	case StatusUnderReview:
		return next == StatusResolved
	}
	return false
}

// Record is one day's reconciliation result. Discrepancy is actual minus
// expected: positive means the processor settled more than the ledger
// accounts for.
type Record struct {
	ID          uuid.UUID    `json:"id"`
	Date        time.Time    `json:"date"`
	Expected    money.Amount `json:"expected"`
	Actual      money.Amount `json:"actual"`
	Discrepancy money.Amount `json:"discrepancy"`
	Status      RecordStatus `json:"status"`
	TxCount     int          `json:"tx_count"`
	ReviewedBy  string       `json:"reviewed_by,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RevenueFigures is what the ledger contributed to a date's expected
// revenue: ticket sales plus withdrawal fees, minus prizes paid out.
type RevenueFigures struct {
	Sales       money.Amount
	Fees        money.Amount
	Prizes      money.Amount
	Withdrawals money.Amount
	TxCount     int
}

// Expected is the revenue the settlements should carry.
func (f RevenueFigures) Expected() money.Amount {
	return f.Sales + f.Fees - f.Prizes - f.Withdrawals
}

// LedgerSource supplies the ledger side of a reconciliation.
type LedgerSource interface {
	RevenueForDate(ctx context.Context, date time.Time) (RevenueFigures, error)
}

// SettlementSource supplies the processor side.
type SettlementSource interface {
	SettledTotal(ctx context.Context, date time.Time) (money.Amount, error)
}

// RecordStore persists reconciliation records. Reconciliation is low-volume
// and synchronous; it does not go through the batch persistence worker.
type RecordStore interface {
	SaveReconciliation(ctx context.Context, rec *Record) error
	GetReconciliation(ctx context.Context, id uuid.UUID) (*Record, error)
	ListReconciliations(ctx context.Context, limit int) ([]*Record, error)
}

// Reconciler runs the daily comparison.
type Reconciler struct {
	ledger      LedgerSource
	settlements SettlementSource
	records     RecordStore
	log         zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Config wires the reconciler's collaborators.
type Config struct {
	Ledger      LedgerSource
	Settlements SettlementSource
	Records     RecordStore
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

func New(cfg Config) *Reconciler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		ledger:      cfg.Ledger,
		settlements: cfg.Settlements,
		records:     cfg.Records,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
}

// Run reconciles one calendar date (UTC) and persists the record.
func (r *Reconciler) Run(ctx context.Context, date time.Time) (*Record, error) {
	start := time.Now()
	date = truncateDay(date)

	figures, err := r.ledger.RevenueForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("ledger revenue for %s: %w", date.Format("2006-01-02"), err)
	}
	actual, err := r.settlements.SettledTotal(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("settlements for %s: %w", date.Format("2006-01-02"), err)
	}

	expected := figures.Expected()
	rec := &Record{
		ID:          uuid.New(),
		Date:        date,
		Expected:    expected,
		Actual:      actual,
		Discrepancy: actual - expected,
		Status:      StatusBalanced,
		TxCount:     figures.TxCount,
		CreatedAt:   r.now(),
		UpdatedAt:   r.now(),
	}
	if rec.Discrepancy != 0 {
		rec.Status = StatusDiscrepancy
	}

	if err := r.records.SaveReconciliation(ctx, rec); err != nil {
		return nil, fmt.Errorf("save reconciliation: %w", err)
	}

	if r.metrics != nil {
		r.metrics.ReconcileRuns.WithLabelValues(string(rec.Status)).Inc()
		r.metrics.ReconcileDiscrepancy.Set(float64(rec.Discrepancy))
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}
	event := r.log.Info()
	if rec.Status == StatusDiscrepancy {
		event = r.log.Warn()
	}
	event.
		Str("date", date.Format("2006-01-02")).
		Str("expected", rec.Expected.String()).
		Str("actual", rec.Actual.String()).
		Str("discrepancy", rec.Discrepancy.String()).
		Int("tx_count", rec.TxCount).
		Msg("reconciliation complete")

	return rec, nil
}

// Review moves a discrepancy into under_review.
func (r *Reconciler) Review(ctx context.Context, id uuid.UUID, by string) (*Record, error) {
	return r.advance(ctx, id, StatusUnderReview, by, "")
}

// Resolve closes an under_review record with operator notes.
func (r *Reconciler) Resolve(ctx context.Context, id uuid.UUID, by, notes string) (*Record, error) {
	return r.advance(ctx, id, StatusResolved, by, notes)
}

func (r *Reconciler) advance(ctx context.Context, id uuid.UUID, to RecordStatus, by, notes string) (*Record, error) {
	rec, err := r.records.GetReconciliation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("reconciliation %s -> %s: %w", rec.Status, to, ledger.ErrInvalidStateTransition)
	}
	rec.Status = to
	rec.ReviewedBy = by
	if notes != "" {
		rec.Notes = notes
	}
	rec.UpdatedAt = r.now()
	if err := r.records.SaveReconciliation(ctx, rec); err != nil {
		return nil, fmt.Errorf("save reconciliation: %w", err)
	}
	return rec, nil
}

// RunPeriodic reconciles the previous UTC day on every tick until ctx is
// cancelled. Run it in its own goroutine.
func (r *Reconciler) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", interval).Msg("periodic reconciliation started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("periodic reconciliation stopped")
			return
		case <-ticker.C:
			yesterday := truncateDay(r.now().UTC().AddDate(0, 0, -1))
			if _, err := r.Run(ctx, yesterday); err != nil {
				r.log.Error().Err(err).Msg("periodic reconciliation failed")
			}
		}
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
