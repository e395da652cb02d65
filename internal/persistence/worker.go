package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/observability"
)

// Worker drains the record channel and batch-writes to Postgres. Producers
// send with blocking semantics: if the worker falls behind, the core stalls
// instead of losing a committed mutation.
type Worker struct {
	writer       *Writer
	db           *sql.DB
	input        <-chan Record
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	input <-chan Record,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		db:           db,
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// batch accumulates one flush worth of rows. Transactions append; the
// upserted kinds keep only the latest row per key, because a multi-row
// upsert cannot touch the same key twice.
type batch struct {
	txs      []TransactionRow
	balances map[uuid.UUID]BalanceRow
	requests map[uuid.UUID]RequestRow
	methods  map[uuid.UUID]MethodRow
	flags    map[uuid.UUID]FlagRow
	records  int
}

func newBatch(size int) *batch {
	return &batch{
		txs:      make([]TransactionRow, 0, size),
		balances: make(map[uuid.UUID]BalanceRow, size),
		requests: make(map[uuid.UUID]RequestRow),
		methods:  make(map[uuid.UUID]MethodRow),
		flags:    make(map[uuid.UUID]FlagRow),
	}
}

func (b *batch) add(rec Record) {
	if rec.Tx != nil {
		b.txs = append(b.txs, *rec.Tx)
	}
	if rec.Balance != nil {
		b.balances[rec.Balance.UserID] = *rec.Balance
	}
	if rec.Request != nil {
		b.requests[rec.Request.ID] = *rec.Request
	}
	if rec.Method != nil {
		b.methods[rec.Method.ID] = *rec.Method
	}
	if rec.Flag != nil {
		b.flags[rec.Flag.ID] = *rec.Flag
	}
	b.records++
}

func (b *batch) empty() bool { return b.records == 0 }

func (b *batch) rows() int {
	return len(b.txs) + len(b.balances) + len(b.requests) + len(b.methods) + len(b.flags)
}

// Run starts the worker loop: flush when the batch fills or the timeout
// fires. Blocks until ctx is cancelled or the input channel closes; either
// way the remaining batch is flushed first.
func (w *Worker) Run(ctx context.Context) error {
	b := newBatch(w.batchSize)
	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if !b.empty() {
				if err := w.flush(context.Background(), b); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case rec, ok := <-w.input:
			if !ok {
				if !b.empty() {
					if err := w.flush(context.Background(), b); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}
			b.add(rec)
			if b.records >= w.batchSize {
				w.flushWithRetry(ctx, b)
				b = newBatch(w.batchSize)
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if !b.empty() {
				w.flushWithRetry(ctx, b)
				b = newBatch(w.batchSize)
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// batch: it retries until the write succeeds or, on shutdown, makes one
// final attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, b *batch) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("records", b.records).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), b); err != nil {
					w.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, b)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return
		}
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

// flush writes the whole batch in a single database transaction.
func (w *Worker) flush(ctx context.Context, b *batch) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.countError("tx_begin")
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	if err := w.writer.WriteTransactionBatch(ctx, tx, b.txs); err != nil {
		w.countError("write_transactions")
		return err
	}
	if err := w.writer.WriteBalanceBatch(ctx, tx, mapValues(b.balances)); err != nil {
		w.countError("write_balances")
		return err
	}
	if err := w.writer.WriteRequestBatch(ctx, tx, mapValues(b.requests)); err != nil {
		w.countError("write_requests")
		return err
	}
	if err := w.writer.WriteMethodBatch(ctx, tx, mapValues(b.methods)); err != nil {
		w.countError("write_methods")
		return err
	}
	if err := w.writer.WriteFlagBatch(ctx, tx, mapValues(b.flags)); err != nil {
		w.countError("write_flags")
		return err
	}

	if err := tx.Commit(); err != nil {
		w.countError("tx_commit")
		return fmt.Errorf("commit batch tx: %w", err)
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(b.records))
		w.metrics.PersistRowsWritten.Add(float64(b.rows()))
	}
	return nil
}

func (w *Worker) countError(kind string) {
	if w.metrics != nil {
		w.metrics.PersistErrors.WithLabelValues(kind).Inc()
	}
}

func mapValues[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
