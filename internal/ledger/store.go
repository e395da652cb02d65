package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/observability"
)

// Output is what the store emits for every committed mutation: the appended
// transaction (nil for pure reservation moves) and the balance snapshot after
// the mutation.
type Output struct {
	Tx      *Transaction
	Balance Balance
}

// Store is the single source of truth for balances. All mutating operations
// for a given user run under that user's exclusive lock; operations on
// different users never block each other.
//
// Durability follows the write-behind model: the in-memory state is
// authoritative, every commit is emitted on the persist channel with a
// blocking send (backpressure, no loss) and on the publish channel with a
// non-blocking send (drop on full).
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*account

	ticketValue money.Amount

	persistChan chan<- Output
	publishChan chan<- Output

	log     zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type account struct {
	mu           sync.Mutex
	balance      Balance
	txs          []*Transaction // append order, oldest first
	reservations map[uuid.UUID]money.Amount
}

// StoreConfig wires the store's collaborators. Persist may be nil in tests.
type StoreConfig struct {
	TicketValue money.Amount
	Persist     chan<- Output
	Publish     chan<- Output
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		accounts:    make(map[uuid.UUID]*account),
		ticketValue: cfg.TicketValue,
		persistChan: cfg.Persist,
		publishChan: cfg.Publish,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
}

// getAccount returns the account for userID, creating it lazily on first use.
// Accounts are never deleted; zeroed balances persist for audit.
func (s *Store) getAccount(userID uuid.UUID) *account {
	s.mu.RLock()
	acct, ok := s.accounts[userID]
	s.mu.RUnlock()
	if ok {
		return acct
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok = s.accounts[userID]; ok {
		return acct
	}
	acct = &account{
		balance:      Balance{UserID: userID},
		reservations: make(map[uuid.UUID]money.Amount),
	}
	s.accounts[userID] = acct
	return acct
}

// Credit appends a completed credit transaction and increases the matching
// balance field. Amount must be positive.
func (s *Store) Credit(userID uuid.UUID, bt BalanceType, amount money.Amount, txType TxType, description string, md Metadata) (*Transaction, error) {
	start := time.Now()
	if amount <= 0 {
		s.countOp("credit", "invalid_amount")
		return nil, fmt.Errorf("credit of %d: %w", amount, ErrInvalidAmount)
	}
	if err := md.Validate(); err != nil {
		s.countOp("credit", "invalid_metadata")
		return nil, fmt.Errorf("credit metadata: %w", err)
	}

	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	tx := s.newTx(userID, txType, bt, amount, description, md)
	s.commit(acct, tx, func(b *Balance) {
		applyAmount(b, bt, amount)
	})

	s.countOp("credit", "ok")
	s.observeOp("credit", start)
	return tx, nil
}

// Debit appends a completed debit transaction (negative amount) after
// checking the available balance of the targeted type. Cash debits spend
// free cash only: locked funds are excluded. Bonus balance is never debited
// by a withdrawal, only by purchases or explicit admin reversal.
func (s *Store) Debit(userID uuid.UUID, bt BalanceType, amount money.Amount, txType TxType, description string, md Metadata) (*Transaction, error) {
	start := time.Now()
	if amount <= 0 {
		s.countOp("debit", "invalid_amount")
		return nil, fmt.Errorf("debit of %d: %w", amount, ErrInvalidAmount)
	}
	if err := md.Validate(); err != nil {
		s.countOp("debit", "invalid_metadata")
		return nil, fmt.Errorf("debit metadata: %w", err)
	}
	if bt == BalanceBonus && txType == TxWithdrawal {
		s.countOp("debit", "bonus_withdrawal")
		return nil, fmt.Errorf("bonus balance is not withdrawable: %w", ErrInvalidAmount)
	}

	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	var have money.Amount
	switch bt {
	case BalanceCash:
		have = acct.balance.Available()
	case BalanceBonus:
		have = acct.balance.Bonus
	case BalanceFreeTickets:
		have = money.Amount(acct.balance.FreeTickets)
	default:
		return nil, fmt.Errorf("unknown balance type %q", bt)
	}
	if have < amount {
		s.countOp("debit", "insufficient")
		return nil, fmt.Errorf("debit %d from %s (have %d): %w", amount, bt, have, ErrInsufficientFunds)
	}

	tx := s.newTx(userID, txType, bt, -amount, description, md)
	s.commit(acct, tx, func(b *Balance) {
		applyAmount(b, bt, -amount)
	})

	s.countOp("debit", "ok")
	s.observeOp("debit", start)
	return tx, nil
}

// Reserve moves amount from free cash into the locked balance and returns the
// reservation id. No transaction is appended; reservations are transient and
// rebuilt from live payout requests on restart.
func (s *Store) Reserve(userID uuid.UUID, amount money.Amount) (uuid.UUID, error) {
	if amount <= 0 {
		s.countOp("reserve", "invalid_amount")
		return uuid.Nil, fmt.Errorf("reserve of %d: %w", amount, ErrInvalidAmount)
	}

	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if acct.balance.Available() < amount {
		s.countOp("reserve", "insufficient")
		return uuid.Nil, fmt.Errorf("reserve %d (free cash %d): %w", amount, acct.balance.Available(), ErrInsufficientFunds)
	}

	resID := uuid.New()
	s.commit(acct, nil, func(b *Balance) {
		b.Locked += amount
	})
	acct.reservations[resID] = amount

	s.countOp("reserve", "ok")
	return resID, nil
}

// Release returns a reserved amount to free cash without touching the cash
// balance. Used when a payout request is rejected or cancelled.
func (s *Store) Release(userID, reservationID uuid.UUID) error {
	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	amount, ok := acct.reservations[reservationID]
	if !ok {
		s.countOp("release", "unknown_reservation")
		return fmt.Errorf("release reservation %s: %w", reservationID, ErrInvalidStateTransition)
	}
	delete(acct.reservations, reservationID)

	s.commit(acct, nil, func(b *Balance) {
		b.Locked -= amount
	})

	s.countOp("release", "ok")
	return nil
}

// Settle finalizes a reservation: the amount leaves both the locked and cash
// balances and a completed withdrawal transaction is appended. Settling the
// same reservation twice fails; the first settle consumes it.
func (s *Store) Settle(userID, reservationID uuid.UUID, md Metadata) (*Transaction, error) {
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("settle metadata: %w", err)
	}

	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	amount, ok := acct.reservations[reservationID]
	if !ok {
		s.countOp("settle", "unknown_reservation")
		return nil, fmt.Errorf("settle reservation %s: %w", reservationID, ErrInvalidStateTransition)
	}
	delete(acct.reservations, reservationID)

	resID := reservationID
	md.ReservationID = &resID

	tx := s.newTx(userID, TxWithdrawal, BalanceCash, -amount, "withdrawal settlement", md)
	s.commit(acct, tx, func(b *Balance) {
		b.Locked -= amount
		b.Cash -= amount
	})

	s.countOp("settle", "ok")
	return tx, nil
}

// GetBalance returns a copy of the user's balance snapshot.
func (s *Store) GetBalance(userID uuid.UUID) Balance {
	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance
}

// AvailableFunds returns the purchase power: free cash, plus bonus, plus free
// tickets at the configured conversion value.
func (s *Store) AvailableFunds(userID uuid.UUID) Available {
	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	b := acct.balance
	ticketWorth := money.Amount(b.FreeTickets) * s.ticketValue
	return Available{
		Cash:        b.Available(),
		Bonus:       b.Bonus,
		FreeTickets: b.FreeTickets,
		TicketValue: s.ticketValue,
		Total:       b.Available() + b.Bonus + ticketWorth,
	}
}

// History returns the user's transactions newest-first, restartable via
// offset. The in-memory log is total-ordered by append time per user.
func (s *Store) History(userID uuid.UUID, f Filter, limit, offset int) []*Transaction {
	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	out := make([]*Transaction, 0, limit)
	skipped := 0
	for i := len(acct.txs) - 1; i >= 0; i-- {
		tx := acct.txs[i]
		if !f.Matches(tx) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *tx
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// --- Rebuild (startup replay) ---

// RestoreTransaction replays a persisted transaction into the in-memory
// state without emitting outputs. Only completed transactions move balances;
// the log keeps every status for history and export.
func (s *Store) RestoreTransaction(tx *Transaction) {
	acct := s.getAccount(tx.UserID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	cp := *tx
	acct.txs = append(acct.txs, &cp)
	if tx.Status != TxCompleted {
		return
	}
	applyAmount(&acct.balance, tx.BalanceType, tx.Amount)
	if tx.Timestamp.After(acct.balance.UpdatedAt) {
		acct.balance.UpdatedAt = tx.Timestamp
	}
	if err := acct.balance.check(); err != nil {
		panic(fmt.Sprintf("FATAL: ledger rebuild violated invariant: %v", err))
	}
}

// RestoreReservation re-locks funds for a live payout request during rebuild.
func (s *Store) RestoreReservation(userID, reservationID uuid.UUID, amount money.Amount) error {
	acct := s.getAccount(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if acct.balance.Available() < amount {
		return fmt.Errorf("restore reservation %s for %d: %w", reservationID, amount, ErrInsufficientFunds)
	}
	acct.balance.Locked += amount
	acct.reservations[reservationID] = amount
	return nil
}

// UserIDs returns all users with an account, sorted for deterministic sweeps.
func (s *Store) UserIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// --- internals ---

func (s *Store) newTx(userID uuid.UUID, txType TxType, bt BalanceType, amount money.Amount, description string, md Metadata) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        txType,
		BalanceType: bt,
		Amount:      amount,
		Status:      TxCompleted,
		Description: description,
		Timestamp:   s.now(),
		Metadata:    md,
	}
}

// commit applies the mutation, re-checks invariants, appends the transaction
// (if any), and emits outputs. Caller holds the account lock.
func (s *Store) commit(acct *account, tx *Transaction, mutate func(*Balance)) {
	mutate(&acct.balance)
	acct.balance.UpdatedAt = s.now()
	if err := acct.balance.check(); err != nil {
		panic(fmt.Sprintf("FATAL: balance invariant violated: %v", err))
	}

	if tx != nil {
		acct.txs = append(acct.txs, tx)
	}

	out := Output{Tx: tx, Balance: acct.balance}

	// Persistence: blocking send. The store stalls until the persistence
	// worker drains, guaranteeing no committed mutation is lost.
	if s.persistChan != nil {
		s.persistChan <- out
	}

	// Publication: non-blocking send, drop on full. Consumers rebuild from
	// the durable log if they fall behind.
	if s.publishChan != nil {
		select {
		case s.publishChan <- out:
		default:
			if s.metrics != nil {
				s.metrics.PublishDrops.Inc()
			}
		}
	}
}

func applyAmount(b *Balance, bt BalanceType, amount money.Amount) {
	switch bt {
	case BalanceCash:
		b.Cash += amount
	case BalanceBonus:
		b.Bonus += amount
	case BalanceFreeTickets:
		b.FreeTickets += int64(amount)
	}
}

func (s *Store) countOp(op, result string) {
	if s.metrics != nil {
		s.metrics.LedgerOps.WithLabelValues(op, result).Inc()
	}
}

func (s *Store) observeOp(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.LedgerOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
