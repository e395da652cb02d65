package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/money"
)

func newTestStore() *Store {
	return NewStore(StoreConfig{
		TicketValue: 1_000,
		Logger:      zerolog.Nop(),
	})
}

func mustCredit(t *testing.T, s *Store, userID uuid.UUID, bt BalanceType, amount money.Amount, txType TxType) *Transaction {
	t.Helper()
	tx, err := s.Credit(userID, bt, amount, txType, "test credit", Metadata{})
	if err != nil {
		t.Fatalf("credit %d to %s: %v", amount, bt, err)
	}
	return tx
}

func TestCreditDebitConservation(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()

	mustCredit(t, s, userID, BalanceCash, 50_000, TxCashPrize)
	mustCredit(t, s, userID, BalanceBonus, 2_500, TxBonusCredit)
	if _, err := s.Debit(userID, BalanceCash, 12_000, TxPurchase, "tickets", Metadata{}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := s.Debit(userID, BalanceBonus, 1_000, TxPurchase, "tickets", Metadata{}); err != nil {
		t.Fatalf("bonus debit: %v", err)
	}

	// The balance snapshot must equal the sum of completed transactions.
	var cash, bonus money.Amount
	for _, tx := range s.History(userID, Filter{}, 100, 0) {
		if tx.Status != TxCompleted {
			continue
		}
		switch tx.BalanceType {
		case BalanceCash:
			cash += tx.Amount
		case BalanceBonus:
			bonus += tx.Amount
		}
	}

	b := s.GetBalance(userID)
	if b.Cash != cash {
		t.Errorf("cash snapshot %d != transaction sum %d", b.Cash, cash)
	}
	if b.Bonus != bonus {
		t.Errorf("bonus snapshot %d != transaction sum %d", b.Bonus, bonus)
	}
	if b.Cash != 38_000 || b.Bonus != 1_500 {
		t.Errorf("unexpected balances: cash=%d bonus=%d", b.Cash, b.Bonus)
	}
}

func TestCreditRejectsNonPositive(t *testing.T) {
	s := newTestStore()
	for _, amount := range []money.Amount{0, -100} {
		if _, err := s.Credit(uuid.New(), BalanceCash, amount, TxCashPrize, "", Metadata{}); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("credit %d: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestConcurrentDebitsNeverDoubleSpend(t *testing.T) {
	// Two concurrent debits of 60 against a balance of 100: exactly one
	// must win, every time.
	for round := 0; round < 50; round++ {
		s := newTestStore()
		userID := uuid.New()
		mustCredit(t, s, userID, BalanceCash, 10_000, TxCashPrize)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Debit(userID, BalanceCash, 6_000, TxPurchase, "race", Metadata{})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("round %d: %d debits succeeded, want exactly 1", round, succeeded)
		}
		if b := s.GetBalance(userID); b.Cash != 4_000 {
			t.Fatalf("round %d: cash %d, want 4000", round, b.Cash)
		}
	}
}

func TestConcurrentCreditsConserve(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Credit(userID, BalanceCash, 100, TxDeposit, "concurrent", Metadata{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
	}

	if b := s.GetBalance(userID); b.Cash != n*100 {
		t.Errorf("cash %d, want %d", b.Cash, n*100)
	}
	if got := len(s.History(userID, Filter{}, n*2, 0)); got != n {
		t.Errorf("history has %d transactions, want %d", got, n)
	}
}

func TestReservationRoundTrip(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()
	mustCredit(t, s, userID, BalanceCash, 10_000, TxCashPrize)

	resID, err := s.Reserve(userID, 4_000)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	b := s.GetBalance(userID)
	if b.Cash != 10_000 || b.Locked != 4_000 || b.Available() != 6_000 {
		t.Fatalf("after reserve: cash=%d locked=%d available=%d", b.Cash, b.Locked, b.Available())
	}

	// Reservations append no transactions.
	if got := len(s.History(userID, Filter{}, 10, 0)); got != 1 {
		t.Errorf("history has %d transactions after reserve, want 1", got)
	}

	if err := s.Release(userID, resID); err != nil {
		t.Fatalf("release: %v", err)
	}
	b = s.GetBalance(userID)
	if b.Cash != 10_000 || b.Locked != 0 {
		t.Errorf("after release: cash=%d locked=%d, want 10000/0", b.Cash, b.Locked)
	}
}

func TestReserveRespectsLockedFunds(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()
	mustCredit(t, s, userID, BalanceCash, 10_000, TxCashPrize)

	if _, err := s.Reserve(userID, 8_000); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if _, err := s.Reserve(userID, 3_000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("second reserve: got %v, want ErrInsufficientFunds", err)
	}
	if _, err := s.Debit(userID, BalanceCash, 3_000, TxPurchase, "", Metadata{}); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("debit against locked funds: got %v, want ErrInsufficientFunds", err)
	}
}

func TestSettleConsumesReservation(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()
	mustCredit(t, s, userID, BalanceCash, 10_000, TxCashPrize)

	resID, err := s.Reserve(userID, 4_000)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	tx, err := s.Settle(userID, resID, Metadata{})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Amount != -4_000 || tx.Type != TxWithdrawal || tx.Status != TxCompleted {
		t.Errorf("settlement tx = %+v", tx)
	}
	if tx.Metadata.ReservationID == nil || *tx.Metadata.ReservationID != resID {
		t.Errorf("settlement tx missing reservation reference")
	}

	b := s.GetBalance(userID)
	if b.Cash != 6_000 || b.Locked != 0 {
		t.Errorf("after settle: cash=%d locked=%d, want 6000/0", b.Cash, b.Locked)
	}

	// The first settle consumed the reservation; replays must fail without
	// moving funds.
	if _, err := s.Settle(userID, resID, Metadata{}); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("second settle: got %v, want ErrInvalidStateTransition", err)
	}
	if err := s.Release(userID, resID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("release after settle: got %v, want ErrInvalidStateTransition", err)
	}
	if b := s.GetBalance(userID); b.Cash != 6_000 {
		t.Errorf("cash moved on replay: %d", b.Cash)
	}
}

func TestBonusIsNotWithdrawable(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()
	mustCredit(t, s, userID, BalanceBonus, 5_000, TxBonusCredit)

	if _, err := s.Debit(userID, BalanceBonus, 1_000, TxWithdrawal, "", Metadata{}); err == nil {
		t.Fatal("bonus withdrawal succeeded, want error")
	}
	// Purchases may spend bonus funds.
	if _, err := s.Debit(userID, BalanceBonus, 1_000, TxPurchase, "tickets", Metadata{}); err != nil {
		t.Fatalf("bonus purchase: %v", err)
	}
}

func TestAvailableFundsValuesTickets(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()
	mustCredit(t, s, userID, BalanceCash, 10_000, TxCashPrize)
	mustCredit(t, s, userID, BalanceBonus, 2_000, TxBonusCredit)
	mustCredit(t, s, userID, BalanceFreeTickets, 5, TxFreeTickets)

	a := s.AvailableFunds(userID)
	if a.FreeTickets != 5 {
		t.Errorf("free tickets %d, want 5", a.FreeTickets)
	}
	// 5 tickets at the configured 10 DKK each.
	if a.Total != 10_000+2_000+5*1_000 {
		t.Errorf("total %d, want %d", a.Total, 17_000)
	}
}

func TestHistoryOrderingAndPaging(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	s := NewStore(StoreConfig{
		Logger: zerolog.Nop(),
		Now: func() time.Time {
			step++
			return base.Add(time.Duration(step) * time.Second)
		},
	})
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		mustCredit(t, s, userID, BalanceCash, money.Amount(100*(i+1)), TxDeposit)
	}

	page := s.History(userID, Filter{}, 2, 0)
	if len(page) != 2 {
		t.Fatalf("page size %d, want 2", len(page))
	}
	if page[0].Amount != 500 || page[1].Amount != 400 {
		t.Errorf("newest first: got %d, %d", page[0].Amount, page[1].Amount)
	}

	next := s.History(userID, Filter{}, 2, 2)
	if next[0].Amount != 300 || next[1].Amount != 200 {
		t.Errorf("offset page: got %d, %d", next[0].Amount, next[1].Amount)
	}

	txType := TxPurchase
	if got := s.History(userID, Filter{Type: &txType}, 10, 0); len(got) != 0 {
		t.Errorf("type filter matched %d, want 0", len(got))
	}
}

func TestRestoreRebuildsBalances(t *testing.T) {
	s := newTestStore()
	userID := uuid.New()

	txs := []*Transaction{
		{ID: uuid.New(), UserID: userID, Type: TxCashPrize, BalanceType: BalanceCash, Amount: 50_000, Status: TxCompleted, Timestamp: time.Now()},
		{ID: uuid.New(), UserID: userID, Type: TxPurchase, BalanceType: BalanceCash, Amount: -12_000, Status: TxCompleted, Timestamp: time.Now()},
		// Pending transactions appear in history but never move balances.
		{ID: uuid.New(), UserID: userID, Type: TxWithdrawal, BalanceType: BalanceCash, Amount: -5_000, Status: TxPending, Timestamp: time.Now()},
	}
	for _, tx := range txs {
		s.RestoreTransaction(tx)
	}

	if b := s.GetBalance(userID); b.Cash != 38_000 {
		t.Errorf("rebuilt cash %d, want 38000", b.Cash)
	}
	if got := len(s.History(userID, Filter{}, 10, 0)); got != 3 {
		t.Errorf("rebuilt history has %d entries, want 3", got)
	}

	// A live payout request re-locks its reservation.
	resID := uuid.New()
	if err := s.RestoreReservation(userID, resID, 20_000); err != nil {
		t.Fatalf("restore reservation: %v", err)
	}
	if b := s.GetBalance(userID); b.Available() != 18_000 {
		t.Errorf("available after restore %d, want 18000", b.Available())
	}
	if _, err := s.Settle(userID, resID, Metadata{}); err != nil {
		t.Errorf("settle restored reservation: %v", err)
	}
}

func TestPersistChannelReceivesEveryCommit(t *testing.T) {
	persist := make(chan Output, 16)
	s := NewStore(StoreConfig{Persist: persist, Logger: zerolog.Nop()})
	userID := uuid.New()

	mustCredit(t, s, userID, BalanceCash, 10_000, TxCashPrize)
	resID, _ := s.Reserve(userID, 4_000)
	if _, err := s.Settle(userID, resID, Metadata{}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if got := len(persist); got != 3 {
		t.Fatalf("persist channel has %d outputs, want 3", got)
	}
	first := <-persist
	if first.Tx == nil || first.Tx.Type != TxCashPrize {
		t.Errorf("first output = %+v", first.Tx)
	}
	second := <-persist
	if second.Tx != nil {
		t.Errorf("reservation emitted a transaction: %+v", second.Tx)
	}
	if second.Balance.Locked != 4_000 {
		t.Errorf("reservation balance snapshot locked=%d", second.Balance.Locked)
	}
}
