package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
	"github.com/krismatthes/drawdash-sub002/internal/persistence"
	"github.com/krismatthes/drawdash-sub002/internal/risk"
	"github.com/krismatthes/drawdash-sub002/internal/testutil"
)

func TestWorkerPersistsLedgerRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)

	records := make(chan persistence.Record, 64)
	worker := persistence.NewWorker(db, records, 4, 10*time.Millisecond, testutil.Logger(), nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	persist := make(chan ledger.Output, 64)
	bridged := make(chan struct{})
	go func() {
		defer close(bridged)
		for out := range persist {
			records <- persistence.RecordFromLedger(out)
		}
	}()

	store := ledger.NewStore(ledger.StoreConfig{
		TicketValue: 1_000,
		Persist:     persist,
		Logger:      testutil.Logger(),
	})

	userID := uuid.New()
	raffleID := uuid.New()
	if _, err := store.Credit(userID, ledger.BalanceCash, 100_000, ledger.TxCashPrize, "weekly draw",
		ledger.Metadata{RaffleID: &raffleID}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := store.Credit(userID, ledger.BalanceBonus, 5_000, ledger.TxBonusCredit, "signup bonus", ledger.Metadata{}); err != nil {
		t.Fatalf("credit bonus: %v", err)
	}
	if _, err := store.Debit(userID, ledger.BalanceCash, 2_000, ledger.TxPurchase, "tickets", ledger.Metadata{}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	resID, err := store.Reserve(userID, 30_000)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Settle(userID, resID, ledger.Metadata{AdminID: "admin-1"}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	want := store.GetBalance(userID)

	close(persist)
	<-bridged
	close(records)
	<-done

	// Rebuild a fresh core from the durable log.
	loader := persistence.NewLoader(db)
	rebuilt := ledger.NewStore(ledger.StoreConfig{TicketValue: 1_000, Logger: testutil.Logger()})
	count, err := loader.LoadTransactions(context.Background(), func(tx *ledger.Transaction) error {
		rebuilt.RestoreTransaction(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if count != 4 {
		t.Errorf("loaded %d transactions, want 4", count)
	}

	got := rebuilt.GetBalance(userID)
	if got.Cash != want.Cash || got.Bonus != want.Bonus || got.FreeTickets != want.FreeTickets {
		t.Errorf("rebuilt balance %+v, want %+v", got, want)
	}
	if got.Cash != 68_000 {
		t.Errorf("cash %d, want 68000", got.Cash)
	}

	// Metadata survives the round trip.
	history := rebuilt.History(userID, ledger.Filter{}, 10, 0)
	found := false
	for _, tx := range history {
		if tx.Metadata.RaffleID != nil && *tx.Metadata.RaffleID == raffleID {
			found = true
		}
	}
	if !found {
		t.Error("raffle metadata lost in persistence")
	}
}

func TestWorkerUpsertsPayoutState(t *testing.T) {
	db := testutil.SetupTestDB(t)

	records := make(chan persistence.Record, 64)
	worker := persistence.NewWorker(db, records, 100, 5*time.Millisecond, testutil.Logger(), nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	userID := uuid.New()
	method := payout.Method{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      payout.MethodBankTransfer,
		Details:   map[string]string{"iban_last4": "1234"},
		IsDefault: true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	records <- persistence.RecordFromPayout(payout.Event{Method: &method})

	req := payout.Request{
		ID:            uuid.New(),
		UserID:        userID,
		MethodID:      method.ID,
		Amount:        30_000,
		Fee:           600,
		Net:           29_400,
		Status:        payout.StatusPending,
		RiskScore:     20,
		ReservationID: uuid.New(),
		RequestedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	records <- persistence.RecordFromPayout(payout.Event{Request: &req})

	flag := risk.FraudFlag{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      "velocity",
		Severity:  risk.SeverityMedium,
		Details:   "3 withdrawals in 10 minutes",
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
	records <- persistence.RecordFromPayout(payout.Event{Flag: &flag})

	// Let the first batch land, then upsert later states.
	time.Sleep(50 * time.Millisecond)

	processed := time.Now().UTC().Truncate(time.Microsecond)
	req.Status = payout.StatusCompleted
	req.ProcessedAt = &processed
	req.ProcessedBy = "admin-1"
	method.Verified = true
	flag.Resolved = true
	flag.ResolvedBy = "admin-1"
	records <- persistence.RecordFromPayout(payout.Event{Request: &req})
	records <- persistence.RecordFromPayout(payout.Event{Method: &method})
	records <- persistence.RecordFromPayout(payout.Event{Flag: &flag})

	close(records)
	<-done

	loader := persistence.NewLoader(db)
	ctx := context.Background()

	requests, err := loader.LoadRequests(ctx)
	if err != nil {
		t.Fatalf("load requests: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("%d requests, want 1 (upsert, not insert)", len(requests))
	}
	got := requests[0]
	if got.Status != payout.StatusCompleted || got.ProcessedBy != "admin-1" {
		t.Errorf("request = %+v, want completed by admin-1", got)
	}
	if got.Fee != 600 || got.Net != 29_400 {
		t.Errorf("amounts fee=%d net=%d, want 600/29400", got.Fee, got.Net)
	}

	methods, err := loader.LoadMethods(ctx)
	if err != nil {
		t.Fatalf("load methods: %v", err)
	}
	if len(methods) != 1 || !methods[0].Verified {
		t.Errorf("methods = %+v, want 1 verified", methods)
	}
	if methods[0].Details["iban_last4"] != "1234" {
		t.Errorf("details lost: %+v", methods[0].Details)
	}

	flags, err := loader.LoadFlags(ctx)
	if err != nil {
		t.Fatalf("load flags: %v", err)
	}
	if len(flags) != 1 || !flags[0].Resolved {
		t.Errorf("flags = %+v, want 1 resolved", flags)
	}
}

func TestTransactionWritesAreIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)

	records := make(chan persistence.Record, 8)
	worker := persistence.NewWorker(db, records, 100, 5*time.Millisecond, testutil.Logger(), nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	row := persistence.TransactionRow{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        string(ledger.TxCashPrize),
		BalanceType: string(ledger.BalanceCash),
		Amount:      10_000,
		Status:      string(ledger.TxCompleted),
		Description: "prize",
		CreatedAt:   time.Now().UTC(),
	}
	// The same transaction delivered twice, as after a crash-replay.
	records <- persistence.Record{Tx: &row}
	time.Sleep(50 * time.Millisecond)
	records <- persistence.Record{Tx: &row}
	close(records)
	<-done

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM ledger.transactions").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("%d rows, want 1", count)
	}
}
