// Package testutil holds shared test helpers. Database-backed tests skip
// unless DRAWDASH_TEST_DATABASE_URL points at a disposable Postgres.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/persistence"
)

// Logger returns a silenced logger for tests. Set DRAWDASH_TEST_VERBOSE to
// see output.
func Logger() zerolog.Logger {
	if os.Getenv("DRAWDASH_TEST_VERBOSE") != "" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.Nop()
}

// SetupTestDB opens the test database, applies migrations, and truncates
// all tables so each test starts clean.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("DRAWDASH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DRAWDASH_TEST_DATABASE_URL not set, skipping database test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("test database unreachable: %v", err)
	}

	migrator := persistence.NewMigrator(db, migrationsDir(t), Logger())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	for _, table := range []string{
		"ledger.transactions",
		"ledger.balances",
		"payout.requests",
		"payout.methods",
		"risk.fraud_flags",
		"recon.settlements",
		"recon.reconciliations",
	} {
		if _, err := db.ExecContext(ctx, "TRUNCATE "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return db
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	for _, dir := range []string{"../../migrations", "../migrations", "migrations"} {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	t.Fatal("migrations directory not found")
	return ""
}

// Drain discards everything sent on ch until it closes. Run it in a
// goroutine when a test wires a real persist channel it does not inspect.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
