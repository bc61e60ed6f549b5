package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/vestledger/internal/domain/ledger"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func insertMint(t *testing.T, db *DB, id common.Address, decimals uint8) {
	t.Helper()
	err := NewLedgerRepository(db).CreateMint(context.Background(), &ledger.Mint{
		ID:        id,
		Decimals:  decimals,
		Authority: common.HexToAddress("0x0000000000000000000000000000000000000001"),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"mints",
		"token_accounts",
		"schedules",
		"beneficiaries",
		"activity_log",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// Reapplying is a no-op
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")

	_, err = db.Exec(`INSERT INTO token_accounts (mint_id, owner, authority, balance) VALUES ('nope', 'a', 'a', 0)`)
	require.Error(t, err, "should fail with unknown mint")
}

func TestSchedulesTable_Checks(t *testing.T) {
	db := NewTestDB(t)
	insertMint(t, db, common.HexToAddress("0xaa"), 6)

	_, err := db.Exec(`
		INSERT INTO schedules (address, mint_id, escrow_address, issuer, token_amount, decimals,
			start_timestamp, vesting_months, percent_available, allocated_total, status, version)
		VALUES ('s1', '0x00000000000000000000000000000000000000aa', 'e1', 'i1', 100, 6, 0, 12, 101, 0, 'ACTIVE', 1)`)
	require.Error(t, err, "percent above 100 should fail")

	_, err = db.Exec(`
		INSERT INTO schedules (address, mint_id, escrow_address, issuer, token_amount, decimals,
			start_timestamp, vesting_months, percent_available, allocated_total, status, version)
		VALUES ('s1', '0x00000000000000000000000000000000000000aa', 'e1', 'i1', 100, 6, 0, 12, 0, 101, 'ACTIVE', 1)`)
	require.Error(t, err, "allocation above deposit should fail")
}
