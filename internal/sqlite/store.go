package sqlite

import (
	"context"
	"database/sql"

	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
)

// repos binds every repository to one Queryer.
type repos struct {
	q Queryer
}

func (r repos) Schedules() vesting.ScheduleRepository       { return NewScheduleRepository(r.q) }
func (r repos) Beneficiaries() vesting.BeneficiaryRepository { return NewBeneficiaryRepository(r.q) }
func (r repos) Ledger() ledger.Repository                    { return NewLedgerRepository(r.q) }
func (r repos) Activity() vesting.ActivityRepository         { return NewActivityRepository(r.q) }

// VestingStore implements vesting.Store.
type VestingStore struct {
	db *DB
}

// NewVestingStore creates a new VestingStore
func NewVestingStore(db *DB) *VestingStore {
	return &VestingStore{db: db}
}

// WithinTx runs fn against repositories bound to one transaction.
func (s *VestingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx vesting.Tx) error) error {
	return s.db.withinTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, repos{q: tx})
	})
}

// Reader returns repositories that read outside any transaction. It must not
// be used from inside WithinTx.
func (s *VestingStore) Reader() vesting.Tx {
	return repos{q: s.db}
}

// LedgerStore implements ledger.Store.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new LedgerStore
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithinTx runs fn against a ledger repository bound to one transaction.
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo ledger.Repository) error) error {
	return s.db.withinTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, NewLedgerRepository(tx))
	})
}

// Reader returns a ledger repository outside any transaction.
func (s *LedgerStore) Reader() ledger.Repository {
	return NewLedgerRepository(s.db)
}
