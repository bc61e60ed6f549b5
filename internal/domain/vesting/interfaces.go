package vesting

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
)

// ScheduleRepository provides persistence for schedule records.
type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	Get(ctx context.Context, addr common.Hash) (*Schedule, error)
	Update(ctx context.Context, s *Schedule, expectedVersion int64) error
}

// BeneficiaryRepository provides persistence for beneficiary records.
type BeneficiaryRepository interface {
	Create(ctx context.Context, b *Beneficiary) error
	Get(ctx context.Context, addr common.Hash) (*Beneficiary, error)
	Update(ctx context.Context, b *Beneficiary, expectedVersion int64) error
	Delete(ctx context.Context, addr common.Hash, expectedVersion int64) error
	ListBySchedule(ctx context.Context, schedule common.Hash) ([]Beneficiary, error)
}

// ActivityRepository journals vesting events.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.Entry) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Schedules() ScheduleRepository
	Beneficiaries() BeneficiaryRepository
	Ledger() ledger.Repository
	Activity() ActivityRepository
}

// Store runs an operation as one atomic unit. Reader returns repositories
// outside any transaction for read-only views.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Reader() Tx
}

// Clock supplies the current time for start and duration guards.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time {
	return time.Now()
}
