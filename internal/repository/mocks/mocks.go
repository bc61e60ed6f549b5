package mocks

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
)

// ScheduleRepository is a mock for vesting.ScheduleRepository.
type ScheduleRepository struct {
	mock.Mock
}

func (m *ScheduleRepository) Create(ctx context.Context, s *vesting.Schedule) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *ScheduleRepository) Get(ctx context.Context, addr common.Hash) (*vesting.Schedule, error) {
	args := m.Called(ctx, addr)
	if s, ok := args.Get(0).(*vesting.Schedule); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ScheduleRepository) Update(ctx context.Context, s *vesting.Schedule, expectedVersion int64) error {
	args := m.Called(ctx, s, expectedVersion)
	return args.Error(0)
}

// BeneficiaryRepository is a mock for vesting.BeneficiaryRepository.
type BeneficiaryRepository struct {
	mock.Mock
}

func (m *BeneficiaryRepository) Create(ctx context.Context, b *vesting.Beneficiary) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *BeneficiaryRepository) Get(ctx context.Context, addr common.Hash) (*vesting.Beneficiary, error) {
	args := m.Called(ctx, addr)
	if b, ok := args.Get(0).(*vesting.Beneficiary); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BeneficiaryRepository) Update(ctx context.Context, b *vesting.Beneficiary, expectedVersion int64) error {
	args := m.Called(ctx, b, expectedVersion)
	return args.Error(0)
}

func (m *BeneficiaryRepository) Delete(ctx context.Context, addr common.Hash, expectedVersion int64) error {
	args := m.Called(ctx, addr, expectedVersion)
	return args.Error(0)
}

func (m *BeneficiaryRepository) ListBySchedule(ctx context.Context, schedule common.Hash) ([]vesting.Beneficiary, error) {
	args := m.Called(ctx, schedule)
	if list, ok := args.Get(0).([]vesting.Beneficiary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// LedgerRepository is a mock for ledger.Repository.
type LedgerRepository struct {
	mock.Mock
}

func (m *LedgerRepository) CreateMint(ctx context.Context, mint *ledger.Mint) error {
	args := m.Called(ctx, mint)
	return args.Error(0)
}

func (m *LedgerRepository) GetMint(ctx context.Context, id common.Address) (*ledger.Mint, error) {
	args := m.Called(ctx, id)
	if mint, ok := args.Get(0).(*ledger.Mint); ok {
		return mint, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerRepository) AddSupply(ctx context.Context, id common.Address, amount uint64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *LedgerRepository) OpenAccount(ctx context.Context, mint common.Address, owner, authority string) error {
	args := m.Called(ctx, mint, owner, authority)
	return args.Error(0)
}

func (m *LedgerRepository) GetAccount(ctx context.Context, mint common.Address, owner string) (*ledger.Account, error) {
	args := m.Called(ctx, mint, owner)
	if acct, ok := args.Get(0).(*ledger.Account); ok {
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerRepository) Credit(ctx context.Context, mint common.Address, owner string, amount uint64) error {
	args := m.Called(ctx, mint, owner, amount)
	return args.Error(0)
}

func (m *LedgerRepository) Debit(ctx context.Context, mint common.Address, owner, authority string, amount uint64) error {
	args := m.Called(ctx, mint, owner, authority, amount)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// VestingTx bundles mock repositories behind vesting.Tx.
type VestingTx struct {
	ScheduleRepo    *ScheduleRepository
	BeneficiaryRepo *BeneficiaryRepository
	LedgerRepo      *LedgerRepository
	ActivityRepo    *ActivityRepository
}

// NewVestingTx returns a VestingTx with fresh mocks.
func NewVestingTx() *VestingTx {
	return &VestingTx{
		ScheduleRepo:    &ScheduleRepository{},
		BeneficiaryRepo: &BeneficiaryRepository{},
		LedgerRepo:      &LedgerRepository{},
		ActivityRepo:    &ActivityRepository{},
	}
}

func (t *VestingTx) Schedules() vesting.ScheduleRepository       { return t.ScheduleRepo }
func (t *VestingTx) Beneficiaries() vesting.BeneficiaryRepository { return t.BeneficiaryRepo }
func (t *VestingTx) Ledger() ledger.Repository                    { return t.LedgerRepo }
func (t *VestingTx) Activity() vesting.ActivityRepository         { return t.ActivityRepo }

// AssertExpectations checks every bundled mock.
func (t *VestingTx) AssertExpectations(tt mock.TestingT) {
	t.ScheduleRepo.AssertExpectations(tt)
	t.BeneficiaryRepo.AssertExpectations(tt)
	t.LedgerRepo.AssertExpectations(tt)
	t.ActivityRepo.AssertExpectations(tt)
}

// VestingStore runs every transaction directly against one VestingTx.
type VestingStore struct {
	Tx *VestingTx
}

func (s *VestingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx vesting.Tx) error) error {
	return fn(ctx, s.Tx)
}

func (s *VestingStore) Reader() vesting.Tx {
	return s.Tx
}

// LedgerStore runs every transaction directly against one LedgerRepository.
type LedgerStore struct {
	Repo *LedgerRepository
}

func (s *LedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo ledger.Repository) error) error {
	return fn(ctx, s.Repo)
}

func (s *LedgerStore) Reader() ledger.Repository {
	return s.Repo
}
