package vesting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/repository"
)

// Options tunes engine behavior.
type Options struct {
	// DefaultMonths applies when Initialize is called without a duration.
	DefaultMonths uint16
	// BeneficiaryDeposit is charged to the issuer in native credits for every
	// beneficiary record and refunded when the record is removed.
	BeneficiaryDeposit uint64
}

// Service is the vesting engine. Every mutating operation checks the caller,
// validates state, then applies transfers and counters in one transaction.
type Service struct {
	store  Store
	clock  Clock
	opts   Options
	logger *zap.Logger
}

// NewService creates a new vesting engine.
func NewService(store Store, clock Clock, opts Options, logger *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.DefaultMonths == 0 {
		opts.DefaultMonths = DefaultVestingMonths
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clock: clock, opts: opts, logger: logger}
}

// InitializeRequest describes a new schedule funded by the caller.
type InitializeRequest struct {
	Caller         common.Address
	Mint           common.Address
	Amount         uint64
	Decimals       uint8
	StartTimestamp int64
	VestingMonths  uint16
}

// Allocation is one beneficiary entitlement.
type Allocation struct {
	Identity        common.Address
	AllocatedTokens uint64
}

// AllocateRequest describes a batch of new beneficiaries.
type AllocateRequest struct {
	Caller        common.Address
	Mint          common.Address
	Beneficiaries []Allocation
}

// ReleaseRequest raises the unlocked percentage.
type ReleaseRequest struct {
	Caller  common.Address
	Mint    common.Address
	Percent uint8
}

// ClaimRequest withdraws the caller's unlocked share.
type ClaimRequest struct {
	Caller common.Address
	Mint   common.Address
}

// CancelRequest ends a schedule early.
type CancelRequest struct {
	Caller common.Address
	Mint   common.Address
}

// WithdrawRequest sweeps unclaimed tokens back to the issuer.
type WithdrawRequest struct {
	Caller common.Address
	Mint   common.Address
}

// DeallocateRequest removes beneficiary records.
type DeallocateRequest struct {
	Caller     common.Address
	Mint       common.Address
	Identities []common.Address
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	Schedule    *Schedule    `json:"schedule"`
	Beneficiary *Beneficiary `json:"beneficiary"`
	Amount      uint64       `json:"amount"`
}

// CancelResult reports the surplus returned on cancellation.
type CancelResult struct {
	Schedule *Schedule `json:"schedule"`
	Refunded uint64    `json:"refunded"`
}

// WithdrawResult reports a sweep.
type WithdrawResult struct {
	Schedule *Schedule `json:"schedule"`
	Amount   uint64    `json:"amount"`
}

// Initialize creates the schedule and vault for a token type and moves the
// deposit from the caller, who becomes the issuer.
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (*Schedule, error) {
	if req.Amount == 0 {
		return nil, ErrZeroVestingAmount
	}
	if req.Amount > math.MaxInt64 {
		return nil, ErrInvalidInput
	}
	months := req.VestingMonths
	if months == 0 {
		months = s.opts.DefaultMonths
	}
	if endTimestamp(req.StartTimestamp, months) == math.MaxInt64 {
		return nil, ErrInvalidInput
	}

	now := s.clock.Now()
	sched := &Schedule{
		Address:        address.Schedule(req.Mint),
		Mint:           req.Mint,
		EscrowAddress:  address.Escrow(req.Mint),
		Issuer:         req.Caller,
		TokenAmount:    req.Amount,
		Decimals:       req.Decimals,
		StartTimestamp: req.StartTimestamp,
		VestingMonths:  months,
		Status:         StatusActive,
		CreatedAt:      now,
		ModifiedAt:     now,
		Version:        1,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		mint, err := tx.Ledger().GetMint(ctx, req.Mint)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMintNotFound
			}
			return fmt.Errorf("loading mint: %w", err)
		}
		if mint.Decimals != req.Decimals {
			return ErrDecimalsMismatch
		}

		if err := tx.Schedules().Create(ctx, sched); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return ErrScheduleExists
			}
			return fmt.Errorf("creating schedule: %w", err)
		}

		vault := sched.EscrowAddress.Hex()
		if err := tx.Ledger().OpenAccount(ctx, req.Mint, vault, sched.Address.Hex()); err != nil {
			return fmt.Errorf("opening vault: %w", err)
		}
		issuer := address.Key(req.Caller)
		if err := ledger.Transfer(ctx, tx.Ledger(), req.Mint, issuer, vault, req.Amount, issuer); err != nil {
			return ledgerError(err)
		}

		return s.journal(ctx, tx, sched, req.Caller, nil, activity.TypeInitialized, req.Amount,
			fmt.Sprintf("initialized schedule with %d tokens", req.Amount))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule initialized",
		zap.String("mint", address.Key(req.Mint)),
		zap.String("issuer", address.Key(req.Caller)),
		zap.Uint64("amount", req.Amount),
		zap.Int64("start", req.StartTimestamp),
		zap.Uint16("months", months))
	return sched, nil
}

// Allocate creates beneficiary records. The batch is applied atomically: any
// duplicate or over-allocation rejects the whole batch.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) ([]Beneficiary, error) {
	var created []Beneficiary
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sched, err := s.loadSchedule(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if err := requireIssuer(sched, req.Caller); err != nil {
			return err
		}
		now := s.clock.Now()
		if sched.Phase(now) != PhaseActive {
			return ErrVestingAlreadyCompleted
		}

		total, err := ValidateAllocations(req.Beneficiaries, sched.TokenAmount-sched.AllocatedTotal)
		if err != nil {
			return err
		}

		issuer := address.Key(sched.Issuer)
		created = make([]Beneficiary, 0, len(req.Beneficiaries))
		for _, a := range req.Beneficiaries {
			ben := &Beneficiary{
				Address:         address.Beneficiary(sched.Address, a.Identity),
				ScheduleAddress: sched.Address,
				Identity:        a.Identity,
				AllocatedTokens: a.AllocatedTokens,
				Deposit:         s.opts.BeneficiaryDeposit,
				CreatedAt:       now,
				ModifiedAt:      now,
				Version:         1,
			}
			if err := tx.Beneficiaries().Create(ctx, ben); err != nil {
				if errors.Is(err, repository.ErrAlreadyExists) {
					return ErrBeneficiaryAlreadyExists
				}
				return fmt.Errorf("creating beneficiary: %w", err)
			}

			if ben.Deposit > 0 {
				account := address.Deposit(ben.Address).Hex()
				if err := tx.Ledger().OpenAccount(ctx, ledger.NativeMint, account, sched.Address.Hex()); err != nil {
					return fmt.Errorf("opening deposit account: %w", err)
				}
				if err := ledger.Transfer(ctx, tx.Ledger(), ledger.NativeMint, issuer, account, ben.Deposit, issuer); err != nil {
					return ledgerError(err)
				}
			}

			identity := address.Key(a.Identity)
			if err := s.journal(ctx, tx, sched, req.Caller, &identity, activity.TypeAllocated, a.AllocatedTokens,
				fmt.Sprintf("allocated %d tokens to %s", a.AllocatedTokens, identity)); err != nil {
				return err
			}
			created = append(created, *ben)
		}

		sched.AllocatedTotal += total
		return s.saveSchedule(ctx, tx, sched, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("beneficiaries allocated",
		zap.String("mint", address.Key(req.Mint)),
		zap.Int("count", len(created)))
	return created, nil
}

// Release raises the unlocked percentage. The percentage only moves up.
func (s *Service) Release(ctx context.Context, req ReleaseRequest) (*Schedule, error) {
	var sched *Schedule
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		sched, err = s.loadSchedule(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if err := requireIssuer(sched, req.Caller); err != nil {
			return err
		}
		if err := ValidateRelease(sched, req.Percent); err != nil {
			return err
		}

		sched.PercentAvailable = req.Percent
		now := s.clock.Now()
		if err := s.saveSchedule(ctx, tx, sched, now); err != nil {
			return err
		}
		return s.journal(ctx, tx, sched, req.Caller, nil, activity.TypeReleased, 0,
			fmt.Sprintf("released to %d%%", req.Percent))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("percent released",
		zap.String("mint", address.Key(req.Mint)),
		zap.Uint8("percent", req.Percent))
	return sched, nil
}

// Claim transfers the caller's unlocked, unclaimed share out of the vault.
func (s *Service) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	var result *ClaimResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sched, err := s.loadSchedule(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		ben, err := s.loadBeneficiary(ctx, tx, sched, req.Caller)
		if err != nil {
			return err
		}
		if ben.Identity != req.Caller {
			return ErrBeneficiaryNotFound
		}

		now := s.clock.Now()
		if !sched.Started(now) {
			return ErrVestingNotStarted
		}
		amount := ben.Claimable(sched)
		if amount == 0 {
			return ErrClaimNotAllowed
		}

		recipient := address.Key(req.Caller)
		if err := ledger.Transfer(ctx, tx.Ledger(), sched.Mint, sched.EscrowAddress.Hex(), recipient, amount, sched.Address.Hex()); err != nil {
			return ledgerError(err)
		}

		ben.ClaimedTokens += amount
		if err := s.saveBeneficiary(ctx, tx, ben, now); err != nil {
			return err
		}
		sched.ClaimedTotal += amount
		if err := s.saveSchedule(ctx, tx, sched, now); err != nil {
			return err
		}
		if err := s.journal(ctx, tx, sched, req.Caller, &recipient, activity.TypeClaimed, amount,
			fmt.Sprintf("claimed %d tokens", amount)); err != nil {
			return err
		}

		result = &ClaimResult{Schedule: sched, Beneficiary: ben, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tokens claimed",
		zap.String("mint", address.Key(req.Mint)),
		zap.String("beneficiary", address.Key(req.Caller)),
		zap.Uint64("amount", result.Amount))
	return result, nil
}

// Cancel freezes the schedule at its current percentage and returns to the
// issuer everything the frozen percentage can never pay out.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	var result *CancelResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sched, err := s.loadSchedule(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if err := requireIssuer(sched, req.Caller); err != nil {
			return err
		}
		now := s.clock.Now()
		if sched.Phase(now) != PhaseActive {
			return ErrVestingAlreadyCompleted
		}

		surplus := cancelSurplus(sched)
		if surplus > 0 {
			issuer := address.Key(sched.Issuer)
			if err := ledger.Transfer(ctx, tx.Ledger(), sched.Mint, sched.EscrowAddress.Hex(), issuer, surplus, sched.Address.Hex()); err != nil {
				return ledgerError(err)
			}
			sched.UnclaimedWithdrawn += surplus
		}

		sched.Status = StatusCancelled
		sched.CancelledAt = &now
		if err := s.saveSchedule(ctx, tx, sched, now); err != nil {
			return err
		}
		if err := s.journal(ctx, tx, sched, req.Caller, nil, activity.TypeCancelled, surplus,
			fmt.Sprintf("cancelled at %d%%, refunded %d tokens", sched.PercentAvailable, surplus)); err != nil {
			return err
		}

		result = &CancelResult{Schedule: sched, Refunded: surplus}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule cancelled",
		zap.String("mint", address.Key(req.Mint)),
		zap.Uint8("percent", result.Schedule.PercentAvailable),
		zap.Uint64("refunded", result.Refunded))
	return result, nil
}

// WithdrawUnclaimed sweeps whatever the vault still holds once the schedule
// is completed or cancelled.
func (s *Service) WithdrawUnclaimed(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error) {
	var result *WithdrawResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sched, err := s.loadSchedule(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if err := requireIssuer(sched, req.Caller); err != nil {
			return err
		}
		now := s.clock.Now()
		if sched.Phase(now) == PhaseActive {
			return ErrVestingStillActive
		}

		sweepable := sched.Remaining()
		if sweepable == 0 {
			return ErrNoUnclaimedTokens
		}
		issuer := address.Key(sched.Issuer)
		if err := ledger.Transfer(ctx, tx.Ledger(), sched.Mint, sched.EscrowAddress.Hex(), issuer, sweepable, sched.Address.Hex()); err != nil {
			return ledgerError(err)
		}

		sched.UnclaimedWithdrawn += sweepable
		if err := s.saveSchedule(ctx, tx, sched, now); err != nil {
			return err
		}
		if err := s.journal(ctx, tx, sched, req.Caller, nil, activity.TypeWithdrawn, sweepable,
			fmt.Sprintf("withdrew %d unclaimed tokens", sweepable)); err != nil {
			return err
		}

		result = &WithdrawResult{Schedule: sched, Amount: sweepable}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("unclaimed tokens withdrawn",
		zap.String("mint", address.Key(req.Mint)),
		zap.Uint64("amount", result.Amount))
	return result, nil
}

// Deallocate deletes beneficiary records that can no longer receive tokens
// and refunds their deposits to the issuer. The batch is atomic.
func (s *Service) Deallocate(ctx context.Context, req DeallocateRequest) error {
	if err := ValidateIdentities(req.Identities); err != nil {
		return err
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		sched, err := s.loadSchedule(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if err := requireIssuer(sched, req.Caller); err != nil {
			return err
		}
		now := s.clock.Now()
		for _, identity := range req.Identities {
			ben, err := s.loadBeneficiary(ctx, tx, sched, identity)
			if err != nil {
				return err
			}
			if !removable(sched, ben, now) {
				return ErrBeneficiaryHasClaimable
			}

			if err := tx.Beneficiaries().Delete(ctx, ben.Address, ben.Version); err != nil {
				return storageError(err, "deleting beneficiary")
			}
			if ben.Deposit > 0 {
				account := address.Deposit(ben.Address).Hex()
				if err := ledger.Transfer(ctx, tx.Ledger(), ledger.NativeMint, account, address.Key(sched.Issuer), ben.Deposit, sched.Address.Hex()); err != nil {
					return ledgerError(err)
				}
			}

			key := address.Key(identity)
			if err := s.journal(ctx, tx, sched, req.Caller, &key, activity.TypeDeallocated, ben.Deposit,
				fmt.Sprintf("removed beneficiary %s", key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("beneficiaries removed",
		zap.String("mint", address.Key(req.Mint)),
		zap.Int("count", len(req.Identities)))
	return nil
}

// cancelSurplus is what the vault holds beyond the largest amount the frozen
// percentage could still pay. AllocatedTotal*percent/100 bounds the sum of
// every beneficiary's truncated entitlement from above.
func cancelSurplus(sched *Schedule) uint64 {
	reserved := percentOf(sched.AllocatedTotal, sched.PercentAvailable)
	held := sched.TokenAmount - sched.UnclaimedWithdrawn
	if held <= reserved {
		return 0
	}
	return held - reserved
}

func requireIssuer(sched *Schedule, caller common.Address) error {
	if caller == (common.Address{}) || sched.Issuer != caller {
		return ErrInvalidSender
	}
	return nil
}

func (s *Service) loadSchedule(ctx context.Context, tx Tx, mint common.Address) (*Schedule, error) {
	sched, err := tx.Schedules().Get(ctx, address.Schedule(mint))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("loading schedule: %w", err)
	}
	return sched, nil
}

func (s *Service) loadBeneficiary(ctx context.Context, tx Tx, sched *Schedule, identity common.Address) (*Beneficiary, error) {
	ben, err := tx.Beneficiaries().Get(ctx, address.Beneficiary(sched.Address, identity))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, fmt.Errorf("loading beneficiary: %w", err)
	}
	return ben, nil
}

func (s *Service) saveSchedule(ctx context.Context, tx Tx, sched *Schedule, now time.Time) error {
	expected := sched.Version
	sched.Version++
	sched.ModifiedAt = now
	if err := tx.Schedules().Update(ctx, sched, expected); err != nil {
		s.logger.Warn("schedule update rejected", zap.String("schedule", sched.Address.Hex()), zap.Error(err))
		return storageError(err, "updating schedule")
	}
	return nil
}

func (s *Service) saveBeneficiary(ctx context.Context, tx Tx, ben *Beneficiary, now time.Time) error {
	expected := ben.Version
	ben.Version++
	ben.ModifiedAt = now
	if err := tx.Beneficiaries().Update(ctx, ben, expected); err != nil {
		s.logger.Warn("beneficiary update rejected", zap.String("beneficiary", ben.Address.Hex()), zap.Error(err))
		return storageError(err, "updating beneficiary")
	}
	return nil
}

func (s *Service) journal(ctx context.Context, tx Tx, sched *Schedule, actor common.Address, beneficiary *string, kind activity.ActivityType, amount uint64, summary string) error {
	entry := &activity.Entry{
		Mint:            address.Key(sched.Mint),
		ScheduleAddress: sched.Address.Hex(),
		Actor:           address.Key(actor),
		Beneficiary:     beneficiary,
		ActivityType:    kind,
		Amount:          amount,
		Percent:         sched.PercentAvailable,
		Summary:         summary,
		Version:         sched.Version,
	}
	activity.Stamp(entry)
	if err := tx.Activity().Log(ctx, entry); err != nil {
		return fmt.Errorf("journaling %s: %w", kind, err)
	}
	return nil
}

func storageError(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrConcurrentModification
	case errors.Is(err, repository.ErrNotFound):
		return ErrBeneficiaryNotFound
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrAccountNotFound):
		return ErrInsufficientFunds
	default:
		return fmt.Errorf("moving tokens: %w", err)
	}
}
