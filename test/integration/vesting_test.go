package integration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
	"github.com/rpggio/vestledger/internal/testserver"
)

const month = 30 * 24 * time.Hour

var (
	issuer = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob    = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

type scenario struct {
	t    *testing.T
	env  *testserver.Env
	mint common.Address
}

// newScenario initializes a one-month schedule of amount tokens that starts now.
func newScenario(t *testing.T, amount uint64, opts testserver.Options) *scenario {
	t.Helper()
	env := testserver.NewEnv(t, opts)
	mint := env.CreateFundedMint(t, issuer, 6, 10_000)

	_, err := env.Vesting.Initialize(context.Background(), vesting.InitializeRequest{
		Caller:         issuer,
		Mint:           mint,
		Amount:         amount,
		Decimals:       6,
		StartTimestamp: env.Clock.Now().Unix(),
		VestingMonths:  1,
	})
	require.NoError(t, err)
	return &scenario{t: t, env: env, mint: mint}
}

func (s *scenario) allocate(identity common.Address, amount uint64) {
	s.t.Helper()
	_, err := s.env.Vesting.Allocate(context.Background(), vesting.AllocateRequest{
		Caller:        issuer,
		Mint:          s.mint,
		Beneficiaries: []vesting.Allocation{{Identity: identity, AllocatedTokens: amount}},
	})
	require.NoError(s.t, err)
}

func (s *scenario) release(percent uint8) error {
	_, err := s.env.Vesting.Release(context.Background(), vesting.ReleaseRequest{Caller: issuer, Mint: s.mint, Percent: percent})
	return err
}

func (s *scenario) claim(identity common.Address) (uint64, error) {
	res, err := s.env.Vesting.Claim(context.Background(), vesting.ClaimRequest{Caller: identity, Mint: s.mint})
	if err != nil {
		return 0, err
	}
	return res.Amount, nil
}

func (s *scenario) withdraw() (uint64, error) {
	res, err := s.env.Vesting.WithdrawUnclaimed(context.Background(), vesting.WithdrawRequest{Caller: issuer, Mint: s.mint})
	if err != nil {
		return 0, err
	}
	return res.Amount, nil
}

func (s *scenario) balance(owner string) uint64 {
	s.t.Helper()
	bal, err := s.env.Ledger.Balance(context.Background(), s.mint, owner)
	require.NoError(s.t, err)
	return bal
}

// checkInvariants asserts the aggregate counters agree with the records and the vault.
func (s *scenario) checkInvariants() {
	s.t.Helper()
	ctx := context.Background()
	sched, err := s.env.Vesting.GetSchedule(ctx, s.mint)
	require.NoError(s.t, err)
	bens, err := s.env.Vesting.ListBeneficiaries(ctx, s.mint)
	require.NoError(s.t, err)

	var claimed uint64
	for _, b := range bens {
		claimed += b.ClaimedTokens
		require.LessOrEqual(s.t, b.ClaimedTokens, b.AllocatedTokens*uint64(sched.PercentAvailable)/100)
	}
	require.Equal(s.t, sched.ClaimedTotal, claimed)
	require.Equal(s.t, sched.Remaining, s.balance(address.Escrow(s.mint).Hex()))
	require.Equal(s.t, sched.TokenAmount, sched.ClaimedTotal+sched.UnclaimedWithdrawn+sched.Remaining)
}

func TestStagedReleaseAndClaims(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 100)

	for _, step := range []struct {
		percent uint8
		want    uint64
	}{{10, 10}, {30, 20}, {100, 70}} {
		require.NoError(t, s.release(step.percent))
		got, err := s.claim(alice)
		require.NoError(t, err)
		require.Equal(t, step.want, got, "claim at %d%%", step.percent)
		s.checkInvariants()

		_, err = s.claim(alice)
		require.ErrorIs(t, err, vesting.ErrClaimNotAllowed)
	}

	require.Equal(t, uint64(100), s.balance(address.Key(alice)))
	ben, err := s.env.Vesting.GetBeneficiary(context.Background(), s.mint, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), ben.ClaimedTokens)
}

func TestReleaseIsMonotonic(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	require.NoError(t, s.release(40))
	require.ErrorIs(t, s.release(40), vesting.ErrInvalidPercentage)
	require.ErrorIs(t, s.release(20), vesting.ErrInvalidPercentage)
	require.ErrorIs(t, s.release(101), vesting.ErrInvalidPercentage)

	sched, err := s.env.Vesting.GetSchedule(context.Background(), s.mint)
	require.NoError(t, err)
	require.Equal(t, uint8(40), sched.PercentAvailable)
}

func TestClaimBeforeStartFailsAtAnyPercent(t *testing.T) {
	env := testserver.NewEnv(t, testserver.Options{})
	mint := env.CreateFundedMint(t, issuer, 0, 1000)
	ctx := context.Background()

	_, err := env.Vesting.Initialize(ctx, vesting.InitializeRequest{
		Caller: issuer, Mint: mint, Amount: 1000, StartTimestamp: env.Clock.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	_, err = env.Vesting.Allocate(ctx, vesting.AllocateRequest{Caller: issuer, Mint: mint, Beneficiaries: []vesting.Allocation{{Identity: alice, AllocatedTokens: 10}}})
	require.NoError(t, err)
	_, err = env.Vesting.Release(ctx, vesting.ReleaseRequest{Caller: issuer, Mint: mint, Percent: 100})
	require.NoError(t, err)

	_, err = env.Vesting.Claim(ctx, vesting.ClaimRequest{Caller: alice, Mint: mint})
	require.ErrorIs(t, err, vesting.ErrVestingNotStarted)

	env.Clock.Advance(time.Hour)
	res, err := env.Vesting.Claim(ctx, vesting.ClaimRequest{Caller: alice, Mint: mint})
	require.NoError(t, err)
	require.Equal(t, uint64(10), res.Amount)
}

func TestWithdrawAfterCompletion(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 100)
	s.allocate(bob, 200)
	require.NoError(t, s.release(50))
	_, err := s.claim(alice)
	require.NoError(t, err)

	_, err = s.withdraw()
	require.ErrorIs(t, err, vesting.ErrVestingStillActive)

	// Full percent alone does not complete the schedule.
	require.NoError(t, s.release(100))
	_, err = s.withdraw()
	require.ErrorIs(t, err, vesting.ErrVestingStillActive)

	s.env.Clock.Advance(month)
	sched, err := s.env.Vesting.GetSchedule(context.Background(), s.mint)
	require.NoError(t, err)
	require.Equal(t, vesting.PhaseCompleted, sched.Phase)

	swept, err := s.withdraw()
	require.NoError(t, err)
	require.Equal(t, uint64(1000-50), swept)
	require.Equal(t, uint64(10_000-50), s.balance(address.Key(issuer)))
	s.checkInvariants()

	_, err = s.withdraw()
	require.ErrorIs(t, err, vesting.ErrNoUnclaimedTokens)
	_, err = s.claim(bob)
	require.ErrorIs(t, err, vesting.ErrClaimNotAllowed)
}

func TestCancelFreezesPercent(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 100)
	require.NoError(t, s.release(30))

	res, err := s.env.Vesting.Cancel(context.Background(), vesting.CancelRequest{Caller: issuer, Mint: s.mint})
	require.NoError(t, err)
	require.Equal(t, uint64(970), res.Refunded)
	require.Equal(t, vesting.StatusCancelled, res.Schedule.Status)
	s.checkInvariants()

	require.ErrorIs(t, s.release(40), vesting.ErrVestingAlreadyCompleted)

	// Claims against the frozen percent still work after cancellation.
	got, err := s.claim(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(30), got)
	s.checkInvariants()

	_, err = s.withdraw()
	require.ErrorIs(t, err, vesting.ErrNoUnclaimedTokens)
	require.Equal(t, uint64(10_000-30), s.balance(address.Key(issuer)))
}

func TestSweepAfterCancelEndsClaims(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 100)
	require.NoError(t, s.release(30))
	_, err := s.env.Vesting.Cancel(context.Background(), vesting.CancelRequest{Caller: issuer, Mint: s.mint})
	require.NoError(t, err)

	swept, err := s.withdraw()
	require.NoError(t, err)
	require.Equal(t, uint64(30), swept)

	_, err = s.claim(alice)
	require.ErrorIs(t, err, vesting.ErrClaimNotAllowed)
	s.checkInvariants()
}

func TestAllocationLimit(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 600)

	_, err := s.env.Vesting.Allocate(context.Background(), vesting.AllocateRequest{
		Caller: issuer,
		Mint:   s.mint,
		Beneficiaries: []vesting.Allocation{
			{Identity: bob, AllocatedTokens: 300},
			{Identity: common.HexToAddress("0x4000000000000000000000000000000000000004"), AllocatedTokens: 101},
		},
	})
	require.ErrorIs(t, err, vesting.ErrAllocationExceedsDeposit)

	// The rejected batch left nothing behind.
	bens, err := s.env.Vesting.ListBeneficiaries(context.Background(), s.mint)
	require.NoError(t, err)
	require.Len(t, bens, 1)

	_, err = s.env.Vesting.Allocate(context.Background(), vesting.AllocateRequest{
		Caller: issuer, Mint: s.mint, Beneficiaries: []vesting.Allocation{{Identity: alice, AllocatedTokens: 1}},
	})
	require.ErrorIs(t, err, vesting.ErrBeneficiaryAlreadyExists)

	s.allocate(bob, 400)
	sched, err := s.env.Vesting.GetSchedule(context.Background(), s.mint)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), sched.AllocatedTotal)
}

func TestOnlyIssuerMutates(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	ctx := context.Background()

	_, err := s.env.Vesting.Release(ctx, vesting.ReleaseRequest{Caller: alice, Mint: s.mint, Percent: 10})
	require.ErrorIs(t, err, vesting.ErrInvalidSender)
	_, err = s.env.Vesting.Allocate(ctx, vesting.AllocateRequest{Caller: alice, Mint: s.mint, Beneficiaries: []vesting.Allocation{{Identity: alice, AllocatedTokens: 1}}})
	require.ErrorIs(t, err, vesting.ErrInvalidSender)
	_, err = s.env.Vesting.Cancel(ctx, vesting.CancelRequest{Caller: alice, Mint: s.mint})
	require.ErrorIs(t, err, vesting.ErrInvalidSender)

	require.Equal(t, uint64(1000), s.balance(address.Escrow(s.mint).Hex()))
}

func TestDeallocateRefundsDeposit(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{BeneficiaryDeposit: 5})
	s.env.FundNative(t, issuer, 100)
	native := func() uint64 {
		bal, err := s.env.Ledger.Balance(context.Background(), ledger.NativeMint, address.Key(issuer))
		require.NoError(t, err)
		return bal
	}

	s.allocate(alice, 100)
	s.allocate(bob, 100)
	require.Equal(t, uint64(90), native())

	require.NoError(t, s.release(100))
	_, err := s.claim(alice)
	require.NoError(t, err)

	ctx := context.Background()
	err = s.env.Vesting.Deallocate(ctx, vesting.DeallocateRequest{Caller: issuer, Mint: s.mint, Identities: []common.Address{alice, bob}})
	require.ErrorIs(t, err, vesting.ErrBeneficiaryHasClaimable)
	require.Equal(t, uint64(90), native())

	require.NoError(t, s.env.Vesting.Deallocate(ctx, vesting.DeallocateRequest{Caller: issuer, Mint: s.mint, Identities: []common.Address{alice}}))
	require.Equal(t, uint64(95), native())

	_, err = s.env.Vesting.GetBeneficiary(ctx, s.mint, alice)
	require.ErrorIs(t, err, vesting.ErrBeneficiaryNotFound)
	// The paid-out claim is still counted.
	sched, err := s.env.Vesting.GetSchedule(ctx, s.mint)
	require.NoError(t, err)
	require.Equal(t, uint64(100), sched.ClaimedTotal)
}

func TestConcurrentClaims(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	identities := make([]common.Address, 8)
	for i := range identities {
		identities[i] = common.HexToAddress(fmt.Sprintf("0x%040x", 0x5000+i))
		s.allocate(identities[i], 100)
	}
	require.NoError(t, s.release(50))

	var g errgroup.Group
	for _, identity := range identities {
		g.Go(func() error {
			_, err := s.claim(identity)
			return err
		})
	}
	require.NoError(t, g.Wait())

	sched, err := s.env.Vesting.GetSchedule(context.Background(), s.mint)
	require.NoError(t, err)
	require.Equal(t, uint64(400), sched.ClaimedTotal)
	s.checkInvariants()
}

func TestConcurrentClaimsSameBeneficiary(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 100)
	require.NoError(t, s.release(50))

	const workers = 16
	var (
		mu        sync.Mutex
		paid      uint64
		successes int
	)
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			amount, err := s.claim(alice)
			if errors.Is(err, vesting.ErrClaimNotAllowed) || errors.Is(err, vesting.ErrConcurrentModification) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			paid += amount
			successes++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, 1, successes)
	require.Equal(t, uint64(50), paid)
	require.Equal(t, uint64(50), s.balance(address.Key(alice)))
	s.checkInvariants()
}

func TestJournalRecordsLifecycle(t *testing.T) {
	s := newScenario(t, 1000, testserver.Options{})
	s.allocate(alice, 100)
	require.NoError(t, s.release(10))
	_, err := s.claim(alice)
	require.NoError(t, err)

	entries, err := s.env.Activity.GetRecentActivity(context.Background(), activity.ListActivityOptions{Mint: address.Key(s.mint)})
	require.NoError(t, err)
	types := make([]activity.ActivityType, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.ActivityType)
	}
	require.Equal(t, []activity.ActivityType{
		activity.TypeClaimed, activity.TypeReleased, activity.TypeAllocated, activity.TypeInitialized,
	}, types)
}
