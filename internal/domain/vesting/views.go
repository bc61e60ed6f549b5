package vesting

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/address"
)

// DisplayAmounts holds schedule counters in display units.
type DisplayAmounts struct {
	TokenAmount        string `json:"token_amount"`
	AllocatedTotal     string `json:"allocated_total"`
	ClaimedTotal       string `json:"claimed_total"`
	UnclaimedWithdrawn string `json:"unclaimed_withdrawn"`
	Remaining          string `json:"remaining"`
}

// ScheduleView is a schedule with its derived state at read time.
type ScheduleView struct {
	Schedule
	Phase        Phase          `json:"phase"`
	Started      bool           `json:"started"`
	EndTimestamp int64          `json:"end_timestamp"`
	Remaining    uint64         `json:"remaining"`
	Display      DisplayAmounts `json:"display"`
}

// BeneficiaryView is a beneficiary with what it could claim right now.
type BeneficiaryView struct {
	Beneficiary
	Entitled         uint64 `json:"entitled"`
	Claimable        uint64 `json:"claimable"`
	DisplayAllocated string `json:"display_allocated"`
	DisplayClaimable string `json:"display_claimable"`
}

// GetSchedule returns the schedule for a token type.
func (s *Service) GetSchedule(ctx context.Context, mint common.Address) (*ScheduleView, error) {
	sched, err := s.loadSchedule(ctx, s.store.Reader(), mint)
	if err != nil {
		return nil, err
	}
	view := s.scheduleView(sched)
	return &view, nil
}

// GetBeneficiary returns one beneficiary record.
func (s *Service) GetBeneficiary(ctx context.Context, mint, identity common.Address) (*BeneficiaryView, error) {
	reader := s.store.Reader()
	sched, err := s.loadSchedule(ctx, reader, mint)
	if err != nil {
		return nil, err
	}
	ben, err := s.loadBeneficiary(ctx, reader, sched, identity)
	if err != nil {
		return nil, err
	}
	view := s.beneficiaryView(sched, ben)
	return &view, nil
}

// ListBeneficiaries returns every beneficiary under a schedule.
func (s *Service) ListBeneficiaries(ctx context.Context, mint common.Address) ([]BeneficiaryView, error) {
	reader := s.store.Reader()
	sched, err := s.loadSchedule(ctx, reader, mint)
	if err != nil {
		return nil, err
	}
	bens, err := reader.Beneficiaries().ListBySchedule(ctx, sched.Address)
	if err != nil {
		return nil, fmt.Errorf("listing beneficiaries of %s: %w", address.Key(mint), err)
	}
	views := make([]BeneficiaryView, 0, len(bens))
	for i := range bens {
		views = append(views, s.beneficiaryView(sched, &bens[i]))
	}
	return views, nil
}

func (s *Service) scheduleView(sched *Schedule) ScheduleView {
	now := s.clock.Now()
	return ScheduleView{
		Schedule:     *sched,
		Phase:        sched.Phase(now),
		Started:      sched.Started(now),
		EndTimestamp: sched.EndTimestamp(),
		Remaining:    sched.Remaining(),
		Display: DisplayAmounts{
			TokenAmount:        FormatAmount(sched.TokenAmount, sched.Decimals),
			AllocatedTotal:     FormatAmount(sched.AllocatedTotal, sched.Decimals),
			ClaimedTotal:       FormatAmount(sched.ClaimedTotal, sched.Decimals),
			UnclaimedWithdrawn: FormatAmount(sched.UnclaimedWithdrawn, sched.Decimals),
			Remaining:          FormatAmount(sched.Remaining(), sched.Decimals),
		},
	}
}

func (s *Service) beneficiaryView(sched *Schedule, ben *Beneficiary) BeneficiaryView {
	var claimable uint64
	if sched.Started(s.clock.Now()) {
		claimable = ben.Claimable(sched)
	}
	return BeneficiaryView{
		Beneficiary:      *ben,
		Entitled:         ben.Entitled(sched.PercentAvailable),
		Claimable:        claimable,
		DisplayAllocated: FormatAmount(ben.AllocatedTokens, sched.Decimals),
		DisplayClaimable: FormatAmount(claimable, sched.Decimals),
	}
}

// Addresses lists the derived addresses of a token type's schedule.
type Addresses struct {
	Mint     common.Address `json:"mint"`
	Schedule common.Hash    `json:"schedule"`
	Escrow   common.Hash    `json:"escrow"`
}

// Addresses returns the derived addresses for mint. Nothing needs to exist yet.
func (s *Service) Addresses(mint common.Address) Addresses {
	return Addresses{
		Mint:     mint,
		Schedule: address.Schedule(mint),
		Escrow:   address.Escrow(mint),
	}
}
