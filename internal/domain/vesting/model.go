package vesting

import (
	"math"
	"math/bits"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultVestingMonths is the schedule length when none is given.
	DefaultVestingMonths uint16 = 36
	// MaxPercent is the fully unlocked percentage.
	MaxPercent uint8 = 100
	// SecondsPerMonth uses fixed 30-day months.
	SecondsPerMonth int64 = 30 * 24 * 60 * 60
)

// Status is the persisted lifecycle marker of a schedule.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

// Phase is the effective state of a schedule at a point in time.
type Phase string

const (
	PhaseActive    Phase = "ACTIVE"
	PhaseCancelled Phase = "CANCELLED"
	PhaseCompleted Phase = "COMPLETED"
)

// Schedule is the per-token-type vesting record and its aggregate counters.
type Schedule struct {
	Address            common.Hash    `json:"address"`
	Mint               common.Address `json:"mint"`
	EscrowAddress      common.Hash    `json:"escrow_address"`
	Issuer             common.Address `json:"issuer"`
	TokenAmount        uint64         `json:"token_amount"`
	Decimals           uint8          `json:"decimals"`
	StartTimestamp     int64          `json:"start_timestamp"`
	VestingMonths      uint16         `json:"vesting_months"`
	PercentAvailable   uint8          `json:"percent_available"`
	AllocatedTotal     uint64         `json:"allocated_total"`
	ClaimedTotal       uint64         `json:"claimed_total"`
	UnclaimedWithdrawn uint64         `json:"unclaimed_withdrawn"`
	Status             Status         `json:"status"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	ModifiedAt         time.Time      `json:"modified_at"`
	Version            int64          `json:"version"`
}

// Beneficiary is one identity's allocation and claim progress under a schedule.
type Beneficiary struct {
	Address         common.Hash    `json:"address"`
	ScheduleAddress common.Hash    `json:"schedule_address"`
	Identity        common.Address `json:"identity"`
	AllocatedTokens uint64         `json:"allocated_tokens"`
	ClaimedTokens   uint64         `json:"claimed_tokens"`
	Deposit         uint64         `json:"deposit"`
	CreatedAt       time.Time      `json:"created_at"`
	ModifiedAt      time.Time      `json:"modified_at"`
	Version         int64          `json:"version"`
}

// EndTimestamp is the unix time at which the schedule's duration has elapsed.
// It saturates at math.MaxInt64 so far-future starts never wrap into the past.
func (s *Schedule) EndTimestamp() int64 {
	return endTimestamp(s.StartTimestamp, s.VestingMonths)
}

func endTimestamp(start int64, months uint16) int64 {
	duration := int64(months) * SecondsPerMonth
	if start > math.MaxInt64-duration {
		return math.MaxInt64
	}
	return start + duration
}

// Started reports whether claims are past the start guard.
func (s *Schedule) Started(now time.Time) bool {
	return now.Unix() >= s.StartTimestamp
}

// Phase derives the effective state at now.
func (s *Schedule) Phase(now time.Time) Phase {
	if s.Status == StatusCancelled {
		return PhaseCancelled
	}
	if s.PercentAvailable == MaxPercent && now.Unix() >= s.EndTimestamp() {
		return PhaseCompleted
	}
	return PhaseActive
}

// Remaining is what the vault still holds for this schedule.
func (s *Schedule) Remaining() uint64 {
	return s.TokenAmount - s.ClaimedTotal - s.UnclaimedWithdrawn
}

// Entitled is the beneficiary's unlocked share at the schedule's current percentage.
func (b *Beneficiary) Entitled(percent uint8) uint64 {
	return percentOf(b.AllocatedTokens, percent)
}

// Claimable is what a claim would transfer now: the unlocked share not yet
// claimed, capped by what the vault still holds.
func (b *Beneficiary) Claimable(s *Schedule) uint64 {
	entitled := b.Entitled(s.PercentAvailable)
	if entitled <= b.ClaimedTokens {
		return 0
	}
	claimable := entitled - b.ClaimedTokens
	if remaining := s.Remaining(); claimable > remaining {
		claimable = remaining
	}
	return claimable
}

// percentOf computes amount*percent/100 without intermediate overflow.
func percentOf(amount uint64, percent uint8) uint64 {
	hi, lo := bits.Mul64(amount, uint64(percent))
	q, _ := bits.Div64(hi, lo, 100)
	return q
}
