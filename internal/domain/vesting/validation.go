package vesting

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAllocations checks a batch against the schedule's unallocated
// headroom and returns the batch total.
func ValidateAllocations(batch []Allocation, headroom uint64) (uint64, error) {
	if len(batch) == 0 {
		return 0, ErrInvalidInput
	}
	seen := make(map[common.Address]bool, len(batch))
	var total uint64
	for _, a := range batch {
		if a.Identity == (common.Address{}) {
			return 0, ErrInvalidInput
		}
		if seen[a.Identity] {
			return 0, ErrBeneficiaryAlreadyExists
		}
		seen[a.Identity] = true
		if a.AllocatedTokens > headroom-total {
			return 0, ErrAllocationExceedsDeposit
		}
		total += a.AllocatedTokens
	}
	return total, nil
}

// ValidateRelease checks a requested unlock percentage.
func ValidateRelease(sched *Schedule, percent uint8) error {
	if sched.Status == StatusCancelled {
		return ErrVestingAlreadyCompleted
	}
	if percent > MaxPercent || percent <= sched.PercentAvailable {
		return ErrInvalidPercentage
	}
	return nil
}

// ValidateIdentities rejects empty or repeated identity lists.
func ValidateIdentities(identities []common.Address) error {
	if len(identities) == 0 {
		return ErrInvalidInput
	}
	seen := make(map[common.Address]bool, len(identities))
	for _, identity := range identities {
		if seen[identity] {
			return ErrInvalidInput
		}
		seen[identity] = true
	}
	return nil
}

// removable reports whether a beneficiary record can be deleted: it is paid
// out, or the schedule is over and nothing is left to claim.
func removable(sched *Schedule, ben *Beneficiary, now time.Time) bool {
	if ben.ClaimedTokens == ben.AllocatedTokens {
		return true
	}
	return sched.Phase(now) != PhaseActive && ben.Claimable(sched) == 0
}
