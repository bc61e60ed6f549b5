package activity

import "time"

// ActivityType represents the type of vesting event
type ActivityType string

const (
	TypeInitialized ActivityType = "initialized"
	TypeAllocated   ActivityType = "allocated"
	TypeReleased    ActivityType = "released"
	TypeClaimed     ActivityType = "claimed"
	TypeCancelled   ActivityType = "cancelled"
	TypeWithdrawn   ActivityType = "withdrawn"
	TypeDeallocated ActivityType = "deallocated"
)

// Entry represents an event in the vesting journal
type Entry struct {
	ID              string       `json:"id"`
	Mint            string       `json:"mint"`
	ScheduleAddress string       `json:"schedule_address"`
	Actor           string       `json:"actor"`
	Beneficiary     *string      `json:"beneficiary,omitempty"`
	ActivityType    ActivityType `json:"type"`
	Amount          uint64       `json:"amount"`
	Percent         uint8        `json:"percent"`
	Summary         string       `json:"summary"`
	CreatedAt       time.Time    `json:"created_at"`
	Version         int64        `json:"version"` // schedule version after the event
}
