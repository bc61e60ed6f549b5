package vesting

import "errors"

// Kind groups errors by what the caller did wrong.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindPrecondition  Kind = "precondition"
	KindResource      Kind = "resource"
	KindLookup        Kind = "lookup"
	KindInput         Kind = "input"
	KindInternal      Kind = "internal"
)

// Error is a vesting failure with a stable code.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code string, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrInvalidSender = newError("InvalidSender", KindAuthorization, "sender is not the schedule issuer")

	ErrVestingNotStarted       = newError("VestingNotStarted", KindPrecondition, "vesting period has not started yet")
	ErrVestingStillActive      = newError("VestingStillActive", KindPrecondition, "unclaimed tokens are not yet withdrawable")
	ErrVestingAlreadyCompleted = newError("VestingAlreadyCompleted", KindPrecondition, "vesting already completed or cancelled")
	ErrBeneficiaryHasClaimable = newError("BeneficiaryHasClaimable", KindPrecondition, "beneficiary still has tokens to claim")
	ErrConcurrentModification  = newError("ConcurrentModification", KindPrecondition, "record modified by a concurrent operation")

	ErrZeroVestingAmount        = newError("ZeroVestingAmount", KindResource, "total vesting amount must be greater than 0")
	ErrInvalidPercentage        = newError("InvalidPercentage", KindResource, "percentage must not exceed 100 or decrease")
	ErrNoUnclaimedTokens        = newError("NoUnclaimedTokens", KindResource, "no unclaimed tokens available for withdrawal")
	ErrClaimNotAllowed          = newError("ClaimNotAllowed", KindResource, "not allowed to claim new tokens currently")
	ErrAllocationExceedsDeposit = newError("AllocationExceedsDeposit", KindResource, "allocations exceed the deposited amount")
	ErrInsufficientFunds        = newError("InsufficientFunds", KindResource, "insufficient token balance")

	ErrBeneficiaryNotFound      = newError("BeneficiaryNotFound", KindLookup, "beneficiary does not exist in schedule")
	ErrBeneficiaryAlreadyExists = newError("BeneficiaryAlreadyExists", KindLookup, "beneficiary already exists in schedule")
	ErrScheduleNotFound         = newError("ScheduleNotFound", KindLookup, "no vesting schedule for this token")
	ErrScheduleExists           = newError("ScheduleAlreadyExists", KindLookup, "vesting schedule already initialized for this token")
	ErrMintNotFound             = newError("MintNotFound", KindLookup, "token mint not found")

	ErrDecimalsMismatch = newError("DecimalsMismatch", KindInput, "decimals do not match the token mint")
	ErrInvalidInput     = newError("InvalidInput", KindInput, "invalid vesting input")
)

// CodeOf returns the stable code of a vesting error, or "" for other errors.
func CodeOf(err error) string {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Code
	}
	return ""
}

// KindOf classifies err; anything that isn't a vesting error is internal.
func KindOf(err error) Kind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return KindInternal
}
