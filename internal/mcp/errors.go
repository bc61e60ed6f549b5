package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
)

// Codes for failures that are not vesting errors.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeMethodNotFound  = "METHOD_NOT_FOUND"
	CodeInvalidParams   = "INVALID_PARAMS"
)

// APIError represents an error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Category     string `json:"category,omitempty"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) CodeValue() string {
	return e.Code
}

func (e *APIError) MessageValue() string {
	return e.Message
}

func (e *APIError) DetailsValue() any {
	return e.Details
}

func (e *APIError) RecoveryHintValue() string {
	return e.RecoveryHint
}

var (
	errUnauthenticated = &APIError{Code: CodeUnauthenticated, Message: "this method requires a signed identity", Category: string(vesting.KindAuthorization), RecoveryHint: "Send Authorization: Signature <address>:<ts>:<method>:<sig>"}
)

var recoveryHints = map[string]string{
	"InvalidSender":            "Only the schedule issuer may call this",
	"VestingNotStarted":        "Wait until start_timestamp",
	"VestingStillActive":       "Cancel the schedule or wait until it completes",
	"VestingAlreadyCompleted":  "The schedule no longer accepts this change",
	"BeneficiaryHasClaimable":  "Let the beneficiary claim first",
	"ConcurrentModification":   "Reload the schedule and retry",
	"ClaimNotAllowed":          "Nothing new is unlocked; wait for the next release",
	"AllocationExceedsDeposit": "Reduce the allocations or deposit more tokens",
	"InsufficientFunds":        "Fund the account first",
	"ScheduleNotFound":         "Call initialize for this mint",
	"MintNotFound":             "Call create_mint first",
}

// MapError maps domain errors to API error codes. It returns nil for errors
// that have no public mapping.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *vesting.Error
	if errors.As(err, &verr) {
		return &APIError{
			Code:         verr.Code,
			Message:      verr.Message,
			Category:     string(verr.Kind),
			RecoveryHint: recoveryHints[verr.Code],
		}
	}

	switch {
	case errors.Is(err, ledger.ErrMintNotFound):
		return &APIError{Code: "MintNotFound", Message: "token mint not found", Category: string(vesting.KindLookup), RecoveryHint: recoveryHints["MintNotFound"]}
	case errors.Is(err, ledger.ErrMintExists):
		return &APIError{Code: "MintAlreadyExists", Message: "token mint already exists", Category: string(vesting.KindLookup)}
	case errors.Is(err, ledger.ErrNotMintAuthority):
		return &APIError{Code: "NotMintAuthority", Message: "caller is not the mint authority", Category: string(vesting.KindAuthorization)}
	case errors.Is(err, ledger.ErrUnauthorized):
		return &APIError{Code: "Unauthorized", Message: "caller does not control the source account", Category: string(vesting.KindAuthorization)}
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrAccountNotFound):
		return &APIError{Code: "InsufficientFunds", Message: "insufficient token balance", Category: string(vesting.KindResource), RecoveryHint: recoveryHints["InsufficientFunds"]}
	case errors.Is(err, ledger.ErrInvalidAmount):
		return &APIError{Code: "InvalidAmount", Message: "amount must be positive and in range", Category: string(vesting.KindInput)}
	case errors.Is(err, address.ErrInvalidIdentity), errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Code: CodeInvalidParams, Message: err.Error(), Category: string(vesting.KindInput)}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}

func invalidParams(err error) error {
	return &APIError{Code: CodeInvalidParams, Message: err.Error(), Category: string(vesting.KindInput)}
}
