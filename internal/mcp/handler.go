package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
)

// LedgerService defines token ledger operations needed by MCP.
type LedgerService interface {
	CreateMint(ctx context.Context, req ledger.CreateMintRequest) (*ledger.Mint, error)
	MintTo(ctx context.Context, req ledger.MintToRequest) (*ledger.Account, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) error
	Balance(ctx context.Context, mint common.Address, owner string) (uint64, error)
}

// VestingService defines vesting operations needed by MCP.
type VestingService interface {
	Initialize(ctx context.Context, req vesting.InitializeRequest) (*vesting.Schedule, error)
	Allocate(ctx context.Context, req vesting.AllocateRequest) ([]vesting.Beneficiary, error)
	Release(ctx context.Context, req vesting.ReleaseRequest) (*vesting.Schedule, error)
	Claim(ctx context.Context, req vesting.ClaimRequest) (*vesting.ClaimResult, error)
	Cancel(ctx context.Context, req vesting.CancelRequest) (*vesting.CancelResult, error)
	WithdrawUnclaimed(ctx context.Context, req vesting.WithdrawRequest) (*vesting.WithdrawResult, error)
	Deallocate(ctx context.Context, req vesting.DeallocateRequest) error
	GetSchedule(ctx context.Context, mint common.Address) (*vesting.ScheduleView, error)
	GetBeneficiary(ctx context.Context, mint, identity common.Address) (*vesting.BeneficiaryView, error)
	ListBeneficiaries(ctx context.Context, mint common.Address) ([]vesting.BeneficiaryView, error)
	Addresses(mint common.Address) vesting.Addresses
}

// ActivityService defines journal reads needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.Entry, error)
}

// Handler dispatches method calls to domain services. It is shared by the
// MCP tools and the JSON-RPC endpoint.
type Handler struct {
	ledger   LedgerService
	vesting  VestingService
	activity ActivityService
}

// NewHandler creates a new MCP handler.
func NewHandler(ledgerSvc LedgerService, vestingSvc VestingService, activitySvc ActivityService) *Handler {
	return &Handler{
		ledger:   ledgerSvc,
		vesting:  vestingSvc,
		activity: activitySvc,
	}
}

// Methods that read state and accept anonymous callers.
var readOnlyMethods = map[string]bool{
	"get_balance":        true,
	"get_schedule":       true,
	"get_beneficiary":    true,
	"list_beneficiaries": true,
	"get_activity":       true,
	"get_addresses":      true,
}

// Handle dispatches a method call. caller is the zero address for anonymous requests.
func (h *Handler) Handle(ctx context.Context, caller common.Address, method string, params json.RawMessage) (any, error) {
	if !readOnlyMethods[method] && caller == (common.Address{}) {
		if _, known := methodDocs[method]; known {
			return nil, errUnauthenticated
		}
	}

	switch method {
	case "create_mint":
		var req CreateMintParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		return wrap(h.ledger.CreateMint(ctx, ledger.CreateMintRequest{Caller: caller, ID: mint, Decimals: req.Decimals}))
	case "mint_to":
		var req MintToParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, to, err := parseAddressPair(req.Mint, req.To)
		if err != nil {
			return nil, err
		}
		return wrap(h.ledger.MintTo(ctx, ledger.MintToRequest{Caller: caller, Mint: mint, To: to, Amount: req.Amount}))
	case "transfer":
		var req TransferParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, to, err := parseAddressPair(req.Mint, req.To)
		if err != nil {
			return nil, err
		}
		if err := h.ledger.Transfer(ctx, ledger.TransferRequest{Caller: caller, Mint: mint, To: to, Amount: req.Amount}); err != nil {
			return nil, mapError(err)
		}
		return OKResponse{OK: true}, nil
	case "get_balance":
		var req GetBalanceParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		owner := address.Key(caller)
		if req.Owner != "" {
			owner, err = ownerKey(req.Owner)
			if err != nil {
				return nil, err
			}
		}
		balance, err := h.ledger.Balance(ctx, mint, owner)
		if err != nil {
			return nil, mapError(err)
		}
		return BalanceResponse{Mint: address.Key(mint), Owner: owner, Balance: balance}, nil
	case "initialize":
		var req InitializeParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		amount, err := baseUnits(req.Amount, req.AmountDisplay, req.Decimals)
		if err != nil {
			return nil, err
		}
		return wrap(h.vesting.Initialize(ctx, vesting.InitializeRequest{
			Caller:         caller,
			Mint:           mint,
			Amount:         amount,
			Decimals:       req.Decimals,
			StartTimestamp: req.StartTimestamp,
			VestingMonths:  req.VestingMonths,
		}))
	case "allocate":
		var req AllocateParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		decimals, err := h.displayDecimals(ctx, mint, req.Beneficiaries)
		if err != nil {
			return nil, err
		}
		allocations := make([]vesting.Allocation, 0, len(req.Beneficiaries))
		for _, b := range req.Beneficiaries {
			identity, err := parseAddress(b.Identity)
			if err != nil {
				return nil, err
			}
			tokens, err := baseUnits(b.AllocatedTokens, b.AllocatedDisplay, decimals)
			if err != nil {
				return nil, err
			}
			allocations = append(allocations, vesting.Allocation{Identity: identity, AllocatedTokens: tokens})
		}
		return wrap(h.vesting.Allocate(ctx, vesting.AllocateRequest{Caller: caller, Mint: mint, Beneficiaries: allocations}))
	case "release":
		var req ReleaseParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		return wrap(h.vesting.Release(ctx, vesting.ReleaseRequest{Caller: caller, Mint: mint, Percent: req.Percent}))
	case "claim":
		mint, err := decodeMint(params)
		if err != nil {
			return nil, err
		}
		return wrap(h.vesting.Claim(ctx, vesting.ClaimRequest{Caller: caller, Mint: mint}))
	case "cancel":
		mint, err := decodeMint(params)
		if err != nil {
			return nil, err
		}
		return wrap(h.vesting.Cancel(ctx, vesting.CancelRequest{Caller: caller, Mint: mint}))
	case "withdraw_unclaimed":
		mint, err := decodeMint(params)
		if err != nil {
			return nil, err
		}
		return wrap(h.vesting.WithdrawUnclaimed(ctx, vesting.WithdrawRequest{Caller: caller, Mint: mint}))
	case "deallocate":
		var req DeallocateParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		identities := make([]common.Address, 0, len(req.Identities))
		for _, raw := range req.Identities {
			identity, err := parseAddress(raw)
			if err != nil {
				return nil, err
			}
			identities = append(identities, identity)
		}
		if err := h.vesting.Deallocate(ctx, vesting.DeallocateRequest{Caller: caller, Mint: mint, Identities: identities}); err != nil {
			return nil, mapError(err)
		}
		return OKResponse{OK: true}, nil
	case "get_schedule":
		mint, err := decodeMint(params)
		if err != nil {
			return nil, err
		}
		return wrap(h.vesting.GetSchedule(ctx, mint))
	case "get_beneficiary":
		var req GetBeneficiaryParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		mint, err := parseAddress(req.Mint)
		if err != nil {
			return nil, err
		}
		identity := caller
		if req.Identity != "" {
			if identity, err = parseAddress(req.Identity); err != nil {
				return nil, err
			}
		}
		if identity == (common.Address{}) {
			return nil, invalidParams(errors.New("identity is required for anonymous callers"))
		}
		return wrap(h.vesting.GetBeneficiary(ctx, mint, identity))
	case "list_beneficiaries":
		mint, err := decodeMint(params)
		if err != nil {
			return nil, err
		}
		views, err := h.vesting.ListBeneficiaries(ctx, mint)
		if err != nil {
			return nil, mapError(err)
		}
		if views == nil {
			views = []vesting.BeneficiaryView{}
		}
		return views, nil
	case "get_activity":
		var req GetActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		opts := activity.ListActivityOptions{Limit: req.Limit, Offset: req.Offset}
		if req.Mint != "" {
			mint, err := parseAddress(req.Mint)
			if err != nil {
				return nil, err
			}
			opts.Mint = address.Key(mint)
		}
		if req.Beneficiary != "" {
			identity, err := parseAddress(req.Beneficiary)
			if err != nil {
				return nil, err
			}
			key := address.Key(identity)
			opts.Beneficiary = &key
		}
		if req.Type != "" {
			kind := activity.ActivityType(req.Type)
			opts.ActivityType = &kind
		}
		entries, err := h.activity.GetRecentActivity(ctx, opts)
		if err != nil {
			return nil, mapError(err)
		}
		if entries == nil {
			entries = []activity.Entry{}
		}
		return entries, nil
	case "get_addresses":
		mint, err := decodeMint(params)
		if err != nil {
			return nil, err
		}
		return h.vesting.Addresses(mint), nil
	default:
		return nil, &APIError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", method), Category: string(vesting.KindInput)}
	}
}

// wrap maps the error half of a service result.
// baseUnits picks the base-unit amount or converts the display amount.
// Giving both is ambiguous and rejected.
func baseUnits(base uint64, display string, decimals uint8) (uint64, error) {
	if display == "" {
		return base, nil
	}
	if base != 0 {
		return 0, invalidParams(errors.New("give either a base-unit amount or a display amount, not both"))
	}
	n, err := vesting.ParseAmount(display, decimals)
	if err != nil {
		return 0, invalidParams(fmt.Errorf("display amount %q: %w", display, err))
	}
	return n, nil
}

// displayDecimals loads the schedule precision only when some allocation is
// given in display units.
func (h *Handler) displayDecimals(ctx context.Context, mint common.Address, batch []AllocationParam) (uint8, error) {
	for _, b := range batch {
		if b.AllocatedDisplay == "" {
			continue
		}
		sched, err := h.vesting.GetSchedule(ctx, mint)
		if err != nil {
			return 0, err
		}
		return sched.Decimals, nil
	}
	return 0, nil
}

func wrap[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams(err)
	}
	return nil
}

func decodeMint(params json.RawMessage) (common.Address, error) {
	var req MintParams
	if err := decodeParams(params, &req); err != nil {
		return common.Address{}, err
	}
	return parseAddress(req.Mint)
}

func parseAddress(raw string) (common.Address, error) {
	addr, err := address.ParseIdentity(raw)
	if err != nil {
		return common.Address{}, invalidParams(fmt.Errorf("%q: %w", raw, err))
	}
	return addr, nil
}

func parseAddressPair(a, b string) (common.Address, common.Address, error) {
	first, err := parseAddress(a)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	second, err := parseAddress(b)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return first, second, nil
}

// ownerKey accepts an identity address or a 32-byte derived account address.
func ownerKey(raw string) (string, error) {
	if addr, err := address.ParseIdentity(raw); err == nil {
		return address.Key(addr), nil
	}
	var hash common.Hash
	if err := hash.UnmarshalText([]byte(raw)); err != nil {
		return "", invalidParams(fmt.Errorf("%q is neither an identity nor an account address", raw))
	}
	return hash.Hex(), nil
}
