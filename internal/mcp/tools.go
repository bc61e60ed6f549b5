package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// methodDocs describes every method served by Handle.
var methodDocs = map[string]string{
	"create_mint":        "Create a token type with the caller as mint authority",
	"mint_to":            "Mint new supply of a token type to an identity (mint authority only)",
	"transfer":           "Transfer tokens from the caller's account to another identity",
	"get_balance":        "Get the balance of an account; defaults to the caller",
	"initialize":         "Create the vesting schedule for a token type and lock the deposit in escrow",
	"allocate":           "Add beneficiaries with fixed allocations (issuer only)",
	"release":            "Raise the cumulative unlocked percentage (issuer only)",
	"claim":              "Claim the caller's unlocked share of a schedule",
	"cancel":             "Cancel a schedule and return unallocated and locked tokens to the issuer",
	"withdraw_unclaimed": "Sweep tokens left in escrow after cancellation or completion (issuer only)",
	"deallocate":         "Remove beneficiary records that are paid out or finished, refunding deposits",
	"get_schedule":       "Get a schedule with its current phase and remaining escrow",
	"get_beneficiary":    "Get a beneficiary with its claimable amount; defaults to the caller",
	"list_beneficiaries": "List all beneficiaries of a schedule",
	"get_activity":       "List journal entries, newest first, optionally filtered",
	"get_addresses":      "Show the derived schedule and escrow addresses of a token type",
}

func registerTools(server *sdkmcp.Server, h *Handler, logger *zap.Logger) {
	addTool[CreateMintParams](server, h, logger, "create_mint")
	addTool[MintToParams](server, h, logger, "mint_to")
	addTool[TransferParams](server, h, logger, "transfer")
	addTool[GetBalanceParams](server, h, logger, "get_balance")
	addTool[InitializeParams](server, h, logger, "initialize")
	addTool[AllocateParams](server, h, logger, "allocate")
	addTool[ReleaseParams](server, h, logger, "release")
	addTool[MintParams](server, h, logger, "claim")
	addTool[MintParams](server, h, logger, "cancel")
	addTool[MintParams](server, h, logger, "withdraw_unclaimed")
	addTool[DeallocateParams](server, h, logger, "deallocate")
	addTool[MintParams](server, h, logger, "get_schedule")
	addTool[GetBeneficiaryParams](server, h, logger, "get_beneficiary")
	addTool[MintParams](server, h, logger, "list_beneficiaries")
	addTool[GetActivityParams](server, h, logger, "get_activity")
	addTool[MintParams](server, h, logger, "get_addresses")
}

// addTool exposes one Handle method as a tool. Domain failures come back as
// tool results with IsError set so the model can read the code and hint.
func addTool[In any](server *sdkmcp.Server, h *Handler, logger *zap.Logger, name string) {
	tool := &sdkmcp.Tool{Name: name, Description: methodDocs[name]}
	sdkmcp.AddTool(server, tool, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
		params, err := json.Marshal(in)
		if err != nil {
			return nil, nil, err
		}
		result, err := h.Handle(ctx, getIdentity(ctx), name, params)
		if err != nil {
			if apiErr := MapError(err); apiErr != nil {
				return jsonResult(apiErr, true), nil, nil
			}
			logger.Error("tool failed", zap.String("tool", name), zap.Error(err))
			return nil, nil, err
		}
		return jsonResult(result, false), nil, nil
	})
}

func jsonResult(v any, isError bool) *sdkmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{"code":"INTERNAL","message":"unencodable result"}`)
		isError = true
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: isError,
	}
}
