package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `vestledger locks a token type's supply in escrow and releases it to beneficiaries in stages.

Core concepts:
- Mint: a token type. Amounts are integer base units; decimals only affect display.
- Schedule: one per mint. The issuer deposits token_amount into an escrow account.
- Beneficiary: an identity with a fixed allocation. It can claim allocation * percent_available / 100, minus what it already claimed.
- Release: the issuer raises percent_available (never lowers it, at most 100).
- Phase: ACTIVE until cancelled or until start_timestamp + vesting_months * 30 days.

Typical flow:
1) create_mint, mint_to the issuer.
2) initialize with the amount, decimals and start timestamp.
3) allocate beneficiaries (each costs a small deposit in native credits).
4) release in steps; beneficiaries claim after start_timestamp.
5) cancel or wait for completion, then withdraw_unclaimed and deallocate.

Reads (get_schedule, get_beneficiary, list_beneficiaries, get_activity, get_addresses, get_balance) need no identity.
Writes are performed as the signed identity (HTTP) or the configured local identity (stdio).
Over HTTP each tool call carries "Authorization: Signature <address>:<ts>:<tool>:<sig>" signed for that tool name.
Amounts are base units; initialize and allocate also take amount_display / allocated_display such as "12.5".
Errors come back with a stable code, a category and usually a recovery_hint.

Docs: vesting://docs/rules
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "vesting://docs/rules",
		Name:        "vesting_rules",
		Title:       "Vesting rules",
		Description: "Preconditions and error codes for every state-changing tool.",
		Content: `# Vesting rules

## initialize
- amount > 0, else ZeroVestingAmount.
- decimals must equal the mint's decimals, else DecimalsMismatch.
- One schedule per mint, else ScheduleAlreadyExists.
- The caller must hold amount tokens, else InsufficientFunds.

## allocate (issuer)
- Only while ACTIVE, else VestingAlreadyCompleted.
- Sum of all allocations must not exceed the deposit, else AllocationExceedsDeposit.
- An identity can be allocated once per schedule, else BeneficiaryAlreadyExists.
- Each new record charges the issuer a deposit in native credits.

## release (issuer)
- Only while ACTIVE.
- The new percentage must be greater than the current one and at most 100, else InvalidPercentage.

## claim (beneficiary)
- Not before start_timestamp, else VestingNotStarted.
- Must be allocated, else BeneficiaryNotFound.
- Fails with ClaimNotAllowed when nothing new is unlocked.
- Still allowed after cancel or completion.

## cancel (issuer)
- Only while ACTIVE.
- Returns everything that is not allocated and unlocked to the issuer.
- percent_available is frozen at its current value.

## withdraw_unclaimed (issuer)
- Only after cancel or completion, else VestingStillActive.
- Moves the remaining escrow balance to the issuer, else NoUnclaimedTokens.

## deallocate (issuer)
- A record can be removed once fully claimed, or once the schedule is finished and nothing is claimable.
- Otherwise BeneficiaryHasClaimable. The deposit goes back to the issuer.

## Concurrency
Every write checks the record version. A lost race fails with ConcurrentModification; reload and retry.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
