package mcp

// Addresses are 0x-prefixed hex strings; amounts are base units.

type CreateMintParams struct {
	Mint     string `json:"mint" jsonschema:"address of the new token type"`
	Decimals uint8  `json:"decimals" jsonschema:"number of decimal places"`
}

type MintToParams struct {
	Mint   string `json:"mint"`
	To     string `json:"to" jsonschema:"recipient identity"`
	Amount uint64 `json:"amount"`
}

type TransferParams struct {
	Mint   string `json:"mint"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type GetBalanceParams struct {
	Mint  string `json:"mint"`
	Owner string `json:"owner,omitempty" jsonschema:"account owner; defaults to the caller"`
}

type InitializeParams struct {
	Mint           string `json:"mint"`
	Amount         uint64 `json:"amount,omitempty" jsonschema:"total tokens to lock in escrow, in base units"`
	AmountDisplay  string `json:"amount_display,omitempty" jsonschema:"total in display units such as 1.5; use instead of amount"`
	Decimals       uint8  `json:"decimals" jsonschema:"must match the mint"`
	StartTimestamp int64  `json:"start_timestamp" jsonschema:"unix seconds before which nothing can be claimed"`
	VestingMonths  uint16 `json:"vesting_months,omitempty" jsonschema:"schedule length in 30-day months; defaults to 36"`
}

type AllocationParam struct {
	Identity         string `json:"identity"`
	AllocatedTokens  uint64 `json:"allocated_tokens,omitempty" jsonschema:"entitlement in base units"`
	AllocatedDisplay string `json:"allocated_display,omitempty" jsonschema:"entitlement in display units; use instead of allocated_tokens"`
}

type AllocateParams struct {
	Mint          string            `json:"mint"`
	Beneficiaries []AllocationParam `json:"beneficiaries"`
}

type ReleaseParams struct {
	Mint    string `json:"mint"`
	Percent uint8  `json:"percent" jsonschema:"new cumulative unlocked percentage, 0-100"`
}

type MintParams struct {
	Mint string `json:"mint"`
}

type DeallocateParams struct {
	Mint       string   `json:"mint"`
	Identities []string `json:"identities"`
}

type GetBeneficiaryParams struct {
	Mint     string `json:"mint"`
	Identity string `json:"identity,omitempty" jsonschema:"beneficiary identity; defaults to the caller"`
}

type GetActivityParams struct {
	Mint        string `json:"mint,omitempty"`
	Beneficiary string `json:"beneficiary,omitempty"`
	Type        string `json:"type,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

type BalanceResponse struct {
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
