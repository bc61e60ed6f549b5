package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the precision of the native credits mint.
const NativeDecimals uint8 = 9

// NativeMint holds storage-deposit credits.
var NativeMint = common.Address{}

// Mint is a fungible token type.
type Mint struct {
	ID        common.Address `json:"id"`
	Decimals  uint8          `json:"decimals"`
	Authority common.Address `json:"authority"`
	Supply    uint64         `json:"supply"`
	CreatedAt time.Time      `json:"created_at"`
}

// Account is a token holding. Owner and Authority are hex keys so that both
// user identities and derived vault addresses can hold tokens.
type Account struct {
	Mint      common.Address `json:"mint"`
	Owner     string         `json:"owner"`
	Authority string         `json:"authority"`
	Balance   uint64         `json:"balance"`
}
