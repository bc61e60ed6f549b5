package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Repository provides persistence for mints and token accounts. Implementations
// must be bound to a single transaction when used through Store.
type Repository interface {
	CreateMint(ctx context.Context, mint *Mint) error
	GetMint(ctx context.Context, id common.Address) (*Mint, error)
	AddSupply(ctx context.Context, id common.Address, amount uint64) error
	OpenAccount(ctx context.Context, mint common.Address, owner, authority string) error
	GetAccount(ctx context.Context, mint common.Address, owner string) (*Account, error)
	Credit(ctx context.Context, mint common.Address, owner string, amount uint64) error
	Debit(ctx context.Context, mint common.Address, owner, authority string, amount uint64) error
}

// Store runs ledger work inside one transaction.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	Reader() Repository
}
