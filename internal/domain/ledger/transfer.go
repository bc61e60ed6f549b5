package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/repository"
)

// Transfer moves amount between two accounts of the same mint. The debit only
// succeeds when authority controls the source account. The destination account
// is opened on demand with owner as its own authority.
func Transfer(ctx context.Context, repo Repository, mint common.Address, from, to string, amount uint64, authority string) error {
	if amount == 0 || amount > math.MaxInt64 {
		return ErrInvalidAmount
	}
	if err := repo.Debit(ctx, mint, from, authority, amount); err != nil {
		return translate(err)
	}
	if err := repo.OpenAccount(ctx, mint, to, to); err != nil {
		return fmt.Errorf("opening destination account: %w", err)
	}
	if err := repo.Credit(ctx, mint, to, amount); err != nil {
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, repository.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrOverflow):
		return ErrInvalidAmount
	default:
		return fmt.Errorf("transferring tokens: %w", err)
	}
}
