package ledger

import "errors"

var (
	// ErrMintNotFound indicates the token type doesn't exist.
	ErrMintNotFound = errors.New("mint not found")
	// ErrMintExists indicates the token type was already created.
	ErrMintExists = errors.New("mint already exists")
	// ErrNotMintAuthority indicates the caller cannot mint this token.
	ErrNotMintAuthority = errors.New("caller is not the mint authority")
	// ErrAccountNotFound indicates the token account doesn't exist.
	ErrAccountNotFound = errors.New("token account not found")
	// ErrInsufficientFunds indicates the source balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnauthorized indicates the signer does not control the source account.
	ErrUnauthorized = errors.New("caller does not control the source account")
	// ErrInvalidAmount indicates a zero or out-of-range amount.
	ErrInvalidAmount = errors.New("invalid amount")
)
