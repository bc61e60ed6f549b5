package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/repository"
)

// LedgerRepository implements ledger.Repository for SQLite
type LedgerRepository struct {
	db Queryer
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db Queryer) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateMint inserts a new token type
func (r *LedgerRepository) CreateMint(ctx context.Context, mint *ledger.Mint) error {
	supply, err := toInt64(mint.Supply)
	if err != nil {
		return err
	}
	createdAt := mint.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO mints (id, decimals, authority, supply, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		address.Key(mint.ID),
		mint.Decimals,
		address.Key(mint.Authority),
		supply,
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create mint: %w", err)
	}
	return nil
}

// GetMint retrieves a token type by ID
func (r *LedgerRepository) GetMint(ctx context.Context, id common.Address) (*ledger.Mint, error) {
	query := `SELECT id, decimals, authority, supply, created_at FROM mints WHERE id = ?`

	var mint ledger.Mint
	var mintID, authority string
	err := r.db.QueryRowContext(ctx, query, address.Key(id)).Scan(
		&mintID,
		&mint.Decimals,
		&authority,
		&mint.Supply,
		&mint.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mint: %w", err)
	}
	mint.ID = common.HexToAddress(mintID)
	mint.Authority = common.HexToAddress(authority)
	return &mint, nil
}

// AddSupply increases a mint's recorded supply
func (r *LedgerRepository) AddSupply(ctx context.Context, id common.Address, amount uint64) error {
	delta, err := toInt64(amount)
	if err != nil {
		return err
	}
	query := `UPDATE mints SET supply = supply + ? WHERE id = ? AND supply <= ?`
	result, err := r.db.ExecContext(ctx, query, delta, address.Key(id), math.MaxInt64-delta)
	if err != nil {
		return fmt.Errorf("failed to add supply: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetMint(ctx, id); err != nil {
			return err
		}
		return repository.ErrOverflow
	}
	return nil
}

// OpenAccount creates a zero-balance account. An existing account is left
// untouched, including its authority.
func (r *LedgerRepository) OpenAccount(ctx context.Context, mint common.Address, owner, authority string) error {
	query := `
		INSERT INTO token_accounts (mint_id, owner, authority, balance)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(mint_id, owner) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, address.Key(mint), owner, authority); err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to open account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by mint and owner
func (r *LedgerRepository) GetAccount(ctx context.Context, mint common.Address, owner string) (*ledger.Account, error) {
	query := `SELECT mint_id, owner, authority, balance FROM token_accounts WHERE mint_id = ? AND owner = ?`

	var acct ledger.Account
	var mintID string
	err := r.db.QueryRowContext(ctx, query, address.Key(mint), owner).Scan(
		&mintID,
		&acct.Owner,
		&acct.Authority,
		&acct.Balance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	acct.Mint = common.HexToAddress(mintID)
	return &acct, nil
}

// Credit adds to an account balance
func (r *LedgerRepository) Credit(ctx context.Context, mint common.Address, owner string, amount uint64) error {
	delta, err := toInt64(amount)
	if err != nil {
		return err
	}
	query := `UPDATE token_accounts SET balance = balance + ? WHERE mint_id = ? AND owner = ? AND balance <= ?`
	result, err := r.db.ExecContext(ctx, query, delta, address.Key(mint), owner, math.MaxInt64-delta)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetAccount(ctx, mint, owner); err != nil {
			return err
		}
		return repository.ErrOverflow
	}
	return nil
}

// Debit subtracts from an account balance. The debit only applies when
// authority matches the account and the balance covers the amount.
func (r *LedgerRepository) Debit(ctx context.Context, mint common.Address, owner, authority string, amount uint64) error {
	delta, err := toInt64(amount)
	if err != nil {
		return err
	}
	query := `
		UPDATE token_accounts
		SET balance = balance - ?
		WHERE mint_id = ? AND owner = ? AND authority = ? AND balance >= ?
	`
	result, err := r.db.ExecContext(ctx, query, delta, address.Key(mint), owner, authority, delta)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		acct, err := r.GetAccount(ctx, mint, owner)
		if err != nil {
			return err
		}
		if acct.Authority != authority {
			return repository.ErrUnauthorized
		}
		return repository.ErrInsufficientFunds
	}
	return nil
}
