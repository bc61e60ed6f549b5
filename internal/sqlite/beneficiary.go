package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/vesting"
	"github.com/rpggio/vestledger/internal/repository"
)

// BeneficiaryRepository implements vesting.BeneficiaryRepository for SQLite
type BeneficiaryRepository struct {
	db Queryer
}

// NewBeneficiaryRepository creates a new BeneficiaryRepository
func NewBeneficiaryRepository(db Queryer) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

const beneficiaryColumns = `
	address, schedule_address, identity, allocated_tokens, claimed_tokens,
	deposit, created_at, modified_at, version
`

// Create inserts a new beneficiary
func (r *BeneficiaryRepository) Create(ctx context.Context, b *vesting.Beneficiary) error {
	allocated, err := toInt64(b.AllocatedTokens)
	if err != nil {
		return err
	}
	deposit, err := toInt64(b.Deposit)
	if err != nil {
		return err
	}
	query := `INSERT INTO beneficiaries (` + beneficiaryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		b.Address.Hex(),
		b.ScheduleAddress.Hex(),
		address.Key(b.Identity),
		allocated,
		int64(b.ClaimedTokens),
		deposit,
		b.CreatedAt,
		b.ModifiedAt,
		b.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

// Get retrieves a beneficiary by its derived address
func (r *BeneficiaryRepository) Get(ctx context.Context, addr common.Hash) (*vesting.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE address = ?`
	b, err := scanBeneficiary(r.db.QueryRowContext(ctx, query, addr.Hex()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}
	return b, nil
}

// Update updates a beneficiary with optimistic concurrency control
func (r *BeneficiaryRepository) Update(ctx context.Context, b *vesting.Beneficiary, expectedVersion int64) error {
	query := `
		UPDATE beneficiaries
		SET claimed_tokens = ?, modified_at = ?, version = ?
		WHERE address = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		int64(b.ClaimedTokens),
		b.ModifiedAt,
		b.Version,
		b.Address.Hex(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update beneficiary: %w", err)
	}
	return r.checkVersioned(ctx, result, b.Address)
}

// Delete removes a beneficiary if its version still matches
func (r *BeneficiaryRepository) Delete(ctx context.Context, addr common.Hash, expectedVersion int64) error {
	query := `DELETE FROM beneficiaries WHERE address = ? AND version = ?`
	result, err := r.db.ExecContext(ctx, query, addr.Hex(), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	return r.checkVersioned(ctx, result, addr)
}

// ListBySchedule returns every beneficiary of a schedule in creation order
func (r *BeneficiaryRepository) ListBySchedule(ctx context.Context, schedule common.Hash) ([]vesting.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE schedule_address = ? ORDER BY created_at, identity`

	rows, err := r.db.QueryContext(ctx, query, schedule.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	defer rows.Close()

	var list []vesting.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beneficiary rows: %w", err)
	}
	return list, nil
}

func (r *BeneficiaryRepository) checkVersioned(ctx context.Context, result sql.Result, addr common.Hash) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM beneficiaries WHERE address = ?)`
	if err := r.db.QueryRowContext(ctx, checkQuery, addr.Hex()).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check beneficiary existence: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeneficiary(row rowScanner) (*vesting.Beneficiary, error) {
	var b vesting.Beneficiary
	var addr, schedule, identity string
	if err := row.Scan(
		&addr,
		&schedule,
		&identity,
		&b.AllocatedTokens,
		&b.ClaimedTokens,
		&b.Deposit,
		&b.CreatedAt,
		&b.ModifiedAt,
		&b.Version,
	); err != nil {
		return nil, err
	}
	b.Address = common.HexToHash(addr)
	b.ScheduleAddress = common.HexToHash(schedule)
	b.Identity = common.HexToAddress(identity)
	return &b, nil
}
