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

// ScheduleRepository implements vesting.ScheduleRepository for SQLite
type ScheduleRepository struct {
	db Queryer
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db Queryer) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `
	address, mint_id, escrow_address, issuer, token_amount, decimals,
	start_timestamp, vesting_months, percent_available, allocated_total,
	claimed_total, unclaimed_withdrawn, status, cancelled_at,
	created_at, modified_at, version
`

// Create inserts a new schedule
func (r *ScheduleRepository) Create(ctx context.Context, s *vesting.Schedule) error {
	amount, err := toInt64(s.TokenAmount)
	if err != nil {
		return err
	}
	query := `INSERT INTO schedules (` + scheduleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		s.Address.Hex(),
		address.Key(s.Mint),
		s.EscrowAddress.Hex(),
		address.Key(s.Issuer),
		amount,
		s.Decimals,
		s.StartTimestamp,
		s.VestingMonths,
		s.PercentAvailable,
		int64(s.AllocatedTotal),
		int64(s.ClaimedTotal),
		int64(s.UnclaimedWithdrawn),
		s.Status,
		s.CancelledAt,
		s.CreatedAt,
		s.ModifiedAt,
		s.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// Get retrieves a schedule by its derived address
func (r *ScheduleRepository) Get(ctx context.Context, addr common.Hash) (*vesting.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE address = ?`

	var s vesting.Schedule
	var schedAddr, mint, escrow, issuer string
	var cancelledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, addr.Hex()).Scan(
		&schedAddr,
		&mint,
		&escrow,
		&issuer,
		&s.TokenAmount,
		&s.Decimals,
		&s.StartTimestamp,
		&s.VestingMonths,
		&s.PercentAvailable,
		&s.AllocatedTotal,
		&s.ClaimedTotal,
		&s.UnclaimedWithdrawn,
		&s.Status,
		&cancelledAt,
		&s.CreatedAt,
		&s.ModifiedAt,
		&s.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	s.Address = common.HexToHash(schedAddr)
	s.Mint = common.HexToAddress(mint)
	s.EscrowAddress = common.HexToHash(escrow)
	s.Issuer = common.HexToAddress(issuer)
	if cancelledAt.Valid {
		s.CancelledAt = &cancelledAt.Time
	}
	return &s, nil
}

// Update updates a schedule with optimistic concurrency control
func (r *ScheduleRepository) Update(ctx context.Context, s *vesting.Schedule, expectedVersion int64) error {
	query := `
		UPDATE schedules
		SET percent_available = ?, allocated_total = ?, claimed_total = ?,
		    unclaimed_withdrawn = ?, status = ?, cancelled_at = ?,
		    modified_at = ?, version = ?
		WHERE address = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		s.PercentAvailable,
		int64(s.AllocatedTotal),
		int64(s.ClaimedTotal),
		int64(s.UnclaimedWithdrawn),
		s.Status,
		s.CancelledAt,
		s.ModifiedAt,
		s.Version,
		s.Address.Hex(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM schedules WHERE address = ?)`
		if err := r.db.QueryRowContext(ctx, checkQuery, s.Address.Hex()).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check schedule existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		// Schedule exists but version doesn't match
		return repository.ErrConflict
	}

	return nil
}
