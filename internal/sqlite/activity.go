package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/vestledger/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db Queryer
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db Queryer) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts a new activity entry
func (r *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	activity.Stamp(entry)
	amount, err := toInt64(entry.Amount)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activity_log (
			id, mint_id, schedule_address, actor, beneficiary,
			activity_type, amount, percent, summary, created_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Mint,
		entry.ScheduleAddress,
		entry.Actor,
		entry.Beneficiary,
		entry.ActivityType,
		amount,
		entry.Percent,
		entry.Summary,
		entry.CreatedAt,
		entry.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// List returns activity entries matching the given filters, newest first
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.Entry, error) {
	query := `
		SELECT
			id, mint_id, schedule_address, actor, beneficiary,
			activity_type, amount, percent, summary, created_at, version
		FROM activity_log
	`

	var args []any
	var conditions []string

	if opts.Mint != "" {
		conditions = append(conditions, "mint_id = ?")
		args = append(args, opts.Mint)
	}
	if opts.Beneficiary != nil {
		conditions = append(conditions, "beneficiary = ?")
		args = append(args, *opts.Beneficiary)
	}
	if opts.ActivityType != nil {
		conditions = append(conditions, "activity_type = ?")
		args = append(args, *opts.ActivityType)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var entry activity.Entry
		var beneficiary sql.NullString
		var createdAt time.Time
		if err := rows.Scan(
			&entry.ID,
			&entry.Mint,
			&entry.ScheduleAddress,
			&entry.Actor,
			&beneficiary,
			&entry.ActivityType,
			&entry.Amount,
			&entry.Percent,
			&entry.Summary,
			&createdAt,
			&entry.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if beneficiary.Valid {
			entry.Beneficiary = &beneficiary.String
		}
		entry.CreatedAt = createdAt
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}
