package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxListLimit = 500

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an entry, filling in the ID and timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Mint == "" {
		return ErrInvalidInput
	}
	Stamp(entry)
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// GetRecentActivity lists activity entries with filtering.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]Entry, error) {
	if opts.Limit <= 0 || opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.List(ctx, opts)
}

// Stamp assigns an ID and creation time to an entry that lacks them.
func Stamp(entry *Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
}
