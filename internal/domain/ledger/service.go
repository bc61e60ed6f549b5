package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/repository"
)

// Service handles token ledger operations.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new ledger service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// CreateMintRequest describes a new token type.
type CreateMintRequest struct {
	Caller   common.Address
	ID       common.Address
	Decimals uint8
}

// MintToRequest describes a supply increase credited to an owner.
type MintToRequest struct {
	Caller common.Address
	Mint   common.Address
	To     common.Address
	Amount uint64
}

// TransferRequest describes a user-signed transfer.
type TransferRequest struct {
	Caller common.Address
	Mint   common.Address
	To     common.Address
	Amount uint64
}

// CreateMint registers a token type with the caller as mint authority.
func (s *Service) CreateMint(ctx context.Context, req CreateMintRequest) (*Mint, error) {
	if req.ID == NativeMint {
		return nil, ErrMintExists
	}
	mint := &Mint{
		ID:        req.ID,
		Decimals:  req.Decimals,
		Authority: req.Caller,
		CreatedAt: time.Now(),
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.CreateMint(ctx, mint); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return ErrMintExists
			}
			return fmt.Errorf("creating mint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("mint created", zap.String("mint", address.Key(mint.ID)), zap.Uint8("decimals", mint.Decimals))
	return mint, nil
}

// EnsureMint creates a mint if it does not exist yet. Used to bootstrap the
// native credits mint at startup.
func (s *Service) EnsureMint(ctx context.Context, id common.Address, decimals uint8, authority common.Address) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		_, err := repo.GetMint(ctx, id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("loading mint: %w", err)
		}
		return repo.CreateMint(ctx, &Mint{ID: id, Decimals: decimals, Authority: authority, CreatedAt: time.Now()})
	})
}

// MintTo increases supply and credits the recipient. Only the mint authority may call it.
func (s *Service) MintTo(ctx context.Context, req MintToRequest) (*Account, error) {
	if req.Amount == 0 || req.Amount > math.MaxInt64 {
		return nil, ErrInvalidAmount
	}
	owner := address.Key(req.To)
	var account *Account
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		mint, err := loadMint(ctx, repo, req.Mint)
		if err != nil {
			return err
		}
		if mint.Authority != req.Caller {
			return ErrNotMintAuthority
		}
		if mint.Supply > math.MaxInt64-req.Amount {
			return ErrInvalidAmount
		}
		if err := repo.AddSupply(ctx, req.Mint, req.Amount); err != nil {
			return fmt.Errorf("adding supply: %w", err)
		}
		if err := repo.OpenAccount(ctx, req.Mint, owner, owner); err != nil {
			return fmt.Errorf("opening account: %w", err)
		}
		if err := repo.Credit(ctx, req.Mint, owner, req.Amount); err != nil {
			return fmt.Errorf("crediting account: %w", err)
		}
		account, err = repo.GetAccount(ctx, req.Mint, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tokens minted", zap.String("mint", address.Key(req.Mint)), zap.String("to", owner), zap.Uint64("amount", req.Amount))
	return account, nil
}

// Transfer moves tokens out of the caller's own account.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) error {
	from := address.Key(req.Caller)
	return s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := loadMint(ctx, repo, req.Mint); err != nil {
			return err
		}
		return Transfer(ctx, repo, req.Mint, from, address.Key(req.To), req.Amount, from)
	})
}

// GetMint returns a token type.
func (s *Service) GetMint(ctx context.Context, id common.Address) (*Mint, error) {
	return loadMint(ctx, s.store.Reader(), id)
}

// Balance returns the balance of owner for mint. Missing accounts hold zero.
func (s *Service) Balance(ctx context.Context, mint common.Address, owner string) (uint64, error) {
	account, err := s.store.Reader().GetAccount(ctx, mint, owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting account: %w", err)
	}
	return account.Balance, nil
}

func loadMint(ctx context.Context, repo Repository, id common.Address) (*Mint, error) {
	mint, err := repo.GetMint(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMintNotFound
		}
		return nil, fmt.Errorf("getting mint: %w", err)
	}
	return mint, nil
}
