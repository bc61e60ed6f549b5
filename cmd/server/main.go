package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/auth"
	"github.com/rpggio/vestledger/internal/config"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
	"github.com/rpggio/vestledger/internal/logging"
	"github.com/rpggio/vestledger/internal/mcp"
	"github.com/rpggio/vestledger/internal/sqlite"
	"github.com/rpggio/vestledger/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Path:   cfg.Log.Path,
		Stderr: cfg.Transport.Mode == "stdio",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "log error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
		_ = closeLog()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	nativeAuthority, err := optionalIdentity(cfg.Ledger.NativeAuthority)
	if err != nil {
		return fmt.Errorf("ledger.native_authority: %w", err)
	}
	localIdentity, err := optionalIdentity(cfg.MCP.LocalIdentity)
	if err != nil {
		return fmt.Errorf("mcp.local_identity: %w", err)
	}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return err
	}

	ledgerSvc := ledger.NewService(sqlite.NewLedgerStore(db), logger.Named("ledger"))
	vestingSvc := vesting.NewService(sqlite.NewVestingStore(db), vesting.SystemClock{}, vesting.Options{
		DefaultMonths:      cfg.Vesting.DefaultMonths,
		BeneficiaryDeposit: cfg.Vesting.BeneficiaryDeposit,
	}, logger.Named("vesting"))
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger.Named("activity"))

	if err := ledgerSvc.EnsureMint(context.Background(), ledger.NativeMint, ledger.NativeDecimals, nativeAuthority); err != nil {
		return fmt.Errorf("bootstrap native mint: %w", err)
	}

	handler := mcp.NewHandler(ledgerSvc, vestingSvc, activitySvc)
	verifier := auth.NewVerifier(cfg.Auth.MaxSkew)

	mcpServer := mcp.NewServer(mcp.Config{
		Handler:       handler,
		Resolver:      verifier,
		TransportMode: cfg.Transport.Mode,
		LocalIdentity: localIdentity,
		Logger:        logger.Named("mcp"),
	})

	// Branch based on transport mode
	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(logger, mcpServer, localIdentity)
	}
	return runHTTPMode(logger, handler, verifier, mcpServer, cfg.Server.Host, cfg.Server.Port)
}

func runStdioMode(logger *zap.Logger, mcpServer *sdkmcp.Server, identity common.Address) error {
	logger.Info("starting stdio transport", zap.String("identity", address.Key(identity)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTPMode(logger *zap.Logger, handler *mcp.Handler, verifier *auth.Verifier, mcpServer *sdkmcp.Server, host string, port int) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := transport.NewServer(handler, transport.Options{
		Auth:   transport.IdentityMiddleware(verifier),
		MCP:    mcpHandler,
		Logger: logger.Named("http"),
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return httpServer.Shutdown(ctx)
}

func optionalIdentity(raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, nil
	}
	return address.ParseIdentity(raw)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
