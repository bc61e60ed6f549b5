package mcp

import (
	"github.com/ethereum/go-ethereum/common"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Config contains server configuration.
type Config struct {
	Handler       *Handler
	Resolver      IdentityResolver
	TransportMode string // "stdio" or "http"
	LocalIdentity common.Address
	Logger        *zap.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "vestledger",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
	})

	registerDocResources(server)

	// The last middleware added runs first, so identity is resolved before traffic is logged.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))
	// Stdio mode: the local identity signs everything.
	if cfg.TransportMode == "stdio" || cfg.Resolver == nil {
		server.AddReceivingMiddleware(localIdentityMiddleware(cfg.LocalIdentity))
	} else {
		server.AddReceivingMiddleware(signatureMiddleware(cfg.Resolver))
	}

	registerTools(server, cfg.Handler, logger)

	return server
}
