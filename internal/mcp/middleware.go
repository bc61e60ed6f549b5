package mcp

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/vestledger/internal/auth"
)

type contextKey int

const identityKey contextKey = iota

// getIdentity extracts the caller identity from context. Anonymous callers get the zero address.
func getIdentity(ctx context.Context) common.Address {
	v, _ := ctx.Value(identityKey).(common.Address)
	return v
}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, identity common.Address) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityResolver proves the identity behind a signature token signed for method.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token, method string) (common.Address, error)
}

// signatureMiddleware resolves the caller from the Authorization header.
// Requests without the header stay anonymous and can only read. Tool calls
// need a token signed for the tool name; other requests for the MCP method.
func signatureMiddleware(resolver IdentityResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return next(ctx, method, req)
			}
			header := extra.Header.Get("Authorization")
			if header == "" {
				return next(ctx, method, req)
			}

			token, ok := auth.TokenFromHeader(header)
			if !ok {
				return nil, fmt.Errorf("unauthorized: expected %s scheme", auth.Scheme)
			}
			identity, err := resolver.ResolveIdentity(ctx, token, tokenScope(method, req))
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			return next(WithIdentity(ctx, identity), method, req)
		}
	}
}

// tokenScope is the method a token must be signed for.
func tokenScope(method string, req sdkmcp.Request) string {
	if call, ok := req.(*sdkmcp.CallToolRequest); ok && call.Params != nil {
		return call.Params.Name
	}
	return method
}

// localIdentityMiddleware acts as a fixed identity. Stdio only: the process
// owner is the caller.
func localIdentityMiddleware(identity common.Address) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(WithIdentity(ctx, identity), method, req)
		}
	}
}
