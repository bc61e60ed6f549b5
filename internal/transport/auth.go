package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rpggio/vestledger/internal/auth"
)

// ErrUnauthorized indicates invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// maxRPCBody caps how much of a request body is buffered to read its method.
const maxRPCBody = 1 << 20

type identityKey struct{}

// IdentityResolver proves the identity behind a signature token signed for method.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token, method string) (common.Address, error)
}

// IdentityFromContext returns the caller identity from context, if present.
func IdentityFromContext(ctx context.Context) (common.Address, bool) {
	identity, ok := ctx.Value(identityKey{}).(common.Address)
	return identity, ok
}

// IdentityMiddleware verifies signature tokens on JSON-RPC requests against
// the method named in the body. Requests without an Authorization header pass
// through anonymously; a bad token is rejected.
func IdentityMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := auth.TokenFromHeader(header)
			if !ok {
				http.Error(w, "expected "+auth.Scheme+" authorization", http.StatusUnauthorized)
				return
			}

			method, err := peekMethod(w, r)
			if err != nil {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			identity, err := resolver.ResolveIdentity(r.Context(), token, method)
			if err != nil {
				http.Error(w, "invalid signature token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// peekMethod reads the JSON-RPC method and restores the body for the handler.
// An undecodable body yields an empty method, which no token is signed for.
func peekMethod(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRPCBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var envelope struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(body, &envelope)
	return envelope.Method, nil
}
