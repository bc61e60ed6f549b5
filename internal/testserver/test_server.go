// Package testserver runs the full service stack over in-memory SQLite for
// scenario tests.
package testserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rpggio/vestledger/internal/auth"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/ledger"
	"github.com/rpggio/vestledger/internal/domain/vesting"
	"github.com/rpggio/vestledger/internal/mcp"
	"github.com/rpggio/vestledger/internal/sqlite"
	"github.com/rpggio/vestledger/internal/transport"
)

// Clock is a settable vesting clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Options tunes the stack under test.
type Options struct {
	BeneficiaryDeposit uint64
	Start              time.Time
}

// Env is the service stack without a network listener.
type Env struct {
	DB       *sqlite.DB
	Clock    *Clock
	Ledger   *ledger.Service
	Vesting  *vesting.Service
	Activity *activity.Service
	Handler  *mcp.Handler

	// NativeAuthority may mint deposit credits.
	NativeAuthority common.Address
}

// NewEnv opens a fresh in-memory database named after the test and wires
// the services over it.
func NewEnv(t *testing.T, opts Options) *Env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	start := opts.Start
	if start.IsZero() {
		start = time.Unix(1_700_000_000, 0)
	}
	clock := &Clock{now: start}
	logger := zaptest.NewLogger(t)

	ledgerSvc := ledger.NewService(sqlite.NewLedgerStore(db), logger)
	vestingSvc := vesting.NewService(sqlite.NewVestingStore(db), clock, vesting.Options{
		BeneficiaryDeposit: opts.BeneficiaryDeposit,
	}, logger)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)

	nativeAuthority := randomAddress()
	require.NoError(t, ledgerSvc.EnsureMint(context.Background(), ledger.NativeMint, ledger.NativeDecimals, nativeAuthority))

	return &Env{
		DB:              db,
		Clock:           clock,
		Ledger:          ledgerSvc,
		Vesting:         vestingSvc,
		Activity:        activitySvc,
		Handler:         mcp.NewHandler(ledgerSvc, vestingSvc, activitySvc),
		NativeAuthority: nativeAuthority,
	}
}

// FundNative mints deposit credits to identity.
func (e *Env) FundNative(t *testing.T, identity common.Address, amount uint64) {
	t.Helper()
	_, err := e.Ledger.MintTo(context.Background(), ledger.MintToRequest{
		Caller: e.NativeAuthority,
		Mint:   ledger.NativeMint,
		To:     identity,
		Amount: amount,
	})
	require.NoError(t, err)
}

// CreateFundedMint creates a token type owned by issuer and mints supply to it.
func (e *Env) CreateFundedMint(t *testing.T, issuer common.Address, decimals uint8, supply uint64) common.Address {
	t.Helper()
	ctx := context.Background()
	id := randomAddress()
	_, err := e.Ledger.CreateMint(ctx, ledger.CreateMintRequest{Caller: issuer, ID: id, Decimals: decimals})
	require.NoError(t, err)
	_, err = e.Ledger.MintTo(ctx, ledger.MintToRequest{Caller: issuer, Mint: id, To: issuer, Amount: supply})
	require.NoError(t, err)
	return id
}

func randomAddress() common.Address {
	id := uuid.New()
	return common.BytesToAddress(id[:])
}

// TestServer serves the JSON-RPC endpoint over HTTP with signature auth.
type TestServer struct {
	*Env
	Server *httptest.Server
}

// New starts an HTTP server over a fresh Env.
func New(t *testing.T, opts Options) *TestServer {
	t.Helper()
	env := NewEnv(t, opts)

	verifier := auth.NewVerifier(time.Minute)
	server := httptest.NewServer(transport.NewServer(env.Handler, transport.Options{
		Auth:   transport.IdentityMiddleware(verifier),
		Logger: zaptest.NewLogger(t),
	}))
	t.Cleanup(server.Close)

	return &TestServer{Env: env, Server: server}
}

// User is a client identity holding its signing key.
type User struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewUser generates a fresh identity.
func NewUser(t *testing.T) User {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return User{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Call posts a JSON-RPC request signed by user. A nil user calls anonymously.
func (ts *TestServer) Call(t *testing.T, user *User, method string, params any) transport.Response {
	t.Helper()

	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  method,
	}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := auth.SignToken(user.Key, time.Now(), method)
		require.NoError(t, err)
		req.Header.Set("Authorization", auth.Header(token))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transport.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// Decode re-marshals a JSON-RPC result into out.
func Decode(t *testing.T, resp transport.Response, out any) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

// ErrorCode extracts the domain code from a JSON-RPC error.
func ErrorCode(t *testing.T, resp transport.Response) string {
	t.Helper()
	require.NotNil(t, resp.Error, "expected rpc error")
	data, ok := resp.Error.Data.(map[string]any)
	require.True(t, ok, "error without data: %+v", resp.Error)
	code, _ := data["code"].(string)
	return code
}
