package functional_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/vestledger/internal/address"
	"github.com/rpggio/vestledger/internal/domain/activity"
	"github.com/rpggio/vestledger/internal/domain/vesting"
	"github.com/rpggio/vestledger/internal/testserver"
)

type fixture struct {
	ts     *testserver.TestServer
	issuer testserver.User
	alice  testserver.User
	mint   string
}

// newFixture creates a funded mint and an initialized schedule through the API.
func newFixture(t *testing.T, opts testserver.Options) *fixture {
	t.Helper()
	ts := testserver.New(t, opts)
	f := &fixture{ts: ts, issuer: testserver.NewUser(t), alice: testserver.NewUser(t)}
	f.mint = address.Key(testserver.NewUser(t).Address)

	testserver.Decode(t, ts.Call(t, &f.issuer, "create_mint", map[string]any{"mint": f.mint, "decimals": 2}), &map[string]any{})
	testserver.Decode(t, ts.Call(t, &f.issuer, "mint_to", map[string]any{"mint": f.mint, "to": f.issuer.Address.Hex(), "amount": 5000}), &map[string]any{})
	testserver.Decode(t, ts.Call(t, &f.issuer, "initialize", map[string]any{
		"mint":            f.mint,
		"amount":          1000,
		"decimals":        2,
		"start_timestamp": ts.Clock.Now().Unix(),
		"vesting_months":  1,
	}), &map[string]any{})
	return f
}

func TestFunctional_VestingLifecycle(t *testing.T) {
	f := newFixture(t, testserver.Options{})
	ts := f.ts

	testserver.Decode(t, ts.Call(t, &f.issuer, "allocate", map[string]any{
		"mint":          f.mint,
		"beneficiaries": []map[string]any{{"identity": f.alice.Address.Hex(), "allocated_tokens": 250}},
	}), &[]vesting.Beneficiary{})
	testserver.Decode(t, ts.Call(t, &f.issuer, "release", map[string]any{"mint": f.mint, "percent": 40}), &vesting.Schedule{})

	var view vesting.BeneficiaryView
	testserver.Decode(t, ts.Call(t, nil, "get_beneficiary", map[string]any{"mint": f.mint, "identity": f.alice.Address.Hex()}), &view)
	require.Equal(t, uint64(100), view.Claimable)
	require.Equal(t, "1", view.DisplayClaimable)

	var claim vesting.ClaimResult
	testserver.Decode(t, ts.Call(t, &f.alice, "claim", map[string]any{"mint": f.mint}), &claim)
	require.Equal(t, uint64(100), claim.Amount)

	resp := ts.Call(t, &f.alice, "claim", map[string]any{"mint": f.mint})
	require.Equal(t, "ClaimNotAllowed", testserver.ErrorCode(t, resp))

	var balance struct {
		Balance uint64 `json:"balance"`
	}
	testserver.Decode(t, ts.Call(t, &f.alice, "get_balance", map[string]any{"mint": f.mint}), &balance)
	require.Equal(t, uint64(100), balance.Balance)

	var sched vesting.ScheduleView
	testserver.Decode(t, ts.Call(t, nil, "get_schedule", map[string]any{"mint": f.mint}), &sched)
	require.Equal(t, uint64(100), sched.ClaimedTotal)
	require.Equal(t, uint64(900), sched.Remaining)
	require.Equal(t, vesting.PhaseActive, sched.Phase)
	require.Equal(t, "9", sched.Display.Remaining)

	resp = ts.Call(t, &f.issuer, "withdraw_unclaimed", map[string]any{"mint": f.mint})
	require.Equal(t, "VestingStillActive", testserver.ErrorCode(t, resp))

	var cancel vesting.CancelResult
	testserver.Decode(t, ts.Call(t, &f.issuer, "cancel", map[string]any{"mint": f.mint}), &cancel)
	// Alice already took her whole 40%, so the rest goes back.
	require.Equal(t, uint64(900), cancel.Refunded)

	resp = ts.Call(t, &f.issuer, "release", map[string]any{"mint": f.mint, "percent": 50})
	require.Equal(t, "VestingAlreadyCompleted", testserver.ErrorCode(t, resp))

	var entries []activity.Entry
	testserver.Decode(t, ts.Call(t, nil, "get_activity", map[string]any{"mint": f.mint}), &entries)
	require.Len(t, entries, 5)
	require.Equal(t, activity.TypeCancelled, entries[0].ActivityType)
}

func TestFunctional_Authentication(t *testing.T) {
	f := newFixture(t, testserver.Options{})
	ts := f.ts

	resp := ts.Call(t, nil, "release", map[string]any{"mint": f.mint, "percent": 10})
	require.Equal(t, "UNAUTHENTICATED", testserver.ErrorCode(t, resp))

	resp = ts.Call(t, &f.alice, "release", map[string]any{"mint": f.mint, "percent": 10})
	require.Equal(t, "InvalidSender", testserver.ErrorCode(t, resp))
	require.Equal(t, "authorization", resp.Error.Data.(map[string]any)["category"])

	resp = ts.Call(t, &f.alice, "claim", map[string]any{"mint": f.mint})
	require.Equal(t, "BeneficiaryNotFound", testserver.ErrorCode(t, resp))
}

func TestFunctional_InvalidParams(t *testing.T) {
	f := newFixture(t, testserver.Options{})
	ts := f.ts

	resp := ts.Call(t, &f.issuer, "release", map[string]any{"mint": "nope", "percent": 10})
	require.Equal(t, "INVALID_PARAMS", testserver.ErrorCode(t, resp))

	resp = ts.Call(t, &f.issuer, "initialize", map[string]any{"mint": f.mint, "amount": 1, "decimals": 2, "start_timestamp": 0})
	require.Equal(t, "ScheduleAlreadyExists", testserver.ErrorCode(t, resp))

	resp = ts.Call(t, &f.issuer, "nope", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, -32601, resp.Error.Code)
}

func TestFunctional_DepositCharged(t *testing.T) {
	f := newFixture(t, testserver.Options{BeneficiaryDeposit: 3})
	ts := f.ts

	resp := ts.Call(t, &f.issuer, "allocate", map[string]any{
		"mint":          f.mint,
		"beneficiaries": []map[string]any{{"identity": f.alice.Address.Hex(), "allocated_tokens": 10}},
	})
	require.Equal(t, "InsufficientFunds", testserver.ErrorCode(t, resp))

	ts.FundNative(t, f.issuer.Address, 10)
	testserver.Decode(t, ts.Call(t, &f.issuer, "allocate", map[string]any{
		"mint":          f.mint,
		"beneficiaries": []map[string]any{{"identity": f.alice.Address.Hex(), "allocated_tokens": 10}},
	}), &[]vesting.Beneficiary{})

	var balance struct {
		Balance uint64 `json:"balance"`
	}
	testserver.Decode(t, ts.Call(t, &f.issuer, "get_balance", map[string]any{"mint": "0x0000000000000000000000000000000000000000"}), &balance)
	require.Equal(t, uint64(7), balance.Balance)
}

func TestFunctional_ClaimAfterStart(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	issuer, alice := testserver.NewUser(t), testserver.NewUser(t)
	mint := address.Key(testserver.NewUser(t).Address)
	start := ts.Clock.Now().Add(24 * time.Hour)

	testserver.Decode(t, ts.Call(t, &issuer, "create_mint", map[string]any{"mint": mint, "decimals": 0}), &map[string]any{})
	testserver.Decode(t, ts.Call(t, &issuer, "mint_to", map[string]any{"mint": mint, "to": issuer.Address.Hex(), "amount": 100}), &map[string]any{})
	testserver.Decode(t, ts.Call(t, &issuer, "initialize", map[string]any{"mint": mint, "amount": 100, "decimals": 0, "start_timestamp": start.Unix()}), &map[string]any{})
	testserver.Decode(t, ts.Call(t, &issuer, "allocate", map[string]any{
		"mint": mint, "beneficiaries": []map[string]any{{"identity": alice.Address.Hex(), "allocated_tokens": 100}},
	}), &[]vesting.Beneficiary{})
	testserver.Decode(t, ts.Call(t, &issuer, "release", map[string]any{"mint": mint, "percent": 100}), &map[string]any{})

	resp := ts.Call(t, &alice, "claim", map[string]any{"mint": mint})
	require.Equal(t, "VestingNotStarted", testserver.ErrorCode(t, resp))

	ts.Clock.Set(start)
	var claim vesting.ClaimResult
	testserver.Decode(t, ts.Call(t, &alice, "claim", map[string]any{"mint": mint}), &claim)
	require.Equal(t, uint64(100), claim.Amount)
}
