package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/vestledger/internal/address"
)

func TestVerifier_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	token, err := SignToken(key, now, "claim")
	require.NoError(t, err)

	v := NewVerifier(time.Minute).WithClock(func() time.Time { return now.Add(10 * time.Second) })
	identity, err := v.ResolveIdentity(context.Background(), token, "claim")
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), identity)
}

func TestVerifier_Expired(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	token, err := SignToken(key, now, "claim")
	require.NoError(t, err)

	v := NewVerifier(time.Minute).WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	_, err = v.ResolveIdentity(context.Background(), token, "claim")
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifier_WrongSigner(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	token, err := SignToken(signer, now, "claim")
	require.NoError(t, err)

	// Keep the signature, claim someone else's identity.
	parts := strings.Split(token, ":")
	require.Len(t, parts, 4)
	forged := fmt.Sprintf("%s:%s:%s:%s", address.Key(crypto.PubkeyToAddress(other.PublicKey)), parts[1], parts[2], parts[3])

	v := NewVerifier(time.Minute).WithClock(func() time.Time { return now })
	_, err = v.ResolveIdentity(context.Background(), forged, "claim")
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifier_TokenBoundToMethod(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(time.Minute).WithClock(func() time.Time { return now })

	token, err := SignToken(key, now, "get_schedule")
	require.NoError(t, err)

	// Replaying a read token for a write is refused.
	_, err = v.ResolveIdentity(context.Background(), token, "withdraw_unclaimed")
	require.ErrorIs(t, err, ErrWrongMethod)

	// Rewriting the method in the clear breaks the signature.
	parts := strings.Split(token, ":")
	parts[2] = "withdraw_unclaimed"
	_, err = v.ResolveIdentity(context.Background(), strings.Join(parts, ":"), "withdraw_unclaimed")
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestSignToken_RejectsBadMethod(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	for _, method := range []string{"", "a:b"} {
		_, err := SignToken(key, time.Now(), method)
		require.ErrorIs(t, err, ErrMalformedToken, method)
	}
}

func TestVerifier_Malformed(t *testing.T) {
	v := NewVerifier(time.Minute)
	for _, token := range []string{"", "abc", "0x01:1:claim:0x00", "nothex:1:claim:0x00:extra", "0x01:1::0x00"} {
		_, err := v.ResolveIdentity(context.Background(), token, "claim")
		require.ErrorIs(t, err, ErrMalformedToken, token)
	}
}

func TestTokenFromHeader(t *testing.T) {
	token, ok := TokenFromHeader(Header("a:1:claim:0x00"))
	require.True(t, ok)
	require.Equal(t, "a:1:claim:0x00", token)

	_, ok = TokenFromHeader("Bearer abc")
	require.False(t, ok)
}
