package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rpggio/vestledger/internal/address"
)

// Scheme is the Authorization header scheme for signature tokens.
const Scheme = "Signature"

var (
	// ErrMalformedToken indicates the token is not address:timestamp:method:signature.
	ErrMalformedToken = errors.New("malformed signature token")
	// ErrWrongMethod indicates the token was signed for a different method.
	ErrWrongMethod = errors.New("signature token is for a different method")
	// ErrBadSignature indicates the signature does not recover to the claimed address.
	ErrBadSignature = errors.New("signature does not match identity")
	// ErrExpiredToken indicates the token timestamp is outside the allowed skew.
	ErrExpiredToken = errors.New("signature token expired")
)

// Verifier proves a caller controls an identity by recovering the signer of a
// short-lived token.
type Verifier struct {
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a verifier accepting tokens within maxSkew of now.
func NewVerifier(maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &Verifier{maxSkew: maxSkew, now: time.Now}
}

// WithClock overrides the verifier's time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// ResolveIdentity verifies a token for method and returns the identity that
// signed it. A token only authorizes the method it was signed for.
func (v *Verifier) ResolveIdentity(_ context.Context, token, method string) (common.Address, error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) != 4 || parts[2] == "" {
		return common.Address{}, ErrMalformedToken
	}

	claimed, err := address.ParseIdentity(parts[0])
	if err != nil {
		return common.Address{}, ErrMalformedToken
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return common.Address{}, ErrMalformedToken
	}
	sig, err := hexutil.Decode(parts[3])
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrMalformedToken
	}

	if parts[2] != method {
		return common.Address{}, ErrWrongMethod
	}

	issued := time.Unix(ts, 0)
	if skew := v.now().Sub(issued); skew > v.maxSkew || skew < -v.maxSkew {
		return common.Address{}, ErrExpiredToken
	}

	// Wallets sign with V in {27, 28}.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message(claimed, ts, method))), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != claimed {
		return common.Address{}, ErrBadSignature
	}
	return claimed, nil
}

// SignToken produces a token for key that authorizes one call of method
// around now.
func SignToken(key *ecdsa.PrivateKey, now time.Time, method string) (string, error) {
	if method == "" || strings.Contains(method, ":") {
		return "", ErrMalformedToken
	}
	identity := crypto.PubkeyToAddress(key.PublicKey)
	ts := now.Unix()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message(identity, ts, method))), key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return fmt.Sprintf("%s:%d:%s:%s", address.Key(identity), ts, method, hexutil.Encode(sig)), nil
}

// Header renders a token as an Authorization header value.
func Header(token string) string {
	return Scheme + " " + token
}

// TokenFromHeader strips the scheme from an Authorization header value.
func TokenFromHeader(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, Scheme+" ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(value, Scheme+" "))
	return token, token != ""
}

func message(identity common.Address, ts int64, method string) string {
	return fmt.Sprintf("vesting-auth:%s:%d:%s", address.Key(identity), ts, method)
}
