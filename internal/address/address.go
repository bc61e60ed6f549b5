package address

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Seed tags. Changing any of these moves every derived record.
const (
	TagSchedule    = "schedule"
	TagEscrow      = "escrow"
	TagBeneficiary = "beneficiary"
	TagDeposit     = "deposit"
)

// ErrInvalidIdentity indicates a string is not a 20-byte hex address.
var ErrInvalidIdentity = errors.New("invalid identity address")

// Derive hashes a tag and its seeds into a deterministic address.
// Every component is length-prefixed, so ("ab","c") and ("a","bc") never collide.
func Derive(tag string, seeds ...[]byte) common.Hash {
	parts := make([][]byte, 0, 2*(len(seeds)+1))
	parts = append(parts, lengthPrefix(len(tag)), []byte(tag))
	for _, seed := range seeds {
		parts = append(parts, lengthPrefix(len(seed)), seed)
	}
	return crypto.Keccak256Hash(parts...)
}

// Schedule returns the schedule record address for a token type.
func Schedule(mint common.Address) common.Hash {
	return Derive(TagSchedule, mint.Bytes())
}

// Escrow returns the vault account address for a token type.
func Escrow(mint common.Address) common.Hash {
	return Derive(TagEscrow, mint.Bytes())
}

// Beneficiary returns the beneficiary record address under a schedule.
func Beneficiary(schedule common.Hash, identity common.Address) common.Hash {
	return Derive(TagBeneficiary, schedule.Bytes(), identity.Bytes())
}

// Deposit returns the account holding a beneficiary record's storage deposit.
func Deposit(beneficiary common.Hash) common.Hash {
	return Derive(TagDeposit, beneficiary.Bytes())
}

// ParseIdentity parses a 0x-prefixed hex address.
func ParseIdentity(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidIdentity
	}
	return common.HexToAddress(s), nil
}

// Key renders an address the way ledger owners and authorities are stored.
func Key(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func lengthPrefix(n int) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	return buf[:]
}
