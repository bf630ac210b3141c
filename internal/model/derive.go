package model

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// Record addresses are derived deterministically from a fixed seed string and
// the owning identity, the same idea as the ledger's seeded account
// derivation. The seed strings are part of the storage layout and must not
// change.
const (
	SeedLimitConfig = "limit_data"
	SeedSwapState   = "swap_state"
)

// DeriveLimitAddress returns the storage address of an owner's LimitConfig.
// Exactly one config exists per owner.
func DeriveLimitAddress(owner Address) Address {
	var out Address
	copy(out[:], crypto.Keccak256([]byte(SeedLimitConfig), owner[:]))
	return out
}

// DeriveSwapAddress returns the storage address of a swap record, keyed by
// the user identity and the caller-chosen computation offset.
func DeriveSwapAddress(user Address, computationOffset uint64) Address {
	var off [8]byte
	binary.LittleEndian.PutUint64(off[:], computationOffset)
	var out Address
	copy(out[:], crypto.Keccak256([]byte(SeedSwapState), user[:], off[:]))
	return out
}
