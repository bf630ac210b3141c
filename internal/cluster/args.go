package cluster

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/model"
)

// ArgKind tags one entry of a computation's ordered argument list. The list
// order is the circuit ABI: reordering it silently corrupts every dispatch,
// so arguments are built only through the typed constructors below.
type ArgKind string

const (
	ArgPublicKey     ArgKind = "public_key"
	ArgPlaintextU128 ArgKind = "plaintext_u128"
	ArgEncryptedU64  ArgKind = "encrypted_u64"
)

type Argument struct {
	Kind       ArgKind
	PublicKey  crypto.PublicKey
	U128       model.Nonce
	Ciphertext model.Ciphertext
}

func PublicKeyArg(pk crypto.PublicKey) Argument {
	return Argument{Kind: ArgPublicKey, PublicKey: pk}
}

func PlaintextU128(n model.Nonce) Argument {
	return Argument{Kind: ArgPlaintextU128, U128: n}
}

func EncryptedU64(ct model.Ciphertext) Argument {
	return Argument{Kind: ArgEncryptedU64, Ciphertext: ct}
}

// CallbackAccount declares a record the callback is allowed to touch.
type CallbackAccount struct {
	Address  model.Address
	Writable bool
}

// EncryptedResult is a computation's output bundle, still encrypted under
// the requester's context. Position 0 carries the execute flag, position 1
// the withdraw amount; the positional mapping is part of the callback ABI.
type EncryptedResult struct {
	Ciphertexts []model.Ciphertext `json:"ciphertexts"`
	Nonce       model.Nonce        `json:"nonce"`
}

// ComputationOutput is what the cluster hands the registered callback:
// either a successful result or an abort with no payload.
type ComputationOutput struct {
	ComputationOffset uint64
	Aborted           bool
	Result            *EncryptedResult
}

// Callback is the orchestrator entry point the cluster invokes when a
// computation settles. It runs on a cluster worker goroutine.
type Callback func(out ComputationOutput) error

// CompDefOffset derives the stable identifier a circuit is registered under.
func CompDefOffset(name string) uint32 {
	digest := ethcrypto.Keccak256([]byte(name))
	return binary.LittleEndian.Uint32(digest[:4])
}

// validateArgs checks the dispatch ABI shape: one requester public key, one
// context nonce, then only ciphertext arguments.
func validateArgs(args []Argument) error {
	if len(args) < 3 {
		return fmt.Errorf("argument list too short: got %d, want at least 3", len(args))
	}
	if args[0].Kind != ArgPublicKey {
		return fmt.Errorf("argument 0 must be %s, got %s", ArgPublicKey, args[0].Kind)
	}
	if args[1].Kind != ArgPlaintextU128 {
		return fmt.Errorf("argument 1 must be %s, got %s", ArgPlaintextU128, args[1].Kind)
	}
	for i, arg := range args[2:] {
		if arg.Kind != ArgEncryptedU64 {
			return fmt.Errorf("argument %d must be %s, got %s", i+2, ArgEncryptedU64, arg.Kind)
		}
	}
	return nil
}
