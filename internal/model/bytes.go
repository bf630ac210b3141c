package model

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Ciphertext is a 32-byte opaque encrypted value. The gateway never looks
// inside one; it only moves them between the client, the store and the
// cluster.
type Ciphertext [32]byte

func CiphertextFromHex(s string) (Ciphertext, error) {
	var ct Ciphertext
	raw, err := hexutil.Decode(s)
	if err != nil {
		return ct, fmt.Errorf("invalid ciphertext: %w", err)
	}
	if len(raw) != len(ct) {
		return ct, fmt.Errorf("invalid ciphertext length: got %d, want %d", len(raw), len(ct))
	}
	copy(ct[:], raw)
	return ct, nil
}

func CiphertextFromBytes(b []byte) (Ciphertext, error) {
	var ct Ciphertext
	if len(b) != len(ct) {
		return ct, fmt.Errorf("invalid ciphertext length: got %d, want %d", len(b), len(ct))
	}
	copy(ct[:], b)
	return ct, nil
}

func (c Ciphertext) Hex() string {
	return hexutil.Encode(c[:])
}

func (c Ciphertext) Bytes() []byte {
	out := make([]byte, len(c))
	copy(out, c[:])
	return out
}

func (c Ciphertext) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.Hex() + `"`), nil
}

func (c *Ciphertext) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("ciphertext must be a hex string")
	}
	ct, err := CiphertextFromHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

func (c Ciphertext) Value() (driver.Value, error) {
	return c.Bytes(), nil
}

func (c *Ciphertext) Scan(src interface{}) error {
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Ciphertext", src)
	}
	ct, err := CiphertextFromBytes(raw)
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

// Nonce is a little-endian u128 encryption nonce shared between the
// requester and the cluster.
type Nonce [16]byte

func NonceFromUint64(v uint64) Nonce {
	var n Nonce
	binary.LittleEndian.PutUint64(n[:8], v)
	return n
}

func NonceFromHex(s string) (Nonce, error) {
	var n Nonce
	raw, err := hexutil.Decode(s)
	if err != nil {
		return n, fmt.Errorf("invalid nonce: %w", err)
	}
	if len(raw) != len(n) {
		return n, fmt.Errorf("invalid nonce length: got %d, want %d", len(raw), len(n))
	}
	copy(n[:], raw)
	return n, nil
}

func (n Nonce) Hex() string {
	return hexutil.Encode(n[:])
}

func (n Nonce) Bytes() []byte {
	out := make([]byte, len(n))
	copy(out, n[:])
	return out
}

func (n Nonce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + n.Hex() + `"`), nil
}

func (n *Nonce) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("nonce must be a hex string")
	}
	nn, err := NonceFromHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*n = nn
	return nil
}

// Address is a 32-byte identity or derived record address.
type Address [32]byte

func AddressFromHex(s string) (Address, error) {
	var a Address
	raw, err := hexutil.Decode(s)
	if err != nil {
		return a, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("invalid address length: got %d, want %d", len(raw), len(a))
	}
	copy(a[:], raw)
	return a, nil
}

func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address length: got %d, want %d", len(b), len(a))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) Hex() string {
	return hexutil.Encode(a[:])
}

func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.Hex() + `"`), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("address must be a hex string")
	}
	aa, err := AddressFromHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = aa
	return nil
}

func (a Address) Value() (driver.Value, error) {
	return a.Bytes(), nil
}

func (a *Address) Scan(src interface{}) error {
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Address", src)
	}
	aa, err := AddressFromBytes(raw)
	if err != nil {
		return err
	}
	*a = aa
	return nil
}
