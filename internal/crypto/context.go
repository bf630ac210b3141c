package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/whisprlabs/whisprgate/internal/model"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"
)

// PublicKey is an x25519 public key identifying one side of an encryption
// context.
type PublicKey [32]byte

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != len(pk) {
		return pk, fmt.Errorf("invalid public key length: got %d, want %d", len(b), len(pk))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p PublicKey) Bytes() []byte {
	out := make([]byte, len(p))
	copy(out, p[:])
	return out
}

// KeyPair is one side of a shared encryption context: the requester on one
// end, the cluster on the other.
type KeyPair struct {
	priv [32]byte
	pub  PublicKey
}

func GenerateKeyPair() (*KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewKeyPair(priv)
}

func NewKeyPair(priv [32]byte) (*KeyPair, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	kp := &KeyPair{priv: priv}
	copy(kp.pub[:], pub)
	return kp, nil
}

func (k *KeyPair) PublicKey() PublicKey {
	return k.pub
}

// PrivateKeyBytes returns a copy of the private scalar. Callers own the
// copy and should zero it when done.
func (k *KeyPair) PrivateKeyBytes() []byte {
	out := make([]byte, len(k.priv))
	copy(out, k.priv[:])
	return out
}

// SharedCipher derives the symmetric cipher both ends of the context agree
// on. Either side calls it with the other side's public key and gets the
// same cipher.
func (k *KeyPair) SharedCipher(peer PublicKey) (*Cipher, error) {
	secret, err := curve25519.X25519(k.priv[:], peer[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}
	c := &Cipher{}
	copy(c.key[:], secret)
	return c, nil
}

// Cipher encrypts sequences of u64 values into 32-byte ciphertext blocks
// under a shared key and a per-message nonce. One keystream covers the whole
// sequence, one block per value, so block order is part of the wire format.
type Cipher struct {
	key [32]byte
}

const blockSize = 32

// Encrypt maps each value to one ciphertext block. Deterministic for a given
// (key, nonce, values) triple.
func (c *Cipher) Encrypt(values []uint64, nonce model.Nonce) ([]model.Ciphertext, error) {
	stream, err := c.keystream(nonce, len(values))
	if err != nil {
		return nil, err
	}
	out := make([]model.Ciphertext, len(values))
	for i, v := range values {
		var block [blockSize]byte
		binary.LittleEndian.PutUint64(block[:8], v)
		for j := 0; j < blockSize; j++ {
			out[i][j] = block[j] ^ stream[i*blockSize+j]
		}
	}
	return out, nil
}

// Decrypt reverses Encrypt. A block whose padding does not come out zero was
// not produced under this context and is rejected.
func (c *Cipher) Decrypt(cts []model.Ciphertext, nonce model.Nonce) ([]uint64, error) {
	stream, err := c.keystream(nonce, len(cts))
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(cts))
	for i, ct := range cts {
		var block [blockSize]byte
		for j := 0; j < blockSize; j++ {
			block[j] = ct[j] ^ stream[i*blockSize+j]
		}
		for j := 8; j < blockSize; j++ {
			if block[j] != 0 {
				return nil, fmt.Errorf("malformed ciphertext at position %d", i)
			}
		}
		out[i] = binary.LittleEndian.Uint64(block[:8])
	}
	return out, nil
}

func (c *Cipher) keystream(nonce model.Nonce, blocks int) ([]byte, error) {
	// XChaCha20 takes a 24-byte nonce; the context nonce is a u128, so the
	// remaining 8 bytes stay zero.
	var xnonce [chacha20.NonceSizeX]byte
	copy(xnonce[:], nonce[:])
	cipher, err := chacha20.NewUnauthenticatedCipher(c.key[:], xnonce[:])
	if err != nil {
		return nil, fmt.Errorf("failed to build keystream: %w", err)
	}
	stream := make([]byte, blocks*blockSize)
	cipher.XORKeyStream(stream, stream)
	return stream, nil
}

// RandomNonce draws a fresh u128 nonce for one message.
func RandomNonce() (model.Nonce, error) {
	var n model.Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return n, nil
}
