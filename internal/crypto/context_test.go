package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whisprlabs/whisprgate/internal/model"
)

func TestSharedCipherAgreement(t *testing.T) {
	client, err := GenerateKeyPair()
	assert.NoError(t, err)
	cluster, err := GenerateKeyPair()
	assert.NoError(t, err)

	clientSide, err := client.SharedCipher(cluster.PublicKey())
	assert.NoError(t, err)
	clusterSide, err := cluster.SharedCipher(client.PublicKey())
	assert.NoError(t, err)

	nonce := model.NonceFromUint64(7)
	cts, err := clientSide.Encrypt([]uint64{100, 150}, nonce)
	assert.NoError(t, err)
	assert.Len(t, cts, 2)

	values, err := clusterSide.Decrypt(cts, nonce)
	assert.NoError(t, err)
	assert.Equal(t, []uint64{100, 150}, values)
}

func TestEncryptBlockOrderMatters(t *testing.T) {
	client, _ := GenerateKeyPair()
	cluster, _ := GenerateKeyPair()
	cipher, _ := client.SharedCipher(cluster.PublicKey())

	nonce := model.NonceFromUint64(1)
	cts, err := cipher.Encrypt([]uint64{5, 5}, nonce)
	assert.NoError(t, err)
	// Same plaintext, different keystream block
	assert.NotEqual(t, cts[0], cts[1])
}

func TestDecryptRejectsForeignCiphertext(t *testing.T) {
	client, _ := GenerateKeyPair()
	cluster, _ := GenerateKeyPair()
	stranger, _ := GenerateKeyPair()

	cipher, _ := client.SharedCipher(cluster.PublicKey())
	wrong, _ := stranger.SharedCipher(cluster.PublicKey())

	nonce := model.NonceFromUint64(42)
	cts, err := cipher.Encrypt([]uint64{12345}, nonce)
	assert.NoError(t, err)

	_, err = wrong.Decrypt(cts, nonce)
	assert.Error(t, err)
}

func TestEncryptDeterministic(t *testing.T) {
	client, _ := GenerateKeyPair()
	cluster, _ := GenerateKeyPair()
	cipher, _ := client.SharedCipher(cluster.PublicKey())

	nonce := model.NonceFromUint64(9)
	a, err := cipher.Encrypt([]uint64{77}, nonce)
	assert.NoError(t, err)
	b, err := cipher.Encrypt([]uint64{77}, nonce)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}
