package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
)

type callbackRecorder struct {
	mu   sync.Mutex
	outs []ComputationOutput
	ch   chan ComputationOutput
}

func newCallbackRecorder() *callbackRecorder {
	return &callbackRecorder{ch: make(chan ComputationOutput, 16)}
}

func (r *callbackRecorder) callback(out ComputationOutput) error {
	r.mu.Lock()
	r.outs = append(r.outs, out)
	r.mu.Unlock()
	r.ch <- out
	return nil
}

func (r *callbackRecorder) wait(t *testing.T) ComputationOutput {
	t.Helper()
	select {
	case out := <-r.ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
		return ComputationOutput{}
	}
}

func sumCircuit(inputs []uint64) []uint64 {
	var total uint64
	for _, v := range inputs {
		total += v
	}
	return []uint64{total}
}

func newTestExecutor(t *testing.T) (*Executor, *crypto.KeyPair) {
	t.Helper()
	keys, err := crypto.GenerateKeyPair()
	assert.NoError(t, err)
	exec := NewExecutor(keys, NewMemoryRegistry(), 16)
	exec.Start(2)
	t.Cleanup(exec.Stop)
	return exec, keys
}

func encryptArgs(t *testing.T, clusterPub crypto.PublicKey, nonce model.Nonce, values ...uint64) ([]Argument, *crypto.Cipher) {
	t.Helper()
	client, err := crypto.GenerateKeyPair()
	assert.NoError(t, err)
	cipher, err := client.SharedCipher(clusterPub)
	assert.NoError(t, err)
	cts, err := cipher.Encrypt(values, nonce)
	assert.NoError(t, err)

	args := []Argument{PublicKeyArg(client.PublicKey()), PlaintextU128(nonce)}
	for _, ct := range cts {
		args = append(args, EncryptedU64(ct))
	}
	return args, cipher
}

func TestExecutorRoundTrip(t *testing.T) {
	exec, _ := newTestExecutor(t)
	rec := newCallbackRecorder()
	assert.NoError(t, exec.InitCompDef("sum", sumCircuit, rec.callback))

	nonce := model.NonceFromUint64(11)
	args, cipher := encryptArgs(t, exec.ClusterPublicKey(), nonce, 40, 2)

	err := exec.QueueComputation(context.Background(), "sum", 1, args, []CallbackAccount{{Address: model.Address{1}, Writable: true}})
	assert.NoError(t, err)

	out := rec.wait(t)
	assert.False(t, out.Aborted)
	assert.Equal(t, uint64(1), out.ComputationOffset)
	assert.Len(t, out.Result.Ciphertexts, 1)

	// Result comes back under the same context with the result's own nonce
	assert.NotEqual(t, nonce, out.Result.Nonce)
	values, err := cipher.Decrypt(out.Result.Ciphertexts, out.Result.Nonce)
	assert.NoError(t, err)
	assert.Equal(t, []uint64{42}, values)
}

func TestExecutorUnknownCompDef(t *testing.T) {
	exec, _ := newTestExecutor(t)

	nonce := model.NonceFromUint64(1)
	args, _ := encryptArgs(t, exec.ClusterPublicKey(), nonce, 1)

	err := exec.QueueComputation(context.Background(), "missing", 1, args, nil)
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrClusterNotSet))
}

func TestExecutorDuplicateOffset(t *testing.T) {
	exec, _ := newTestExecutor(t)
	rec := newCallbackRecorder()
	blocked := make(chan struct{})
	slow := func(inputs []uint64) []uint64 {
		<-blocked
		return inputs
	}
	assert.NoError(t, exec.InitCompDef("slow", slow, rec.callback))

	nonce := model.NonceFromUint64(2)
	args, _ := encryptArgs(t, exec.ClusterPublicKey(), nonce, 5)

	assert.NoError(t, exec.QueueComputation(context.Background(), "slow", 77, args, nil))

	err := exec.QueueComputation(context.Background(), "slow", 77, args, nil)
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateOffset))

	close(blocked)
	rec.wait(t)
}

func TestExecutorMalformedArgsRejectedBeforeQueue(t *testing.T) {
	exec, _ := newTestExecutor(t)
	rec := newCallbackRecorder()
	assert.NoError(t, exec.InitCompDef("sum", sumCircuit, rec.callback))

	// Nonce before public key violates the ABI order
	args := []Argument{PlaintextU128(model.NonceFromUint64(1)), PublicKeyArg(crypto.PublicKey{}), EncryptedU64(model.Ciphertext{})}
	err := exec.QueueComputation(context.Background(), "sum", 5, args, nil)
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestExecutorAbortsOnForeignCiphertext(t *testing.T) {
	exec, _ := newTestExecutor(t)
	rec := newCallbackRecorder()
	assert.NoError(t, exec.InitCompDef("sum", sumCircuit, rec.callback))

	// Ciphertext from a context the cluster was never part of
	client, _ := crypto.GenerateKeyPair()
	stranger, _ := crypto.GenerateKeyPair()
	cipher, _ := client.SharedCipher(stranger.PublicKey())
	nonce := model.NonceFromUint64(3)
	cts, _ := cipher.Encrypt([]uint64{10}, nonce)

	args := []Argument{PublicKeyArg(client.PublicKey()), PlaintextU128(nonce), EncryptedU64(cts[0])}
	assert.NoError(t, exec.QueueComputation(context.Background(), "sum", 8, args, nil))

	out := rec.wait(t)
	assert.True(t, out.Aborted)
	assert.Nil(t, out.Result)
	assert.Equal(t, uint64(8), out.ComputationOffset)
}

func TestExecutorInitCompDefIdempotent(t *testing.T) {
	exec, _ := newTestExecutor(t)
	rec := newCallbackRecorder()
	assert.NoError(t, exec.InitCompDef("sum", sumCircuit, rec.callback))
	assert.NoError(t, exec.InitCompDef("sum", sumCircuit, rec.callback))
}

func TestCompDefOffsetStable(t *testing.T) {
	a := CompDefOffset("compute_swap")
	b := CompDefOffset("compute_swap")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, CompDefOffset("compute_swap_v2"))
}
