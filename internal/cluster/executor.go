package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
	"github.com/whisprlabs/whisprgate/internal/pkg/logger"
	"github.com/whisprlabs/whisprgate/internal/pkg/metrics"
)

// Queue is the dispatch boundary the orchestrator sees: queue now, hear back
// later through the registered callback. Implemented by the in-process
// Executor; a remote cluster client would satisfy the same interface.
type Queue interface {
	QueueComputation(ctx context.Context, name string, offset uint64, args []Argument, callbackAccounts []CallbackAccount) error
}

// CircuitFunc evaluates a registered circuit over decrypted inputs. It must
// be a pure function: every cluster node has to agree bit for bit.
type CircuitFunc func(inputs []uint64) []uint64

type compDef struct {
	name     string
	fn       CircuitFunc
	callback Callback
}

type task struct {
	def      *compDef
	offset   uint64
	args     []Argument
	queuedAt time.Time
}

// Executor simulates the confidential-computation cluster in process: it
// holds the cluster keypair, decrypts queued arguments inside its own
// boundary, evaluates the registered circuit and re-encrypts the result
// under the requester's context before invoking the callback.
type Executor struct {
	keys     *crypto.KeyPair
	registry OffsetRegistry

	mu   sync.RWMutex
	defs map[uint32]*compDef

	tasks   chan task
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewExecutor(keys *crypto.KeyPair, registry OffsetRegistry, queueDepth int) *Executor {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Executor{
		keys:     keys,
		registry: registry,
		defs:     make(map[uint32]*compDef),
		tasks:    make(chan task, queueDepth),
		done:     make(chan struct{}),
	}
}

// ClusterPublicKey is what requesters encrypt against.
func (e *Executor) ClusterPublicKey() crypto.PublicKey {
	return e.keys.PublicKey()
}

// InitCompDef registers a circuit and its callback under the name's stable
// offset. Idempotent: re-registering an existing name is a no-op.
func (e *Executor) InitCompDef(name string, fn CircuitFunc, cb Callback) error {
	if fn == nil || cb == nil {
		return fmt.Errorf("comp def %q requires a circuit and a callback", name)
	}
	id := CompDefOffset(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.defs[id]; ok {
		return nil
	}
	e.defs[id] = &compDef{name: name, fn: fn, callback: cb}
	logger.Info("Registered computation definition", "name", name, "offset", id)
	return nil
}

func (e *Executor) QueueComputation(ctx context.Context, name string, offset uint64, args []Argument, callbackAccounts []CallbackAccount) error {
	e.mu.RLock()
	def, ok := e.defs[CompDefOffset(name)]
	e.mu.RUnlock()
	if !ok {
		return apperrors.New(apperrors.ErrClusterNotSet, fmt.Sprintf("computation definition %q not initialized", name), nil)
	}

	if err := validateArgs(args); err != nil {
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
	}

	user := callbackUser(callbackAccounts)
	if err := e.registry.Reserve(ctx, offset, user); err != nil {
		return err
	}

	select {
	case e.tasks <- task{def: def, offset: offset, args: args, queuedAt: time.Now()}:
		return nil
	default:
		_ = e.registry.Release(ctx, offset)
		return apperrors.New(apperrors.ErrInternal, "cluster mempool full", nil)
	}
}

// Start launches the worker pool consuming the execution queue.
func (e *Executor) Start(workers int) {
	if e.started {
		return
	}
	e.started = true
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.run()
	}
}

func (e *Executor) Stop() {
	if !e.started {
		return
	}
	close(e.done)
	e.wg.Wait()
	e.started = false
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case t := <-e.tasks:
			e.execute(t)
		}
	}
}

func (e *Executor) execute(t task) {
	defer func() {
		_ = e.registry.Release(context.Background(), t.offset)
	}()

	out := ComputationOutput{ComputationOffset: t.offset}

	result, err := e.evaluate(t)
	if err != nil {
		logger.Warn("Computation aborted", "comp_def", t.def.name, "offset", t.offset, "error", err)
		metrics.ComputationsTotal.WithLabelValues("aborted").Inc()
		out.Aborted = true
	} else {
		metrics.ComputationsTotal.WithLabelValues("success").Inc()
		out.Result = result
	}
	metrics.CallbackLatency.Observe(time.Since(t.queuedAt).Seconds())

	if err := t.def.callback(out); err != nil {
		// A failed callback is surfaced, never retried by the cluster.
		logger.Error("Computation callback failed", "comp_def", t.def.name, "offset", t.offset, "error", err)
	}
}

func (e *Executor) evaluate(t task) (res *EncryptedResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("circuit panic: %v", r)
		}
	}()

	cipher, err := e.keys.SharedCipher(t.args[0].PublicKey)
	if err != nil {
		return nil, err
	}
	nonce := t.args[1].U128

	cts := make([]model.Ciphertext, 0, len(t.args)-2)
	for _, arg := range t.args[2:] {
		cts = append(cts, arg.Ciphertext)
	}
	inputs, err := cipher.Decrypt(cts, nonce)
	if err != nil {
		return nil, err
	}

	outputs := t.def.fn(inputs)

	// Results go back under the same context with a fresh nonce, so only
	// the requester can read them downstream.
	resultNonce, err := crypto.RandomNonce()
	if err != nil {
		return nil, err
	}
	encrypted, err := cipher.Encrypt(outputs, resultNonce)
	if err != nil {
		return nil, err
	}
	return &EncryptedResult{Ciphertexts: encrypted, Nonce: resultNonce}, nil
}

func callbackUser(accounts []CallbackAccount) model.Address {
	for _, acc := range accounts {
		if acc.Writable {
			return acc.Address
		}
	}
	return model.Address{}
}
