package service

import (
	"context"
	"fmt"

	"github.com/whisprlabs/whisprgate/internal/circuit"
	"github.com/whisprlabs/whisprgate/internal/cluster"
	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
	"github.com/whisprlabs/whisprgate/internal/pkg/logger"
	"github.com/whisprlabs/whisprgate/internal/pkg/metrics"
)

// CompDefComputeSwap names the decision circuit registered with the cluster.
const CompDefComputeSwap = "compute_swap"

type LimitRepo interface {
	Upsert(ctx context.Context, cfg *model.LimitConfig) error
	GetByOwner(ctx context.Context, owner model.Address) (*model.LimitConfig, error)
}

type SwapRepo interface {
	Create(ctx context.Context, st *model.SwapState) error
	Get(ctx context.Context, user model.Address, offset uint64) (*model.SwapState, error)
	UpdateStatus(ctx context.Context, user model.Address, offset uint64, status model.SwapStatus) error
	Delete(ctx context.Context, user model.Address, offset uint64) error
	ListByUser(ctx context.Context, user model.Address, limit int) ([]*model.SwapState, error)
}

// Orchestrator owns the swap lifecycle: limit storage, computation dispatch
// and callback settlement. It never sees a plaintext limit or amount.
type Orchestrator struct {
	limits   LimitRepo
	swaps    SwapRepo
	queue    cluster.Queue
	registry cluster.OffsetRegistry
	journal  *EventJournal
}

func NewOrchestrator(limits LimitRepo, swaps SwapRepo, queue cluster.Queue, registry cluster.OffsetRegistry, journal *EventJournal) *Orchestrator {
	return &Orchestrator{
		limits:   limits,
		swaps:    swaps,
		queue:    queue,
		registry: registry,
		journal:  journal,
	}
}

// Register installs the decision circuit and this orchestrator's callback on
// the executor. Safe to call repeatedly; the cluster treats re-registration
// as a no-op.
func (o *Orchestrator) Register(exec *cluster.Executor) error {
	return exec.InitCompDef(CompDefComputeSwap, ComputeSwapCircuit, o.ComputeSwapCallback)
}

// ComputeSwapCircuit adapts the decision circuit to the cluster's u64 slice
// ABI: inputs are [limit, amount], outputs [execute, withdraw_amount].
func ComputeSwapCircuit(inputs []uint64) []uint64 {
	if len(inputs) != 2 {
		panic(fmt.Sprintf("compute_swap expects 2 inputs, got %d", len(inputs)))
	}
	res := circuit.Evaluate(circuit.SwapRequest{Limit: inputs[0], Amount: inputs[1]})
	return []uint64{res.Execute, res.WithdrawAmount}
}

// StoreLimit creates or overwrites the owner's encrypted threshold.
func (o *Orchestrator) StoreLimit(ctx context.Context, owner model.Address, limit model.Ciphertext) (*model.LimitConfig, error) {
	cfg := model.NewLimitConfig(owner, limit)
	if err := o.limits.Upsert(ctx, cfg); err != nil {
		return nil, apperrors.Wrap(err)
	}
	logger.Info("Stored limit config", "owner", owner.Hex())
	return cfg, nil
}

func (o *Orchestrator) GetLimit(ctx context.Context, owner model.Address) (*model.LimitConfig, error) {
	return o.limits.GetByOwner(ctx, owner)
}

// ComputeSwapInput carries one dispatch's parameters. The amount ciphertext
// was produced by the requester under the (PubKey, Nonce) context; the limit
// ciphertext comes from the stored LimitConfig.
type ComputeSwapInput struct {
	ComputationOffset uint64
	PubKey            crypto.PublicKey
	Nonce             model.Nonce
	EncryptedAmount   model.Ciphertext
}

// ComputeSwap runs the dispatch half of the state machine. Any failure
// before the queue accepts the computation unwinds completely: no record,
// no reservation. After a successful dispatch the record is Computing and
// settlement happens in the callback.
func (o *Orchestrator) ComputeSwap(ctx context.Context, user model.Address, in ComputeSwapInput) (*model.SwapState, error) {
	cfg, err := o.limits.GetByOwner(ctx, user)
	if err != nil {
		metrics.DispatchRejects.WithLabelValues("missing_limit_config").Inc()
		return nil, apperrors.Wrap(err)
	}

	st := model.NewSwapState(user, in.ComputationOffset)
	if err := o.swaps.Create(ctx, st); err != nil {
		metrics.DispatchRejects.WithLabelValues("duplicate_offset").Inc()
		return nil, apperrors.Wrap(err)
	}

	// The record is marked Computing before the queue call: the callback can
	// land before dispatch returns, and it must never observe Initiated. A
	// failed dispatch unwinds the record entirely, so no observer sees a
	// half-dispatched swap either way.
	if err := st.Transition(model.SwapStatusComputing); err != nil {
		return nil, apperrors.Wrap(err)
	}
	if err := o.swaps.UpdateStatus(ctx, user, in.ComputationOffset, model.SwapStatusComputing); err != nil {
		return nil, apperrors.Wrap(err)
	}

	// Argument order is the circuit ABI: requester key, context nonce, then
	// limit and amount ciphertexts.
	args := []cluster.Argument{
		cluster.PublicKeyArg(in.PubKey),
		cluster.PlaintextU128(in.Nonce),
		cluster.EncryptedU64(cfg.Limit),
		cluster.EncryptedU64(in.EncryptedAmount),
	}

	callbackAccounts := []cluster.CallbackAccount{
		{Address: user, Writable: true},
	}

	if err := o.queue.QueueComputation(ctx, CompDefComputeSwap, in.ComputationOffset, args, callbackAccounts); err != nil {
		if delErr := o.swaps.Delete(ctx, user, in.ComputationOffset); delErr != nil {
			logger.Error("Failed to unwind swap record after dispatch failure", "offset", in.ComputationOffset, "error", delErr)
		}
		metrics.DispatchRejects.WithLabelValues("queue_failed").Inc()
		return nil, apperrors.Wrap(err)
	}

	metrics.SwapsTotal.WithLabelValues("dispatched").Inc()
	logger.Info("Dispatched swap computation", "user", user.Hex(), "offset", in.ComputationOffset)
	return st, nil
}

// ComputeSwapCallback settles one computation. An aborted computation is
// surfaced as an error and leaves the record Computing for external
// reconciliation; a successful one emits exactly one executed event with
// the result's own nonce and marks the record Computed.
func (o *Orchestrator) ComputeSwapCallback(out cluster.ComputationOutput) error {
	ctx := context.Background()

	pending, ok := o.registry.Pending(ctx, out.ComputationOffset)
	if !ok {
		metrics.SwapsTotal.WithLabelValues("orphan_callback").Inc()
		return apperrors.NewNotFound(fmt.Sprintf("no pending computation for offset %d", out.ComputationOffset))
	}

	if out.Aborted {
		metrics.SwapsTotal.WithLabelValues("aborted").Inc()
		return apperrors.New(apperrors.ErrAbortedComputation, "the computation was aborted", nil)
	}

	if out.Result == nil || len(out.Result.Ciphertexts) < 2 {
		return apperrors.New(apperrors.ErrInvalidRequest, "computation output missing result ciphertexts", nil)
	}

	// Positional mapping is part of the callback ABI: 0 = execute flag,
	// 1 = withdraw amount. The payload stays encrypted; the requester
	// decrypts off-gateway.
	o.journal.EmitExecuted(model.ConfidentialSwapExecutedEvent{
		User:           pending.User,
		Execute:        out.Result.Ciphertexts[0],
		WithdrawAmount: out.Result.Ciphertexts[1],
		Nonce:          out.Result.Nonce,
	})

	st, err := o.swaps.Get(ctx, pending.User, out.ComputationOffset)
	if err != nil {
		return apperrors.Wrap(err)
	}
	if err := st.Transition(model.SwapStatusComputed); err != nil {
		return apperrors.Wrap(err)
	}
	if err := o.swaps.UpdateStatus(ctx, pending.User, out.ComputationOffset, model.SwapStatusComputed); err != nil {
		return apperrors.Wrap(err)
	}

	metrics.SwapsTotal.WithLabelValues("computed").Inc()
	logger.Info("Swap computation settled", "user", pending.User.Hex(), "offset", out.ComputationOffset)
	return nil
}

func (o *Orchestrator) GetSwap(ctx context.Context, user model.Address, offset uint64) (*model.SwapState, error) {
	return o.swaps.Get(ctx, user, offset)
}

func (o *Orchestrator) ListSwaps(ctx context.Context, user model.Address, limit int) ([]*model.SwapState, error) {
	return o.swaps.ListByUser(ctx, user, limit)
}
