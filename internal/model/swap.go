package model

import (
	"fmt"
	"time"
)

type SwapStatus string

const (
	SwapStatusInitiated SwapStatus = "initiated"
	SwapStatusComputing SwapStatus = "computing"
	SwapStatusComputed  SwapStatus = "computed"
	// SwapStatusExecuted is reserved for a downstream consumer that acts on
	// an execute decision. Nothing in the gateway sets it.
	SwapStatusExecuted SwapStatus = "executed"
	SwapStatusFailed   SwapStatus = "failed"
)

func (s SwapStatus) Valid() bool {
	switch s {
	case SwapStatusInitiated, SwapStatusComputing, SwapStatusComputed,
		SwapStatusExecuted, SwapStatusFailed:
		return true
	}
	return false
}

// SwapState is the per-dispatch progress record, one per
// (user, computation_offset). It persists after the swap settles as an audit
// trail; nothing deletes it.
type SwapState struct {
	Address           Address    `json:"address" db:"address"`
	User              Address    `json:"user" db:"user_addr"`
	ComputationOffset uint64     `json:"computation_offset" db:"computation_offset"`
	// Amount and MinOutput are plaintext shadows kept at zero: the real
	// values stay encrypted end to end.
	Amount    uint64     `json:"amount" db:"amount"`
	MinOutput uint64     `json:"min_output" db:"min_output"`
	Status    SwapStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

func NewSwapState(user Address, computationOffset uint64) *SwapState {
	return &SwapState{
		Address:           DeriveSwapAddress(user, computationOffset),
		User:              user,
		ComputationOffset: computationOffset,
		Amount:            0,
		MinOutput:         0,
		Status:            SwapStatusInitiated,
		CreatedAt:         time.Now().UTC(),
	}
}

// Transition moves the record to the next status, enforcing the
// Initiated → Computing → {Computed | Failed} machine. Executed is only
// reachable from Computed.
func (s *SwapState) Transition(next SwapStatus) error {
	allowed := false
	switch s.Status {
	case SwapStatusInitiated:
		allowed = next == SwapStatusComputing
	case SwapStatusComputing:
		allowed = next == SwapStatusComputed || next == SwapStatusFailed
	case SwapStatusComputed:
		allowed = next == SwapStatusExecuted
	}
	if !allowed {
		return fmt.Errorf("invalid swap transition %s -> %s", s.Status, next)
	}
	s.Status = next
	return nil
}
