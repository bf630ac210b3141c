package model

import "time"

type EventType string

const (
	EventConfidentialSwapInitiated EventType = "ConfidentialSwapInitiatedEvent"
	EventConfidentialSwapExecuted  EventType = "ConfidentialSwapExecutedEvent"
	EventConfidentialSwapFailed    EventType = "ConfidentialSwapFailedEvent"
)

// ConfidentialSwapExecutedEvent is the terminal event of a completed
// computation. Both payload fields are still ciphertext; decryption is the
// requester's job off-gateway.
type ConfidentialSwapExecutedEvent struct {
	User           Address    `json:"user"`
	Execute        Ciphertext `json:"execute"`
	WithdrawAmount Ciphertext `json:"withdraw_amount"`
	Nonce          Nonce      `json:"nonce"`
}

// ConfidentialSwapInitiatedEvent is declared in the event schema for forward
// compatibility. The current operations do not emit it.
type ConfidentialSwapInitiatedEvent struct {
	User              Address `json:"user"`
	Config            Address `json:"config"`
	ComputationOffset uint64  `json:"computation_offset"`
}

// ConfidentialSwapFailedEvent is declared in the event schema for forward
// compatibility. The current operations do not emit it.
type ConfidentialSwapFailedEvent struct {
	User              Address `json:"user"`
	Config            Address `json:"config"`
	ComputationOffset uint64  `json:"computation_offset"`
	Reason            string  `json:"reason"`
}

// EventRecord is one entry of the append-only event journal. Entries are
// write-once: nothing mutates a journaled event.
type EventRecord struct {
	ID        string    `json:"id" db:"id"`
	Type      EventType `json:"type" db:"event_type"`
	User      Address   `json:"user" db:"user_addr"`
	Payload   []byte    `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
