package model

// StoreLimitRequest is the incoming JSON body for storing or overwriting the
// caller's encrypted limit.
type StoreLimitRequest struct {
	Limit string `json:"limit" binding:"required"` // 32-byte hex ciphertext
}

// ComputeSwapRequest dispatches one confidential swap computation.
type ComputeSwapRequest struct {
	ComputationOffset uint64 `json:"computation_offset" binding:"required"`
	PubKey            string `json:"pub_key" binding:"required"`          // requester x25519 public key, 32-byte hex
	Nonce             string `json:"nonce" binding:"required"`            // u128 nonce, 16-byte hex
	EncryptedAmount   string `json:"encrypted_amount" binding:"required"` // 32-byte hex ciphertext
}

type ComputeSwapResponse struct {
	ComputationOffset uint64     `json:"computation_offset"`
	Status            SwapStatus `json:"status"`
	Address           Address    `json:"address"`
}
