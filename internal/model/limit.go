package model

import "time"

// LimitConfig holds a user's encrypted threshold. The gateway stores the
// ciphertext verbatim; the plaintext limit is only ever visible inside the
// cluster.
type LimitConfig struct {
	Address   Address    `json:"address" db:"address"`
	Owner     Address    `json:"owner" db:"owner"`
	Limit     Ciphertext `json:"limit" db:"limit_ciphertext"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// NewLimitConfig builds a config at its derived address. Subsequent updates
// overwrite the ciphertext only; the owner never changes.
func NewLimitConfig(owner Address, limit Ciphertext) *LimitConfig {
	return &LimitConfig{
		Address:   DeriveLimitAddress(owner),
		Owner:     owner,
		Limit:     limit,
		UpdatedAt: time.Now().UTC(),
	}
}
