package model

// User is an authenticated gateway identity. Address is the 32-byte ledger
// identity that owns the user's LimitConfig and swap records.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	ApiKey  string  `json:"api_key"` // gateway access key
	Address Address `json:"address"`
}
