// Package circuit holds the decision function the cluster evaluates over
// decrypted swap inputs. Everything here runs inside the computation
// boundary; nothing outside it ever sees the plaintext values.
package circuit

// Decision flag values carried in SwapResult.Execute. The rejected order is
// handed back whole via WithdrawAmount; the executed order is picked up by
// the downstream swap pipeline on the proceed flag.
const (
	ExecuteReject  uint64 = 0
	ExecuteProceed uint64 = 1
)

// SwapRequest is the plaintext circuit input, visible only inside the
// computation.
type SwapRequest struct {
	Limit  uint64
	Amount uint64
}

// SwapResult is the plaintext circuit output before re-encryption.
type SwapResult struct {
	Execute        uint64
	WithdrawAmount uint64
}

// Evaluate decides whether the order executes or is withheld. An amount at
// or above the limit is rejected and returned untouched; anything below the
// limit proceeds. Pure and total: cluster nodes must agree bit for bit, so
// no randomness, no clock, no state.
func Evaluate(req SwapRequest) SwapResult {
	if req.Amount >= req.Limit {
		return SwapResult{
			Execute:        ExecuteReject,
			WithdrawAmount: req.Amount,
		}
	}
	return SwapResult{
		Execute:        ExecuteProceed,
		WithdrawAmount: req.Amount,
	}
}
