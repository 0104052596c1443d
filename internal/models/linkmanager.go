package models

import "time"

// LinkManagerI is the access gateway: it enforces input validation and the
// payment/replay protocol, and is the only writer of the payment ledger.
type LinkManagerI interface {
	// Submit validates and stores a new solution.
	Submit(preview Preview, fullSolution interface{}) (*Solution, error)

	// Preview returns the solution for public-preview rendering.
	Preview(id string) (*Solution, error)

	// Unlock records a payment assertion and releases the full payload.
	// The tx_hash is consumed exactly once globally; a reuse anywhere
	// fails with ErrReplayDetected.
	Unlock(id, txHash, buyerAgent string) (*Solution, *Payment, error)

	// Resolve returns the solution plus whether the requesting agent has
	// paid for it. An empty agent is never paid.
	Resolve(id, agent string) (*Solution, bool, error)

	// Count is the number of stored solutions.
	Count() (int, error)

	// Uptime is the time since the gateway was constructed.
	Uptime() time.Duration
}

// APIServer is a server that exposes the gateway over some transport.
type APIServer interface {
	Start()
	Shutdown() error
}
