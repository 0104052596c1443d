package models

// Repository is the solution store. Implementations must make every
// mutation atomic: a crash mid-write leaves the store at the pre-write or
// post-write state, never in between.
type Repository interface {
	// Create allocates a fresh id, stamps created_at, persists the
	// solution with an empty payment ledger and returns it.
	Create(preview Preview, fullSolution interface{}) (*Solution, error)
	// FindByID returns the solution, or (nil, nil) if the id is unknown.
	FindByID(id string) (*Solution, error)
	// AddPayment appends a stamped payment to the named solution's ledger
	// and persists. Returns (nil, nil) if the id is unknown. The replay
	// check is the caller's responsibility; see LinkManager.Unlock.
	AddPayment(id, txHash, buyerAgent string) (*Solution, error)
	// TxHashUsed reports whether any payment on any solution carries the
	// given hash.
	TxHashUsed(txHash string) (bool, error)
	// Count returns the number of stored solutions (diagnostic).
	Count() (int, error)
}
