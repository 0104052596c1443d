package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const (
	// PriceAmount is the fixed unlock price for every solution.
	PriceAmount = 100
	// PriceCurrency is the token every unlock is paid in.
	PriceCurrency = "SURGE"
)

// Price is the fixed price attached to every solution.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// FixedPrice returns the one price this service sells at.
func FixedPrice() Price {
	return Price{Amount: PriceAmount, Currency: PriceCurrency}
}

// Preview is the publicly visible part of a solution. It is stored and
// served verbatim, so sellers may attach arbitrary extra fields; only
// title and problem_summary are mandatory.
type Preview map[string]interface{}

// Title returns the preview title, or "" if absent or not a string.
func (p Preview) Title() string {
	s, _ := p["title"].(string)
	return s
}

// ProblemSummary returns the preview problem summary, or "" if absent.
func (p Preview) ProblemSummary() string {
	s, _ := p["problem_summary"].(string)
	return s
}

// Solution represents a sellable solution document in the system.
type Solution struct {
	// ID is the unique identifier, allocated at creation and never reused.
	ID string `json:"id"`
	// Preview is the free public summary of the solution.
	Preview Preview `json:"preview"`
	// FullSolution is the gated payload, opaque to the service.
	FullSolution interface{} `json:"full_solution"`
	// CreatedAt is the creation timestamp, immutable.
	CreatedAt time.Time `json:"created_at"`
	// Payments is the append-only ledger of unlock transactions.
	Payments []Payment `json:"payments"`
}

// Payment is evidence of a single unlock transaction.
type Payment struct {
	// TxHash is the claimed transaction identifier, unique across the
	// whole store.
	TxHash string `json:"tx_hash"`
	// BuyerAgent identifies the paying party.
	BuyerAgent string `json:"buyer_agent"`
	// Amount is always PriceAmount; fixed at insertion, not caller input.
	Amount int64 `json:"amount"`
	// Currency is always PriceCurrency.
	Currency string `json:"currency"`
	// PaidAt is the timestamp of ledger insertion.
	PaidAt time.Time `json:"paid_at"`
}

// HasPaid reports whether the given agent appears in the payment ledger.
// An empty agent never matches.
func (s *Solution) HasPaid(agent string) bool {
	if agent == "" {
		return false
	}
	for _, p := range s.Payments {
		if p.BuyerAgent == agent {
			return true
		}
	}
	return false
}

// PaymentCount returns the raw number of payment events on the ledger.
func (s *Solution) PaymentCount() int {
	return len(s.Payments)
}

// NewSolutionID allocates a fresh "sol_" prefixed identifier.
func NewSolutionID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return "sol_" + hex.EncodeToString(buf)
}
