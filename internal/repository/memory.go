package repository

import (
	"sync"
	"time"

	"github.com/agentsolutions/link-manager/internal/models"
)

// MemoryStore keeps the collection in process memory. It backs tests and
// deployments that accept losing state on exit.
type MemoryStore struct {
	mu        sync.Mutex
	solutions []*models.Solution
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(preview models.Preview, fullSolution interface{}) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := models.NewSolutionID()
	for findSolution(s.solutions, id) != nil {
		id = models.NewSolutionID()
	}

	solution := &models.Solution{
		ID:           id,
		Preview:      preview,
		FullSolution: fullSolution,
		CreatedAt:    time.Now().UTC(),
		Payments:     []models.Payment{},
	}
	s.solutions = append(s.solutions, solution)
	return copySolution(solution), nil
}

func (s *MemoryStore) FindByID(id string) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySolution(findSolution(s.solutions, id)), nil
}

func (s *MemoryStore) AddPayment(id, txHash, buyerAgent string) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	solution := findSolution(s.solutions, id)
	if solution == nil {
		return nil, nil
	}
	solution.Payments = append(solution.Payments, models.Payment{
		TxHash:     txHash,
		BuyerAgent: buyerAgent,
		Amount:     models.PriceAmount,
		Currency:   models.PriceCurrency,
		PaidAt:     time.Now().UTC(),
	})
	return copySolution(solution), nil
}

func (s *MemoryStore) TxHashUsed(txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, solution := range s.solutions {
		for _, p := range solution.Payments {
			if p.TxHash == txHash {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.solutions), nil
}

// copySolution shields internal state from callers mutating returned
// records. The payload itself is shared; it is treated as immutable.
func copySolution(solution *models.Solution) *models.Solution {
	if solution == nil {
		return nil
	}
	cp := *solution
	cp.Payments = append([]models.Payment(nil), solution.Payments...)
	return &cp
}
