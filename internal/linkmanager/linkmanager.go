// Package linkmanager holds the access-control core of the service: it
// decides who may see a solution's full payload and owns the unlock
// protocol, including global tx_hash replay protection.
package linkmanager

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentsolutions/link-manager/internal/models"
	"github.com/agentsolutions/link-manager/pkg/logger"
)

// LinkManager is the main struct for the link manager application.
// It serves all business logic on top of a Repository.
type LinkManager struct {
	logger *logger.Logger
	repo   models.Repository

	// unlockMu serializes the replay check with the ledger append. The
	// repository alone cannot prevent two concurrent unlocks that both
	// read "hash unused" before either writes, so the check-then-append
	// sequence is a single critical section here.
	unlockMu sync.Mutex

	startedAt time.Time
}

// NewLinkManager creates a new LinkManager instance
func NewLinkManager(repo models.Repository, logger *logger.Logger) models.LinkManagerI {
	return &LinkManager{
		repo:      repo,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Submit validates and stores a new solution.
func (m *LinkManager) Submit(preview models.Preview, fullSolution interface{}) (*models.Solution, error) {
	if len(preview) == 0 || fullSolution == nil {
		return nil, fmt.Errorf("%w: preview and full_solution required", models.ErrInvalidInput)
	}
	if preview.Title() == "" || preview.ProblemSummary() == "" {
		return nil, fmt.Errorf("%w: preview.title and preview.problem_summary required", models.ErrInvalidInput)
	}

	solution, err := m.repo.Create(preview, fullSolution)
	if err != nil {
		m.logger.Error("Failed to store solution", "error", err)
		return nil, err
	}
	m.logger.Info("Solution stored", "id", solution.ID, "title", preview.Title())
	return solution, nil
}

// Preview returns the solution for public-preview rendering.
func (m *LinkManager) Preview(id string) (*models.Solution, error) {
	return m.find(id)
}

// Unlock records a payment assertion and releases the full payload. A
// tx_hash is consumed at most once across all solutions; the first caller
// wins and every later caller gets ErrReplayDetected.
func (m *LinkManager) Unlock(id, txHash, buyerAgent string) (*models.Solution, *models.Payment, error) {
	if txHash == "" || buyerAgent == "" {
		return nil, nil, fmt.Errorf("%w: tx_hash and buyer_agent required", models.ErrInvalidInput)
	}

	m.unlockMu.Lock()
	defer m.unlockMu.Unlock()

	solution, err := m.find(id)
	if err != nil {
		return nil, nil, err
	}

	used, err := m.repo.TxHashUsed(txHash)
	if err != nil {
		m.logger.Error("Failed to check tx_hash", "error", err, "tx_hash", txHash)
		return nil, nil, err
	}
	if used {
		m.logger.Warn("Replayed tx_hash rejected", "tx_hash", txHash, "buyer_agent", buyerAgent)
		return nil, nil, models.ErrReplayDetected
	}

	solution, err = m.repo.AddPayment(id, txHash, buyerAgent)
	if err != nil {
		m.logger.Error("Failed to record payment", "error", err, "id", id, "tx_hash", txHash)
		return nil, nil, err
	}
	if solution == nil {
		// The id vanished between find and append; the store never
		// deletes, so treat it as unknown.
		return nil, nil, models.ErrNotFound
	}

	payment := solution.Payments[len(solution.Payments)-1]
	m.logger.Info("Solution unlocked", "id", id, "buyer_agent", buyerAgent, "tx_hash", txHash)
	return solution, &payment, nil
}

// Resolve returns the solution plus whether the requesting agent has paid
// for it. Paid access is permanent per (solution, agent) pair.
func (m *LinkManager) Resolve(id, agent string) (*models.Solution, bool, error) {
	solution, err := m.find(id)
	if err != nil {
		return nil, false, err
	}
	return solution, solution.HasPaid(agent), nil
}

// Count is the number of stored solutions.
func (m *LinkManager) Count() (int, error) {
	return m.repo.Count()
}

// Uptime is the time since the gateway was constructed.
func (m *LinkManager) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

func (m *LinkManager) find(id string) (*models.Solution, error) {
	solution, err := m.repo.FindByID(id)
	if err != nil {
		m.logger.Error("Failed to look up solution", "error", err, "id", id)
		return nil, err
	}
	if solution == nil {
		return nil, models.ErrNotFound
	}
	return solution, nil
}
