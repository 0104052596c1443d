package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentsolutions/link-manager/internal/models"
	"github.com/agentsolutions/link-manager/pkg/logger"
)

const solutionsFileName = "solutions.json"

// FileStore persists the whole solution collection as a single JSON
// snapshot. Every mutation rewrites the snapshot to a temporary file and
// renames it over the canonical path, so a crash mid-write never leaves a
// partially written store. State is per-process-lifetime durable only when
// the data directory itself survives restarts (on ephemeral media it does
// not).
type FileStore struct {
	logger *logger.Logger

	mu   sync.Mutex
	path string
}

func NewFileStore(dataDir string, logger *logger.Logger) (models.Repository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", models.ErrStorage, err)
	}
	return &FileStore{
		logger: logger,
		path:   filepath.Join(dataDir, solutionsFileName),
	}, nil
}

// load reads the current snapshot. A missing file is an empty store.
func (s *FileStore) load() ([]*models.Solution, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrStorage, s.path, err)
	}
	var solutions []*models.Solution
	if err := json.Unmarshal(data, &solutions); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", models.ErrStorage, s.path, err)
	}
	return solutions, nil
}

// save writes the snapshot via tmp-file + rename.
func (s *FileStore) save(solutions []*models.Solution) error {
	data, err := json.MarshalIndent(solutions, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode solutions: %v", models.ErrStorage, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", models.ErrStorage, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", models.ErrStorage, s.path, err)
	}
	return nil
}

func (s *FileStore) Create(preview models.Preview, fullSolution interface{}) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	solutions, err := s.load()
	if err != nil {
		return nil, err
	}

	id := models.NewSolutionID()
	for findSolution(solutions, id) != nil {
		id = models.NewSolutionID()
	}

	solution := &models.Solution{
		ID:           id,
		Preview:      preview,
		FullSolution: fullSolution,
		CreatedAt:    time.Now().UTC(),
		Payments:     []models.Payment{},
	}
	solutions = append(solutions, solution)

	if err := s.save(solutions); err != nil {
		return nil, err
	}
	s.logger.Debug("Solution persisted ", "id ", id)
	return solution, nil
}

func (s *FileStore) FindByID(id string) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	solutions, err := s.load()
	if err != nil {
		return nil, err
	}
	return findSolution(solutions, id), nil
}

func (s *FileStore) AddPayment(id, txHash, buyerAgent string) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	solutions, err := s.load()
	if err != nil {
		return nil, err
	}
	solution := findSolution(solutions, id)
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

	if err := s.save(solutions); err != nil {
		return nil, err
	}
	s.logger.Debug("Payment persisted ", "id ", id, "tx_hash ", txHash)
	return solution, nil
}

func (s *FileStore) TxHashUsed(txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	solutions, err := s.load()
	if err != nil {
		return false, err
	}
	for _, solution := range solutions {
		for _, p := range solution.Payments {
			if p.TxHash == txHash {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *FileStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	solutions, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(solutions), nil
}

func findSolution(solutions []*models.Solution, id string) *models.Solution {
	for _, solution := range solutions {
		if solution.ID == id {
			return solution
		}
	}
	return nil
}
