package repository

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/agentsolutions/link-manager/internal/models"
	"github.com/agentsolutions/link-manager/pkg/logger"
)

// GormStore is the database-backed solution store. It is used with either
// the postgres driver or the embedded sqlite driver; each mutation runs in
// a transaction, which preserves the all-or-nothing write guarantee of the
// snapshot store at row granularity.
type GormStore struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// solutionRow is the persisted shape of a solution. Preview and payload
// are stored as JSON text because both are opaque to the schema.
type solutionRow struct {
	ID           string `gorm:"column:id;primaryKey"`
	Preview      string `gorm:"column:preview;not null"`
	FullSolution string `gorm:"column:full_solution;not null"`
	CreatedAt    time.Time
	Payments     []paymentRow `gorm:"foreignKey:SolutionID;constraint:OnDelete:CASCADE"`
}

func (solutionRow) TableName() string { return "solutions" }

type paymentRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SolutionID string `gorm:"column:solution_id;index;not null"`
	// TxHash carries a unique index as a second line of defence under the
	// gateway's replay lock.
	TxHash     string `gorm:"column:tx_hash;uniqueIndex;not null"`
	BuyerAgent string `gorm:"column:buyer_agent;not null"`
	Amount     int64  `gorm:"column:amount;not null"`
	Currency   string `gorm:"column:currency;not null"`
	PaidAt     time.Time
}

func (paymentRow) TableName() string { return "payments" }

func NewPostgresStore(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)
	return newGormStore(postgres.Open(dsn), logger)
}

func NewSQLiteStore(path string, logger *logger.Logger) (models.Repository, error) {
	return newGormStore(sqlite.Open(path), logger)
}

func newGormStore(dialector gorm.Dialector, logger *logger.Logger) (models.Repository, error) {
	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", models.ErrStorage, err)
	}

	if err := db.AutoMigrate(&solutionRow{}, &paymentRow{}); err != nil {
		return nil, fmt.Errorf("%w: auto-migrate: %v", models.ErrStorage, err)
	}
	logger.Info("Successfully connected to the solutions database")
	return &GormStore{Conn: db, logger: logger}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (s *GormStore) Create(preview models.Preview, fullSolution interface{}) (*models.Solution, error) {
	solution := &models.Solution{
		ID:           models.NewSolutionID(),
		Preview:      preview,
		FullSolution: fullSolution,
		CreatedAt:    time.Now().UTC(),
		Payments:     []models.Payment{},
	}
	row, err := toRow(solution)
	if err != nil {
		return nil, err
	}
	if err := s.Conn.Create(row).Error; err != nil {
		return nil, fmt.Errorf("%w: create solution: %v", models.ErrStorage, err)
	}
	return solution, nil
}

func (s *GormStore) FindByID(id string) (*models.Solution, error) {
	var row solutionRow
	err := s.Conn.Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("payments.id ASC")
	}).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find solution: %v", models.ErrStorage, err)
	}
	return fromRow(&row)
}

func (s *GormStore) AddPayment(id, txHash, buyerAgent string) (*models.Solution, error) {
	var exists int64
	if err := s.Conn.Model(&solutionRow{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("%w: find solution: %v", models.ErrStorage, err)
	}
	if exists == 0 {
		return nil, nil
	}

	payment := paymentRow{
		SolutionID: id,
		TxHash:     txHash,
		BuyerAgent: buyerAgent,
		Amount:     models.PriceAmount,
		Currency:   models.PriceCurrency,
		PaidAt:     time.Now().UTC(),
	}
	if err := s.Conn.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("%w: add payment: %v", models.ErrStorage, err)
	}
	return s.FindByID(id)
}

func (s *GormStore) TxHashUsed(txHash string) (bool, error) {
	var count int64
	if err := s.Conn.Model(&paymentRow{}).Where("tx_hash = ?", txHash).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: check tx_hash: %v", models.ErrStorage, err)
	}
	return count > 0, nil
}

func (s *GormStore) Count() (int, error) {
	var count int64
	if err := s.Conn.Model(&solutionRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: count solutions: %v", models.ErrStorage, err)
	}
	return int(count), nil
}

func toRow(solution *models.Solution) (*solutionRow, error) {
	preview, err := json.Marshal(solution.Preview)
	if err != nil {
		return nil, fmt.Errorf("%w: encode preview: %v", models.ErrStorage, err)
	}
	payload, err := json.Marshal(solution.FullSolution)
	if err != nil {
		return nil, fmt.Errorf("%w: encode full_solution: %v", models.ErrStorage, err)
	}
	return &solutionRow{
		ID:           solution.ID,
		Preview:      string(preview),
		FullSolution: string(payload),
		CreatedAt:    solution.CreatedAt,
	}, nil
}

func fromRow(row *solutionRow) (*models.Solution, error) {
	solution := &models.Solution{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		Payments:  make([]models.Payment, 0, len(row.Payments)),
	}
	if err := json.Unmarshal([]byte(row.Preview), &solution.Preview); err != nil {
		return nil, fmt.Errorf("%w: decode preview: %v", models.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(row.FullSolution), &solution.FullSolution); err != nil {
		return nil, fmt.Errorf("%w: decode full_solution: %v", models.ErrStorage, err)
	}
	for _, p := range row.Payments {
		solution.Payments = append(solution.Payments, models.Payment{
			TxHash:     p.TxHash,
			BuyerAgent: p.BuyerAgent,
			Amount:     p.Amount,
			Currency:   p.Currency,
			PaidAt:     p.PaidAt,
		})
	}
	return solution, nil
}
