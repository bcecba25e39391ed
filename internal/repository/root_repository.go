package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"relayer-backend/internal/models"
)

// RootRepository persists the accumulator root audit trail and observed
// deposits.
type RootRepository interface {
	SaveRoot(ctx context.Context, record *models.RootRecord) error
	LatestRoots(ctx context.Context, limit int) ([]*models.RootRecord, error)
	SaveDeposit(ctx context.Context, record *models.DepositRecord) error
	GetDepositByCommitment(ctx context.Context, commitment string) (*models.DepositRecord, error)
	DepositCount(ctx context.Context) (int64, error)
}

type rootRepository struct {
	db *gorm.DB
}

// NewRootRepository creates a new RootRepository instance
func NewRootRepository(db *gorm.DB) RootRepository {
	return &rootRepository{db: db}
}

func (r *rootRepository) SaveRoot(ctx context.Context, record *models.RootRecord) error {
	// Roots may be re-observed on replay; the first write wins.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "root"}}, DoNothing: true}).
		Create(record).Error
}

func (r *rootRepository) LatestRoots(ctx context.Context, limit int) ([]*models.RootRecord, error) {
	if limit < 1 || limit > 500 {
		limit = 30
	}
	var records []*models.RootRecord
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *rootRepository) SaveDeposit(ctx context.Context, record *models.DepositRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "commitment"}}, DoNothing: true}).
		Create(record).Error
}

func (r *rootRepository) GetDepositByCommitment(ctx context.Context, commitment string) (*models.DepositRecord, error) {
	var record models.DepositRecord
	err := r.db.WithContext(ctx).Where("commitment = ?", commitment).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *rootRepository) DepositCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.DepositRecord{}).Count(&n).Error
	return n, err
}
