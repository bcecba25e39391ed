package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"relayer-backend/internal/models"
)

// WithdrawalRepository defines the interface for withdrawal journal access
type WithdrawalRepository interface {
	Create(ctx context.Context, record *models.WithdrawalRecord) error
	GetByID(ctx context.Context, id string) (*models.WithdrawalRecord, error)
	GetByNullifier(ctx context.Context, nullifierHash string) (*models.WithdrawalRecord, error)
	FindRecent(ctx context.Context, page, pageSize int) ([]*models.WithdrawalRecord, int64, error)
	FindByStatus(ctx context.Context, status models.WithdrawalStatus, page, pageSize int) ([]*models.WithdrawalRecord, int64, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

type withdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance
func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

func (r *withdrawalRepository) Create(ctx context.Context, record *models.WithdrawalRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id string) (*models.WithdrawalRecord, error) {
	var record models.WithdrawalRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *withdrawalRepository) GetByNullifier(ctx context.Context, nullifierHash string) (*models.WithdrawalRecord, error) {
	var record models.WithdrawalRecord
	err := r.db.WithContext(ctx).Where("nullifier_hash = ?", nullifierHash).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *withdrawalRepository) FindRecent(ctx context.Context, page, pageSize int) ([]*models.WithdrawalRecord, int64, error) {
	return r.find(ctx, r.db.WithContext(ctx).Model(&models.WithdrawalRecord{}), page, pageSize)
}

func (r *withdrawalRepository) FindByStatus(ctx context.Context, status models.WithdrawalStatus, page, pageSize int) ([]*models.WithdrawalRecord, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.WithdrawalRecord{}).Where("status = ?", status)
	return r.find(ctx, q, page, pageSize)
}

func (r *withdrawalRepository) find(ctx context.Context, q *gorm.DB, page, pageSize int) ([]*models.WithdrawalRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*models.WithdrawalRecord
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *withdrawalRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Category string
		N        int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalRecord{}).
		Select("category, count(*) as n").
		Where("status = ?", models.WithdrawalStatusRejected).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}
