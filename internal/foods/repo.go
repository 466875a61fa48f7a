package foods

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/db/models"
)

// Repository persists catalog foods.
type Repository interface {
	Create(ctx context.Context, food *models.Food) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Food, error)
	Save(ctx context.Context, food *models.Food) error
	List(ctx context.Context, availableOnly bool) ([]models.Food, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, food *models.Food) error {
	return r.db.WithContext(ctx).Create(food).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	var food models.Food
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&food).Error; err != nil {
		return nil, err
	}
	return &food, nil
}

func (r *repository) Save(ctx context.Context, food *models.Food) error {
	return r.db.WithContext(ctx).Save(food).Error
}

func (r *repository) List(ctx context.Context, availableOnly bool) ([]models.Food, error) {
	query := r.db.WithContext(ctx).Order("title ASC")
	if availableOnly {
		query = query.Where("is_available = ?", true)
	}
	var foods []models.Food
	err := query.Find(&foods).Error
	return foods, err
}
