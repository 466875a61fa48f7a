package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/models"
)

// Repository persists exchange rates and the derived food prices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRate(ctx context.Context, rate *models.ExchangeRate) error
	FindRate(ctx context.Context, id uuid.UUID) (*models.ExchangeRate, error)
	FindRateForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeRate, error)
	FindActiveRate(ctx context.Context) (*models.ExchangeRate, error)
	ListRates(ctx context.Context) ([]models.ExchangeRate, error)
	DeactivateOthers(ctx context.Context, keepID uuid.UUID) error
	MarkActive(ctx context.Context, id uuid.UUID) error
	ListPricedFoods(ctx context.Context) ([]models.Food, error)
	UpdateDerivedPrice(ctx context.Context, foodID uuid.UUID, cents *int64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRate(ctx context.Context, rate *models.ExchangeRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

func (r *repository) FindRate(ctx context.Context, id uuid.UUID) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repository) FindRateForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repository) FindActiveRate(ctx context.Context) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repository) ListRates(ctx context.Context) ([]models.ExchangeRate, error) {
	var rates []models.ExchangeRate
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rates).Error
	return rates, err
}

func (r *repository) DeactivateOthers(ctx context.Context, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ExchangeRate{}).
		Where("is_active = ? AND id <> ?", true, keepID).
		UpdateColumn("is_active", false).Error
}

func (r *repository) MarkActive(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ExchangeRate{}).
		Where("id = ?", id).
		UpdateColumn("is_active", true).Error
}

func (r *repository) ListPricedFoods(ctx context.Context) ([]models.Food, error) {
	var foods []models.Food
	err := r.db.WithContext(ctx).
		Select("id", "base_price_local", "derived_price_minor").
		Where("base_price_local IS NOT NULL").
		Order("id ASC").
		Find(&foods).Error
	return foods, err
}

// UpdateDerivedPrice writes only the cached USD column.
func (r *repository) UpdateDerivedPrice(ctx context.Context, foodID uuid.UUID, cents *int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Food{}).
		Where("id = ?", foodID).
		UpdateColumn("derived_price_minor", cents).Error
}
