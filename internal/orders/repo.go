package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
)

// Repository defines persistence operations for menu orders and their images.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.MenuOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MenuOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.MenuOrder, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuOrder, error)
	HasOpenRenewalOrder(ctx context.Context, restaurantID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	UpdateColumns(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its images; the model hook fills FinalPrice.
func (r *repository) Create(ctx context.Context, order *models.MenuOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MenuOrder, error) {
	var order models.MenuOrder
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.MenuOrder, error) {
	var order models.MenuOrder
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuOrder, error) {
	var orders []models.MenuOrder
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) HasOpenRenewalOrder(ctx context.Context, restaurantID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MenuOrder{}).
		Where("restaurant_id = ? AND status IN ?", restaurantID, enums.OpenRenewalStatuses).
		Count(&count).Error
	return count > 0, err
}

// TransitionStatus applies updates only while the order is still in from.
// It reports false when another writer moved the order first.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.MenuOrder{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateColumns(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.MenuOrder{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

// DeleteUnpaid removes an UNPAID order together with its images.
func (r *repository) DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.OrderStatusUnpaid).
		Delete(&models.MenuOrder{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.MenuImage{}).Error; err != nil {
		return false, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
		return false, err
	}
	return true, nil
}
