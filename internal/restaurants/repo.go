package restaurants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
)

// Repository persists restaurants and their food selections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, restaurant *models.Restaurant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Restaurant, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Restaurant, error)
	UpdateExpiry(ctx context.Context, id uuid.UUID, expireDate time.Time, activate bool) error
	DeactivateIfExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, activeOnly bool) ([]models.Restaurant, error)
	ListActive(ctx context.Context, now time.Time) ([]models.Restaurant, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Restaurant, error)
	ListDueForRenewal(ctx context.Context, now, threshold time.Time) ([]models.Restaurant, error)
	SelectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error)
	DeselectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error)
	ListSelectedFoods(ctx context.Context, restaurantID uuid.UUID) ([]models.Food, error)
	FoodExists(ctx context.Context, foodID uuid.UUID) (bool, error)
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

func (r *repository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	return r.db.WithContext(ctx).Create(restaurant).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateExpiry(ctx context.Context, id uuid.UUID, expireDate time.Time, activate bool) error {
	updates := map[string]any{
		"expire_date": expireDate.UTC(),
		"updated_at":  time.Now().UTC(),
	}
	if activate {
		updates["is_active"] = true
	}
	return r.db.WithContext(ctx).
		Model(&models.Restaurant{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

// DeactivateIfExpired flips is_active only for an active restaurant whose
// expiry has passed, so repeated calls report false.
func (r *repository) DeactivateIfExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Restaurant{}).
		Where("id = ? AND is_active = ? AND expire_date IS NOT NULL AND expire_date < ?", id, true, now.UTC()).
		UpdateColumns(map[string]any{
			"is_active":  false,
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListExpired(ctx context.Context, now time.Time, activeOnly bool) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	query := r.db.WithContext(ctx).
		Where("expire_date IS NOT NULL AND expire_date < ?", now.UTC())
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("expire_date ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListActive(ctx context.Context, now time.Time) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expire_date IS NULL OR expire_date >= ?", now.UTC()).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expire_date >= ? AND expire_date <= ?", from.UTC(), to.UTC()).
		Order("expire_date ASC").
		Find(&rows).Error
	return rows, err
}

// ListDueForRenewal returns live restaurants expiring by threshold that have
// no open renewal-blocking order.
func (r *repository) ListDueForRenewal(ctx context.Context, now, threshold time.Time) ([]models.Restaurant, error) {
	var rows []models.Restaurant
	openOrders := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.MenuOrder{}).
		Select("1").
		Where("menu_orders.restaurant_id = restaurants.id AND menu_orders.status IN ?", enums.OpenRenewalStatuses)
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expire_date IS NOT NULL AND expire_date >= ? AND expire_date < ?", now.UTC(), threshold.UTC()).
		Where("NOT EXISTS (?)", openOrders).
		Order("expire_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) SelectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error) {
	link := models.RestaurantFood{RestaurantID: restaurantID, FoodID: foodID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeselectFood(ctx context.Context, restaurantID, foodID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND food_id = ?", restaurantID, foodID).
		Delete(&models.RestaurantFood{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListSelectedFoods(ctx context.Context, restaurantID uuid.UUID) ([]models.Food, error) {
	var foods []models.Food
	err := r.db.WithContext(ctx).
		Joins("JOIN restaurant_foods rf ON rf.food_id = foods.id").
		Where("rf.restaurant_id = ?", restaurantID).
		Order("foods.title ASC").
		Find(&foods).Error
	return foods, err
}

func (r *repository) FoodExists(ctx context.Context, foodID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Food{}).Where("id = ?", foodID).Count(&count).Error
	return count > 0, err
}
