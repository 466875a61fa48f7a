package plans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/rank0/digimenu-backend/pkg/db"
	"github.com/rank0/digimenu-backend/pkg/db/models"
)

// Repository persists plans and plan purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActive(ctx context.Context) ([]models.Plan, error)
	FindActiveBySlug(ctx context.Context, slug string) (*models.Plan, error)
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	CreateOrder(ctx context.Context, order *models.PlanOrder) error
	FindUnpaidOrder(ctx context.Context, userID, planID uuid.UUID) (*models.PlanOrder, error)
	LatestUnpaidOrder(ctx context.Context, userID uuid.UUID) (*models.PlanOrder, error)
	FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.PlanOrder, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.PlanOrder, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, trackingCode *string) (bool, error)
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

func withFeatures(db *gorm.DB) *gorm.DB {
	return db.Preload("Features", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC").Order("id ASC")
	})
}

func (r *repository) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := withFeatures(r.db.WithContext(ctx)).
		Where("is_active = ?", true).
		Order("price ASC").
		Find(&plans).Error
	return plans, err
}

func (r *repository) FindActiveBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	err := withFeatures(r.db.WithContext(ctx)).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.PlanOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindUnpaidOrder(ctx context.Context, userID, planID uuid.UUID) (*models.PlanOrder, error) {
	var order models.PlanOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND plan_id = ? AND is_paid = ?", userID, planID, false).
		Order("created_at ASC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LatestUnpaidOrder(ctx context.Context, userID uuid.UUID) (*models.PlanOrder, error) {
	var order models.PlanOrder
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND is_paid = ?", userID, false).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.PlanOrder, error) {
	var order models.PlanOrder
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.PlanOrder, error) {
	var orders []models.PlanOrder
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// MarkOrderPaid flips is_paid once; a second call reports false.
func (r *repository) MarkOrderPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, trackingCode *string) (bool, error) {
	updates := map[string]any{
		"is_paid":    true,
		"paid_at":    paidAt,
		"updated_at": paidAt,
	}
	if trackingCode != nil {
		updates["tracking_code"] = *trackingCode
	}
	res := r.db.WithContext(ctx).
		Model(&models.PlanOrder{}).
		Where("id = ? AND is_paid = ?", id, false).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
