package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/db/models"
)

// Repository persists gateway attempts.
type Repository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByAuthority(ctx context.Context, authority string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	RecordResult(ctx context.Context, id uuid.UUID, result Outcome) error
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Outcome is what the gateway said about one attempt.
type Outcome struct {
	IsFinal    bool
	StatusCode *int
	RefID      *string
	Message    *string
	At         time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByAuthority(ctx context.Context, authority string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("authority = ?", authority).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) RecordResult(ctx context.Context, id uuid.UUID, result Outcome) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"is_final":    result.IsFinal,
			"status_code": result.StatusCode,
			"ref_id":      result.RefID,
			"message":     result.Message,
			"updated_at":  result.At,
		}).Error
}

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
