package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultPlanExpiryDays applies when a plan does not specify its own length.
const DefaultPlanExpiryDays = 30

// Plan is a purchasable subscription tier.
type Plan struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Description *string   `gorm:"column:description"`
	Price       int64     `gorm:"column:price;not null"`
	ExpiryDays  int       `gorm:"column:expiry_days;not null"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	IsFavorite  bool      `gorm:"column:is_favorite;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Features []PlanFeature `gorm:"foreignKey:PlanID"`
}

func (p *Plan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ExpiryDays <= 0 {
		p.ExpiryDays = DefaultPlanExpiryDays
	}
	return nil
}

type PlanFeature struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlanID      uuid.UUID `gorm:"column:plan_id;type:uuid;not null;index"`
	Title       string    `gorm:"column:title;not null"`
	Value       *string   `gorm:"column:value"`
	Position    int       `gorm:"column:position;not null"`
	IsAvailable bool      `gorm:"column:is_available;not null"`
}

func (f *PlanFeature) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// PlanOrder is a user's purchase of a plan. ExpiryDate is fixed when the
// order is built and never recomputed.
type PlanOrder struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PlanID       uuid.UUID  `gorm:"column:plan_id;type:uuid;not null;index"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	FinalPrice   int64      `gorm:"column:final_price;not null"`
	IsPaid       bool       `gorm:"column:is_paid;not null"`
	PaidAt       *time.Time `gorm:"column:paid_at"`
	ExpiryDate   time.Time  `gorm:"column:expiry_date;not null"`
	TrackingCode *string    `gorm:"column:tracking_code"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Plan *Plan `gorm:"foreignKey:PlanID"`
}

func (o *PlanOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
