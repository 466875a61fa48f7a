package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Restaurant is the tenant whose menu is published while it has not expired.
// A nil ExpireDate means no expiry policy applies.
type Restaurant struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerID    uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	Name       string     `gorm:"column:name;not null"`
	Slug       string     `gorm:"column:slug;not null;uniqueIndex"`
	IsActive   bool       `gorm:"column:is_active;not null"`
	IsSeo      bool       `gorm:"column:is_seo;not null"`
	ExpireDate *time.Time `gorm:"column:expire_date;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Owner *User `gorm:"foreignKey:OwnerID"`
}

func (r *Restaurant) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
