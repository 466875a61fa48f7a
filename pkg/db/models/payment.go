package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is one gateway attempt for a menu order. Retries create new rows.
type Payment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	Amount     int64     `gorm:"column:amount;not null"`
	Authority  string    `gorm:"column:authority;not null;uniqueIndex"`
	IsFinal    bool      `gorm:"column:is_final;not null"`
	StatusCode *int      `gorm:"column:status_code"`
	RefID      *string   `gorm:"column:ref_id"`
	Message    *string   `gorm:"column:message"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
