package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExchangeRate is the number of rials per US dollar. At most one row is active.
type ExchangeRate struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(18,4);not null"`
	IsActive  bool            `gorm:"column:is_active;not null"`
	CreatedBy *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *ExchangeRate) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
