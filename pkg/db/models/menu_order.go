package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rank0/digimenu-backend/pkg/enums"
)

// MenuOrder is a request to build (or renew) a restaurant's digital menu.
// Prices are in rials.
type MenuOrder struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RestaurantID  uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	IsFinal       bool              `gorm:"column:is_final;not null"`
	IsActive      bool              `gorm:"column:is_active;not null"`
	IsSeo         bool              `gorm:"column:is_seo;not null"`
	BasePrice     int64             `gorm:"column:base_price;not null"`
	SeoExtraPrice int64             `gorm:"column:seo_extra_price;not null"`
	FinalPrice    int64             `gorm:"column:final_price;not null"`
	RefID         *string           `gorm:"column:ref_id"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Images []MenuImage `gorm:"foreignKey:OrderID"`
}

// ComputeFinalPrice applies the SEO add-on when enabled.
func (o *MenuOrder) ComputeFinalPrice() int64 {
	if o.IsSeo {
		return o.BasePrice + o.SeoExtraPrice
	}
	return o.BasePrice
}

func (o *MenuOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// BeforeSave keeps FinalPrice in step with the price inputs on every Create
// and Save. Column-level updates bypass it and must not touch prices.
func (o *MenuOrder) BeforeSave(*gorm.DB) error {
	o.FinalPrice = o.ComputeFinalPrice()
	return nil
}

// MenuImage is a reference photo the owner attached to an order.
type MenuImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	URL       string    `gorm:"column:url;not null"`
	Position  int       `gorm:"column:position;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *MenuImage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
