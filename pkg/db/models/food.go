package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Food is a shared catalog item. Restaurants opt in through RestaurantFood.
type Food struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title string    `gorm:"column:title;not null"`
	// BasePriceLocal is the price in rials; nil hides the price.
	BasePriceLocal *int64 `gorm:"column:base_price_local"`
	// DerivedPriceMinor is the USD price in cents as of the last recompute.
	DerivedPriceMinor *int64    `gorm:"column:derived_price_minor"`
	IsAvailable       bool      `gorm:"column:is_available;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *Food) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// RestaurantFood records that a restaurant shows a food on its menu.
type RestaurantFood struct {
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	FoodID       uuid.UUID `gorm:"column:food_id;type:uuid;primaryKey"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
