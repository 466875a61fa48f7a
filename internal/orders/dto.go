package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/pkg/db/models"
	"github.com/rank0/digimenu-backend/pkg/enums"
)

// Actor identifies who is acting on an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// CreateInput captures an owner's menu order request. A nil price falls back
// to the configured default; an explicit zero is kept.
type CreateInput struct {
	RestaurantID  uuid.UUID
	BasePrice     *int64
	SeoExtraPrice *int64
	SeoEnabled    bool
	ImageURLs     []string
	Actor         Actor
}

// MarkPaidInput carries a settled gateway verification.
type MarkPaidInput struct {
	OrderID    uuid.UUID
	RefID      string
	StatusCode int
	Amount     int64
}

// MarkPaidResult reports what MarkPaid did. Transitioned is false for a
// duplicate confirmation of an already-paid order.
type MarkPaidResult struct {
	Order        *models.MenuOrder
	From         enums.OrderStatus
	Transitioned bool
}

// OrderDTO is the API view of a menu order.
type OrderDTO struct {
	ID            uuid.UUID  `json:"id"`
	RestaurantID  uuid.UUID  `json:"restaurant_id"`
	StatusInfo    StatusInfo `json:"status_info"`
	IsFinal       bool       `json:"is_final"`
	IsActive      bool       `json:"is_active"`
	IsSeo         bool       `json:"is_seo"`
	BasePrice     int64      `json:"base_price"`
	SeoExtraPrice int64      `json:"seo_extra_price"`
	FinalPrice    int64      `json:"final_price"`
	RefID         *string    `json:"ref_id,omitempty"`
	Images        []string   `json:"images"`
	CreatedAt     time.Time  `json:"created_at"`
}

func ToDTO(order *models.MenuOrder) OrderDTO {
	images := make([]string, 0, len(order.Images))
	for _, img := range order.Images {
		images = append(images, img.URL)
	}
	return OrderDTO{
		ID:            order.ID,
		RestaurantID:  order.RestaurantID,
		StatusInfo:    GetStatusInfo(order.Status),
		IsFinal:       order.IsFinal,
		IsActive:      order.IsActive,
		IsSeo:         order.IsSeo,
		BasePrice:     order.BasePrice,
		SeoExtraPrice: order.SeoExtraPrice,
		FinalPrice:    order.FinalPrice,
		RefID:         order.RefID,
		Images:        images,
		CreatedAt:     order.CreatedAt,
	}
}
