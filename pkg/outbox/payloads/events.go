package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/rank0/digimenu-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when an owner places a menu order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	FinalPrice   int64     `json:"final_price"`
	IsSeo        bool      `json:"is_seo"`
}

// OrderPaidEvent is emitted once per order, on the first confirmed payment.
type OrderPaidEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	RestaurantID uuid.UUID         `json:"restaurant_id"`
	Status       enums.OrderStatus `json:"status"`
	RefID        string            `json:"ref_id"`
	Amount       int64             `json:"amount"`
	PaidAt       time.Time         `json:"paid_at"`
}

// OrderStateChangedEvent records administrator overrides.
type OrderStateChangedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	RestaurantID uuid.UUID         `json:"restaurant_id"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
}

// OrderCanceledEvent is emitted when an owner deletes an unpaid order.
type OrderCanceledEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	CanceledAt   time.Time `json:"canceled_at"`
}

// RenewalOrderCreatedEvent is emitted for each placeholder renewal order.
type RenewalOrderCreatedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	ExpireDate   time.Time `json:"expire_date"`
	FinalPrice   int64     `json:"final_price"`
}

// RenewalReminderEvent asks the notification pipeline to remind an owner.
type RenewalReminderEvent struct {
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Name          string    `json:"name"`
	ExpireDate    time.Time `json:"expire_date"`
	DaysRemaining int       `json:"days_remaining"`
}

// RestaurantDeactivatedEvent is emitted when an expired restaurant is switched off.
type RestaurantDeactivatedEvent struct {
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	ExpireDate    time.Time `json:"expire_date"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

// RestaurantExtendedEvent reports a new expiry date.
type RestaurantExtendedEvent struct {
	RestaurantID   uuid.UUID  `json:"restaurant_id"`
	PreviousExpiry *time.Time `json:"previous_expiry,omitempty"`
	ExpireDate     time.Time  `json:"expire_date"`
	Days           int        `json:"days"`
}

// ExchangeRateActivatedEvent reports the result of a price recompute.
type ExchangeRateActivatedEvent struct {
	ExchangeRateID uuid.UUID `json:"exchange_rate_id"`
	Rate           string    `json:"rate"`
}

// PlanOrderPaidEvent is emitted when a plan purchase is activated.
type PlanOrderPaidEvent struct {
	PlanOrderID  uuid.UUID `json:"plan_order_id"`
	PlanID       uuid.UUID `json:"plan_id"`
	UserID       uuid.UUID `json:"user_id"`
	TrackingCode string    `json:"tracking_code"`
	ExpiryDate   time.Time `json:"expiry_date"`
}
