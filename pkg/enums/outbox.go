package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateMenuOrder    OutboxAggregateType = "menu_order"
	AggregateRestaurant   OutboxAggregateType = "restaurant"
	AggregateExchangeRate OutboxAggregateType = "exchange_rate"
	AggregatePlanOrder    OutboxAggregateType = "plan_order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMenuOrder,
	AggregateRestaurant,
	AggregateExchangeRate,
	AggregatePlanOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated              OutboxEventType = "order_created"
	EventOrderPaid                 OutboxEventType = "order_paid"
	EventOrderStateChanged         OutboxEventType = "order_state_changed"
	EventOrderCanceled             OutboxEventType = "order_canceled"
	EventRenewalOrderCreated       OutboxEventType = "renewal_order_created"
	EventRestaurantRenewalReminder OutboxEventType = "restaurant_renewal_reminder"
	EventRestaurantDeactivated     OutboxEventType = "restaurant_deactivated"
	EventRestaurantExtended        OutboxEventType = "restaurant_extended"
	EventExchangeRateActivated     OutboxEventType = "exchange_rate_activated"
	EventPlanOrderPaid             OutboxEventType = "plan_order_paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderStateChanged,
	EventOrderCanceled,
	EventRenewalOrderCreated,
	EventRestaurantRenewalReminder,
	EventRestaurantDeactivated,
	EventRestaurantExtended,
	EventExchangeRateActivated,
	EventPlanOrderPaid,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
