package enums

import "fmt"

// OrderStatus tracks a menu order through payment, review and renewal.
type OrderStatus string

const (
	OrderStatusUnpaid     OrderStatus = "UNPAID"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusNotRenewed OrderStatus = "NOT_RENEWED"
	OrderStatusRenewal    OrderStatus = "RENEWAL"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusUnpaid,
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusDelivered,
	OrderStatusNotRenewed,
	OrderStatusRenewal,
}

// OpenRenewalStatuses block the creation of another renewal order for the
// same restaurant.
var OpenRenewalStatuses = []OrderStatus{
	OrderStatusUnpaid,
	OrderStatusNotRenewed,
	OrderStatusRenewal,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle step follows.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusRenewal
}

// IsPaid reports whether a payment has been confirmed for the order.
func (s OrderStatus) IsPaid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusRenewal:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
