package orders

import "github.com/rank0/digimenu-backend/pkg/enums"

// StatusInfo is a read-only projection of an order status for presentation.
type StatusInfo struct {
	Status      enums.OrderStatus `json:"status"`
	IsPaid      bool              `json:"is_paid"`
	IsCompleted bool              `json:"is_completed"`
	IsPending   bool              `json:"is_pending"`
	IsConfirmed bool              `json:"is_confirmed"`
	IsDelivered bool              `json:"is_delivered"`
}

func GetStatusInfo(status enums.OrderStatus) StatusInfo {
	return StatusInfo{
		Status:      status,
		IsPaid:      status.IsPaid(),
		IsCompleted: status.IsTerminal(),
		IsPending:   status == enums.OrderStatusUnpaid || status == enums.OrderStatusNotRenewed,
		IsConfirmed: status == enums.OrderStatusConfirmed || status == enums.OrderStatusDelivered,
		IsDelivered: status == enums.OrderStatusDelivered,
	}
}
