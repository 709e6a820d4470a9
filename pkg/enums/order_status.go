package enums

// OrderStatus tracks the fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = closedSet[OrderStatus]{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Orders only move forward; cancellation is possible until shipment.
var orderLifecycle = lifecycle[OrderStatus]{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// IsTerminal reports whether s is a known status with no way out.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderLifecycle[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderLifecycle.allows(s, next)
}

// NextOrderStatuses returns the legal targets from s.
func NextOrderStatuses(s OrderStatus) []OrderStatus {
	return orderLifecycle.next(s)
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse("order status", value)
}
