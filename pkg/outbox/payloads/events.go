package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
)

// OrderLine is the per-product slice of an order carried in events.
type OrderLine struct {
	ProductID        uuid.UUID       `json:"product_id"`
	Name             string          `json:"name"`
	QuantityRequired int             `json:"quantity_required"`
	PriceAtPurchase  decimal.Decimal `json:"price_at_purchase"`
}

// OrderCreatedEvent is emitted once an order and its stock decrements commit.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	VendorID      uuid.UUID           `json:"vendor_id"`
	SupplierID    uuid.UUID           `json:"supplier_id"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Items         []OrderLine         `json:"items"`
}

// OrderStatusChangedEvent records a fulfilment transition made by the supplier.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	VendorID   uuid.UUID         `json:"vendor_id"`
	SupplierID uuid.UUID         `json:"supplier_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
}

// OrderPaymentStatusChangedEvent records a payment transition.
type OrderPaymentStatusChangedEvent struct {
	OrderID    uuid.UUID           `json:"order_id"`
	VendorID   uuid.UUID           `json:"vendor_id"`
	SupplierID uuid.UUID           `json:"supplier_id"`
	From       enums.PaymentStatus `json:"from"`
	To         enums.PaymentStatus `json:"to"`
}

// OrderCancelledEvent is emitted whenever an order is cancelled and its stock restored.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	VendorID    uuid.UUID  `json:"vendor_id"`
	SupplierID  uuid.UUID  `json:"supplier_id"`
	CancelledBy enums.Role `json:"cancelled_by"`
	CancelledAt time.Time  `json:"cancelled_at"`
}

// OrderRatedEvent carries a vendor's review of an order.
type OrderRatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	SupplierID uuid.UUID `json:"supplier_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
}

// OrderDeletedEvent is emitted when an admin removes an order. Restocked is
// false when the order was already terminal.
type OrderDeletedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	VendorID   uuid.UUID         `json:"vendor_id"`
	SupplierID uuid.UUID         `json:"supplier_id"`
	Status     enums.OrderStatus `json:"status"`
	Restocked  bool              `json:"restocked"`
	DeletedAt  time.Time         `json:"deleted_at"`
}

// Attributes lets subscribers filter on the parties involved.
func (e *OrderCreatedEvent) Attributes() map[string]string {
	return map[string]string{
		"supplier_id":    e.SupplierID.String(),
		"payment_method": string(e.PaymentMethod),
	}
}

func (e *OrderStatusChangedEvent) Attributes() map[string]string {
	return map[string]string{"status": string(e.To)}
}

func (e *OrderPaymentStatusChangedEvent) Attributes() map[string]string {
	return map[string]string{"payment_status": string(e.To)}
}

func (e *OrderCancelledEvent) Attributes() map[string]string {
	return map[string]string{"cancelled_by": string(e.CancelledBy)}
}

func (e *OrderDeletedEvent) Attributes() map[string]string {
	return map[string]string{"status": string(e.Status)}
}
