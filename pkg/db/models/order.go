package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
)

// Order is a vendor's purchase from a single supplier.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID      uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	SupplierID    uuid.UUID           `gorm:"column:supplier_id;type:uuid;not null;index"`
	TotalPrice    decimal.Decimal     `gorm:"column:total_price;type:numeric(14,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Ratings       []OrderRating       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots a product line at order time. ProductID may dangle
// once the product is deleted; Name and PriceAtPurchase stay authoritative.
type OrderItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	SupplierID       uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null"`
	Name             string          `gorm:"column:name;not null"`
	QuantityRequired int             `gorm:"column:quantity_required;not null"`
	PriceAtPurchase  decimal.Decimal `gorm:"column:price_at_purchase;type:numeric(12,2);not null"`
	LineTotal        decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// OrderRating is the vendor's single review of an order.
type OrderRating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:order_ratings_order_id_key"`
	VendorID  uuid.UUID `gorm:"column:vendor_id;type:uuid;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   string    `gorm:"column:comment;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *OrderRating) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
