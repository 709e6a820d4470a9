package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/internal/products"
	"github.com/angelmondragon/supplyhub-backend/internal/users"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	"github.com/angelmondragon/supplyhub-backend/pkg/outbox"
)

// Actor is the authenticated caller acting on an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role.String()}
}

// ListFilter narrows the admin order listing. Nil fields match everything.
type ListFilter struct {
	VendorID   *uuid.UUID
	SupplierID *uuid.UUID
}

func (f ListFilter) scope(db *gorm.DB) *gorm.DB {
	if f.VendorID != nil {
		db = db.Where("vendor_id = ?", *f.VendorID)
	}
	if f.SupplierID != nil {
		db = db.Where("supplier_id = ?", *f.SupplierID)
	}
	return db
}

// OrderItemInput is one requested line.
type OrderItemInput struct {
	ProductID        uuid.UUID `json:"product_id" validate:"required"`
	QuantityRequired int       `json:"quantity_required" validate:"required,min=1"`
}

// CreateOrderInput is the vendor's purchase request.
type CreateOrderInput struct {
	Items         []OrderItemInput    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required"`
}

// UpdateStatusInput moves one or both lifecycle axes.
type UpdateStatusInput struct {
	Status        *enums.OrderStatus   `json:"status,omitempty"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status,omitempty"`
}

// RateOrderInput is the vendor's review.
type RateOrderInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// OrderItemDTO is an order line with the current product view, or a null
// product once the product has been deleted.
type OrderItemDTO struct {
	ID               uuid.UUID                `json:"id"`
	ProductID        uuid.UUID                `json:"product_id"`
	Name             string                   `json:"name"`
	QuantityRequired int                      `json:"quantity_required"`
	PriceAtPurchase  decimal.Decimal          `json:"price_at_purchase"`
	LineTotal        decimal.Decimal          `json:"line_total"`
	Product          *products.ProductDisplay `json:"product"`
}

// RatingDTO is a vendor's review of an order.
type RatingDTO struct {
	ID        uuid.UUID `json:"id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderDTO is the list view returned to vendors and suppliers.
type OrderDTO struct {
	ID            uuid.UUID           `json:"id"`
	VendorID      uuid.UUID           `json:"vendor_id"`
	SupplierID    uuid.UUID           `json:"supplier_id"`
	Items         []OrderItemDTO      `json:"items"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Ratings       []RatingDTO         `json:"ratings"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderDetailsDTO joins both participants' public profiles. Ratings are
// served by the list views only.
type OrderDetailsDTO struct {
	ID            uuid.UUID            `json:"id"`
	Vendor        *users.PublicProfile `json:"vendor"`
	Supplier      *users.PublicProfile `json:"supplier"`
	Items         []OrderItemDTO       `json:"items"`
	TotalPrice    decimal.Decimal      `json:"total_price"`
	PaymentMethod enums.PaymentMethod  `json:"payment_method"`
	Status        enums.OrderStatus    `json:"status"`
	PaymentStatus enums.PaymentStatus  `json:"payment_status"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func itemsFromModel(items []models.OrderItem, productsByID map[uuid.UUID]*models.Product) []OrderItemDTO {
	out := make([]OrderItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItemDTO{
			ID:               item.ID,
			ProductID:        item.ProductID,
			Name:             item.Name,
			QuantityRequired: item.QuantityRequired,
			PriceAtPurchase:  item.PriceAtPurchase,
			LineTotal:        item.LineTotal,
			Product:          products.DisplayFromModel(productsByID[item.ProductID]),
		})
	}
	return out
}

func ratingsFromModel(ratings []models.OrderRating) []RatingDTO {
	out := make([]RatingDTO, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, RatingDTO{
			ID:        r.ID,
			VendorID:  r.VendorID,
			Rating:    r.Rating,
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func orderFromModel(o *models.Order, productsByID map[uuid.UUID]*models.Product) OrderDTO {
	return OrderDTO{
		ID:            o.ID,
		VendorID:      o.VendorID,
		SupplierID:    o.SupplierID,
		Items:         itemsFromModel(o.Items, productsByID),
		TotalPrice:    o.TotalPrice,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Ratings:       ratingsFromModel(o.Ratings),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func productIDs(orders ...*models.Order) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, o := range orders {
		for _, item := range o.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
