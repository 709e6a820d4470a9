package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	"github.com/angelmondragon/supplyhub-backend/pkg/pagination"
)

// Actor is the authenticated caller of a catalog mutation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// ProductDTO is the catalog transport shape.
type ProductDTO struct {
	ID                uuid.UUID       `json:"id"`
	SupplierID        uuid.UUID       `json:"supplier_id"`
	Name              string          `json:"name"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	AvailableQuantity int             `json:"available_quantity"`
	Category          string          `json:"category"`
	Images            []string        `json:"images"`
	Attachments       []string        `json:"attachments"`
	IsOutOfStock      bool            `json:"is_out_of_stock"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProductDisplay is the reduced product view embedded in order lines.
type ProductDisplay struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	AvailableQuantity int             `json:"available_quantity"`
	Category          string          `json:"category"`
	IsOutOfStock      bool            `json:"is_out_of_stock"`
}

// ProductListResult is one cursor page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CreateProductInput holds the validated fields of a new listing.
// SupplierID is only honoured for admins creating on a supplier's behalf.
type CreateProductInput struct {
	SupplierID        *uuid.UUID
	Name              string
	PricePerUnit      decimal.Decimal
	AvailableQuantity int
	Category          string
}

// UpdateProductInput is a patch: nil fields are left untouched.
type UpdateProductInput struct {
	Name                 *string
	PricePerUnit         *decimal.Decimal
	AvailableQuantity    *int
	Category             *string
	RemoveImageURLs      []string
	RemoveAttachmentURLs []string
}

// IsEmpty reports whether the patch changes no field and removes no media.
func (in UpdateProductInput) IsEmpty() bool {
	return in.Name == nil && in.PricePerUnit == nil && in.AvailableQuantity == nil &&
		in.Category == nil && len(in.RemoveImageURLs) == 0 && len(in.RemoveAttachmentURLs) == 0
}

// ListProductsInput filters the public browse endpoint.
type ListProductsInput struct {
	SupplierID *uuid.UUID
	Category   *string
	Pagination pagination.Params
}

func FromModel(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:                p.ID,
		SupplierID:        p.SupplierID,
		Name:              p.Name,
		PricePerUnit:      p.PricePerUnit,
		AvailableQuantity: p.AvailableQuantity,
		Category:          p.Category,
		Images:            nonNil(p.Images),
		Attachments:       nonNil(p.Attachments),
		IsOutOfStock:      p.IsOutOfStock,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// DisplayFromModel returns nil for a deleted product.
func DisplayFromModel(p *models.Product) *ProductDisplay {
	if p == nil {
		return nil
	}
	return &ProductDisplay{
		ID:                p.ID,
		Name:              p.Name,
		PricePerUnit:      p.PricePerUnit,
		AvailableQuantity: p.AvailableQuantity,
		Category:          p.Category,
		IsOutOfStock:      p.IsOutOfStock,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
