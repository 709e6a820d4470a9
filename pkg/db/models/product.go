package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/supplyhub-backend/pkg/db/types"
)

// Product is a supplier's catalog listing.
type Product struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID        uuid.UUID           `gorm:"column:supplier_id;type:uuid;not null;index"`
	Name              string              `gorm:"column:name;not null"`
	PricePerUnit      decimal.Decimal     `gorm:"column:price_per_unit;type:numeric(12,2);not null"`
	AvailableQuantity int                 `gorm:"column:available_quantity;not null;default:0"`
	Category          string              `gorm:"column:category;not null;index"`
	Images            dbtypes.StringArray `gorm:"column:images;not null"`
	Attachments       dbtypes.StringArray `gorm:"column:attachments;not null"`
	IsOutOfStock      bool                `gorm:"column:is_out_of_stock;not null;default:false"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// BeforeSave keeps the derived out-of-stock flag in step with the quantity.
func (p *Product) BeforeSave(*gorm.DB) error {
	p.RecomputeStock()
	return nil
}

// RecomputeStock derives IsOutOfStock from AvailableQuantity.
func (p *Product) RecomputeStock() {
	p.IsOutOfStock = p.AvailableQuantity <= 0
}
