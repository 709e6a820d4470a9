package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
)

// Repository defines persistence operations for the order tables and the
// stock counters they consume.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	CreateRating(ctx context.Context, rating *models.OrderRating) (*models.OrderRating, error)
	HasRating(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	RestoreStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}
