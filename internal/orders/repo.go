package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
)

// decrementStockSQL only succeeds while enough stock remains, so concurrent
// orders for the same product can never drive the counter negative.
const decrementStockSQL = `
UPDATE products
SET available_quantity = available_quantity - ?,
    is_out_of_stock = (available_quantity - ? <= 0),
    updated_at = ?
WHERE id = ? AND available_quantity >= ?`

const restoreStockSQL = `
UPDATE products
SET available_quantity = available_quantity + ?,
    is_out_of_stock = (available_quantity + ? <= 0),
    updated_at = ?
WHERE id = ?`

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order together with its items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) CreateRating(ctx context.Context, rating *models.OrderRating) (*models.OrderRating, error) {
	if err := r.db.WithContext(ctx).Create(rating).Error; err != nil {
		return nil, err
	}
	return rating, nil
}

func (r *repository) HasRating(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderRating{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "vendor_id = ?", vendorID)
}

func (r *repository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "supplier_id = ?", supplierID)
}

// List returns every order matching the optional party filters.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	return r.find(ctx, filter.scope)
}

func (r *repository) list(ctx context.Context, where string, id uuid.UUID) ([]models.Order, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return db.Where(where, id) })
}

func (r *repository) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Ratings").
		Scopes(scope).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// DeleteOrder removes the order with its items and rating.
func (r *repository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderRating{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Order{}, "id = ?", orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindProducts returns the products that still exist, keyed by id.
func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// DecrementStock reports false when the product lacks qty units.
func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(decrementStockSQL, qty, qty, time.Now().UTC(), productID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestoreStock reports false when the product no longer exists.
func (r *repository) RestoreStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(restoreStockSQL, qty, qty, time.Now().UTC(), productID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
