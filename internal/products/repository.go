package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/pagination"
)

// Repository persists catalog rows. Lookups return gorm.ErrRecordNotFound
// for unknown ids.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx; a nil tx keeps the current one.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// listQuery filters a newest-first page. Nil filters are not applied.
type listQuery struct {
	SupplierID *uuid.UUID
	Category   *string
	Cursor     *pagination.Cursor
	Limit      int
}

func (q listQuery) scope(db *gorm.DB) *gorm.DB {
	if q.SupplierID != nil {
		db = db.Where("supplier_id = ?", *q.SupplierID)
	}
	if q.Category != nil {
		db = db.Where("category = ?", *q.Category)
	}
	if c := q.Cursor; c != nil {
		db = db.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db.Order("created_at DESC").Order("id DESC")
}

func (r *Repository) products() gorm.Interface[models.Product] {
	return gorm.G[models.Product](r.db)
}

func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.products().Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := r.products().Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate row-locks the product until the transaction ends. The
// lock clause is dropped by sqlite.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Save writes every column, including zero values.
func (r *Repository) Save(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.products().Where("id = ?", id).Delete(ctx)
	return err
}

func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).Scopes(q.scope).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
