package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
)

// Repository reads and writes users. Lookups return gorm.ErrRecordNotFound
// for unknown rows.
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

func (r *Repository) users() gorm.Interface[models.User] {
	return gorm.G[models.User](r.db)
}

// Create inserts the user built from dto; the email is stored normalized.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := r.users().Where(query, arg).First(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmailOrPhone reports whether either identifier is already taken.
func (r *Repository) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	n, err := r.users().Where("email = ? OR phone = ?", NormalizeEmail(email), phone).Count(ctx, "id")
	return n > 0, err
}

// FindByIDs returns the existing users among ids keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	found := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.users().Where("id IN ?", ids).Find(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		found[rows[i].ID] = &rows[i]
	}
	return found, nil
}

// LoadDTO is the auth gate's user loader.
func (r *Repository) LoadDTO(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}
