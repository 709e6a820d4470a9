package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/internal/media"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/supplyhub-backend/pkg/db/types"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/pagination"
)

const (
	defaultMaxImages      = 5
	defaultMaxAttachments = 10
)

// Service exposes the supplier catalog operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateProductInput, images, attachments []media.File) (*ProductDTO, error)
	Update(ctx context.Context, actor Actor, productID uuid.UUID, input UpdateProductInput, addImages, addAttachments []media.File) (*ProductDTO, error)
	Delete(ctx context.Context, actor Actor, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListMine(ctx context.Context, actor Actor, params pagination.Params) (*ProductListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams bundles the catalog dependencies.
type ServiceParams struct {
	Repo           *Repository
	DB             txRunner
	Users          userLoader
	Media          media.Uploader
	Logger         *logger.Logger
	MaxImages      int
	MaxAttachments int
}

type service struct {
	repo           *Repository
	db             txRunner
	users          userLoader
	media          media.Uploader
	logg           *logger.Logger
	maxImages      int
	maxAttachments int
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Media == nil {
		return nil, fmt.Errorf("media uploader required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	maxImages := params.MaxImages
	if maxImages <= 0 {
		maxImages = defaultMaxImages
	}
	maxAttachments := params.MaxAttachments
	if maxAttachments <= 0 {
		maxAttachments = defaultMaxAttachments
	}
	return &service{
		repo:           params.Repo,
		db:             params.DB,
		users:          params.Users,
		media:          params.Media,
		logg:           logg,
		maxImages:      maxImages,
		maxAttachments: maxAttachments,
	}, nil
}

// Create uploads the media and inserts the listing. Uploaded objects are
// removed again if the insert fails.
func (s *service) Create(ctx context.Context, actor Actor, input CreateProductInput, images, attachments []media.File) (*ProductDTO, error) {
	supplierID, err := s.resolveSupplier(ctx, actor, input.SupplierID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	switch {
	case name == "":
		return nil, pkgerrors.Validation("name is required")
	case category == "":
		return nil, pkgerrors.Validation("category is required")
	case input.PricePerUnit.IsNegative():
		return nil, pkgerrors.Validation("price_per_unit must be >= 0")
	case input.AvailableQuantity < 0:
		return nil, pkgerrors.Validation("available_quantity must be >= 0")
	case len(images) == 0:
		return nil, pkgerrors.Validation("at least one image is required")
	}
	if err := s.checkMediaLimits(len(images), len(attachments)); err != nil {
		return nil, err
	}

	imageURLs, err := s.media.Upload(ctx, media.KindImage, images)
	if err != nil {
		return nil, err
	}
	attachmentURLs, err := s.media.Upload(ctx, media.KindAttachment, attachments)
	if err != nil {
		s.media.Delete(ctx, imageURLs)
		return nil, err
	}

	product := &models.Product{
		SupplierID:        supplierID,
		Name:              name,
		PricePerUnit:      input.PricePerUnit,
		AvailableQuantity: input.AvailableQuantity,
		Category:          category,
		Images:            dbtypes.StringArray(imageURLs),
		Attachments:       dbtypes.StringArray(nonNil(attachmentURLs)),
	}
	if _, err := s.repo.Create(ctx, product); err != nil {
		s.media.Delete(ctx, append(imageURLs, attachmentURLs...))
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}

	s.logg.Info(s.productCtx(ctx, actor, product.ID), "product created")
	dto := FromModel(product)
	return &dto, nil
}

// Update applies the patch under a row lock. New files are uploaded before
// the transaction; removed objects are deleted only after commit.
func (s *service) Update(ctx context.Context, actor Actor, productID uuid.UUID, input UpdateProductInput, addImages, addAttachments []media.File) (*ProductDTO, error) {
	if err := validatePatch(input); err != nil {
		return nil, err
	}

	current, err := s.loadOwned(ctx, actor, productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMediaLimits(
		len(current.Images.Without(input.RemoveImageURLs))+len(addImages),
		len(current.Attachments.Without(input.RemoveAttachmentURLs))+len(addAttachments),
	); err != nil {
		return nil, err
	}

	newImages, err := s.media.Upload(ctx, media.KindImage, addImages)
	if err != nil {
		return nil, err
	}
	newAttachments, err := s.media.Upload(ctx, media.KindAttachment, addAttachments)
	if err != nil {
		s.media.Delete(ctx, newImages)
		return nil, err
	}
	uploaded := append(append([]string{}, newImages...), newAttachments...)

	var (
		updated *models.Product
		removed []string
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if err := authorizeOwner(actor, product); err != nil {
			return err
		}

		keptImages := product.Images.Without(input.RemoveImageURLs)
		keptAttachments := product.Attachments.Without(input.RemoveAttachmentURLs)
		if err := s.checkMediaLimits(len(keptImages)+len(newImages), len(keptAttachments)+len(newAttachments)); err != nil {
			return err
		}
		removed = append(removedURLs(product.Images, input.RemoveImageURLs), removedURLs(product.Attachments, input.RemoveAttachmentURLs)...)

		applyPatch(product, input)
		product.Images = append(keptImages, newImages...)
		product.Attachments = append(keptAttachments, newAttachments...)

		saved, err := repo.Save(ctx, product)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
		}
		updated = saved
		return nil
	})
	if err != nil {
		s.media.Delete(ctx, uploaded)
		return nil, err
	}

	s.media.Delete(ctx, removed)
	s.logg.Info(s.productCtx(ctx, actor, productID), "product updated")
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, productID uuid.UUID) error {
	var product *models.Product
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if err := authorizeOwner(actor, found); err != nil {
			return err
		}
		if err := repo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
		}
		product = found
		return nil
	})
	if err != nil {
		return err
	}

	s.media.Delete(ctx, append(append([]string{}, product.Images...), product.Attachments...))
	s.logg.Info(s.productCtx(ctx, actor, productID), "product deleted")
	return nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	dto := FromModel(product)
	return &dto, nil
}

// resolveSupplier returns the owning supplier for a new listing. Suppliers
// always create for themselves; admins must name an existing supplier.
func (s *service) resolveSupplier(ctx context.Context, actor Actor, requested *uuid.UUID) (uuid.UUID, error) {
	switch actor.Role {
	case enums.RoleSupplier:
		return actor.UserID, nil
	case enums.RoleAdmin:
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, pkgerrors.Validation("supplier_id is required")
		}
		user, err := s.users.FindByID(ctx, *requested)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, pkgerrors.Validation("supplier_id must reference a supplier")
			}
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load supplier")
		}
		if user.Role != enums.RoleSupplier {
			return uuid.Nil, pkgerrors.Validation("supplier_id must reference a supplier")
		}
		return user.ID, nil
	default:
		return uuid.Nil, pkgerrors.Forbidden("only suppliers can create products")
	}
}

func (s *service) loadOwned(ctx context.Context, actor Actor, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if err := authorizeOwner(actor, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) checkMediaLimits(images, attachments int) error {
	if images > s.maxImages {
		return pkgerrors.Validation(fmt.Sprintf("max %d images allowed", s.maxImages))
	}
	if attachments > s.maxAttachments {
		return pkgerrors.Validation(fmt.Sprintf("max %d attachments allowed", s.maxAttachments))
	}
	return nil
}

func (s *service) productCtx(ctx context.Context, actor Actor, productID uuid.UUID) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"product_id": productID.String(),
		"user_id":    actor.UserID.String(),
		"actor_role": actor.Role.String(),
	})
}

func authorizeOwner(actor Actor, product *models.Product) error {
	if actor.Role == enums.RoleAdmin {
		return nil
	}
	if actor.Role != enums.RoleSupplier || product.SupplierID != actor.UserID {
		return pkgerrors.Forbidden("not your product")
	}
	return nil
}

func validatePatch(input UpdateProductInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return pkgerrors.Validation("name cannot be empty")
	}
	if input.Category != nil && strings.TrimSpace(*input.Category) == "" {
		return pkgerrors.Validation("category cannot be empty")
	}
	if input.PricePerUnit != nil && input.PricePerUnit.IsNegative() {
		return pkgerrors.Validation("price_per_unit must be >= 0")
	}
	if input.AvailableQuantity != nil && *input.AvailableQuantity < 0 {
		return pkgerrors.Validation("available_quantity must be >= 0")
	}
	return nil
}

func applyPatch(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.PricePerUnit != nil {
		product.PricePerUnit = *input.PricePerUnit
	}
	if input.AvailableQuantity != nil {
		product.AvailableQuantity = *input.AvailableQuantity
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	product.RecomputeStock()
}

// removedURLs returns the subset of remove that the product actually holds.
func removedURLs(current dbtypes.StringArray, remove []string) []string {
	var out []string
	for _, url := range remove {
		if current.Contains(url) {
			out = append(out, url)
		}
	}
	return out
}
