package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/internal/users"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
)

// GetDetails is visible to the order's two participants and to admins.
func (s *service) GetDetails(ctx context.Context, callerID uuid.UUID, callerRole enums.Role, orderID uuid.UUID) (*OrderDetailsDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if callerRole != enums.RoleAdmin && callerID != order.VendorID && callerID != order.SupplierID {
		return nil, pkgerrors.Forbidden("not a participant of this order")
	}

	people, err := s.users.FindByIDs(ctx, []uuid.UUID{order.VendorID, order.SupplierID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load participants")
	}
	productsByID, err := s.repo.FindProducts(ctx, productIDs(order))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	return &OrderDetailsDTO{
		ID:            order.ID,
		Vendor:        users.ProfileFromModel(people[order.VendorID]),
		Supplier:      users.ProfileFromModel(people[order.SupplierID]),
		Items:         itemsFromModel(order.Items, productsByID),
		TotalPrice:    order.TotalPrice,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}, nil
}

// List is the admin view across every order, optionally narrowed to one
// vendor or supplier.
func (s *service) List(ctx context.Context, filter ListFilter) ([]OrderDTO, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return s.hydrate(ctx, rows)
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendor orders")
	}
	return s.hydrate(ctx, rows)
}

func (s *service) ListForSupplier(ctx context.Context, supplierID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListBySupplier(ctx, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list supplier orders")
	}
	return s.hydrate(ctx, rows)
}

func (s *service) hydrate(ctx context.Context, rows []models.Order) ([]OrderDTO, error) {
	refs := make([]*models.Order, 0, len(rows))
	for i := range rows {
		refs = append(refs, &rows[i])
	}
	productsByID, err := s.repo.FindProducts(ctx, productIDs(refs...))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	out := make([]OrderDTO, 0, len(rows))
	for _, order := range refs {
		out = append(out, orderFromModel(order, productsByID))
	}
	return out, nil
}
