package products

import (
	"context"
	"strings"

	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/pagination"
)

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Validation("invalid cursor")
	}

	query := listQuery{
		SupplierID: input.SupplierID,
		Cursor:     cursor,
		Limit:      pagination.LimitWithBuffer(input.Pagination.Limit),
	}
	if input.Category != nil {
		if category := strings.TrimSpace(*input.Category); category != "" {
			query.Category = &category
		}
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	rows, next := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return &ProductListResult{Products: out, NextCursor: next}, nil
}

func (s *service) ListMine(ctx context.Context, actor Actor, params pagination.Params) (*ProductListResult, error) {
	if actor.Role != enums.RoleSupplier {
		return nil, pkgerrors.Forbidden("only suppliers own products")
	}
	supplierID := actor.UserID
	return s.List(ctx, ListProductsInput{SupplierID: &supplierID, Pagination: params})
}
