package products

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/supplyhub-backend/api/validators"
	"github.com/angelmondragon/supplyhub-backend/internal/media"
	productsvc "github.com/angelmondragon/supplyhub-backend/internal/products"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
)

var (
	imageFields             = []string{"image", "image[]", "images", "images[]"}
	attachmentFields        = []string{"attachments", "attachments[]"}
	removeImageFields       = []string{"remove_images", "remove_images[]"}
	removeAttachmentsFields = []string{"remove_attachments", "remove_attachments[]"}
)

// updateProductRequest is the JSON form of a product patch.
type updateProductRequest struct {
	Name              *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PricePerUnit      *decimal.Decimal `json:"price_per_unit,omitempty"`
	AvailableQuantity *int             `json:"available_quantity,omitempty" validate:"omitempty,min=0"`
	Category          *string          `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	RemoveImages      []string         `json:"remove_images,omitempty"`
	RemoveAttachments []string         `json:"remove_attachments,omitempty"`
}

func (r updateProductRequest) toInput() productsvc.UpdateProductInput {
	return productsvc.UpdateProductInput{
		Name:                 r.Name,
		PricePerUnit:         r.PricePerUnit,
		AvailableQuantity:    r.AvailableQuantity,
		Category:             r.Category,
		RemoveImageURLs:      r.RemoveImages,
		RemoveAttachmentURLs: r.RemoveAttachments,
	}
}

func createInputFromForm(r *http.Request) (productsvc.CreateProductInput, error) {
	var input productsvc.CreateProductInput

	name, _ := validators.FormValue(r, "name")
	category, _ := validators.FormValue(r, "category")
	input.Name = name
	input.Category = category

	rawPrice, ok := validators.FormValue(r, "price_per_unit")
	if !ok || rawPrice == "" {
		return input, fieldError("price_per_unit", "is required")
	}
	price, err := parsePrice(rawPrice)
	if err != nil {
		return input, err
	}
	input.PricePerUnit = price

	rawQty, ok := validators.FormValue(r, "available_quantity")
	if !ok || rawQty == "" {
		return input, fieldError("available_quantity", "is required")
	}
	qty, err := parseQuantity(rawQty)
	if err != nil {
		return input, err
	}
	input.AvailableQuantity = qty

	if rawSupplier, ok := validators.FormValue(r, "supplier_id"); ok && rawSupplier != "" {
		supplierID, err := uuid.Parse(rawSupplier)
		if err != nil {
			return input, fieldError("supplier_id", "must be a uuid")
		}
		input.SupplierID = &supplierID
	}
	return input, nil
}

func updateInputFromForm(r *http.Request) (productsvc.UpdateProductInput, error) {
	var input productsvc.UpdateProductInput

	if name, ok := validators.FormValue(r, "name"); ok {
		input.Name = &name
	}
	if category, ok := validators.FormValue(r, "category"); ok {
		input.Category = &category
	}
	if raw, ok := validators.FormValue(r, "price_per_unit"); ok {
		price, err := parsePrice(raw)
		if err != nil {
			return input, err
		}
		input.PricePerUnit = &price
	}
	if raw, ok := validators.FormValue(r, "available_quantity"); ok {
		qty, err := parseQuantity(raw)
		if err != nil {
			return input, err
		}
		input.AvailableQuantity = &qty
	}
	input.RemoveImageURLs = validators.FormValues(r, removeImageFields...)
	input.RemoveAttachmentURLs = validators.FormValues(r, removeAttachmentsFields...)
	return input, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fieldError("price_per_unit", "must be a decimal number")
	}
	return price, nil
}

func parseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fieldError("available_quantity", "must be an integer")
	}
	return qty, nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
		WithDetails(map[string]string{field: message})
}

func mediaFiles(headers []*multipart.FileHeader) []media.File {
	out := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		out = append(out, media.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return out
}
