package products

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/supplyhub-backend/api/middleware"
	"github.com/angelmondragon/supplyhub-backend/api/responses"
	"github.com/angelmondragon/supplyhub-backend/api/validators"
	"github.com/angelmondragon/supplyhub-backend/internal/media"
	productsvc "github.com/angelmondragon/supplyhub-backend/internal/products"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

// Create handles the multipart product creation form.
func Create(svc productsvc.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !validators.IsMultipart(r) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "multipart/form-data body required"))
			return
		}
		if err := validators.ParseMultipart(w, r, maxUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		input, err := createInputFromForm(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		images := mediaFiles(validators.FormFiles(r, imageFields...))
		attachments := mediaFiles(validators.FormFiles(r, attachmentFields...))

		product, err := svc.Create(r.Context(), actor, input, images, attachments)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// Update applies a multipart or JSON patch to a product.
func Update(svc productsvc.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var (
			input                   productsvc.UpdateProductInput
			newImages, newDocuments []media.File
		)
		if validators.IsMultipart(r) {
			if err := validators.ParseMultipart(w, r, maxUploadBytes); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			defer r.MultipartForm.RemoveAll()
			if input, err = updateInputFromForm(r); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			newImages = mediaFiles(validators.FormFiles(r, imageFields...))
			newDocuments = mediaFiles(validators.FormFiles(r, attachmentFields...))
		} else {
			var body updateProductRequest
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input = body.toInput()
		}

		product, err := svc.Update(r.Context(), actor, productID, input, newImages, newDocuments)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// Delete removes a product and its media.
func Delete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "product deleted"})
	}
}

func Get(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// List serves the public catalog with optional supplier and category filters.
func List(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplierID, err := validators.ParseQueryUUID(r, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := productsvc.ListProductsInput{Pagination: params, SupplierID: supplierID}
		if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
			input.Category = &category
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListMine lists the calling supplier's own products, newest first.
func ListMine(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListMine(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func actorFromRequest(r *http.Request) (productsvc.Actor, error) {
	userID, err := middleware.CallerID(r.Context())
	if err != nil {
		return productsvc.Actor{}, err
	}
	return productsvc.Actor{UserID: userID, Role: enums.Role(middleware.RoleFromContext(r.Context()))}, nil
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
