package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smaite/weser/api/responses"
	"github.com/smaite/weser/api/validators"
	productsvc "github.com/smaite/weser/internal/products"
	"github.com/smaite/weser/pkg/enums"
	pkgerrors "github.com/smaite/weser/pkg/errors"
	"github.com/smaite/weser/pkg/logger"
)

type createProductRequest struct {
	Name          string     `json:"name" validate:"required,min=1,max=200"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price         string     `json:"price" validate:"required"`
	StockQuantity int        `json:"stock_quantity" validate:"min=0"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	Images        []string   `json:"images,omitempty" validate:"omitempty,dive,max=2048"`
	Featured      bool       `json:"featured"`
	Status        *string    `json:"status,omitempty"`
}

type updateProductRequest struct {
	Name          *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price         *string    `json:"price,omitempty"`
	StockQuantity *int       `json:"stock_quantity,omitempty" validate:"omitempty,min=0"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	Images        *[]string  `json:"images,omitempty" validate:"omitempty,dive,max=2048"`
	Featured      *bool      `json:"featured,omitempty"`
	Status        *string    `json:"status,omitempty"`
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// AdminListProducts serves the catalog including inactive listings.
func AdminListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		input, err := listProductsInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.IncludeInactive = true

		page, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// AdminCreateProduct adds a catalog listing.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminUpdateProduct patches a catalog listing.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := pathUUID(r, chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct removes a catalog listing outright.
func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := pathUUID(r, chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminRestockProduct adds stock on top of the current quantity.
func AdminRestockProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := pathUUID(r, chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.RestockProduct(r.Context(), productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func (p createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}

	status := enums.ProductStatusActive
	if p.Status != nil {
		status, err = enums.ParseProductStatus(*p.Status)
		if err != nil {
			return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
	}

	return productsvc.CreateProductInput{
		Name:          p.Name,
		Description:   p.Description,
		Price:         price,
		StockQuantity: p.StockQuantity,
		CategoryID:    p.CategoryID,
		Images:        p.Images,
		Featured:      p.Featured,
		Status:        status,
	}, nil
}

func (p updateProductRequest) toInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		Name:          p.Name,
		Description:   p.Description,
		StockQuantity: p.StockQuantity,
		CategoryID:    p.CategoryID,
		Images:        p.Images,
		Featured:      p.Featured,
	}

	if p.Price != nil {
		price, err := decimal.NewFromString(*p.Price)
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
		}
		input.Price = &price
	}

	if p.Status != nil {
		status, err := enums.ParseProductStatus(*p.Status)
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		input.Status = &status
	}

	return input, nil
}
