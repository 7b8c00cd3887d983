package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billforge/billforge-backend/api/responses"
	"github.com/billforge/billforge-backend/api/validators"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	productsvc "github.com/billforge/billforge-backend/internal/products"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

type createProductRequest struct {
	Name  string          `json:"name" validate:"required"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock" validate:"omitempty,min=0"`
}

type productView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku,omitempty"`
	Price     string    `json:"price"`
	Stock     int64     `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

func toProductView(product *models.Product) productView {
	return productView{
		ID:        product.ID.String(),
		Name:      product.Name,
		SKU:       product.SKU,
		Price:     product.Price.StringFixed(2),
		Stock:     product.Stock,
		CreatedAt: product.CreatedAt,
	}
}

// CreateProduct adds a catalog entry, consuming one unit of product quota.
func CreateProduct(auths authsvc.Service, svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auths == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Price.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative"))
			return
		}

		tenant, err := auths.Tenant(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found"))
			return
		}

		product, err := svc.Create(r.Context(), tenant, productsvc.CreateProductInput{
			Name:  payload.Name,
			SKU:   payload.SKU,
			Price: payload.Price,
			Stock: payload.Stock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toProductView(product))
	}
}

type productListView struct {
	Products   []productView `json:"products"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListProducts returns one page of the tenant catalog, newest first.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), tid, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]productView, 0, len(page.Products))
		for i := range page.Products {
			views = append(views, toProductView(&page.Products[i]))
		}
		responses.WriteSuccess(w, productListView{Products: views, NextCursor: page.NextCursor})
	}
}

// DeleteProduct removes a tenant's catalog entry.
func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		if err := svc.Delete(r.Context(), tid, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
