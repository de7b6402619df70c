package controllers

import (
	"net/http"

	"github.com/smaite/weser/api/responses"
	"github.com/smaite/weser/api/validators"
	checkoutsvc "github.com/smaite/weser/internal/checkout"
	"github.com/smaite/weser/internal/orders"
	pkgerrors "github.com/smaite/weser/pkg/errors"
	"github.com/smaite/weser/pkg/logger"
)

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,min=1,max=500"`
	PaymentMethod   string `json:"payment_method" validate:"required,min=1,max=64"`
}

// Checkout materializes the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), userID, checkoutsvc.CheckoutInput{
			ShippingAddress: payload.ShippingAddress,
			PaymentMethod:   payload.PaymentMethod,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.ToOrderDTO(order))
	}
}
