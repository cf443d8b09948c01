package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/checkout"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
)

func (a *api) registerCheckoutRoutes(g *gin.RouterGroup) {
	g.POST("", a.checkout)
}

func (a *api) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	if p, _ := auth.PrincipalFrom(c); !p.CanActFor(req.UserID) {
		forbidden(c)
		return
	}

	o, err := a.Checkout.Checkout(ctx, req.UserID, req.PaymentID)
	switch {
	case errors.Is(err, checkout.ErrPaymentInProgress):
		respond(c, http.StatusConflict, "error", "Payment already being processed")
	case errors.Is(err, orders.ErrPaymentIDTaken):
		respond(c, http.StatusConflict, "error", "payment_id_in_use")
	case errors.Is(err, checkout.ErrEmptyCart):
		respond(c, http.StatusBadRequest, "error", "Cart is empty")
	case err != nil:
		internalError(c, "checkout", err)
	default:
		a.orderCreated(ctx, o)
		respond(c, http.StatusCreated, "created", o)
	}
}
