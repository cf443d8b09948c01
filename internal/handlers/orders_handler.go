package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/events"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/payment"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
)

func (a *api) registerOrderRoutes(g *gin.RouterGroup) {
	g.POST("", a.createOrder)
	g.GET("/:id", a.getOrder)
	g.GET("/by-customer/:userId", auth.RequireSelfOrAdmin("userId"), a.listOrdersByCustomer)

	g.POST("/payment/:paymentId/approve", a.approvePayment)
	g.POST("/payment/:paymentId/fail", a.failPayment)
	g.POST("/payment/:paymentId/cancel", a.cancelPayment)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", a.listOrders)
	admin.PATCH("/:id", a.updateOrder)
	admin.DELETE("/:id", a.deleteOrder)
}

func (a *api) listOrders(c *gin.Context) {
	list, err := a.Orders.List(c.Request.Context())
	if err != nil {
		internalError(c, "list orders", err)
		return
	}
	respond(c, http.StatusOK, "success", list)
}

func (a *api) getOrder(c *gin.Context) {
	o, err := a.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		internalError(c, "get order", err)
		return
	}
	if o == nil {
		notFound(c, "Order")
		return
	}
	if p, _ := auth.PrincipalFrom(c); !p.CanActFor(o.UserID) {
		forbidden(c)
		return
	}
	respond(c, http.StatusOK, "success", o)
}

func (a *api) listOrdersByCustomer(c *gin.Context) {
	list, err := a.Orders.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		internalError(c, "list orders by customer", err)
		return
	}
	respond(c, http.StatusOK, "success", list)
}

func (a *api) createOrder(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	p, _ := auth.PrincipalFrom(c)
	if req.UserID == "" {
		req.UserID = p.UserID
	}
	if !p.CanActFor(req.UserID) {
		forbidden(c)
		return
	}

	o := &orders.Order{
		UserID:    req.UserID,
		PaymentID: strings.TrimSpace(req.PaymentID),
		Status:    orders.StatusPending,
	}
	if p.IsAdmin() {
		if req.Status != "" {
			o.Status = req.Status
		}
		if req.PaymentConfirmed != nil {
			o.PaymentConfirmed = *req.PaymentConfirmed
		}
	}
	items, err := a.lineItems(ctx, req.Items)
	if err != nil {
		internalError(c, "load order vinyls", err)
		return
	}
	o.Items = items
	if len(items) == 0 && req.Quantity != nil {
		o.Quantity = *req.Quantity
	}

	if err := a.Orders.Create(ctx, o); err != nil {
		if errors.Is(err, orders.ErrPaymentIDTaken) {
			respond(c, http.StatusConflict, "error", "payment_id_in_use")
			return
		}
		internalError(c, "create order", err)
		return
	}

	a.orderCreated(ctx, o)
	respond(c, http.StatusCreated, "created", o)
}

// lineItems converts payload items, filling the vinyl snapshot when the
// payload carries no title.
func (a *api) lineItems(ctx context.Context, in []validation.OrderItem) ([]orders.LineItem, error) {
	out := make([]orders.LineItem, 0, len(in))
	for _, it := range in {
		li := orders.LineItem{
			VinylID:   it.VinylID,
			Quantity:  it.Quantity,
			Title:     it.Title,
			Artist:    it.Artist,
			Price:     it.Price,
			CoverPath: it.CoverPath,
		}
		if strings.TrimSpace(li.Title) == "" {
			v, err := a.Vinyls.Get(ctx, li.VinylID)
			if err != nil {
				return nil, err
			}
			if v != nil {
				li.Snapshot(v)
			}
		}
		out = append(out, li)
	}
	return out, nil
}

// orderCreated mails the customer and publishes order.created. Neither can
// fail the request.
func (a *api) orderCreated(ctx context.Context, o *orders.Order) {
	log := logging.FromContext(ctx).With(zap.String("order_id", o.ID))
	if a.Events != nil {
		if err := a.Events.Publish(ctx, events.NewOrderEvent(events.TypeOrderCreated, o)); err != nil {
			log.Warn("publish order created", zap.Error(err))
		}
	}

	u, err := a.Users.Get(ctx, o.UserID)
	if err != nil || u == nil || u.Email == "" {
		if err != nil {
			log.Warn("load customer for order mail", zap.Error(err))
		}
		return
	}
	msg := mail.Message{
		From:    a.MailFrom,
		To:      u.Email,
		Subject: "Order confirmation " + o.ID,
		Body:    orderMailBody(o),
		Kind:    "order",
	}
	if err := a.Mailer.Send(ctx, msg); err != nil {
		log.Warn("send order mail", zap.Error(err))
	}
}

func orderMailBody(o *orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order has been received. Request Order: %s\nItems:\n", o.ID)
	for i, it := range o.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		name := it.Title
		if name == "" {
			name = it.VinylID
		}
		fmt.Fprintf(&b, "%s (x%d)", name, it.Quantity)
	}
	return b.String()
}

func (a *api) updateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.UpdateOrderRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	o, err := a.Orders.Get(ctx, c.Param("id"))
	if err != nil {
		internalError(c, "get order", err)
		return
	}
	if o == nil {
		notFound(c, "Order")
		return
	}
	if req.PaymentID != nil && strings.TrimSpace(*req.PaymentID) != o.PaymentID {
		respond(c, http.StatusConflict, "error", "payment_id_immutable")
		return
	}

	if req.UserID != nil {
		o.UserID = *req.UserID
	}
	if req.Items != nil {
		items, err := a.lineItems(ctx, req.Items)
		if err != nil {
			internalError(c, "load order vinyls", err)
			return
		}
		o.Items = items
	}
	if req.Status != nil {
		o.Status = *req.Status
	}
	if req.PaymentConfirmed != nil {
		o.PaymentConfirmed = *req.PaymentConfirmed
	}
	if len(o.Items) == 0 {
		switch {
		case req.Quantity != nil && *req.Quantity > 0:
			o.Quantity = *req.Quantity
		case req.Items != nil:
			// every line was removed
			o.Quantity = 0
		}
	}
	o.UpdatedAt = time.Now().UTC()

	if err := a.Orders.Save(ctx, o); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			notFound(c, "Order")
			return
		}
		internalError(c, "save order", err)
		return
	}
	respond(c, http.StatusOK, "success", o)
}

func (a *api) deleteOrder(c *gin.Context) {
	id := c.Param("id")
	ok, err := a.Orders.Delete(c.Request.Context(), id)
	if err != nil {
		internalError(c, "delete order", err)
		return
	}
	if !ok {
		notFound(c, "Order")
		return
	}
	respond(c, http.StatusOK, "success", id)
}

func (a *api) approvePayment(c *gin.Context) {
	res, err := a.Payments.Approve(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		paymentError(c, err)
		return
	}
	if res.AlreadyProcessed {
		respond(c, http.StatusOK, "already_processed", res.Order)
		return
	}
	respond(c, http.StatusOK, "success", res.Order)
}

func (a *api) failPayment(c *gin.Context) {
	o, err := a.Payments.Fail(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		paymentError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", o)
}

func (a *api) cancelPayment(c *gin.Context) {
	o, err := a.Payments.Cancel(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		paymentError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", o)
}

func paymentError(c *gin.Context, err error) {
	var oos *payment.OutOfStockError
	switch {
	case errors.Is(err, payment.ErrOrderNotFound):
		respond(c, http.StatusNotFound, "error", "Order not found for paymentId")
	case errors.Is(err, payment.ErrProductNotFound):
		respond(c, http.StatusNotFound, "error", err.Error())
	case errors.As(err, &oos):
		respond(c, http.StatusConflict, "error", "Out of stock for vinyl: "+oos.VinylID)
	default:
		internalError(c, "payment transition", err)
	}
}
