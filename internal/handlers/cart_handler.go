package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/cart"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
)

func (a *api) registerCartRoutes(g *gin.RouterGroup) {
	own := g.Group("/:userId", auth.RequireSelfOrAdmin("userId"))
	own.GET("", a.getCart)
	own.POST("", a.createCart)
	own.PUT("", a.setCart)
	own.DELETE("", a.clearCart)
	own.POST("/item/:vinylId", a.putCartItem)
	own.DELETE("/item/:vinylId", a.removeCartItem)
}

func (a *api) getCart(c *gin.Context) {
	items, err := a.Carts.Items(c.Request.Context(), c.Param("userId"))
	if err != nil {
		internalError(c, "read cart", err)
		return
	}
	respond(c, http.StatusOK, "success", items)
}

func (a *api) putCartItem(c *gin.Context) {
	var req validation.CartItemRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(c, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if err := a.Carts.Put(c.Request.Context(), c.Param("userId"), c.Param("vinylId"), qty); err != nil {
		internalError(c, "put cart item", err)
		return
	}
	respond(c, http.StatusCreated, "created", "item_added_or_updated")
}

func (a *api) removeCartItem(c *gin.Context) {
	if err := a.Carts.Remove(c.Request.Context(), c.Param("userId"), c.Param("vinylId")); err != nil {
		internalError(c, "remove cart item", err)
		return
	}
	respond(c, http.StatusOK, "success", "item_removed")
}

func bindCartItems(c *gin.Context) (cart.Items, bool) {
	var items cart.Items
	if err := c.ShouldBindJSON(&items); err != nil {
		respond(c, http.StatusBadRequest, "invalid_request_body", err.Error())
		return nil, false
	}
	return items, true
}

func (a *api) setCart(c *gin.Context) {
	items, ok := bindCartItems(c)
	if !ok {
		return
	}
	if err := a.Carts.Replace(c.Request.Context(), c.Param("userId"), items); err != nil {
		internalError(c, "replace cart", err)
		return
	}
	respond(c, http.StatusOK, "success", "cart_set")
}

func (a *api) createCart(c *gin.Context) {
	items, ok := bindCartItems(c)
	if !ok {
		return
	}
	if err := a.Carts.Merge(c.Request.Context(), c.Param("userId"), items); err != nil {
		internalError(c, "create cart", err)
		return
	}
	respond(c, http.StatusCreated, "created", "cart_created")
}

func (a *api) clearCart(c *gin.Context) {
	if err := a.Carts.Clear(c.Request.Context(), c.Param("userId")); err != nil {
		internalError(c, "clear cart", err)
		return
	}
	respond(c, http.StatusOK, "success", "cart_cleared")
}
