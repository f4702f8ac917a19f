package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/service"
)

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  *int  `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Carts.Get(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	quantity := service.DefaultAddQuantity
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.svc.Carts.AddItem(c.Request.Context(), currentUser(c).ID, req.ProductID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cart, err := h.svc.Carts.UpdateItem(c.Request.Context(), currentUser(c).ID, productID, *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}

	cart, err := h.svc.Carts.RemoveItem(c.Request.Context(), currentUser(c).ID, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.svc.Carts.Clear(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}
