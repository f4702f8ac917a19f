package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

// IdempotencyKeyHeader lets clients retry order placement safely
const IdempotencyKeyHeader = "Idempotency-Key"

type placeOrderRequest struct {
	Items           []models.LineItem      `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	PaymentResult   json.RawMessage        `json:"payment_result"`
	ClearCart       bool                   `json:"clear_cart"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// placeOrder handles order placement
func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	address, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.svc.Orders.PlaceOrder(c.Request.Context(), &models.NewOrder{
		UserID:          currentUser(c).ID,
		Items:           req.Items,
		ShippingAddress: models.JSONValue(address),
		PaymentResult:   models.JSONValue(req.PaymentResult),
		ClearCart:       req.ClearCart,
	}, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respond(c, status, res.Order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}

	order, err := h.svc.Orders.GetOrder(c.Request.Context(), currentUser(c).ID, orderID, c.GetBool(ctxAdmin))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) listRecentOrders(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}

	orders, err := h.svc.Orders.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}
