package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type submitReviewRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	OrderID   int64 `json:"order_id" binding:"required"`
	Rating    int   `json:"rating"`
}

func (h *Handler) submitReview(c *gin.Context) {
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.svc.Reviews.Submit(c.Request.Context(), currentUser(c).ID, req.ProductID, req.OrderID, req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, review)
}

func (h *Handler) deleteReview(c *gin.Context) {
	reviewID, ok := idParam(c, "reviewId")
	if !ok {
		return
	}

	if err := h.svc.Reviews.Delete(c.Request.Context(), currentUser(c).ID, reviewID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": reviewID, "deleted": true})
}
