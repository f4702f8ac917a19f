package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

type addressRequest struct {
	Label         string `json:"label"`
	FullName      string `json:"full_name" binding:"required"`
	StreetAddress string `json:"street_address" binding:"required"`
	City          string `json:"city" binding:"required"`
	State         string `json:"state" binding:"required"`
	ZipCode       string `json:"zip_code" binding:"required"`
	PhoneNumber   string `json:"phone_number" binding:"required"`
	IsDefault     bool   `json:"is_default"`
}

type addressPatchRequest struct {
	Label         *string `json:"label"`
	FullName      *string `json:"full_name"`
	StreetAddress *string `json:"street_address"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	ZipCode       *string `json:"zip_code"`
	PhoneNumber   *string `json:"phone_number"`
	IsDefault     *bool   `json:"is_default"`
}

type wishlistRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
}

func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.svc.Accounts.Profile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user, "is_admin": c.GetBool(ctxAdmin)})
}

func (h *Handler) listAddresses(c *gin.Context) {
	addrs, err := h.svc.Accounts.Addresses(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, addrs)
}

func (h *Handler) addAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	addrs, err := h.svc.Accounts.AddAddress(c.Request.Context(), currentUser(c).ID, models.Address{
		Label:         req.Label,
		FullName:      req.FullName,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		PhoneNumber:   req.PhoneNumber,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, addrs)
}

func (h *Handler) updateAddress(c *gin.Context) {
	addressID, ok := idParam(c, "addressId")
	if !ok {
		return
	}

	var req addressPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	addrs, err := h.svc.Accounts.UpdateAddress(c.Request.Context(), currentUser(c).ID, addressID, models.AddressPatch{
		Label:         req.Label,
		FullName:      req.FullName,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		PhoneNumber:   req.PhoneNumber,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, addrs)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	addressID, ok := idParam(c, "addressId")
	if !ok {
		return
	}

	addrs, err := h.svc.Accounts.DeleteAddress(c.Request.Context(), currentUser(c).ID, addressID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, addrs)
}

func (h *Handler) listWishlist(c *gin.Context) {
	products, err := h.svc.Accounts.Wishlist(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, products)
}

func (h *Handler) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.Accounts.AddToWishlist(c.Request.Context(), currentUser(c).ID, req.ProductID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"product_id": req.ProductID})
}

func (h *Handler) removeFromWishlist(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}

	if err := h.svc.Accounts.RemoveFromWishlist(c.Request.Context(), currentUser(c).ID, productID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product_id": productID})
}

func (h *Handler) listCustomers(c *gin.Context) {
	users, err := h.svc.Accounts.Customers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}

func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.svc.Dashboard.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}
