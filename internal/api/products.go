package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/service"
)

const (
	maxUploadMemory = 8 << 20
	maxImageSize    = 5 << 20
)

type productForm struct {
	Name        string `form:"name" json:"name" binding:"required"`
	Description string `form:"description" json:"description" binding:"required"`
	Price       string `form:"price" json:"price" binding:"required"`
	Stock       *int   `form:"stock" json:"stock" binding:"required,min=0"`
	Category    string `form:"category" json:"category" binding:"required,category"`
}

type productPatchForm struct {
	Name        *string `form:"name" json:"name"`
	Description *string `form:"description" json:"description"`
	Price       *string `form:"price" json:"price"`
	Stock       *int    `form:"stock" json:"stock" binding:"omitempty,min=0"`
	Category    *string `form:"category" json:"category" binding:"omitempty,category"`
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, apperr.ErrInvalidInput.WithMessage("Invalid price")
	}
	return price, nil
}

// readImages collects the "images" files of a multipart request. A request
// that is not multipart carries no images.
func readImages(c *gin.Context) ([]service.ImageUpload, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.ErrInvalidInput.WithMessage("Invalid multipart form")
	}

	files := form.File["images"]
	if len(files) > models.MaxProductImages {
		return nil, apperr.ErrTooManyImages
	}

	images := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageSize {
			return nil, apperr.ErrInvalidInput.WithMessage("Image %s is too large", fh.Filename)
		}
		contentType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			return nil, apperr.ErrInvalidInput.WithMessage("File %s is not an image", fh.Filename)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, apperr.ErrInvalidInput.WithMessage("Unreadable image %s", fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperr.ErrInvalidInput.WithMessage("Unreadable image %s", fh.Filename)
		}
		images = append(images, service.ImageUpload{Data: data, ContentType: contentType})
	}
	return images, nil
}

// listProducts serves the public catalog
func (h *Handler) listProducts(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}

	products, err := h.svc.Catalog.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	product, err := h.svc.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) listProductReviews(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	reviews, err := h.svc.Reviews.ListForProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, reviews)
}

// adminListProducts lists the whole catalog, newest first
func (h *Handler) adminListProducts(c *gin.Context) {
	products, err := h.svc.Catalog.List(c.Request.Context(), 0, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, products)
}

func (h *Handler) createProduct(c *gin.Context) {
	var form productForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, err)
		return
	}
	price, err := parsePrice(form.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	images, err := readImages(c)
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.svc.Catalog.Create(c.Request.Context(), service.ProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
		Stock:       *form.Stock,
		Category:    models.Category(form.Category),
	}, images)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := idParam(c, "productId")
	if !ok {
		return
	}

	var form productPatchForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, err)
		return
	}

	patch := models.ProductPatch{
		Name:        form.Name,
		Description: form.Description,
		Stock:       form.Stock,
	}
	if form.Price != nil {
		price, err := parsePrice(*form.Price)
		if err != nil {
			respondError(c, err)
			return
		}
		patch.Price = &price
	}
	if form.Category != nil {
		category := models.Category(*form.Category)
		patch.Category = &category
	}

	images, err := readImages(c)
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.svc.Catalog.Update(c.Request.Context(), id, patch, images)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := idParam(c, "productId")
	if !ok {
		return
	}

	if err := h.svc.Catalog.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}
