package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/util"
)

// ImageUpload is one image file received from an admin
type ImageUpload struct {
	Data        []byte
	ContentType string
}

// ProductInput is the full set of fields needed to create a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    models.Category
}

// CatalogService manages products and their images
type CatalogService struct {
	store  CatalogStore
	images ImageStore
	runner *Runner
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, images ImageStore, runner *Runner) *CatalogService {
	return &CatalogService{
		store:  store,
		images: images,
		runner: runner,
		logger: util.GetLogger(),
	}
}

// Get returns a single product
func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	var p *models.Product
	err := s.runner.Do(ctx, "get_product", func(ctx context.Context) error {
		var err error
		p, err = s.store.GetProduct(ctx, id)
		return err
	})
	return p, err
}

// List returns products newest first. A non-positive limit lists everything.
func (s *CatalogService) List(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if offset < 0 {
		offset = 0
	}
	var products []models.Product
	err := s.runner.Do(ctx, "list_products", func(ctx context.Context) error {
		var err error
		products, err = s.store.ListProducts(ctx, limit, offset)
		return err
	})
	return products, err
}

// Create uploads the images and stores the product with their URLs
func (s *CatalogService) Create(ctx context.Context, in ProductInput, images []ImageUpload) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	if err := validateProductInput(in); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, apperr.ErrImageRequired
	}
	if len(images) > models.MaxProductImages {
		return nil, apperr.ErrTooManyImages
	}

	urls, err := s.uploadAll(ctx, images)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Images:      urls,
	}
	err = s.runner.Do(ctx, "create_product", func(ctx context.Context) error {
		return s.store.CreateProduct(ctx, p)
	})
	if err != nil {
		s.deleteImages(context.WithoutCancel(ctx), urls)
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.Int("images", len(urls)))
	return p, nil
}

// Update applies the patch. New images, when given, replace the old ones,
// which are then removed from the image store.
func (s *CatalogService) Update(ctx context.Context, id int64, patch models.ProductPatch, images []ImageUpload) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	if err := validateProductPatch(patch); err != nil {
		return nil, err
	}
	if len(images) > models.MaxProductImages {
		return nil, apperr.ErrTooManyImages
	}

	patch.Images = nil
	if len(images) > 0 {
		urls, err := s.uploadAll(ctx, images)
		if err != nil {
			return nil, err
		}
		patch.Images = urls
	}

	var (
		updated  *models.Product
		replaced []string
	)
	err := s.runner.Do(ctx, "update_product", func(ctx context.Context) error {
		var err error
		updated, replaced, err = s.store.UpdateProduct(ctx, id, patch)
		return err
	})
	if err != nil {
		s.deleteImages(context.WithoutCancel(ctx), patch.Images)
		return nil, err
	}

	s.deleteImages(ctx, replaced)
	s.logger.Info("Product updated", zap.Int64("product_id", id))
	return updated, nil
}

// Delete removes the product, then its images
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete")
	defer span.End()

	var deleted *models.Product
	err := s.runner.Do(ctx, "delete_product", func(ctx context.Context) error {
		var err error
		deleted, err = s.store.DeleteProduct(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.deleteImages(ctx, deleted.Images)
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *CatalogService) uploadAll(ctx context.Context, images []ImageUpload) ([]string, error) {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		if len(img.Data) == 0 {
			s.deleteImages(ctx, urls)
			return nil, apperr.ErrInvalidInput.WithMessage("Image file is empty")
		}
		url, err := s.images.Upload(ctx, img.Data, img.ContentType)
		if err != nil {
			util.ImageOperationsFailedTotal.WithLabelValues("upload").Inc()
			s.logger.Error("Failed to upload image", zap.Error(err))
			s.deleteImages(ctx, urls)
			return nil, apperr.ErrUnavailable.WithMessage("Image upload failed, please retry").Wrap(err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// deleteImages removes stored objects best effort; failures leave orphans
// behind and are only logged.
func (s *CatalogService) deleteImages(ctx context.Context, urls []string) {
	for _, url := range urls {
		key, ok := storage.KeyFromURL(url)
		if !ok {
			s.logger.Warn("Image URL has no storage key", zap.String("url", url))
			continue
		}
		if err := s.images.Delete(ctx, key); err != nil {
			util.ImageOperationsFailedTotal.WithLabelValues("delete").Inc()
			s.logger.Warn("Failed to delete image", zap.String("key", key), zap.Error(err))
		}
	}
}

func validateProductInput(in ProductInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.ErrInvalidInput.WithMessage("Product name is required")
	case strings.TrimSpace(in.Description) == "":
		return apperr.ErrInvalidInput.WithMessage("Product description is required")
	case in.Price.IsNegative():
		return apperr.ErrInvalidInput.WithMessage("Price must not be negative")
	case in.Stock < 0:
		return apperr.ErrInvalidInput.WithMessage("Stock must not be negative")
	case !in.Category.Valid():
		return apperr.ErrInvalidInput.WithMessage("Unknown category %q", in.Category)
	}
	return nil
}

func validateProductPatch(p models.ProductPatch) error {
	switch {
	case p.Name != nil && strings.TrimSpace(*p.Name) == "":
		return apperr.ErrInvalidInput.WithMessage("Product name must not be empty")
	case p.Description != nil && strings.TrimSpace(*p.Description) == "":
		return apperr.ErrInvalidInput.WithMessage("Product description must not be empty")
	case p.Price != nil && p.Price.IsNegative():
		return apperr.ErrInvalidInput.WithMessage("Price must not be negative")
	case p.Stock != nil && *p.Stock < 0:
		return apperr.ErrInvalidInput.WithMessage("Stock must not be negative")
	case p.Category != nil && !p.Category.Valid():
		return apperr.ErrInvalidInput.WithMessage("Unknown category %q", *p.Category)
	}
	return nil
}
