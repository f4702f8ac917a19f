package service

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"
)

// ReviewService handles product ratings left by customers on delivered orders
type ReviewService struct {
	store  ReviewStore
	runner *Runner
	logger *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(store ReviewStore, runner *Runner) *ReviewService {
	return &ReviewService{
		store:  store,
		runner: runner,
		logger: util.GetLogger(),
	}
}

// Submit creates or replaces the user's review of a product and refreshes
// the product's rating aggregate in the same transaction.
func (s *ReviewService) Submit(ctx context.Context, userID, productID, orderID int64, rating int) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.Submit")
	defer span.End()

	if rating < 1 || rating > 5 {
		return nil, apperr.ErrInvalidRating
	}

	var review *models.Review
	err := s.runner.Do(ctx, "submit_review", func(ctx context.Context) error {
		var err error
		review, err = s.store.UpsertReview(ctx, userID, productID, orderID, rating)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.ReviewsTotal.WithLabelValues("submit").Inc()
	s.logger.Info("Review submitted",
		zap.Int64("review_id", review.ID),
		zap.Int64("product_id", productID),
		zap.Int("rating", rating))
	return review, nil
}

// Delete removes a review owned by the user
func (s *ReviewService) Delete(ctx context.Context, userID, reviewID int64) error {
	ctx, span := util.StartSpan(ctx, "ReviewService.Delete")
	defer span.End()

	var review *models.Review
	err := s.runner.Do(ctx, "delete_review", func(ctx context.Context) error {
		var err error
		review, err = s.store.DeleteReview(ctx, userID, reviewID)
		return err
	})
	if err != nil {
		return err
	}

	util.ReviewsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Review deleted",
		zap.Int64("review_id", reviewID),
		zap.Int64("product_id", review.ProductID))
	return nil
}

// ListForProduct returns a product's reviews, newest first
func (s *ReviewService) ListForProduct(ctx context.Context, productID int64) ([]models.Review, error) {
	var reviews []models.Review
	err := s.runner.Do(ctx, "list_reviews", func(ctx context.Context) error {
		var err error
		reviews, err = s.store.ListReviewsByProduct(ctx, productID)
		return err
	})
	return reviews, err
}
