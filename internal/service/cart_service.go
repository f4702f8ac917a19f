package service

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"
)

// DefaultAddQuantity is used when an add-to-cart request names no quantity
const DefaultAddQuantity = 1

// CartService handles the per-user cart. Stock checks here are advisory;
// placement re-checks under row locks.
type CartService struct {
	store  CartStore
	runner *Runner
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore, runner *Runner) *CartService {
	return &CartService{
		store:  store,
		runner: runner,
		logger: util.GetLogger(),
	}
}

// Get returns the user's cart, creating an empty one on first use
func (s *CartService) Get(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	var cart *models.Cart
	err := s.runner.Do(ctx, "get_cart", func(ctx context.Context) error {
		var err error
		cart, err = s.store.GetOrCreateCart(ctx, userID)
		return err
	})
	return cart, err
}

// AddItem adds quantity units of a product to the cart
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity < 1 {
		return nil, apperr.ErrInvalidQuantity
	}
	return s.mutate(ctx, "add", func(ctx context.Context) (*models.Cart, error) {
		return s.store.AddCartItem(ctx, userID, productID, quantity)
	})
}

// UpdateItem sets the quantity of an existing line
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	if quantity < 1 {
		return nil, apperr.ErrInvalidQuantity
	}
	return s.mutate(ctx, "update", func(ctx context.Context) (*models.Cart, error) {
		return s.store.SetCartItemQuantity(ctx, userID, productID, quantity)
	})
}

// RemoveItem drops a line; removing an absent line is not an error
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	return s.mutate(ctx, "remove", func(ctx context.Context) (*models.Cart, error) {
		return s.store.RemoveCartItem(ctx, userID, productID)
	})
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, userID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	return s.mutate(ctx, "clear", func(ctx context.Context) (*models.Cart, error) {
		return s.store.ClearCart(ctx, userID)
	})
}

func (s *CartService) mutate(ctx context.Context, op string, fn func(ctx context.Context) (*models.Cart, error)) (*models.Cart, error) {
	var cart *models.Cart
	err := s.runner.Do(ctx, "cart_"+op, func(ctx context.Context) error {
		var err error
		cart, err = fn(ctx)
		return err
	})
	if err != nil {
		util.CartMutationsTotal.WithLabelValues(op, apperr.KindOf(err).String()).Inc()
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("Cart mutation failed", zap.String("op", op), zap.Error(err))
		}
		return nil, err
	}
	util.CartMutationsTotal.WithLabelValues(op, "ok").Inc()
	return cart, nil
}
