package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"
)

// AccountService manages a user's saved addresses and wishlist, and the
// admin customer list.
type AccountService struct {
	store  AccountStore
	runner *Runner
	logger *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store AccountStore, runner *Runner) *AccountService {
	return &AccountService{
		store:  store,
		runner: runner,
		logger: util.GetLogger(),
	}
}

// Profile returns the user with addresses and wishlist ids
func (s *AccountService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	var user *models.User
	err := s.runner.Do(ctx, "get_user", func(ctx context.Context) error {
		var err error
		user, err = s.store.GetUser(ctx, userID)
		return err
	})
	return user, err
}

// Addresses lists the user's saved addresses
func (s *AccountService) Addresses(ctx context.Context, userID int64) ([]models.Address, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

// AddAddress saves an address and returns the updated list
func (s *AccountService) AddAddress(ctx context.Context, userID int64, a models.Address) ([]models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.AddAddress")
	defer span.End()

	required := []struct{ name, value string }{
		{"Full name", a.FullName},
		{"Street address", a.StreetAddress},
		{"City", a.City},
		{"State", a.State},
		{"Zip code", a.ZipCode},
		{"Phone number", a.PhoneNumber},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, apperr.ErrInvalidInput.WithMessage("%s is required", f.name)
		}
	}
	if strings.TrimSpace(a.Label) == "" {
		a.Label = "Home"
	}

	var addrs []models.Address
	err := s.runner.Do(ctx, "add_address", func(ctx context.Context) error {
		var err error
		addrs, err = s.store.AddAddress(ctx, userID, a)
		return err
	})
	return addrs, err
}

// UpdateAddress edits one of the user's addresses
func (s *AccountService) UpdateAddress(ctx context.Context, userID, addressID int64, patch models.AddressPatch) ([]models.Address, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.UpdateAddress")
	defer span.End()

	var addrs []models.Address
	err := s.runner.Do(ctx, "update_address", func(ctx context.Context) error {
		var err error
		addrs, err = s.store.UpdateAddress(ctx, userID, addressID, patch)
		return err
	})
	return addrs, err
}

// DeleteAddress removes an address; a missing address is not an error
func (s *AccountService) DeleteAddress(ctx context.Context, userID, addressID int64) ([]models.Address, error) {
	var addrs []models.Address
	err := s.runner.Do(ctx, "delete_address", func(ctx context.Context) error {
		var err error
		addrs, err = s.store.DeleteAddress(ctx, userID, addressID)
		return err
	})
	return addrs, err
}

// AddToWishlist saves a product for later
func (s *AccountService) AddToWishlist(ctx context.Context, userID, productID int64) error {
	err := s.runner.Do(ctx, "add_wishlist", func(ctx context.Context) error {
		return s.store.AddToWishlist(ctx, userID, productID)
	})
	if err == nil {
		s.logger.Debug("Wishlist item added", zap.Int64("user_id", userID), zap.Int64("product_id", productID))
	}
	return err
}

// RemoveFromWishlist drops a saved product
func (s *AccountService) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	return s.runner.Do(ctx, "remove_wishlist", func(ctx context.Context) error {
		return s.store.RemoveFromWishlist(ctx, userID, productID)
	})
}

// Wishlist returns the saved products
func (s *AccountService) Wishlist(ctx context.Context, userID int64) ([]models.Product, error) {
	var products []models.Product
	err := s.runner.Do(ctx, "list_wishlist", func(ctx context.Context) error {
		var err error
		products, err = s.store.ListWishlist(ctx, userID)
		return err
	})
	return products, err
}

// Customers lists every user, newest first
func (s *AccountService) Customers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.runner.Do(ctx, "list_users", func(ctx context.Context) error {
		var err error
		users, err = s.store.ListUsers(ctx)
		return err
	})
	return users, err
}
