package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
)

// IdentityStore persists the local copy of identity-provider accounts
type IdentityStore interface {
	CreateUserIfAbsent(ctx context.Context, p models.IdentityProfile) (bool, error)
	UpsertUserProfile(ctx context.Context, p models.IdentityProfile) (bool, error)
	DeleteUserByProviderID(ctx context.Context, providerID string, at time.Time) (bool, error)
	EnsureUser(ctx context.Context, providerID string) (*models.User, error)
}

// CatalogStore persists products
type CatalogStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, []string, error)
	DeleteProduct(ctx context.Context, id int64) (*models.Product, error)
}

// CartStore persists carts and their lines
type CartStore interface {
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	RemoveCartItem(ctx context.Context, userID, productID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, userID int64) (*models.Cart, error)
}

// OrderStore persists orders
type OrderStore interface {
	PlaceOrder(ctx context.Context, in *models.NewOrder) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.UserOrder, error)
	ListRecentOrders(ctx context.Context, limit int) ([]models.AdminOrder, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, bool, error)
}

// ReviewStore persists reviews and the rating aggregate they drive
type ReviewStore interface {
	UpsertReview(ctx context.Context, userID, productID, orderID int64, rating int) (*models.Review, error)
	DeleteReview(ctx context.Context, userID, reviewID int64) (*models.Review, error)
	ListReviewsByProduct(ctx context.Context, productID int64) ([]models.Review, error)
}

// AccountStore persists addresses, wishlists and the customer list
type AccountStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	AddAddress(ctx context.Context, userID int64, a models.Address) ([]models.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID int64, patch models.AddressPatch) ([]models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID int64) ([]models.Address, error)
	AddToWishlist(ctx context.Context, userID, productID int64) error
	RemoveFromWishlist(ctx context.Context, userID, productID int64) error
	ListWishlist(ctx context.Context, userID int64) ([]models.Product, error)
}

// StatsStore reads the admin dashboard counters
type StatsStore interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

// IdempotencyStore remembers which request keys already produced an order
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (redisclient.Claim, error)
	CompleteIdempotencyKey(ctx context.Context, scope, key string, resultID int64, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, scope, key string) error
}

// EventDeduper remembers recently handled event ids
type EventDeduper interface {
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

// OrderEventPublisher announces order changes to other systems
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order) error
}

// ImageStore keeps product images and hands out stable URLs for them
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
