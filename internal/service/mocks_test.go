package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/mock"

	"storefront/internal/models"
	"storefront/internal/redisclient"
)

func testRunner() *Runner {
	r := NewRunner(time.Second, 2)
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

type mockIdentityStore struct{ mock.Mock }

func (m *mockIdentityStore) CreateUserIfAbsent(ctx context.Context, p models.IdentityProfile) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdentityStore) UpsertUserProfile(ctx context.Context, p models.IdentityProfile) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdentityStore) DeleteUserByProviderID(ctx context.Context, providerID string, at time.Time) (bool, error) {
	args := m.Called(ctx, providerID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdentityStore) EnsureUser(ctx context.Context, providerID string) (*models.User, error) {
	args := m.Called(ctx, providerID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type mockDeduper struct{ mock.Mock }

func (m *mockDeduper) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeduper) ForgetEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockOrderStore struct{ mock.Mock }

func (m *mockOrderStore) PlaceOrder(ctx context.Context, in *models.NewOrder) (*models.Order, error) {
	args := m.Called(ctx, in)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStore) ListOrdersByUser(ctx context.Context, userID int64) ([]models.UserOrder, error) {
	args := m.Called(ctx, userID)
	o, _ := args.Get(0).([]models.UserOrder)
	return o, args.Error(1)
}

func (m *mockOrderStore) ListRecentOrders(ctx context.Context, limit int) ([]models.AdminOrder, error) {
	args := m.Called(ctx, limit)
	o, _ := args.Get(0).([]models.AdminOrder)
	return o, args.Error(1)
}

func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, id int64, status string) (*models.Order, bool, error) {
	args := m.Called(ctx, id, status)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Bool(1), args.Error(2)
}

type mockIdempotency struct{ mock.Mock }

func (m *mockIdempotency) ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (redisclient.Claim, error) {
	args := m.Called(ctx, scope, key, ttl)
	return args.Get(0).(redisclient.Claim), args.Error(1)
}

func (m *mockIdempotency) CompleteIdempotencyKey(ctx context.Context, scope, key string, resultID int64, ttl time.Duration) error {
	return m.Called(ctx, scope, key, resultID, ttl).Error(0)
}

func (m *mockIdempotency) ReleaseIdempotencyKey(ctx context.Context, scope, key string) error {
	return m.Called(ctx, scope, key).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

type mockCartStore struct{ mock.Mock }

func (m *mockCartStore) cart(args mock.Arguments) (*models.Cart, error) {
	c, _ := args.Get(0).(*models.Cart)
	return c, args.Error(1)
}

func (m *mockCartStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	return m.cart(m.Called(ctx, userID))
}

func (m *mockCartStore) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	return m.cart(m.Called(ctx, userID, productID, quantity))
}

func (m *mockCartStore) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	return m.cart(m.Called(ctx, userID, productID, quantity))
}

func (m *mockCartStore) RemoveCartItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	return m.cart(m.Called(ctx, userID, productID))
}

func (m *mockCartStore) ClearCart(ctx context.Context, userID int64) (*models.Cart, error) {
	return m.cart(m.Called(ctx, userID))
}

type mockReviewStore struct{ mock.Mock }

func (m *mockReviewStore) UpsertReview(ctx context.Context, userID, productID, orderID int64, rating int) (*models.Review, error) {
	args := m.Called(ctx, userID, productID, orderID, rating)
	r, _ := args.Get(0).(*models.Review)
	return r, args.Error(1)
}

func (m *mockReviewStore) DeleteReview(ctx context.Context, userID, reviewID int64) (*models.Review, error) {
	args := m.Called(ctx, userID, reviewID)
	r, _ := args.Get(0).(*models.Review)
	return r, args.Error(1)
}

func (m *mockReviewStore) ListReviewsByProduct(ctx context.Context, productID int64) ([]models.Review, error) {
	args := m.Called(ctx, productID)
	r, _ := args.Get(0).([]models.Review)
	return r, args.Error(1)
}

type mockCatalogStore struct{ mock.Mock }

func (m *mockCatalogStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockCatalogStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

func (m *mockCatalogStore) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	args := m.Called(ctx, limit, offset)
	p, _ := args.Get(0).([]models.Product)
	return p, args.Error(1)
}

func (m *mockCatalogStore) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, []string, error) {
	args := m.Called(ctx, id, patch)
	p, _ := args.Get(0).(*models.Product)
	replaced, _ := args.Get(1).([]string)
	return p, replaced, args.Error(2)
}

func (m *mockCatalogStore) DeleteProduct(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

type mockImageStore struct{ mock.Mock }

func (m *mockImageStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockImageStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockAccountStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).([]models.User)
	return u, args.Error(1)
}

func (m *mockAccountStore) AddAddress(ctx context.Context, userID int64, a models.Address) ([]models.Address, error) {
	args := m.Called(ctx, userID, a)
	r, _ := args.Get(0).([]models.Address)
	return r, args.Error(1)
}

func (m *mockAccountStore) UpdateAddress(ctx context.Context, userID, addressID int64, patch models.AddressPatch) ([]models.Address, error) {
	args := m.Called(ctx, userID, addressID, patch)
	r, _ := args.Get(0).([]models.Address)
	return r, args.Error(1)
}

func (m *mockAccountStore) DeleteAddress(ctx context.Context, userID, addressID int64) ([]models.Address, error) {
	args := m.Called(ctx, userID, addressID)
	r, _ := args.Get(0).([]models.Address)
	return r, args.Error(1)
}

func (m *mockAccountStore) AddToWishlist(ctx context.Context, userID, productID int64) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *mockAccountStore) RemoveFromWishlist(ctx context.Context, userID, productID int64) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *mockAccountStore) ListWishlist(ctx context.Context, userID int64) ([]models.Product, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).([]models.Product)
	return r, args.Error(1)
}
