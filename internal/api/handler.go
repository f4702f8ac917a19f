package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"
)

// Identity resolves callers and applies identity-provider events
type Identity interface {
	EnsureUser(ctx context.Context, providerID string) (*models.User, error)
	IsAdmin(user *models.User) bool
	HandleEvent(ctx context.Context, event *models.IdentityEvent) error
}

// Catalog manages products
type Catalog interface {
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, limit, offset int) ([]models.Product, error)
	Create(ctx context.Context, in service.ProductInput, images []service.ImageUpload) (*models.Product, error)
	Update(ctx context.Context, id int64, patch models.ProductPatch, images []service.ImageUpload) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

// Carts manages per-user carts
type Carts interface {
	Get(ctx context.Context, userID int64) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error)
	Clear(ctx context.Context, userID int64) (*models.Cart, error)
}

// Orders places and tracks orders
type Orders interface {
	PlaceOrder(ctx context.Context, in *models.NewOrder, idempotencyKey string) (*service.PlaceOrderResult, error)
	GetOrder(ctx context.Context, userID, orderID int64, isAdmin bool) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]models.UserOrder, error)
	ListRecent(ctx context.Context, limit int) ([]models.AdminOrder, error)
}

// Reviews manages product reviews
type Reviews interface {
	Submit(ctx context.Context, userID, productID, orderID int64, rating int) (*models.Review, error)
	Delete(ctx context.Context, userID, reviewID int64) error
	ListForProduct(ctx context.Context, productID int64) ([]models.Review, error)
}

// Accounts manages addresses, wishlists and the customer list
type Accounts interface {
	Profile(ctx context.Context, userID int64) (*models.User, error)
	Addresses(ctx context.Context, userID int64) ([]models.Address, error)
	AddAddress(ctx context.Context, userID int64, a models.Address) ([]models.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID int64, patch models.AddressPatch) ([]models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID int64) ([]models.Address, error)
	AddToWishlist(ctx context.Context, userID, productID int64) error
	RemoveFromWishlist(ctx context.Context, userID, productID int64) error
	Wishlist(ctx context.Context, userID int64) ([]models.Product, error)
	Customers(ctx context.Context) ([]models.User, error)
}

// Dashboard reads admin statistics
type Dashboard interface {
	Snapshot(ctx context.Context) (*models.DashboardStats, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups everything the HTTP surface calls into
type Services struct {
	Identity  Identity
	Catalog   Catalog
	Carts     Carts
	Orders    Orders
	Reviews   Reviews
	Accounts  Accounts
	Dashboard Dashboard
	// Dependencies checked by /ready, keyed by name
	Readiness map[string]Pinger
	// WebhookSecret is the HMAC key identity webhook deliveries are signed with
	WebhookSecret string
}

// Handler contains HTTP handlers
type Handler struct {
	svc         Services
	serviceName string
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, serviceName string) *Handler {
	return &Handler{
		svc:         svc,
		serviceName: serviceName,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	registerValidators()
	router.MaxMultipartMemory = maxUploadMemory

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(h.serviceName))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/webhooks/identity", h.verifyWebhookSignature, h.identityWebhook)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/reviews", h.listProductReviews)

		authed := v1.Group("", h.authenticate)
		{
			authed.GET("/cart", h.getCart)
			authed.POST("/cart/items", h.addCartItem)
			authed.PUT("/cart/items/:productId", h.updateCartItem)
			authed.DELETE("/cart/items/:productId", h.removeCartItem)
			authed.DELETE("/cart", h.clearCart)

			authed.POST("/orders", h.placeOrder)
			authed.GET("/orders", h.listOrders)
			authed.GET("/orders/:orderId", h.getOrder)

			authed.POST("/reviews", h.submitReview)
			authed.DELETE("/reviews/:reviewId", h.deleteReview)

			authed.GET("/users/me", h.getProfile)
			authed.GET("/users/addresses", h.listAddresses)
			authed.POST("/users/addresses", h.addAddress)
			authed.PUT("/users/addresses/:addressId", h.updateAddress)
			authed.DELETE("/users/addresses/:addressId", h.deleteAddress)
			authed.GET("/users/wishlist", h.listWishlist)
			authed.POST("/users/wishlist", h.addToWishlist)
			authed.DELETE("/users/wishlist/:productId", h.removeFromWishlist)
		}

		admin := v1.Group("/admin", h.authenticate, h.requireAdmin)
		{
			admin.GET("/products", h.adminListProducts)
			admin.POST("/products", h.createProduct)
			admin.PUT("/products/:productId", h.updateProduct)
			admin.DELETE("/products/:productId", h.deleteProduct)
			admin.GET("/orders", h.listRecentOrders)
			admin.PATCH("/orders/:orderId/status", h.updateOrderStatus)
			admin.GET("/customers", h.listCustomers)
			admin.GET("/stats", h.dashboardStats)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.svc.Readiness {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
