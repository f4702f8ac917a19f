package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User is the local record of an identity-provider account
type User struct {
	ID         int64     `db:"id" json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	ImageURL   *string   `db:"image_url" json:"image_url"`
	Addresses  []Address `db:"-" json:"addresses"`
	Wishlist   []int64   `db:"-" json:"wishlist"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Address is a shipping address saved on a user
type Address struct {
	ID            int64  `db:"id" json:"id"`
	UserID        int64  `db:"user_id" json:"-"`
	Label         string `db:"label" json:"label"`
	FullName      string `db:"full_name" json:"full_name"`
	StreetAddress string `db:"street_address" json:"street_address"`
	City          string `db:"city" json:"city"`
	State         string `db:"state" json:"state"`
	ZipCode       string `db:"zip_code" json:"zip_code"`
	PhoneNumber   string `db:"phone_number" json:"phone_number"`
	IsDefault     bool   `db:"is_default" json:"is_default"`
}

// AddressPatch carries the fields of an address update; nil fields are left untouched
type AddressPatch struct {
	Label         *string
	FullName      *string
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
	PhoneNumber   *string
	IsDefault     *bool
}

// Category is the fixed set of product categories
type Category string

const (
	CategoryClothing    Category = "Clothing"
	CategoryHobbies     Category = "Hobbies"
	CategoryHomeDecor   Category = "Home Decor"
	CategoryAccessories Category = "Accessories"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryClothing, CategoryHobbies, CategoryHomeDecor, CategoryAccessories:
		return true
	}
	return false
}

// MaxProductImages bounds Product.Images
const MaxProductImages = 3

// Product represents a product in the catalog
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Stock         int             `db:"stock" json:"stock"`
	Category      Category        `db:"category" json:"category"`
	Images        pq.StringArray  `db:"images" json:"images"`
	AverageRating float64         `db:"average_rating" json:"average_rating"`
	TotalReviews  int             `db:"total_reviews" json:"total_reviews"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ProductPatch carries the fields of an admin product update; nil fields are left untouched
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Category    *Category
	Images      []string
}

// Cart is the per-user set of line items
type Cart struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Items     []CartItem `db:"-" json:"items"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// CartItem is a cart line joined with the product it references
type CartItem struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     int             `db:"stock" json:"stock"`
	Images    pq.StringArray  `db:"images" json:"images"`
}

// Order statuses
const (
	OrderStatusPending   = "Pending"
	OrderStatusShipped   = "Shipped"
	OrderStatusDelivered = "Delivered"
)

// StatusRank orders the lifecycle; unknown statuses rank -1
func StatusRank(status string) int {
	switch status {
	case OrderStatusPending:
		return 0
	case OrderStatusShipped:
		return 1
	case OrderStatusDelivered:
		return 2
	}
	return -1
}

// ShippingAddress is the address snapshot stored on an order
type ShippingAddress struct {
	FullName      string `json:"full_name" binding:"required"`
	StreetAddress string `json:"street_address" binding:"required"`
	City          string `json:"city" binding:"required"`
	State         string `json:"state" binding:"required"`
	ZipCode       string `json:"zip_code" binding:"required"`
	PhoneNumber   string `json:"phone_number"`
}

// Order represents a placed order
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	Items           []OrderItem     `db:"-" json:"items"`
	ShippingAddress JSONValue       `db:"shipping_address" json:"shipping_address"`
	PaymentResult   JSONValue       `db:"payment_result" json:"payment_result"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	Status          string          `db:"status" json:"status"`
	ShippedAt       *time.Time      `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is the purchase-time snapshot of an order line
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// UserOrder is an order as listed to its owner
type UserOrder struct {
	Order
	HasReviewed bool `db:"has_reviewed" json:"has_reviewed"`
}

// AdminOrder is an order as listed on the admin dashboard
type AdminOrder struct {
	Order
	CustomerName  string `db:"customer_name" json:"customer_name"`
	CustomerEmail string `db:"customer_email" json:"customer_email"`
}

// LineItem is a requested (product, quantity) pair
type LineItem struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// NewOrder is the input to order placement
type NewOrder struct {
	// RequestID names one placement attempt. It is stored with the order so a
	// retry after an ambiguous commit finds the order instead of placing it twice.
	RequestID       string
	UserID          int64
	Items           []LineItem
	ShippingAddress JSONValue
	PaymentResult   JSONValue
	// ClearCart empties the user's cart in the same transaction
	ClearCart bool
}

// Review is a customer's rating of a product they received
type Review struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DashboardStats is the admin metrics snapshot
type DashboardStats struct {
	TotalRevenue   decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	TotalOrders    int64           `db:"total_orders" json:"total_orders"`
	TotalCustomers int64           `db:"total_customers" json:"total_customers"`
	TotalProducts  int64           `db:"total_products" json:"total_products"`
}

// JSONValue holds an opaque JSON document stored in a jsonb column
type JSONValue json.RawMessage
