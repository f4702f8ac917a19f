package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeUserCreated        = "user.created"
	EventTypeUserUpdated        = "user.updated"
	EventTypeUserDeleted        = "user.deleted"
	EventTypeOrderPlaced        = "order.placed"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// IdentityEvent is an account lifecycle notification from the identity provider.
// Delivery is at-least-once and unordered.
type IdentityEvent struct {
	BaseEvent
	Data IdentityData `json:"data"`
}

// IdentityData is the account payload of an identity event
type IdentityData struct {
	ProviderID     string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	ImageURL       OptionalString `json:"image_url"`
}

type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// OptionalString distinguishes an absent JSON field from an explicit null
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// IdentityProfile is the write applied to the user record for one identity event.
// Nil fields are not written.
type IdentityProfile struct {
	ProviderID  string
	Email       *string
	Name        *string
	ImageURL    *string
	ImageURLSet bool
	OccurredAt  time.Time
}

// Empty reports whether the profile carries no field to write
func (p IdentityProfile) Empty() bool {
	return p.Email == nil && p.Name == nil && !p.ImageURLSet
}

// DefaultUserName is used when the provider supplies no name on account creation
const DefaultUserName = "User"

func (d IdentityData) primaryEmail() string {
	if len(d.EmailAddresses) == 0 {
		return ""
	}
	return strings.TrimSpace(d.EmailAddresses[0].EmailAddress)
}

func (d IdentityData) fullName() string {
	parts := make([]string, 0, 2)
	for _, p := range []*string{d.FirstName, d.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}

// CreateProfile returns the full record used when inserting on a Created event
func (e *IdentityEvent) CreateProfile() IdentityProfile {
	email := e.Data.primaryEmail()
	name := e.Data.fullName()
	if name == "" {
		name = DefaultUserName
	}
	p := IdentityProfile{
		ProviderID:  e.Data.ProviderID,
		Email:       &email,
		Name:        &name,
		ImageURLSet: true,
		OccurredAt:  e.Timestamp,
	}
	if e.Data.ImageURL.Value != nil && *e.Data.ImageURL.Value != "" {
		p.ImageURL = e.Data.ImageURL.Value
	}
	return p
}

// UpdateProfile returns only the fields present in an Updated event
func (e *IdentityEvent) UpdateProfile() IdentityProfile {
	p := IdentityProfile{
		ProviderID: e.Data.ProviderID,
		OccurredAt: e.Timestamp,
	}
	if email := e.Data.primaryEmail(); email != "" {
		p.Email = &email
	}
	if name := e.Data.fullName(); name != "" {
		p.Name = &name
	}
	if e.Data.ImageURL.Set {
		p.ImageURLSet = true
		if e.Data.ImageURL.Value != nil && *e.Data.ImageURL.Value != "" {
			p.ImageURL = e.Data.ImageURL.Value
		}
	}
	return p
}

// OrderPlacedEvent published after an order commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published when an admin advances an order
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Status  string `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
