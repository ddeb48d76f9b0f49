package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product is the catalog projection the validator reads. IDs are the CMS
// document ids, so they are opaque strings rather than serial integers.
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Purchasable bool            `db:"purchasable" json:"purchasable"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CartLineRequest is one untrusted, client-submitted cart line. The price is
// what the client believes the unit price is; it is never used for anything
// except comparison against the catalog.
type CartLineRequest struct {
	ProductID    string          `json:"product_id" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,min=1"`
	Price        decimal.Decimal `json:"price"`
	SelectedSize *string         `json:"selected_size"`
}

// ValidatedLineItem is the server-trusted view of a cart line after the
// catalog lookup. DBPrice is nil when the product could not be resolved.
type ValidatedLineItem struct {
	ProductID    string           `json:"product_id"`
	Quantity     int              `json:"quantity"`
	CartPrice    decimal.Decimal  `json:"cart_price"`
	DBPrice      *decimal.Decimal `json:"db_price"`
	IsValid      bool             `json:"is_valid"`
	SelectedSize *string          `json:"selected_size"`
}

// ValidationResult aggregates per-line classification. Valid is true iff no
// line is tampered or unresolvable; warnings alone never fail validation.
type ValidationResult struct {
	Valid          bool                `json:"valid"`
	ValidatedItems []ValidatedLineItem `json:"validated_items"`
	Errors         []string            `json:"errors"`
	Warnings       []string            `json:"warnings"`
}

// Order is a durable order record. ShippingAddress is a point-in-time
// snapshot, not a foreign key, so later address edits never rewrite history.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          string          `db:"status" json:"status"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	GatewayOrderID  string          `db:"gateway_order_id" json:"gateway_order_id"`
	ShippingAddress types.JSONText  `db:"shipping_address" json:"shipping_address"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is a child row of Order. Price always originates from the catalog
// lookup, never from the request body.
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	ProductID    string          `db:"product_id" json:"product_id"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	SelectedSize *string         `db:"selected_size" json:"selected_size,omitempty"`
}

// Profile is the minimal identity row orders hang off. Upstream auth
// provisions these eventually; the coordinator self-heals missing rows.
type Profile struct {
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Address is a saved shipping address. Orders copy it as JSON at placement.
type Address struct {
	ID         string `db:"id" json:"id"`
	UserID     string `db:"user_id" json:"user_id"`
	Label      string `db:"label" json:"label"`
	Line1      string `db:"line1" json:"line1"`
	Line2      string `db:"line2" json:"line2,omitempty"`
	City       string `db:"city" json:"city"`
	State      string `db:"state" json:"state"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	Country    string `db:"country" json:"country"`
}

// TamperingLogEntry is one append-only abuse-log row.
type TamperingLogEntry struct {
	ID           int64           `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	ProductID    string          `db:"product_id" json:"product_id"`
	ClaimedPrice decimal.Decimal `db:"claimed_price" json:"claimed_price"`
	ActualPrice  decimal.Decimal `db:"actual_price" json:"actual_price"`
	IPAddress    string          `db:"ip_address" json:"ip_address"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)
