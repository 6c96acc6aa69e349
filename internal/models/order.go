package models

import "time"

// Order statuses. Pending is the only creation state; the allowed edges are
// pending->completed, pending->failed and completed->refunded. Everything else
// is rejected by the order service.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusRefunded  = "refunded"
)

// License types for an order item. Extended is exactly 2x the standard unit
// price at the time of sale.
const (
	LicenseTypeStandard = "standard"
	LicenseTypeExtended = "extended"
)

// Order represents one purchase attempt. All amounts are in the currency's
// minor unit (cents); TotalAmount = Subtotal + TaxAmount at creation and is
// never recomputed afterwards.
type Order struct {
	ID           string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string      `json:"user_id" gorm:"index;type:varchar(36)"`
	Status       string      `json:"status" gorm:"type:varchar(20);index"`
	Subtotal     int64       `json:"subtotal"`
	TaxAmount    int64       `json:"tax_amount"`
	TotalAmount  int64       `json:"total_amount"`
	Currency     string      `json:"currency" gorm:"type:varchar(3)"`
	PaymentRef   string      `json:"payment_ref,omitempty" gorm:"index;type:varchar(100)"` // external processor reference (e.g. payment intent id)
	BillingAddr  string      `json:"billing_address,omitempty" gorm:"type:text"`           // opaque JSON blob, not interpreted by the core
	// EntitlementsIssued flips to true once licenses and download grants have
	// been fully created for a completed order. It is the audit/retry flag for
	// the issuance phase.
	EntitlementsIssued bool        `json:"entitlements_issued"`
	Items              []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// OrderItem is one purchased product line within an order. UnitPrice is a
// snapshot taken at order-creation time; later catalog price changes never
// alter historical orders.
type OrderItem struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string    `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID   string    `json:"product_id" gorm:"type:varchar(36)"`
	LicenseType string    `json:"license_type" gorm:"type:varchar(20)"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	TotalPrice  int64     `json:"total_price"` // UnitPrice * Quantity
	CreatedAt   time.Time `json:"created_at"`
}

// CartLine is one line of a checkout submission.
type CartLine struct {
	ProductID   string `json:"product_id" validate:"required"`
	LicenseType string `json:"license_type" validate:"required,oneof=standard extended"`
	Quantity    int    `json:"quantity" validate:"required,gte=1"`
}
