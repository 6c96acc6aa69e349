package models

import "time"

// License is a non-expiring (unless ExpiresAt is set) proof of entitlement to
// use a product. Exactly one license is created per order item, and only when
// the parent order transitions into "completed".
type License struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string `json:"user_id" gorm:"index;type:varchar(36)"`
	ProductID string `json:"product_id" gorm:"type:varchar(36)"`
	OrderID   string `json:"order_id" gorm:"index;type:varchar(36)"`
	// OrderItemID is the natural dedup key for issuance: retrying issuance for
	// an order must never create a second license for the same item.
	OrderItemID string     `json:"order_item_id" gorm:"uniqueIndex;type:varchar(36)"`
	LicenseKey  string     `json:"license_key" gorm:"uniqueIndex;type:varchar(64)"`
	LicenseType string     `json:"license_type" gorm:"type:varchar(20)"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
