package models

import "time"

// DownloadGrantTTL is how long a grant stays redeemable after issuance.
const DownloadGrantTTL = 30 * 24 * time.Hour

// DownloadGrant is a single-use, time-boxed permission to fetch one file.
// It is redeemable iff RedeemedAt is nil and the current time is before
// ExpiresAt; redemption is an atomic check-and-set so two concurrent requests
// for the same token can never both succeed. Grants are never deleted - a
// redeemed grant stays around as an audit record.
type DownloadGrant struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string `json:"user_id" gorm:"index;type:varchar(36)"`
	ProductID string `json:"product_id" gorm:"type:varchar(36)"`
	OrderID   string `json:"order_id" gorm:"index;type:varchar(36)"`
	// OrderItemID + FileID form the natural dedup key for issuance retries.
	FileID      string     `json:"file_id" gorm:"uniqueIndex:idx_grant_item_file;type:varchar(36)"`
	OrderItemID string     `json:"order_item_id" gorm:"uniqueIndex:idx_grant_item_file;type:varchar(36)"`
	Token       string     `json:"token" gorm:"uniqueIndex;type:varchar(64)"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
	RedeemerIP  string     `json:"redeemer_ip,omitempty" gorm:"type:varchar(45)"`
	RedeemerUA  string     `json:"redeemer_user_agent,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (DownloadGrant) TableName() string { return "download_grants" }
