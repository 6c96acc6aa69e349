package models

import "time"

// Review is a customer's rating of a product. IsVerifiedPurchase is computed
// at creation time from the order ledger (a completed order containing the
// product) and never changes afterwards; IsApproved is the moderation switch -
// only approved reviews appear on the product page.
type Review struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID          string    `json:"product_id" gorm:"index;type:varchar(36)" validate:"required"`
	UserID             string    `json:"user_id" gorm:"index;type:varchar(36)"`
	Rating             int       `json:"rating" validate:"required,gte=1,lte=5"`
	Title              string    `json:"title,omitempty" validate:"omitempty,max=150"`
	Comment            string    `json:"comment,omitempty" validate:"omitempty,max=2000"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	IsApproved         bool      `json:"is_approved" gorm:"default:true"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
