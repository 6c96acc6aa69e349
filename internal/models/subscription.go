package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription statuses.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusInactive  = "inactive"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// SubscriptionPlan is a recurring access tier (e.g. "all themes, monthly").
type SubscriptionPlan struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	// Price in cents per billing interval.
	Price        int64  `json:"price" validate:"required,gt=0"`
	Interval     string `json:"interval" gorm:"type:varchar(10);default:month" validate:"omitempty,oneof=month year"`
	MaxDownloads int    `json:"max_downloads"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
	ExternalRef  string `json:"external_ref,omitempty" gorm:"type:varchar(100)"` // processor price id
	gorm.Model
}

// Subscription binds a user to a plan. Status is driven by processor webhook
// events (invoice paid -> active, subscription deleted -> cancelled).
type Subscription struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID string `json:"user_id" gorm:"index;type:varchar(36)"`
	PlanID string `json:"plan_id" gorm:"type:varchar(36)"`
	Status string `json:"status" gorm:"type:varchar(20);index"`
	// ExternalRef is the processor's subscription id, the key webhook events
	// address this record by.
	ExternalRef        string    `json:"external_ref,omitempty" gorm:"index;type:varchar(100)"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
