package repositories

import (
	"digistore/internal/models"
)

// SubscriptionRepository defines the interface for subscription data access.
type SubscriptionRepository interface {
	CreatePlan(plan *models.SubscriptionPlan) error
	GetPlan(id string) (*models.SubscriptionPlan, error)
	ListPlans() ([]models.SubscriptionPlan, error)
	Create(sub *models.Subscription) error
	GetByID(id string) (*models.Subscription, error)
	GetActiveByUser(userID string) (*models.Subscription, error)
	// UpdateStatusByExternalRef flips the status of the subscription carrying
	// the processor's subscription id, reporting whether a row matched.
	UpdateStatusByExternalRef(externalRef, status string) (bool, error)
	UpdateStatus(id, status string) error
}
