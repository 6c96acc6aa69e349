package repositories

import (
	"errors"
	"fmt"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMSubscriptionRepository is a GORM implementation of SubscriptionRepository.
type GORMSubscriptionRepository struct {
	db *gorm.DB
}

// NewGORMSubscriptionRepository creates a new instance of GORMSubscriptionRepository.
func NewGORMSubscriptionRepository(db *gorm.DB) *GORMSubscriptionRepository {
	return &GORMSubscriptionRepository{
		db: db,
	}
}

// CreatePlan creates a new subscription plan.
func (r *GORMSubscriptionRepository) CreatePlan(plan *models.SubscriptionPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if err := r.db.Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create subscription plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a subscription plan by its ID.
func (r *GORMSubscriptionRepository) GetPlan(id string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription plan %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription plan %s: %w", id, err)
	}
	return &plan, nil
}

// ListPlans retrieves all active plans, cheapest first.
func (r *GORMSubscriptionRepository) ListPlans() ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := r.db.Where("is_active = ?", true).Order("price").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscription plans: %w", err)
	}
	return plans, nil
}

// Create creates a new subscription.
func (r *GORMSubscriptionRepository) Create(sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if err := r.db.Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by its ID.
func (r *GORMSubscriptionRepository) GetByID(id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
	}
	return &sub, nil
}

// GetActiveByUser retrieves a user's active subscription, if any.
func (r *GORMSubscriptionRepository) GetActiveByUser(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("active subscription for user %s: %w", userID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription for user %s: %w", userID, err)
	}
	return &sub, nil
}

// UpdateStatusByExternalRef flips the status of the subscription matching the
// processor's reference.
func (r *GORMSubscriptionRepository) UpdateStatusByExternalRef(externalRef, status string) (bool, error) {
	res := r.db.Model(&models.Subscription{}).
		Where("external_ref = ?", externalRef).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update subscription by ref %s: %w", externalRef, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdateStatus updates the status of a subscription by its ID.
func (r *GORMSubscriptionRepository) UpdateStatus(id, status string) error {
	res := r.db.Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update subscription %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("subscription %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
