package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"

	"github.com/google/uuid"
)

// MockSubscriptionRepository is an in-memory implementation of SubscriptionRepository.
type MockSubscriptionRepository struct {
	plans map[string]models.SubscriptionPlan
	subs  map[string]models.Subscription
	mu    sync.RWMutex
}

// NewMockSubscriptionRepository creates a new instance of MockSubscriptionRepository.
func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		plans: make(map[string]models.SubscriptionPlan),
		subs:  make(map[string]models.Subscription),
	}
}

// CreatePlan adds a new subscription plan.
func (r *MockSubscriptionRepository) CreatePlan(plan *models.SubscriptionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	r.plans[plan.ID] = *plan
	return nil
}

// GetPlan returns a plan by its ID.
func (r *MockSubscriptionRepository) GetPlan(id string) (*models.SubscriptionPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, ok := r.plans[id]
	if !ok {
		return nil, fmt.Errorf("subscription plan %s: %w", id, apperrors.ErrNotFound)
	}
	return &plan, nil
}

// ListPlans returns all active plans, cheapest first.
func (r *MockSubscriptionRepository) ListPlans() ([]models.SubscriptionPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plans []models.SubscriptionPlan
	for _, plan := range r.plans {
		if plan.IsActive {
			plans = append(plans, plan)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Price < plans[j].Price })
	return plans, nil
}

// Create adds a new subscription.
func (r *MockSubscriptionRepository) Create(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = time.Now()
	r.subs[sub.ID] = *sub
	return nil
}

// GetByID returns a subscription by its ID.
func (r *MockSubscriptionRepository) GetByID(id string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, apperrors.ErrNotFound)
	}
	return &sub, nil
}

// GetActiveByUser returns a user's active subscription, if any.
func (r *MockSubscriptionRepository) GetActiveByUser(userID string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		if sub.UserID == userID && sub.Status == models.SubscriptionStatusActive {
			s := sub
			return &s, nil
		}
	}
	return nil, fmt.Errorf("active subscription for user %s: %w", userID, apperrors.ErrNotFound)
}

// UpdateStatusByExternalRef flips the status of the subscription matching the
// processor's reference.
func (r *MockSubscriptionRepository) UpdateStatusByExternalRef(externalRef, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sub := range r.subs {
		if sub.ExternalRef == externalRef {
			sub.Status = status
			sub.UpdatedAt = time.Now()
			r.subs[id] = sub
			return true, nil
		}
	}
	return false, nil
}

// UpdateStatus updates the status of a subscription by its ID.
func (r *MockSubscriptionRepository) UpdateStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return fmt.Errorf("subscription %s: %w", id, apperrors.ErrNotFound)
	}
	sub.Status = status
	sub.UpdatedAt = time.Now()
	r.subs[id] = sub
	return nil
}
