package services

import (
	"fmt"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"
	"digistore/internal/repositories"
)

// SubscriptionService handles subscription plans and the webhook-driven
// subscription lifecycle.
type SubscriptionService struct {
	subRepo repositories.SubscriptionRepository
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(subRepo repositories.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{
		subRepo: subRepo,
	}
}

// ListPlans returns all active subscription plans.
func (s *SubscriptionService) ListPlans() ([]models.SubscriptionPlan, error) {
	return s.subRepo.ListPlans()
}

// CreatePlan adds a new plan (admin).
func (s *SubscriptionService) CreatePlan(plan *models.SubscriptionPlan) error {
	return s.subRepo.CreatePlan(plan)
}

// Subscribe creates an active subscription for the user on the given plan.
// externalRef is the processor's subscription id, used later by webhook events.
func (s *SubscriptionService) Subscribe(userID, planID, externalRef string) (*models.Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("subscribing requires an authenticated user: %w", apperrors.ErrAuth)
	}
	plan, err := s.subRepo.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	end := start.AddDate(0, 1, 0)
	if plan.Interval == "year" {
		end = start.AddDate(1, 0, 0)
	}

	sub := &models.Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             models.SubscriptionStatusActive,
		ExternalRef:        externalRef,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
	}
	if err := s.subRepo.Create(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetUserSubscription returns the user's active subscription, if any.
func (s *SubscriptionService) GetUserSubscription(userID string) (*models.Subscription, error) {
	return s.subRepo.GetActiveByUser(userID)
}

// Cancel cancels a subscription owned by the caller.
func (s *SubscriptionService) Cancel(id, userID string) error {
	sub, err := s.subRepo.GetByID(id)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return fmt.Errorf("subscription %s: %w", id, apperrors.ErrNotFound)
	}
	return s.subRepo.UpdateStatus(id, models.SubscriptionStatusCancelled)
}

// MarkActiveByExternalRef flips the subscription carrying the processor's
// reference to active (invoice-paid webhook). A missing subscription is not an
// error: the event may arrive before the local record exists and will be
// redelivered.
func (s *SubscriptionService) MarkActiveByExternalRef(ref string) (bool, error) {
	return s.subRepo.UpdateStatusByExternalRef(ref, models.SubscriptionStatusActive)
}

// MarkCancelledByExternalRef flips the subscription carrying the processor's
// reference to cancelled (subscription-deleted webhook).
func (s *SubscriptionService) MarkCancelledByExternalRef(ref string) (bool, error) {
	return s.subRepo.UpdateStatusByExternalRef(ref, models.SubscriptionStatusCancelled)
}
