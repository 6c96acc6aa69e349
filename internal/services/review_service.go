package services

import (
	"fmt"

	"digistore/internal/apperrors"
	"digistore/internal/models"
	"digistore/internal/repositories"
)

// ReviewService handles business logic for product reviews. The
// verified-purchase badge is computed from the order ledger at creation time:
// the reviewer owns a completed order containing the product.
type ReviewService struct {
	reviewRepo  repositories.ReviewRepository
	productRepo repositories.ProductRepository
	orderRepo   repositories.OrderRepository
}

// NewReviewService creates a new ReviewService.
func NewReviewService(reviewRepo repositories.ReviewRepository, productRepo repositories.ProductRepository, orderRepo repositories.OrderRepository) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
	}
}

// CreateReview creates a review for a product. Anyone logged in may review;
// only reviewers with a completed purchase of the product get the
// verified-purchase flag.
func (s *ReviewService) CreateReview(userID, productID string, rating int, title, comment string) (*models.Review, error) {
	if userID == "" {
		return nil, fmt.Errorf("reviewing requires an authenticated user: %w", apperrors.ErrAuth)
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", apperrors.ErrValidation)
	}
	if _, err := s.productRepo.GetByID(productID); err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	verified, err := s.orderRepo.HasCompletedPurchase(userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check purchase history: %w", err)
	}

	review := &models.Review{
		ProductID:          productID,
		UserID:             userID,
		Rating:             rating,
		Title:              title,
		Comment:            comment,
		IsVerifiedPurchase: verified,
		IsApproved:         true,
	}
	if err := s.reviewRepo.Create(review); err != nil {
		return nil, err
	}
	return review, nil
}

// ListProductReviews returns the approved reviews for a product.
func (s *ReviewService) ListProductReviews(productID string) ([]models.Review, error) {
	return s.reviewRepo.ListApprovedByProduct(productID)
}

// ListUserReviews returns all reviews written by a user.
func (s *ReviewService) ListUserReviews(userID string) ([]models.Review, error) {
	return s.reviewRepo.ListByUser(userID)
}

// UpdateReview lets the author revise rating, title and comment. The
// verified-purchase and approval flags are not the author's to change.
func (s *ReviewService) UpdateReview(id, userID string, rating int, title, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5: %w", apperrors.ErrValidation)
	}
	review, err := s.reviewRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		// Do not reveal the review's existence to other users.
		return nil, fmt.Errorf("review %s: %w", id, apperrors.ErrNotFound)
	}

	review.Rating = rating
	review.Title = title
	review.Comment = comment
	if err := s.reviewRepo.Update(review); err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview removes one of the author's own reviews.
func (s *ReviewService) DeleteReview(id, userID string) error {
	review, err := s.reviewRepo.GetByID(id)
	if err != nil {
		return err
	}
	if review.UserID != userID {
		return fmt.Errorf("review %s: %w", id, apperrors.ErrNotFound)
	}
	return s.reviewRepo.Delete(id)
}

// SetApproval flips a review's moderation switch (admin).
func (s *ReviewService) SetApproval(id string, approved bool) (*models.Review, error) {
	review, err := s.reviewRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	review.IsApproved = approved
	if err := s.reviewRepo.Update(review); err != nil {
		return nil, err
	}
	return review, nil
}

// RemoveReview deletes any review regardless of author (admin).
func (s *ReviewService) RemoveReview(id string) error {
	if _, err := s.reviewRepo.GetByID(id); err != nil {
		return err
	}
	return s.reviewRepo.Delete(id)
}
