package repositories

import "digistore/internal/models"

// ReviewRepository defines the interface for product review data access.
type ReviewRepository interface {
	Create(review *models.Review) error
	GetByID(id string) (*models.Review, error)
	// ListApprovedByProduct returns the approved reviews for a product,
	// newest first. Unapproved reviews stay visible only to moderation.
	ListApprovedByProduct(productID string) ([]models.Review, error)
	ListByUser(userID string) ([]models.Review, error)
	Update(review *models.Review) error
	Delete(id string) error
}
