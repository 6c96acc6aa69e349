package repositories

import (
	"digistore/internal/models"
)

// ProductRepository defines the interface for catalog data access. The
// fulfillment core reads it only; writes come from the admin surface.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	// GetFiles returns the downloadable files attached to a product.
	GetFiles(productID string) ([]models.ProductFile, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
}
