package repositories

import (
	"digistore/internal/models"
)

// LicenseRepository defines the interface for license data access.
type LicenseRepository interface {
	// CreateIfAbsent inserts the license unless one already exists for the
	// same order item, reporting whether a row was inserted. A collision on
	// the license key itself is an error, never a silent skip.
	CreateIfAbsent(license *models.License) (bool, error)
	KeyExists(key string) (bool, error)
	ListByUser(userID string) ([]models.License, error)
	ListByOrder(orderID string) ([]models.License, error)
}
