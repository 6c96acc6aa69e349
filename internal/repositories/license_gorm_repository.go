package repositories

import (
	"errors"
	"fmt"

	"digistore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMLicenseRepository is a GORM implementation of LicenseRepository.
type GORMLicenseRepository struct {
	db *gorm.DB
}

// NewGORMLicenseRepository creates a new instance of GORMLicenseRepository.
func NewGORMLicenseRepository(db *gorm.DB) *GORMLicenseRepository {
	return &GORMLicenseRepository{
		db: db,
	}
}

// CreateIfAbsent inserts the license with ON CONFLICT DO NOTHING on the
// order-item unique index. Issuance retries therefore skip rows that already
// exist instead of duplicating them, while a license-key collision still
// surfaces as a unique violation on the key index.
func (r *GORMLicenseRepository) CreateIfAbsent(license *models.License) (bool, error) {
	if license.ID == "" {
		license.ID = uuid.New().String()
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_item_id"}},
		DoNothing: true,
	}).Create(license)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create license for item %s: %w", license.OrderItemID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// KeyExists reports whether a license key is already taken.
func (r *GORMLicenseRepository) KeyExists(key string) (bool, error) {
	var license models.License
	err := r.db.Select("id").First(&license, "license_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check license key: %w", err)
	}
	return true, nil
}

// ListByUser returns all licenses owned by a user, newest first.
func (r *GORMLicenseRepository) ListByUser(userID string) ([]models.License, error) {
	var licenses []models.License
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to list licenses for user %s: %w", userID, err)
	}
	return licenses, nil
}

// ListByOrder returns the licenses issued for one order.
func (r *GORMLicenseRepository) ListByOrder(orderID string) ([]models.License, error) {
	var licenses []models.License
	if err := r.db.Where("order_id = ?", orderID).Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to list licenses for order %s: %w", orderID, err)
	}
	return licenses, nil
}
