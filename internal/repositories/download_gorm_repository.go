package repositories

import (
	"errors"
	"fmt"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMDownloadGrantRepository is a GORM implementation of DownloadGrantRepository.
type GORMDownloadGrantRepository struct {
	db *gorm.DB
}

// NewGORMDownloadGrantRepository creates a new instance of GORMDownloadGrantRepository.
func NewGORMDownloadGrantRepository(db *gorm.DB) *GORMDownloadGrantRepository {
	return &GORMDownloadGrantRepository{
		db: db,
	}
}

// CreateIfAbsent inserts the grant with ON CONFLICT DO NOTHING on the
// (order_item_id, file_id) unique index, so issuance retries never mint a
// second token for the same file.
func (r *GORMDownloadGrantRepository) CreateIfAbsent(grant *models.DownloadGrant) (bool, error) {
	if grant.ID == "" {
		grant.ID = uuid.New().String()
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}, {Name: "order_item_id"}},
		DoNothing: true,
	}).Create(grant)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create download grant for item %s file %s: %w",
			grant.OrderItemID, grant.FileID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetByToken retrieves a grant by its opaque token.
func (r *GORMDownloadGrantRepository) GetByToken(token string) (*models.DownloadGrant, error) {
	var grant models.DownloadGrant
	if err := r.db.First(&grant, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("download grant: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get download grant: %w", err)
	}
	return &grant, nil
}

// Redeem runs the single conditional update that consumes a grant. Two
// concurrent calls for the same token race on the WHERE redeemed_at IS NULL
// clause: exactly one updates a row, the other updates zero.
func (r *GORMDownloadGrantRepository) Redeem(token string, at time.Time, ip, userAgent string) (bool, error) {
	res := r.db.Model(&models.DownloadGrant{}).
		Where("token = ? AND redeemed_at IS NULL", token).
		Updates(map[string]interface{}{
			"redeemed_at": at,
			"redeemer_ip": ip,
			"redeemer_ua": userAgent,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to redeem download grant: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListByUser returns all grants owned by a user, newest first.
func (r *GORMDownloadGrantRepository) ListByUser(userID string) ([]models.DownloadGrant, error) {
	var grants []models.DownloadGrant
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list download grants for user %s: %w", userID, err)
	}
	return grants, nil
}

// ListByOrder returns the grants issued for one order.
func (r *GORMDownloadGrantRepository) ListByOrder(orderID string) ([]models.DownloadGrant, error) {
	var grants []models.DownloadGrant
	if err := r.db.Where("order_id = ?", orderID).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list download grants for order %s: %w", orderID, err)
	}
	return grants, nil
}
