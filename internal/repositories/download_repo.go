package repositories

import (
	"time"

	"digistore/internal/models"
)

// DownloadGrantRepository defines the interface for download grant data access.
type DownloadGrantRepository interface {
	// CreateIfAbsent inserts the grant unless one already exists for the same
	// (order item, file) pair, reporting whether a row was inserted.
	CreateIfAbsent(grant *models.DownloadGrant) (bool, error)
	GetByToken(token string) (*models.DownloadGrant, error)
	// Redeem atomically sets the grant's redeemed-at timestamp and redeemer
	// metadata, but only if the grant is still unredeemed. It reports whether
	// this call won the redemption. There is deliberately no read-then-write
	// variant: the conditional update is the whole point.
	Redeem(token string, at time.Time, ip, userAgent string) (bool, error)
	ListByUser(userID string) ([]models.DownloadGrant, error)
	ListByOrder(orderID string) ([]models.DownloadGrant, error)
}
