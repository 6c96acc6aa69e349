package repositories

import (
	"digistore/internal/models"
)

// OrderRepository defines the interface for order ledger data access.
type OrderRepository interface {
	// Create persists an order and its items as a single atomic unit.
	Create(order *models.Order) error
	// GetByID returns an order with its line items joined.
	GetByID(id string) (*models.Order, error)
	// GetByPaymentRef looks an order up by its external payment reference.
	GetByPaymentRef(ref string) (*models.Order, error)
	GetAll() ([]models.Order, error)
	ListByUser(userID string) ([]models.Order, error)
	// UpdateStatusIf moves the order to newStatus only if its current status
	// equals fromStatus, recording paymentRef when non-empty. It reports
	// whether the row was actually updated, which is what makes duplicate
	// webhook deliveries a no-op.
	UpdateStatusIf(id, fromStatus, newStatus, paymentRef string) (bool, error)
	// SetEntitlementsIssued marks issuance as fully done for the order.
	SetEntitlementsIssued(id string) error
	// HasCompletedPurchase reports whether the user has a completed order
	// containing the product. Reviews use it for the verified-purchase badge.
	HasCompletedPurchase(userID, productID string) (bool, error)
}
