package repositories

import (
	"errors"
	"fmt"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create persists the order together with its items in one transaction, so a
// failed item insert never leaves a visible half-created pending order.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Items are inserted through the association in the same transaction.
		return tx.Create(order).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order with its line items.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByPaymentRef retrieves an order by its external payment reference.
func (r *GORMOrderRepository) GetByPaymentRef(ref string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Preload("Items").First(&order, "payment_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with payment ref %s: %w", ref, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by payment ref %s: %w", ref, err)
	}
	return &order, nil
}

// GetAll retrieves all orders, newest first.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// ListByUser retrieves the orders belonging to one user, newest first.
func (r *GORMOrderRepository) ListByUser(userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// UpdateStatusIf performs the conditional status update that backs the order
// state machine. The WHERE clause on the current status is what guarantees a
// duplicate transition updates zero rows instead of firing twice.
func (r *GORMOrderRepository) UpdateStatusIf(id, fromStatus, newStatus, paymentRef string) (bool, error) {
	updates := map[string]interface{}{
		"status":     newStatus,
		"updated_at": time.Now(),
	}
	if paymentRef != "" {
		updates["payment_ref"] = paymentRef
	}
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status for order %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetEntitlementsIssued marks the order's issuance phase as complete.
func (r *GORMOrderRepository) SetEntitlementsIssued(id string) error {
	res := r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"entitlements_issued": true, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to mark entitlements issued for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// HasCompletedPurchase reports whether the user has a completed order
// containing the product.
func (r *GORMOrderRepository) HasCompletedPurchase(userID, productID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?",
			userID, models.OrderStatusCompleted, productID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check purchases for user %s: %w", userID, err)
	}
	return count > 0, nil
}
