package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// The mutex gives it the same atomic conditional-update semantics as the
// database, which the service-level concurrency tests rely on.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order with its items.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	return &order, nil
}

// GetByPaymentRef returns the order carrying the given payment reference.
func (r *MockOrderRepository) GetByPaymentRef(ref string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.PaymentRef == ref {
			o := order
			return &o, nil
		}
	}
	return nil, fmt.Errorf("order with payment ref %s: %w", ref, apperrors.ErrNotFound)
}

// GetAll returns all orders, newest first.
func (r *MockOrderRepository) GetAll() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orderList = append(orderList, order)
	}
	sort.Slice(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// ListByUser returns the orders belonging to one user, newest first.
func (r *MockOrderRepository) ListByUser(userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orderList []models.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			orderList = append(orderList, order)
		}
	}
	sort.Slice(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// UpdateStatusIf conditionally moves the order's status, mirroring the
// database's single-row conditional update.
func (r *MockOrderRepository) UpdateStatusIf(id, fromStatus, newStatus, paymentRef string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok || order.Status != fromStatus {
		return false, nil
	}
	order.Status = newStatus
	if paymentRef != "" {
		order.PaymentRef = paymentRef
	}
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return true, nil
}

// SetEntitlementsIssued marks issuance as done for the order.
func (r *MockOrderRepository) SetEntitlementsIssued(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	order.EntitlementsIssued = true
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// HasCompletedPurchase reports whether the user has a completed order
// containing the product.
func (r *MockOrderRepository) HasCompletedPurchase(userID, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.UserID != userID || order.Status != models.OrderStatusCompleted {
			continue
		}
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}
