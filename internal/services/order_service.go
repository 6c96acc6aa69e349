package services

import (
	"errors"
	"fmt"
	"log"

	"digistore/internal/apperrors"
	"digistore/internal/models"
	"digistore/internal/repositories"

	"github.com/google/uuid"
)

// Issuer converts a completed order into licenses and download grants. It is
// satisfied by EntitlementService and must be idempotent per order.
type Issuer interface {
	IssueForOrder(orderID string) error
}

// IssueQueue accepts out-of-band issuance retry requests. It is satisfied by
// the rabbitmq client and may be nil when no broker is configured.
type IssueQueue interface {
	PublishIssueRequest(orderID string) error
}

// TaxCalculator computes the tax (in cents) for an order subtotal. The
// storefront currently charges none, but the calculation is pluggable.
type TaxCalculator func(subtotal int64) int64

// ZeroTax is the default TaxCalculator.
func ZeroTax(int64) int64 { return 0 }

// allowedTransitions is the order state machine. Pending is the only creation
// state; any edge not listed here is rejected.
var allowedTransitions = map[string]map[string]bool{
	models.OrderStatusPending: {
		models.OrderStatusCompleted: true,
		models.OrderStatusFailed:    true,
	},
	models.OrderStatusCompleted: {
		models.OrderStatusRefunded: true,
	},
}

// OrderService is the order ledger: it creates orders with their line items
// and drives the status state machine, triggering entitlement issuance exactly
// once per completion.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	issuer      Issuer
	issueQueue  IssueQueue
	tax         TaxCalculator
}

// NewOrderService creates a new OrderService. issueQueue may be nil; issuance
// failures are then only recoverable through the admin re-trigger.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, issuer Issuer, issueQueue IssueQueue) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		issuer:      issuer,
		issueQueue:  issueQueue,
		tax:         ZeroTax,
	}
}

// SetTaxCalculator swaps the tax calculation.
func (s *OrderService) SetTaxCalculator(tax TaxCalculator) {
	s.tax = tax
}

// CreateOrder turns a checkout submission into a pending order. Unit prices
// are snapshotted from the catalog (extended license = 2x standard), the order
// and its items are persisted as one atomic unit, and the resulting totals
// satisfy total = subtotal + tax in cents.
func (s *OrderService) CreateOrder(userID string, lines []models.CartLine, billingAddress string) (*models.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("order creation requires an authenticated user: %w", apperrors.ErrAuth)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", apperrors.ErrValidation)
	}

	var subtotal int64
	var items []models.OrderItem
	currency := "usd"

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("quantity must be at least 1 for product %s: %w", line.ProductID, apperrors.ErrValidation)
		}
		if line.LicenseType != models.LicenseTypeStandard && line.LicenseType != models.LicenseTypeExtended {
			return nil, fmt.Errorf("unknown license type %q: %w", line.LicenseType, apperrors.ErrValidation)
		}

		product, err := s.productRepo.GetByID(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("product %s is not available: %w", line.ProductID, apperrors.ErrValidation)
		}

		// Snapshot the unit price now; later catalog changes never touch it.
		unitPrice := product.Price
		if line.LicenseType == models.LicenseTypeExtended {
			unitPrice = product.Price * 2
		}
		totalPrice := unitPrice * int64(line.Quantity)

		items = append(items, models.OrderItem{
			ID:          uuid.New().String(),
			ProductID:   line.ProductID,
			LicenseType: line.LicenseType,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  totalPrice,
		})
		subtotal += totalPrice
		if product.Currency != "" {
			currency = product.Currency
		}
	}

	taxAmount := s.tax(subtotal)
	order := &models.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Status:      models.OrderStatusPending,
		Subtotal:    subtotal,
		TaxAmount:   taxAmount,
		TotalAmount: subtotal + taxAmount,
		Currency:    currency,
		BillingAddr: billingAddress,
		Items:       items,
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

// TransitionStatus moves an order along the state machine. Repeating the
// order's current status is an idempotent no-op (that is what makes duplicate
// webhook deliveries harmless); any edge outside allowedTransitions is an
// ErrInvalidTransition. A won pending->completed transition triggers
// entitlement issuance; issuance failures never roll the status back and are
// instead queued for retry.
func (s *OrderService) TransitionStatus(orderID, newStatus, paymentRef string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == newStatus {
		// Duplicate delivery. The conditional update below would match zero
		// rows anyway; short-circuit without re-invoking the issuer.
		return order, nil
	}

	if !allowedTransitions[order.Status][newStatus] {
		return nil, fmt.Errorf("order %s cannot move from %s to %s: %w",
			orderID, order.Status, newStatus, apperrors.ErrInvalidTransition)
	}

	won, err := s.orderRepo.UpdateStatusIf(orderID, order.Status, newStatus, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to transition order %s: %w", orderID, err)
	}
	if !won {
		// Someone else moved the order between our read and the conditional
		// update. Re-read and decide: landing on the requested status is the
		// duplicate-delivery case, anything else is an illegal edge.
		order, err = s.orderRepo.GetByID(orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == newStatus {
			return order, nil
		}
		return nil, fmt.Errorf("order %s cannot move from %s to %s: %w",
			orderID, order.Status, newStatus, apperrors.ErrInvalidTransition)
	}

	if newStatus == models.OrderStatusCompleted {
		if err := s.issuer.IssueForOrder(orderID); err != nil {
			// The payment succeeded, so the completed status stays. Surface
			// the failure through the retry queue instead of rolling back.
			log.Printf("Entitlement issuance failed for order %s: %v", orderID, err)
			s.enqueueIssueRetry(orderID)
		}
	}

	return s.orderRepo.GetByID(orderID)
}

func (s *OrderService) enqueueIssueRetry(orderID string) {
	if s.issueQueue == nil {
		log.Printf("No issue queue configured; order %s needs a manual entitlement re-trigger", orderID)
		return
	}
	if err := s.issueQueue.PublishIssueRequest(orderID); err != nil {
		log.Printf("Failed to queue issuance retry for order %s: %v", orderID, err)
	}
}

// RetryEntitlements re-runs issuance for a completed order whose entitlements
// are not yet fully issued. It backs both the queue consumer and the admin
// re-trigger endpoint.
func (s *OrderService) RetryEntitlements(orderID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusCompleted {
		return fmt.Errorf("order %s is %s, entitlements are only issued for completed orders: %w",
			orderID, order.Status, apperrors.ErrInvalidTransition)
	}
	if order.EntitlementsIssued {
		return nil
	}
	return s.issuer.IssueForOrder(orderID)
}

// GetOrderByID retrieves a single order with its line items.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// GetOrderForUser retrieves an order, rejecting callers who do not own it.
func (s *OrderService) GetOrderForUser(id, userID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		// Do not reveal the order's existence to other users.
		return nil, fmt.Errorf("order %s: %w", id, apperrors.ErrNotFound)
	}
	return order, nil
}

// GetAllOrders retrieves all orders (admin view).
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// ListOrdersByUser retrieves the orders belonging to one user.
func (s *OrderService) ListOrdersByUser(userID string) ([]models.Order, error) {
	return s.orderRepo.ListByUser(userID)
}

// FindByPaymentRef looks an order up by its external payment reference.
func (s *OrderService) FindByPaymentRef(ref string) (*models.Order, error) {
	order, err := s.orderRepo.GetByPaymentRef(ref)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to find order by payment ref: %w", err)
	}
	return order, err
}
