package services

import (
	"fmt"
	"log"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"
	"digistore/internal/repositories"

	"digistore/pkg/token"
)

// EntitlementService converts a completed order into licenses and download
// grants: one license per order item, one grant per (item, product file) pair.
// Every insert goes through the repositories' insert-or-skip path keyed on the
// order item (and file), so a partially failed run can be retried without
// duplicating rows.
type EntitlementService struct {
	orderRepo    repositories.OrderRepository
	productRepo  repositories.ProductRepository
	licenseRepo  repositories.LicenseRepository
	downloadRepo repositories.DownloadGrantRepository
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	licenseRepo repositories.LicenseRepository,
	downloadRepo repositories.DownloadGrantRepository,
) *EntitlementService {
	return &EntitlementService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		licenseRepo:  licenseRepo,
		downloadRepo: downloadRepo,
	}
}

// IssueForOrder issues all entitlements for a completed order. It is
// idempotent: an order already marked entitlements-issued is a no-op, and
// retried runs skip rows that already exist. Only fully successful runs flip
// the order's entitlements-issued flag.
func (s *EntitlementService) IssueForOrder(orderID string) error {
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

	expiresAt := time.Now().Add(models.DownloadGrantTTL)

	for _, item := range order.Items {
		if err := s.issueLicense(order, item); err != nil {
			return err
		}

		files, err := s.productRepo.GetFiles(item.ProductID)
		if err != nil {
			return fmt.Errorf("catalog read failed for product %s: %w (%v)",
				item.ProductID, apperrors.ErrDependency, err)
		}
		for _, file := range files {
			if err := s.issueGrant(order, item, file, expiresAt); err != nil {
				return err
			}
		}
	}

	if err := s.orderRepo.SetEntitlementsIssued(orderID); err != nil {
		return fmt.Errorf("entitlements created but flag update failed for order %s: %w", orderID, err)
	}
	log.Printf("Issued entitlements for order %s (%d items)", orderID, len(order.Items))
	return nil
}

// ListUserLicenses returns all licenses owned by a user.
func (s *EntitlementService) ListUserLicenses(userID string) ([]models.License, error) {
	return s.licenseRepo.ListByUser(userID)
}

// ListOrderLicenses returns the licenses issued for one order.
func (s *EntitlementService) ListOrderLicenses(orderID string) ([]models.License, error) {
	return s.licenseRepo.ListByOrder(orderID)
}

func (s *EntitlementService) issueLicense(order *models.Order, item models.OrderItem) error {
	key, err := token.NewLicenseKey()
	if err != nil {
		return fmt.Errorf("failed to generate license key for item %s: %w", item.ID, err)
	}
	// A freshly generated key colliding with an existing one means the
	// generator is broken; fail loudly instead of retrying into a duplicate.
	exists, err := s.licenseRepo.KeyExists(key)
	if err != nil {
		return fmt.Errorf("failed to check license key uniqueness: %w", err)
	}
	if exists {
		return fmt.Errorf("generated license key collides with an existing key for item %s", item.ID)
	}

	_, err = s.licenseRepo.CreateIfAbsent(&models.License{
		UserID:      order.UserID,
		ProductID:   item.ProductID,
		OrderID:     order.ID,
		OrderItemID: item.ID,
		LicenseKey:  key,
		LicenseType: item.LicenseType,
		IsActive:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to persist license for item %s: %w", item.ID, err)
	}
	return nil
}

func (s *EntitlementService) issueGrant(order *models.Order, item models.OrderItem, file models.ProductFile, expiresAt time.Time) error {
	tok, err := token.NewDownloadToken()
	if err != nil {
		return fmt.Errorf("failed to generate download token for file %s: %w", file.ID, err)
	}
	_, err = s.downloadRepo.CreateIfAbsent(&models.DownloadGrant{
		UserID:      order.UserID,
		ProductID:   item.ProductID,
		OrderID:     order.ID,
		OrderItemID: item.ID,
		FileID:      file.ID,
		Token:       tok,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to persist download grant for file %s: %w", file.ID, err)
	}
	return nil
}
