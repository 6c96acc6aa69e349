package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"digistore/internal/models"

	"github.com/google/uuid"
)

// MockLicenseRepository is an in-memory implementation of LicenseRepository.
type MockLicenseRepository struct {
	byItem map[string]models.License // keyed by OrderItemID, the dedup key
	keys   map[string]bool
	mu     sync.RWMutex
}

// NewMockLicenseRepository creates a new instance of MockLicenseRepository.
func NewMockLicenseRepository() *MockLicenseRepository {
	return &MockLicenseRepository{
		byItem: make(map[string]models.License),
		keys:   make(map[string]bool),
	}
}

// CreateIfAbsent inserts the license unless its order item already has one.
func (r *MockLicenseRepository) CreateIfAbsent(license *models.License) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byItem[license.OrderItemID]; ok {
		return false, nil
	}
	if r.keys[license.LicenseKey] {
		return false, fmt.Errorf("license key collision for key %s", license.LicenseKey)
	}
	if license.ID == "" {
		license.ID = uuid.New().String()
	}
	license.CreatedAt = time.Now()
	r.byItem[license.OrderItemID] = *license
	r.keys[license.LicenseKey] = true
	return true, nil
}

// KeyExists reports whether a license key is already taken.
func (r *MockLicenseRepository) KeyExists(key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys[key], nil
}

// ListByUser returns all licenses owned by a user, newest first.
func (r *MockLicenseRepository) ListByUser(userID string) ([]models.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var licenses []models.License
	for _, license := range r.byItem {
		if license.UserID == userID {
			licenses = append(licenses, license)
		}
	}
	sort.Slice(licenses, func(i, j int) bool {
		return licenses[i].CreatedAt.After(licenses[j].CreatedAt)
	})
	return licenses, nil
}

// ListByOrder returns the licenses issued for one order.
func (r *MockLicenseRepository) ListByOrder(orderID string) ([]models.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var licenses []models.License
	for _, license := range r.byItem {
		if license.OrderID == orderID {
			licenses = append(licenses, license)
		}
	}
	return licenses, nil
}
