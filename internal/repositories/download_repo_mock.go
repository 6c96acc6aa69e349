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

// MockDownloadGrantRepository is an in-memory implementation of
// DownloadGrantRepository. Redeem holds the write lock for the whole
// check-and-set, giving the same exactly-once semantics as the database's
// conditional update.
type MockDownloadGrantRepository struct {
	byToken map[string]models.DownloadGrant
	byPair  map[string]string // "itemID/fileID" -> token
	mu      sync.RWMutex
}

// NewMockDownloadGrantRepository creates a new instance of MockDownloadGrantRepository.
func NewMockDownloadGrantRepository() *MockDownloadGrantRepository {
	return &MockDownloadGrantRepository{
		byToken: make(map[string]models.DownloadGrant),
		byPair:  make(map[string]string),
	}
}

func pairKey(itemID, fileID string) string {
	return itemID + "/" + fileID
}

// CreateIfAbsent inserts the grant unless its (item, file) pair already has one.
func (r *MockDownloadGrantRepository) CreateIfAbsent(grant *models.DownloadGrant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPair[pairKey(grant.OrderItemID, grant.FileID)]; ok {
		return false, nil
	}
	if grant.ID == "" {
		grant.ID = uuid.New().String()
	}
	grant.CreatedAt = time.Now()
	r.byToken[grant.Token] = *grant
	r.byPair[pairKey(grant.OrderItemID, grant.FileID)] = grant.Token
	return true, nil
}

// GetByToken returns a grant by its opaque token.
func (r *MockDownloadGrantRepository) GetByToken(token string) (*models.DownloadGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grant, ok := r.byToken[token]
	if !ok {
		return nil, fmt.Errorf("download grant: %w", apperrors.ErrNotFound)
	}
	return &grant, nil
}

// Redeem consumes the grant if it is still unredeemed.
func (r *MockDownloadGrantRepository) Redeem(token string, at time.Time, ip, userAgent string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grant, ok := r.byToken[token]
	if !ok || grant.RedeemedAt != nil {
		return false, nil
	}
	redeemedAt := at
	grant.RedeemedAt = &redeemedAt
	grant.RedeemerIP = ip
	grant.RedeemerUA = userAgent
	r.byToken[token] = grant
	return true, nil
}

// ListByUser returns all grants owned by a user, newest first.
func (r *MockDownloadGrantRepository) ListByUser(userID string) ([]models.DownloadGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var grants []models.DownloadGrant
	for _, grant := range r.byToken {
		if grant.UserID == userID {
			grants = append(grants, grant)
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].CreatedAt.After(grants[j].CreatedAt)
	})
	return grants, nil
}

// ListByOrder returns the grants issued for one order.
func (r *MockDownloadGrantRepository) ListByOrder(orderID string) ([]models.DownloadGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var grants []models.DownloadGrant
	for _, grant := range r.byToken {
		if grant.OrderID == orderID {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}
