package services

import (
	"fmt"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"
	"digistore/internal/repositories"
)

// signedURLTTL is the validity of the URL handed back by a redemption. It is
// independent of, and much shorter than, the grant's own 30-day window:
// redemption consumes the grant, not the URL.
const signedURLTTL = time.Hour

// URLSigner produces time-limited signed URLs for objects in the file bucket.
// It is satisfied by storage.Signer.
type URLSigner interface {
	SignedURL(bucket, path string, ttl time.Duration) (string, error)
}

// DownloadService is the redemption gate: it exchanges a presented download
// token for a short-lived signed file URL, enforcing expiry and one-time use.
type DownloadService struct {
	downloadRepo repositories.DownloadGrantRepository
	productRepo  repositories.ProductRepository
	signer       URLSigner
	bucket       string
}

// NewDownloadService creates a new DownloadService.
func NewDownloadService(downloadRepo repositories.DownloadGrantRepository, productRepo repositories.ProductRepository, signer URLSigner, bucket string) *DownloadService {
	return &DownloadService{
		downloadRepo: downloadRepo,
		productRepo:  productRepo,
		signer:       signer,
		bucket:       bucket,
	}
}

// DownloadStats summarizes a user's grants.
type DownloadStats struct {
	Total   int `json:"total"`
	Used    int `json:"used"`
	Pending int `json:"pending"`
}

// Redeem validates and consumes a download grant, returning a 1-hour signed
// URL for the grant's file. The consumption itself is a single conditional
// update in the repository, so two concurrent redemptions of the same token
// resolve to exactly one success and one ErrAlreadyUsed.
func (s *DownloadService) Redeem(tok, clientIP, userAgent string) (string, error) {
	grant, err := s.downloadRepo.GetByToken(tok)
	if err != nil {
		return "", err
	}
	if !time.Now().Before(grant.ExpiresAt) {
		return "", fmt.Errorf("download grant expired at %s: %w",
			grant.ExpiresAt.Format(time.RFC3339), apperrors.ErrExpired)
	}
	if grant.RedeemedAt != nil {
		return "", fmt.Errorf("download grant was redeemed at %s: %w",
			grant.RedeemedAt.Format(time.RFC3339), apperrors.ErrAlreadyUsed)
	}

	won, err := s.downloadRepo.Redeem(tok, time.Now(), clientIP, userAgent)
	if err != nil {
		return "", fmt.Errorf("failed to redeem download grant: %w", err)
	}
	if !won {
		// A concurrent request consumed the grant between our read and the
		// conditional update.
		return "", fmt.Errorf("download grant was just redeemed: %w", apperrors.ErrAlreadyUsed)
	}

	file, err := s.lookupFile(grant.ProductID, grant.FileID)
	if err != nil {
		return "", err
	}
	url, err := s.signer.SignedURL(s.bucket, file.FilePath, signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("storage signer failed: %w (%v)", apperrors.ErrDependency, err)
	}
	return url, nil
}

func (s *DownloadService) lookupFile(productID, fileID string) (*models.ProductFile, error) {
	files, err := s.productRepo.GetFiles(productID)
	if err != nil {
		return nil, fmt.Errorf("catalog read failed for product %s: %w (%v)",
			productID, apperrors.ErrDependency, err)
	}
	for i := range files {
		if files[i].ID == fileID {
			return &files[i], nil
		}
	}
	return nil, fmt.Errorf("file %s for product %s: %w", fileID, productID, apperrors.ErrNotFound)
}

// ListUserDownloads returns all grants owned by a user.
func (s *DownloadService) ListUserDownloads(userID string) ([]models.DownloadGrant, error) {
	return s.downloadRepo.ListByUser(userID)
}

// UserDownloadStats summarizes a user's grants into total/used/pending counts.
func (s *DownloadService) UserDownloadStats(userID string) (*DownloadStats, error) {
	grants, err := s.downloadRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	stats := &DownloadStats{Total: len(grants)}
	for _, grant := range grants {
		if grant.RedeemedAt != nil {
			stats.Used++
		}
	}
	stats.Pending = stats.Total - stats.Used
	return stats, nil
}
