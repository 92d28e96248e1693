// internal/services/verification_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
)

// VerificationService registers media with the content-authenticity
// scanner and reads back infringement results. Results are cached in
// Redis so status polling does not hammer the upstream API.
type VerificationService struct {
	db         *gorm.DB
	cache      *redis.Client
	baseURL    string
	apiKey     string
	network    string
	cacheTTL   time.Duration
	httpClient *http.Client
}

type registerTokenRequest struct {
	ID    string              `json:"id"`
	Media []verificationMedia `json:"media"`
}

type verificationMedia struct {
	MediaID string `json:"media_id"`
	URL     string `json:"url"`
}

type tokenStatusResponse struct {
	InfringementsResult struct {
		Status        string                   `json:"status"`
		Infringements []map[string]interface{} `json:"external_infringements"`
	} `json:"infringements_result"`
}

func NewVerificationService(db *gorm.DB, cache *redis.Client, cfg *config.Config) *VerificationService {
	return &VerificationService{
		db:       db,
		cache:    cache,
		baseURL:  cfg.Verification.BaseURL,
		apiKey:   cfg.Verification.APIKey,
		network:  cfg.Verification.Network,
		cacheTTL: time.Duration(cfg.Verification.CacheTTL) * time.Second,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RegisterForScanning submits a pinned asset for infringement scanning
// and stores a pending check row.
func (s *VerificationService) RegisterForScanning(ctx context.Context, asset *models.Asset) (*models.VerificationCheck, error) {
	externalID := fmt.Sprintf("%s:%s", s.network, asset.ID)

	payload := registerTokenRequest{
		ID: externalID,
		Media: []verificationMedia{
			{MediaID: asset.ContentCID, URL: asset.FileURL},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/token", s.baseURL, s.network), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan registration failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("scan registration returned %d: %s", resp.StatusCode, string(raw))
	}

	check := &models.VerificationCheck{
		AssetID:    asset.ID,
		ExternalID: externalID,
		Status:     models.VerificationStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(check).Error; err != nil {
		return nil, fmt.Errorf("failed to store verification check: %w", err)
	}

	return check, nil
}

// GetResult reads the latest scan result for an asset, refreshing from
// the upstream API when the cached copy has expired.
func (s *VerificationService) GetResult(ctx context.Context, assetID uuid.UUID) (*models.VerificationCheck, error) {
	var check models.VerificationCheck
	if err := s.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("created_at DESC").
		First(&check).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no verification check for asset %s", assetID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if check.Status != models.VerificationStatusPending {
		return &check, nil
	}

	if s.cacheFresh(ctx, check.ExternalID) {
		return &check, nil
	}

	status, infringements, err := s.fetchStatus(ctx, check.ExternalID)
	if err != nil {
		// Treat a failed refresh as still-pending; the caller polls.
		logrus.WithError(err).WithField("asset_id", assetID).Warn("Verification status refresh failed")
		return &check, nil
	}

	now := time.Now()
	check.Status = status
	check.CheckedAt = &now
	if len(infringements) > 0 {
		check.Infringements = models.JSONB{"matches": infringements}
	}

	if err := s.db.WithContext(ctx).Save(&check).Error; err != nil {
		return nil, fmt.Errorf("failed to update verification check: %w", err)
	}

	if status != models.VerificationStatusPending {
		s.db.WithContext(ctx).Model(&models.Asset{}).
			Where("id = ?", assetID).
			Update("verification_status", status)
	}

	s.markCache(ctx, check.ExternalID)
	return &check, nil
}

func (s *VerificationService) fetchStatus(ctx context.Context, externalID string) (models.VerificationStatus, []map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/token/%s", s.baseURL, s.network, externalID), nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var body tokenStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	switch body.InfringementsResult.Status {
	case "succeeded", "completed":
		if len(body.InfringementsResult.Infringements) > 0 {
			return models.VerificationStatusFlagged, body.InfringementsResult.Infringements, nil
		}
		return models.VerificationStatusClear, nil, nil
	case "failed":
		return models.VerificationStatusFailed, nil, nil
	default:
		return models.VerificationStatusPending, nil, nil
	}
}

func (s *VerificationService) cacheFresh(ctx context.Context, externalID string) bool {
	if s.cache == nil {
		return false
	}
	exists, err := s.cache.Exists(ctx, "verification:checked:"+externalID).Result()
	return err == nil && exists > 0
}

func (s *VerificationService) markCache(ctx context.Context, externalID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, "verification:checked:"+externalID, 1, s.cacheTTL).Err(); err != nil {
		logrus.WithError(err).Debug("Failed to cache verification result")
	}
}
