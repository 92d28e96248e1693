// internal/services/asset_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/provenly/ipvault-backend/internal/models"
	"github.com/provenly/ipvault-backend/internal/utils"
)

type AssetService struct {
	db           *gorm.DB
	storage      *StorageService
	pinning      *PinningService
	registration *RegistrationService
	verification *VerificationService
	events       EventPublisher
}

type CreateAssetRequest struct {
	Title       string                 `json:"title" validate:"required,min=3,max=255"`
	Description string                 `json:"description" validate:"omitempty,max=5000"`
	LicenseTier string                 `json:"license_tier" validate:"required,license_tier"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type AssetSearchParams struct {
	utils.PaginationParams
	Query              string                     `json:"query,omitempty"`
	Category           *models.AssetCategory      `json:"category,omitempty"`
	CreatorID          *uuid.UUID                 `json:"creator_id,omitempty"`
	VerificationStatus *models.VerificationStatus `json:"verification_status,omitempty"`
	Tags               []string                   `json:"tags,omitempty"`
}

func NewAssetService(db *gorm.DB, storage *StorageService, pinning *PinningService,
	registration *RegistrationService, verification *VerificationService,
	events EventPublisher) *AssetService {
	return &AssetService{
		db:           db,
		storage:      storage,
		pinning:      pinning,
		registration: registration,
		verification: verification,
		events:       events,
	}
}

// CreateAsset runs the full ingest pipeline: classify and validate the
// file, store a durable copy, pin content and metadata to IPFS, then
// kick off on-chain registration and authenticity scanning in the
// background.
func (s *AssetService) CreateAsset(ctx context.Context, creatorID uuid.UUID, req *CreateAssetRequest, filename, mimeType string, fileData []byte) (*models.Asset, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var creator models.User
	if err := s.db.First(&creator, creatorID).Error; err != nil {
		return nil, fmt.Errorf("creator not found: %w", err)
	}
	if creator.Status != models.UserStatusActive {
		return nil, errors.New("creator account is not active")
	}

	category, err := ValidateAssetFile(filename, mimeType, int64(len(fileData)))
	if err != nil {
		return nil, err
	}

	// Same bytes always pin to the same CID, so the fingerprint doubles
	// as a duplicate check.
	fingerprint := utils.ContentHash(fileData)
	var existing models.Asset
	if err := s.db.Where("metadata ->> 'content_hash' = ?", fingerprint).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("duplicate content: already registered as asset %s", existing.ID)
	}

	stored, err := s.storage.StoreAsset(fileData, filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store asset file: %w", err)
	}

	// Image uploads get a derived preview; a failed thumbnail never
	// fails the upload.
	var thumbnailURL string
	if category == models.AssetCategoryImage {
		if thumb, err := makeThumbnail(fileData, thumbnailMaxDim); err != nil {
			logrus.WithError(err).WithField("filename", filename).Warn("Failed to generate thumbnail")
		} else if res, err := s.storage.StoreThumbnail(thumb, filename); err != nil {
			logrus.WithError(err).WithField("filename", filename).Warn("Failed to store thumbnail")
		} else {
			thumbnailURL = res.URL
		}
	}

	contentCID, err := s.pinning.PinFile(ctx, filename, fileData)
	if err != nil {
		return nil, fmt.Errorf("failed to pin asset content: %w", err)
	}

	metadata := s.deriveMetadata(req.Metadata, category, mimeType, fileData)
	metadata["content_hash"] = fingerprint
	metadata["storage_key"] = stored.Key

	metadataCID, err := s.pinning.PinJSON(ctx, map[string]interface{}{
		"name":        req.Title,
		"description": req.Description,
		"image":       s.pinning.GatewayURL(contentCID),
		"attributes":  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pin asset metadata: %w", err)
	}

	asset := &models.Asset{
		CreatorID:          creatorID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           category,
		ContentType:        mimeType,
		FileSize:           int64(len(fileData)),
		FileURL:            stored.URL,
		ThumbnailURL:       thumbnailURL,
		ContentCID:         contentCID,
		MetadataCID:        metadataCID,
		Metadata:           models.JSONB(metadata),
		VerificationStatus: models.VerificationStatusPending,
		Tags:               req.Tags,
	}

	if err := s.db.Create(asset).Error; err != nil {
		// The pinned copy is content-addressed and harmless to leave
		// behind; the stored object is not.
		if derr := s.storage.DeleteObject(stored.Key); derr != nil {
			logrus.WithError(derr).WithField("key", stored.Key).Warn("Failed to clean up stored object")
		}
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	s.db.Preload("Creator").First(asset, asset.ID)

	tier := models.LicenseTier(strings.ToUpper(req.LicenseTier))
	go s.registerOnChain(asset, tier, creator.WalletAddress)
	go s.startVerification(asset)

	return asset, nil
}

// registerOnChain runs after the asset row exists; failures leave the
// asset unregistered and are retried by the next explicit registration
// request rather than failing the upload.
func (s *AssetService) registerOnChain(asset *models.Asset, tier models.LicenseTier, creatorAddress string) {
	ctx := context.Background()

	reg, err := s.registration.RegisterIP(ctx, asset.ID, asset.MetadataCID,
		s.pinning.GatewayURL(asset.MetadataCID), creatorAddress)
	if err != nil {
		logrus.WithError(err).WithField("asset_id", asset.ID).Error("On-chain registration failed")
		return
	}

	if err := s.registration.AttachLicenseTerms(ctx, reg.IPID, tier); err != nil {
		logrus.WithError(err).WithField("ip_id", reg.IPID).Error("Failed to attach license terms")
	}

	updates := map[string]interface{}{
		"ip_registration_id":   reg.IPID,
		"registration_tx_hash": reg.TransactionHash,
	}
	if err := s.db.Model(&models.Asset{}).Where("id = ?", asset.ID).Updates(updates).Error; err != nil {
		logrus.WithError(err).WithField("asset_id", asset.ID).Error("Failed to record registration")
		return
	}

	if err := s.events.Publish(ctx, EventAssetRegistered, asset.ID.String(), map[string]interface{}{
		"asset_id": asset.ID,
		"ip_id":    reg.IPID,
		"tx_hash":  reg.TransactionHash,
	}); err != nil {
		logrus.WithError(err).Warn("Failed to publish asset.registered event")
	}
}

func (s *AssetService) startVerification(asset *models.Asset) {
	if _, err := s.verification.RegisterForScanning(context.Background(), asset); err != nil {
		logrus.WithError(err).WithField("asset_id", asset.ID).Error("Failed to start authenticity scan")
	}
}

func (s *AssetService) GetAsset(id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.Preload("Creator").First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	s.db.Model(&asset).UpdateColumn("view_count", gorm.Expr("view_count + 1"))

	return &asset, nil
}

// DownloadURL returns a short-lived link for the asset binary when S3
// holds it, falling back to the public URL otherwise.
func (s *AssetService) DownloadURL(id uuid.UUID) (string, error) {
	var asset models.Asset
	if err := s.db.First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAssetNotFound
		}
		return "", fmt.Errorf("database error: %w", err)
	}

	if key, ok := asset.Metadata["storage_key"].(string); ok && key != "" {
		if url, err := s.storage.GeneratePresignedURL(key, 15*time.Minute); err == nil {
			return url, nil
		}
	}
	return asset.FileURL, nil
}

func (s *AssetService) ListAssets(params *AssetSearchParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Asset{}).Preload("Creator")
	query = s.applyFilters(query, params)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}

	var assets []models.Asset
	query = utils.ApplySort(query, params.PaginationParams, utils.AssetSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	if err := query.Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	result := utils.CreatePaginationResult(assets, total, params.PaginationParams)
	return &result, nil
}

// SearchAssets serves text search from postgres with ILIKE over title,
// description, and tags.
func (s *AssetService) SearchAssets(params *AssetSearchParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Asset{}).Preload("Creator")
	query = s.applyFilters(query, params)

	if q := strings.TrimSpace(params.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where(
			"title ILIKE ? OR description ILIKE ? OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE ?)",
			like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	var assets []models.Asset
	query = utils.ApplySort(query, params.PaginationParams, utils.AssetSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	if err := query.Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := utils.CreatePaginationResult(assets, total, params.PaginationParams)
	return &result, nil
}

func (s *AssetService) applyFilters(query *gorm.DB, params *AssetSearchParams) *gorm.DB {
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.CreatorID != nil {
		query = query.Where("creator_id = ?", *params.CreatorID)
	}
	if params.VerificationStatus != nil {
		query = query.Where("verification_status = ?", *params.VerificationStatus)
	}
	if len(params.Tags) > 0 {
		query = query.Where("tags && ?", pq.Array(params.Tags))
	}
	return query
}

func (s *AssetService) deriveMetadata(base map[string]interface{}, category models.AssetCategory, mimeType string, fileData []byte) map[string]interface{} {
	metadata := make(map[string]interface{}, len(base)+4)
	for k, v := range base {
		metadata[k] = v
	}
	metadata["category"] = string(category)
	metadata["mime_type"] = mimeType
	metadata["size_bytes"] = len(fileData)

	if category == models.AssetCategoryImage {
		if cfg, format, err := image.DecodeConfig(bytes.NewReader(fileData)); err == nil {
			metadata["width"] = cfg.Width
			metadata["height"] = cfg.Height
			metadata["format"] = format
		}
	}

	return metadata
}
