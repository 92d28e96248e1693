// internal/services/purchase_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
	"github.com/provenly/ipvault-backend/internal/utils"
)

// PurchaseService drives one license purchase end to end:
// estimate -> order -> wallet submission -> bridge monitoring -> record.
// The persisted record is advisory; its writes never abort the flow.
type PurchaseService struct {
	db     *gorm.DB
	store  purchaseStore
	bridge *BridgeService
	wallet WalletProvider
	locks  PurchaseLocker
	events EventPublisher
	config *config.Config
}

type PurchaseResult struct {
	SubmissionID    string             `json:"submission_id"`
	TransactionHash string             `json:"transaction_hash"`
	FinalStatus     models.OrderStatus `json:"final_status"`
	Estimate        *PaymentEstimate   `json:"estimate"`
	Order           *PaymentOrder      `json:"order"`
}

type CreatePurchaseRecordRequest struct {
	AssetID        uuid.UUID          `json:"asset_id" validate:"required"`
	LicenseTier    models.LicenseTier `json:"license_tier" validate:"required"`
	BuyerAddress   string             `json:"buyer_address" validate:"required,eth_address"`
	CreatorAddress string             `json:"creator_address" validate:"required,eth_address"`
	OrderID        string             `json:"order_id" validate:"required"`
	PaymentAmount  string             `json:"payment_amount"`
	PaymentToken   string             `json:"payment_token"`
	SourceChainID  int64              `json:"source_chain_id"`
	DestChainID    int64              `json:"dest_chain_id"`
}

func NewPurchaseService(db *gorm.DB, bridge *BridgeService, wallet WalletProvider, locks PurchaseLocker, events EventPublisher, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		db:     db,
		store:  &gormPurchaseStore{db: db},
		bridge: bridge,
		wallet: wallet,
		locks:  locks,
		events: events,
		config: cfg,
	}
}

// Purchase runs the full cross-chain flow for one request. Steps are
// strictly sequential; concurrent purchases for the same (asset, buyer)
// pair are rejected while one is in flight.
func (s *PurchaseService) Purchase(ctx context.Context, buyerID *uuid.UUID, req *LicensePurchaseRequest) (*PurchaseResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !req.LicenseTier.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLicenseTier, req.LicenseTier)
	}

	acquired, err := s.locks.Acquire(ctx, req.AssetID.String(), req.BuyerAddress)
	if err != nil {
		return nil, fmt.Errorf("purchase lock unavailable: %w", err)
	}
	if !acquired {
		return nil, ErrPurchaseInFlight
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), req.AssetID.String(), req.BuyerAddress); err != nil {
			logrus.WithError(err).Warn("Failed to release purchase lock")
		}
	}()

	estimate, err := s.bridge.EstimatePayment(req)
	if err != nil {
		return nil, err
	}

	order, err := s.bridge.CreateOrder(req, estimate)
	if err != nil {
		return nil, err
	}

	if err := s.ensureNetwork(ctx, req.SourceChainID); err != nil {
		return nil, err
	}

	txHash, err := s.wallet.SendTransaction(ctx, order.TransactionPayload)
	if err != nil {
		return nil, err
	}

	receipt, err := s.wallet.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if !receipt.Success {
		return nil, fmt.Errorf("%w: %s", ErrTransactionReverted, txHash)
	}
	order.Status = models.OrderStatusSent

	// Best-effort advisory record; the bridge action is the source of
	// truth, so recording failures are logged and never abort the flow.
	record := &models.LicensePurchase{
		AssetID:         req.AssetID,
		BuyerID:         buyerID,
		LicenseTier:     req.LicenseTier,
		BuyerAddress:    req.BuyerAddress,
		CreatorAddress:  req.CreatorAddress,
		OrderID:         order.SubmissionID,
		PaymentAmount:   order.TotalValueNative.String(),
		PaymentToken:    estimate.Currency,
		SourceChainID:   req.SourceChainID,
		DestChainID:     req.DestChainID,
		TransactionHash: txHash,
		Status:          models.PurchaseStatusPending,
		PurchasedAt:     time.Now(),
	}
	if _, err := s.store.create(ctx, record); err != nil {
		logrus.WithError(err).WithField("order_id", order.SubmissionID).
			Error("Failed to record license purchase; continuing")
	}
	s.publishEvent(ctx, EventPurchaseCreated, order.SubmissionID, record)

	final, monitorErr := s.bridge.MonitorOrder(ctx, order.SubmissionID, s.bridge.DefaultMonitorPolicy())
	order.Status = final

	switch {
	case monitorErr == nil && final == models.OrderStatusClaimed:
		if err := s.store.updateStatus(ctx, order.SubmissionID, models.PurchaseStatusConfirmed, txHash); err != nil {
			logrus.WithError(err).WithField("order_id", order.SubmissionID).
				Error("Failed to update purchase record status; continuing")
		}
		s.publishEvent(ctx, EventPurchaseConfirmed, order.SubmissionID, record)

	case errors.Is(monitorErr, ErrOrderFailed):
		if err := s.store.updateStatus(ctx, order.SubmissionID, models.PurchaseStatusFailed, txHash); err != nil {
			logrus.WithError(err).WithField("order_id", order.SubmissionID).
				Error("Failed to update purchase record status; continuing")
		}
		s.publishEvent(ctx, EventPurchaseFailed, order.SubmissionID, record)

	default:
		// Unconfirmed (or cancelled): the record stays pending and the
		// caller is told to check status manually. Never promoted to
		// success.
	}

	result := &PurchaseResult{
		SubmissionID:    order.SubmissionID,
		TransactionHash: txHash,
		FinalStatus:     final,
		Estimate:        estimate,
		Order:           order,
	}
	if monitorErr != nil {
		return result, monitorErr
	}
	return result, nil
}

// ensureNetwork validates the wallet's active chain, attempting one
// automatic switch and re-validating before giving up.
func (s *PurchaseService) ensureNetwork(ctx context.Context, sourceChainID int64) error {
	current, err := s.wallet.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read wallet network: %w", err)
	}
	if current == sourceChainID {
		return nil
	}

	if err := s.wallet.SwitchChain(ctx, sourceChainID); err != nil {
		return fmt.Errorf("%w: switch to chain %d failed: %v", ErrWrongNetwork, sourceChainID, err)
	}

	current, err = s.wallet.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to re-read wallet network: %w", err)
	}
	if current != sourceChainID {
		return fmt.Errorf("%w: wallet stayed on chain %d, expected %d", ErrWrongNetwork, current, sourceChainID)
	}
	return nil
}

func (s *PurchaseService) publishEvent(ctx context.Context, eventType, key string, payload interface{}) {
	if err := s.events.Publish(ctx, eventType, key, payload); err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Warn("Failed to publish event")
	}
}

// CreatePurchaseRecord persists a purchase record on behalf of a
// client-driven flow. Idempotent on order ID: replays return the
// existing record instead of creating a duplicate.
func (s *PurchaseService) CreatePurchaseRecord(ctx context.Context, buyerID *uuid.UUID, req *CreatePurchaseRecordRequest) (*models.LicensePurchase, bool, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, false, fmt.Errorf("validation failed: %w", err)
	}
	if !req.LicenseTier.Valid() {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownLicenseTier, req.LicenseTier)
	}

	exists, err := s.store.assetExists(ctx, req.AssetID)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, ErrAssetNotFound
	}

	record := &models.LicensePurchase{
		AssetID:        req.AssetID,
		BuyerID:        buyerID,
		LicenseTier:    req.LicenseTier,
		BuyerAddress:   req.BuyerAddress,
		CreatorAddress: req.CreatorAddress,
		OrderID:        req.OrderID,
		PaymentAmount:  req.PaymentAmount,
		PaymentToken:   req.PaymentToken,
		SourceChainID:  req.SourceChainID,
		DestChainID:    req.DestChainID,
		Status:         models.PurchaseStatusPending,
		PurchasedAt:    time.Now(),
	}

	created, err := s.store.create(ctx, record)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.publishEvent(ctx, EventPurchaseCreated, record.OrderID, record)
	}
	return record, created, nil
}

// UpdatePurchaseStatus moves a persisted record to its terminal status.
func (s *PurchaseService) UpdatePurchaseStatus(ctx context.Context, orderID string, status models.PurchaseStatus, txHash string) (*models.LicensePurchase, error) {
	switch status {
	case models.PurchaseStatusConfirmed, models.PurchaseStatusFailed, models.PurchaseStatusPending:
	default:
		return nil, fmt.Errorf("invalid purchase status %q", status)
	}

	if err := s.store.updateStatus(ctx, orderID, status, txHash); err != nil {
		return nil, err
	}
	rec, err := s.store.findByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch status {
	case models.PurchaseStatusConfirmed:
		s.publishEvent(ctx, EventPurchaseConfirmed, orderID, rec)
	case models.PurchaseStatusFailed:
		s.publishEvent(ctx, EventPurchaseFailed, orderID, rec)
	}
	return rec, nil
}

// OrderStatus exposes one idempotent status lookup for polling clients.
func (s *PurchaseService) OrderStatus(ctx context.Context, submissionID string) (models.OrderStatus, int, error) {
	return s.bridge.statusSource.GetOrderStatus(ctx, submissionID)
}

// GetBuyerPurchases lists purchases made by a wallet address.
func (s *PurchaseService) GetBuyerPurchases(buyerAddress string, params utils.PaginationParams) ([]models.LicensePurchase, int64, error) {
	query := s.db.Model(&models.LicensePurchase{}).
		Where("buyer_address = ?", buyerAddress).
		Preload("Asset")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	query = utils.ApplySort(query, params, utils.PurchaseSortFields)
	query = utils.ApplyPagination(query, params)

	var purchases []models.LicensePurchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchases: %w", err)
	}

	return purchases, total, nil
}

// purchaseStore isolates record writes so the flow can be exercised
// without a database.
type purchaseStore interface {
	create(ctx context.Context, record *models.LicensePurchase) (bool, error)
	updateStatus(ctx context.Context, orderID string, status models.PurchaseStatus, txHash string) error
	findByOrderID(ctx context.Context, orderID string) (*models.LicensePurchase, error)
	assetExists(ctx context.Context, assetID uuid.UUID) (bool, error)
}

type gormPurchaseStore struct {
	db *gorm.DB
}

func (s *gormPurchaseStore) create(ctx context.Context, record *models.LicensePurchase) (bool, error) {
	db := s.db.WithContext(ctx)

	var existing models.LicensePurchase
	err := db.Where("order_id = ?", record.OrderID).First(&existing).Error
	if err == nil {
		*record = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("database error: %w", err)
	}

	record.LicenseID = "lic_" + uuid.New().String()
	if err := db.Create(record).Error; err != nil {
		// A concurrent writer may have won the unique-index race.
		if ferr := db.Where("order_id = ?", record.OrderID).First(&existing).Error; ferr == nil {
			*record = existing
			return false, nil
		}
		return false, fmt.Errorf("failed to create purchase record: %w", err)
	}
	return true, nil
}

func (s *gormPurchaseStore) updateStatus(ctx context.Context, orderID string, status models.PurchaseStatus, txHash string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if txHash != "" {
		updates["transaction_hash"] = txHash
	}

	result := s.db.WithContext(ctx).Model(&models.LicensePurchase{}).
		Where("order_id = ?", orderID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update purchase record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("purchase record not found for order %s", orderID)
	}
	return nil
}

func (s *gormPurchaseStore) assetExists(ctx context.Context, assetID uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Asset{}).
		Where("id = ?", assetID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

func (s *gormPurchaseStore) findByOrderID(ctx context.Context, orderID string) (*models.LicensePurchase, error) {
	var record models.LicensePurchase
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("purchase record not found for order %s", orderID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}
