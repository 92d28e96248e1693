// internal/services/bridge_service.go
package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/provenly/ipvault-backend/internal/chains"
	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
	"github.com/provenly/ipvault-backend/internal/utils"
)

// BridgeService implements the cross-chain license purchase core:
// a side-effect-free payment estimate, pure order construction, and a
// bounded monitoring loop over an order status source.
type BridgeService struct {
	config       *config.Config
	statusSource OrderStatusSource
}

type LicensePurchaseRequest struct {
	AssetID        uuid.UUID          `json:"asset_id" validate:"required"`
	LicenseTier    models.LicenseTier `json:"license_tier" validate:"required"`
	BuyerAddress   string             `json:"buyer_address" validate:"required,eth_address"`
	CreatorAddress string             `json:"creator_address" validate:"required,eth_address"`
	SourceChainID  int64              `json:"source_chain_id" validate:"required"`
	DestChainID    int64              `json:"dest_chain_id" validate:"required"`
}

// PaymentEstimate is derived from static configuration only. It is
// recomputed per request and never persisted.
type PaymentEstimate struct {
	LicensePriceUSD      decimal.Decimal `json:"license_price_usd"`
	LicensePriceNative   decimal.Decimal `json:"license_price_native"`
	ProtocolFeeNative    decimal.Decimal `json:"protocol_fee_native"`
	TotalCostNative      decimal.Decimal `json:"total_cost_native"`
	Currency             string          `json:"currency"`
	EstimatedTimeSeconds int             `json:"estimated_time_seconds"`
}

// TransactionPayload is the chain-specific transaction the buyer's
// wallet executes on the source chain.
type TransactionPayload struct {
	To       string          `json:"to"`
	Data     string          `json:"data"`
	ValueWei decimal.Decimal `json:"value_wei"`
	Gas      uint64          `json:"gas"`
	ChainID  int64           `json:"chain_id"`
}

// licenseRecordPayload is the application-level record relayed to the
// destination chain when the bridge order is claimed.
type licenseRecordPayload struct {
	AssetID        string `json:"asset_id"`
	LicenseTier    string `json:"license_tier"`
	BuyerAddress   string `json:"buyer_address"`
	CreatorAddress string `json:"creator_address"`
	SourceChainID  int64  `json:"source_chain_id"`
	Timestamp      int64  `json:"timestamp"`
	PriceUSD       string `json:"price_usd"`
}

// autoExecutionParams wrap the license record in the bridge protocol's
// auto-execution envelope.
type autoExecutionParams struct {
	ExecutionFeeWei string `json:"execution_fee_wei"`
	Flags           uint64 `json:"flags"`
	FallbackAddress string `json:"fallback_address"`
	Data            string `json:"data"`
}

// PaymentOrder is one purchase attempt. The submission ID is generated
// client side before any on-chain action; it is a correlation key, not
// proof of anything.
type PaymentOrder struct {
	SubmissionID       string             `json:"submission_id"`
	Status             models.OrderStatus `json:"status"`
	ProtocolFeeWei     decimal.Decimal    `json:"protocol_fee_wei"`
	CreatorShareNative decimal.Decimal    `json:"creator_share_native"`
	PlatformFeeNative  decimal.Decimal    `json:"platform_fee_native"`
	TotalValueNative   decimal.Decimal    `json:"total_value_native"`
	TransactionPayload TransactionPayload `json:"transaction_payload"`
	CreatedAt          time.Time          `json:"created_at"`
}

// MonitorPolicy owns the monitoring bound. There is exactly one timeout
// mechanism: Interval x MaxAttempts.
type MonitorPolicy struct {
	Interval           time.Duration
	MaxAttempts        int
	StrictConfirmation bool
}

// OrderStatusSource looks up the bridge-side status of an order. The
// query must be idempotent and safe to retry.
type OrderStatusSource interface {
	GetOrderStatus(ctx context.Context, submissionID string) (models.OrderStatus, int, error)
}

func NewBridgeService(cfg *config.Config, statusSource OrderStatusSource) *BridgeService {
	return &BridgeService{
		config:       cfg,
		statusSource: statusSource,
	}
}

// DefaultMonitorPolicy derives the polling policy from configuration.
func (s *BridgeService) DefaultMonitorPolicy() MonitorPolicy {
	return MonitorPolicy{
		Interval:           time.Duration(s.config.Bridge.MonitorIntervalSeconds) * time.Second,
		MaxAttempts:        s.config.Bridge.MonitorMaxAttempts,
		StrictConfirmation: s.config.Bridge.StrictConfirmation,
	}
}

func (s *BridgeService) tierPriceUSD(tier models.LicenseTier) (decimal.Decimal, error) {
	switch tier {
	case models.LicenseTierBasic:
		return decimal.NewFromFloat(s.config.Licensing.PriceBasicUSD), nil
	case models.LicenseTierCommercial:
		return decimal.NewFromFloat(s.config.Licensing.PriceCommercialUSD), nil
	case models.LicenseTierExclusive:
		return decimal.NewFromFloat(s.config.Licensing.PriceExclusiveUSD), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownLicenseTier, tier)
}

// EstimatePayment returns a quote for a purchase request. Prices and
// fees are fixed configuration, so this is pure and makes no network
// calls; the UI can quote before committing funds.
func (s *BridgeService) EstimatePayment(req *LicensePurchaseRequest) (*PaymentEstimate, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	source, err := chains.Get(req.SourceChainID)
	if err != nil {
		return nil, err
	}
	dest, err := chains.Get(req.DestChainID)
	if err != nil {
		return nil, err
	}

	priceUSD, err := s.tierPriceUSD(req.LicenseTier)
	if err != nil {
		return nil, err
	}

	priceNative := priceUSD.Mul(decimal.NewFromFloat(s.config.Licensing.NativeConversion))

	return &PaymentEstimate{
		LicensePriceUSD:      priceUSD,
		LicensePriceNative:   priceNative,
		ProtocolFeeNative:    source.NativeFee,
		TotalCostNative:      priceNative.Add(source.NativeFee),
		Currency:             source.Currency,
		EstimatedTimeSeconds: s.estimateTransferTime(source, dest),
	}, nil
}

func (s *BridgeService) estimateTransferTime(source, dest chains.ChainConfig) int {
	finality := source.FinalityDepth
	if dest.FinalityDepth > finality {
		finality = dest.FinalityDepth
	}

	estimate := finality*source.BlockTimeSeconds + s.config.Bridge.ProcessingBuffer

	threshold := s.config.Bridge.HighFinalityThreshold
	if source.FinalityDepth > threshold || dest.FinalityDepth > threshold {
		estimate += s.config.Bridge.HighFinalityPenalty
	}

	return estimate
}

// CreateOrder builds a payment order and the source-chain transaction
// payload from a validated request and a prior estimate. Pure
// construction: nothing is submitted until the payload reaches a wallet.
func (s *BridgeService) CreateOrder(req *LicensePurchaseRequest, estimate *PaymentEstimate) (*PaymentOrder, error) {
	source, err := chains.Get(req.SourceChainID)
	if err != nil {
		return nil, err
	}
	if !chains.Supported(req.DestChainID) {
		return nil, &chains.UnsupportedChainError{ChainID: req.DestChainID}
	}

	now := time.Now()

	record := licenseRecordPayload{
		AssetID:        req.AssetID.String(),
		LicenseTier:    string(req.LicenseTier),
		BuyerAddress:   req.BuyerAddress,
		CreatorAddress: req.CreatorAddress,
		SourceChainID:  req.SourceChainID,
		Timestamp:      now.Unix(),
		PriceUSD:       estimate.LicensePriceUSD.String(),
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode license record: %w", err)
	}

	protocolFeeWei := toWei(estimate.ProtocolFeeNative)

	execParams := autoExecutionParams{
		ExecutionFeeWei: protocolFeeWei.String(),
		Flags:           0x1, // unlock authority = fallback address
		FallbackAddress: req.BuyerAddress,
		Data:            "0x" + hex.EncodeToString(recordJSON),
	}

	callData, err := json.Marshal(execParams)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution params: %w", err)
	}

	// Platform keeps a fixed commission; only the creator's share plus
	// the protocol fee is attached to the source transaction.
	platformFee := estimate.LicensePriceNative.
		Mul(decimal.NewFromFloat(s.config.Payment.PlatformFeePercent)).
		Div(decimal.NewFromInt(100))
	creatorShare := estimate.LicensePriceNative.Sub(platformFee)
	totalValue := creatorShare.Add(estimate.ProtocolFeeNative)

	order := &PaymentOrder{
		SubmissionID:       newSubmissionID(now),
		Status:             models.OrderStatusCreated,
		ProtocolFeeWei:     protocolFeeWei,
		CreatorShareNative: creatorShare,
		PlatformFeeNative:  platformFee,
		TotalValueNative:   totalValue,
		TransactionPayload: TransactionPayload{
			To:       s.config.Registration.SPGContract,
			Data:     "0x" + hex.EncodeToString(callData),
			ValueWei: toWei(totalValue),
			Gas:      300000,
			ChainID:  source.ChainID,
		},
		CreatedAt: now,
	}

	if sim, ok := s.statusSource.(*SimulatedStatusSource); ok {
		sim.Register(order.SubmissionID, now)
	}

	return order, nil
}

// MonitorOrder polls the status source until the order reaches a
// terminal state or the attempt budget is exhausted. Observed statuses
// are clamped monotonic: a source reporting an earlier state never
// moves the order backwards. Transient poll errors are retried and only
// surfaced on exhaustion.
func (s *BridgeService) MonitorOrder(ctx context.Context, submissionID string, policy MonitorPolicy) (models.OrderStatus, error) {
	current := models.OrderStatusCreated
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		status, confirmations, err := s.statusSource.GetOrderStatus(ctx, submissionID)
		if err != nil {
			lastErr = err
			logrus.WithFields(logrus.Fields{
				"submission_id": submissionID,
				"attempt":       attempt,
			}).WithError(err).Debug("Order status poll failed")
		} else {
			if status == models.OrderStatusFailed {
				return models.OrderStatusFailed, fmt.Errorf("%w: order %s", ErrOrderFailed, submissionID)
			}
			if current.CanTransition(status) {
				logrus.WithFields(logrus.Fields{
					"submission_id": submissionID,
					"from":          current,
					"to":            status,
					"confirmations": confirmations,
				}).Info("Bridge order status advanced")
				current = status
			}
			if current == models.OrderStatusClaimed {
				return current, nil
			}
		}

		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-time.After(policy.Interval):
		}
	}

	if policy.StrictConfirmation {
		if lastErr != nil {
			return models.OrderStatusUnconfirmed, fmt.Errorf("%w: last poll error: %v", ErrMonitorTimeout, lastErr)
		}
		return models.OrderStatusUnconfirmed, fmt.Errorf("%w: stalled at %s", ErrMonitorTimeout, current)
	}

	// Non-strict mode preserves the demo behaviour of treating an
	// exhausted monitor as settled.
	logrus.WithField("submission_id", submissionID).
		Warn("Monitoring budget exhausted; treating order as claimed (strict confirmation disabled)")
	return models.OrderStatusClaimed, nil
}

func newSubmissionID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixNano(), uuid.New().String()[:8])
}

func toWei(native decimal.Decimal) decimal.Decimal {
	return native.Shift(18).Truncate(0)
}
