// internal/services/bridge_service_test.go
package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenly/ipvault-backend/internal/chains"
	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Bridge: config.BridgeConfig{
			StrictConfirmation:     true,
			MonitorIntervalSeconds: 1,
			MonitorMaxAttempts:     3,
			ProcessingBuffer:       60,
			HighFinalityThreshold:  20,
			HighFinalityPenalty:    120,
		},
		Payment: config.PaymentConfig{
			PlatformFeePercent: 10.0,
		},
		Licensing: config.LicensingConfig{
			PriceBasicUSD:      5.0,
			PriceCommercialUSD: 10.0,
			PriceExclusiveUSD:  50.0,
			NativeConversion:   1.0,
		},
		Registration: config.RegistrationConfig{
			SPGContract: "0x69570f3E84f51Ea70b7B68055c8d667e77735a25",
		},
	}
}

func newTestRequest() *LicensePurchaseRequest {
	return &LicensePurchaseRequest{
		AssetID:        uuid.New(),
		LicenseTier:    models.LicenseTierCommercial,
		BuyerAddress:   "0x1111111111111111111111111111111111111111",
		CreatorAddress: "0x2222222222222222222222222222222222222222",
		SourceChainID:  chains.ChainIDSepolia,
		DestChainID:    chains.ChainIDStoryAeneid,
	}
}

// scriptedStatusSource returns a fixed sequence of poll results, then
// repeats the last one.
type scriptedStatusSource struct {
	results []scriptedResult
	calls   int
}

type scriptedResult struct {
	status models.OrderStatus
	err    error
}

func (s *scriptedStatusSource) GetOrderStatus(_ context.Context, _ string) (models.OrderStatus, int, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	return r.status, 0, r.err
}

func TestEstimatePaymentCommercialSepoliaToAeneid(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())

	estimate, err := svc.EstimatePayment(newTestRequest())
	require.NoError(t, err)

	assert.True(t, estimate.LicensePriceUSD.Equal(decimal.NewFromInt(10)))
	assert.True(t, estimate.LicensePriceNative.Equal(decimal.NewFromInt(10)))
	assert.True(t, estimate.ProtocolFeeNative.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, estimate.TotalCostNative.Equal(decimal.RequireFromString("10.001")),
		"total should be price plus protocol fee, got %s", estimate.TotalCostNative)
	assert.Equal(t, "ETH", estimate.Currency)

	// max(12, 8) finality depth x 15s source blocks + 60s buffer, no
	// high-finality penalty below the threshold.
	assert.Equal(t, 240, estimate.EstimatedTimeSeconds)
}

func TestEstimatePaymentDeterministic(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())
	req := newTestRequest()

	first, err := svc.EstimatePayment(req)
	require.NoError(t, err)
	second, err := svc.EstimatePayment(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEstimatePaymentTierPrices(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())

	cases := map[models.LicenseTier]int64{
		models.LicenseTierBasic:      5,
		models.LicenseTierCommercial: 10,
		models.LicenseTierExclusive:  50,
	}
	for tier, priceUSD := range cases {
		req := newTestRequest()
		req.LicenseTier = tier

		estimate, err := svc.EstimatePayment(req)
		require.NoError(t, err, "tier %s", tier)
		assert.True(t, estimate.LicensePriceUSD.Equal(decimal.NewFromInt(priceUSD)),
			"tier %s priced %s, want %d", tier, estimate.LicensePriceUSD, priceUSD)
	}
}

func TestEstimatePaymentUnknownTier(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())
	req := newTestRequest()
	req.LicenseTier = "PREMIUM"

	_, err := svc.EstimatePayment(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLicenseTier))
}

func TestEstimatePaymentUnsupportedChain(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())
	req := newTestRequest()
	req.SourceChainID = 137

	_, err := svc.EstimatePayment(req)
	require.Error(t, err)

	var unsupported *chains.UnsupportedChainError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, int64(137), unsupported.ChainID)
}

func TestEstimatePaymentHighFinalityPenalty(t *testing.T) {
	cfg := newTestConfig()
	cfg.Bridge.HighFinalityThreshold = 10
	svc := NewBridgeService(cfg, NewSimulatedStatusSource())

	estimate, err := svc.EstimatePayment(newTestRequest())
	require.NoError(t, err)

	// Sepolia's 12-block finality now exceeds the threshold.
	assert.Equal(t, 240+120, estimate.EstimatedTimeSeconds)
}

func TestCreateOrderFeeConservation(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())
	req := newTestRequest()

	estimate, err := svc.EstimatePayment(req)
	require.NoError(t, err)
	order, err := svc.CreateOrder(req, estimate)
	require.NoError(t, err)

	// Platform fee is exactly 10% of the native price.
	assert.True(t, order.PlatformFeeNative.Equal(decimal.NewFromInt(1)),
		"platform fee %s", order.PlatformFeeNative)
	assert.True(t, order.CreatorShareNative.Equal(decimal.NewFromInt(9)),
		"creator share %s", order.CreatorShareNative)

	// Shares reassemble the full price without loss.
	assert.True(t, order.CreatorShareNative.Add(order.PlatformFeeNative).
		Equal(estimate.LicensePriceNative))

	// The attached value is the creator share plus protocol fee; the
	// platform's cut never leaves the platform.
	assert.True(t, order.TotalValueNative.
		Equal(order.CreatorShareNative.Add(estimate.ProtocolFeeNative)))
}

func TestCreateOrderTransactionPayload(t *testing.T) {
	cfg := newTestConfig()
	svc := NewBridgeService(cfg, NewSimulatedStatusSource())
	req := newTestRequest()

	estimate, err := svc.EstimatePayment(req)
	require.NoError(t, err)
	order, err := svc.CreateOrder(req, estimate)
	require.NoError(t, err)

	payload := order.TransactionPayload
	assert.Equal(t, cfg.Registration.SPGContract, payload.To)
	assert.Equal(t, req.SourceChainID, payload.ChainID)
	assert.True(t, payload.ValueWei.Equal(order.TotalValueNative.Shift(18).Truncate(0)))

	require.True(t, strings.HasPrefix(payload.Data, "0x"))
	raw, err := hex.DecodeString(payload.Data[2:])
	require.NoError(t, err)

	var exec struct {
		ExecutionFeeWei string `json:"execution_fee_wei"`
		Flags           uint64 `json:"flags"`
		FallbackAddress string `json:"fallback_address"`
		Data            string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &exec))
	assert.Equal(t, uint64(1), exec.Flags)
	assert.Equal(t, req.BuyerAddress, exec.FallbackAddress)

	require.True(t, strings.HasPrefix(exec.Data, "0x"))
	inner, err := hex.DecodeString(exec.Data[2:])
	require.NoError(t, err)

	var record struct {
		AssetID      string `json:"asset_id"`
		LicenseTier  string `json:"license_tier"`
		BuyerAddress string `json:"buyer_address"`
		PriceUSD     string `json:"price_usd"`
	}
	require.NoError(t, json.Unmarshal(inner, &record))
	assert.Equal(t, req.AssetID.String(), record.AssetID)
	assert.Equal(t, "COMMERCIAL", record.LicenseTier)
	assert.Equal(t, req.BuyerAddress, record.BuyerAddress)
	assert.Equal(t, "10", record.PriceUSD)
}

func TestCreateOrderUniqueSubmissionIDs(t *testing.T) {
	svc := NewBridgeService(newTestConfig(), NewSimulatedStatusSource())
	req := newTestRequest()

	estimate, err := svc.EstimatePayment(req)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		order, err := svc.CreateOrder(req, estimate)
		require.NoError(t, err)
		assert.False(t, seen[order.SubmissionID], "duplicate submission id %s", order.SubmissionID)
		seen[order.SubmissionID] = true
		assert.Equal(t, models.OrderStatusCreated, order.Status)
	}
}

func TestMonitorOrderReachesClaimed(t *testing.T) {
	source := &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusSent},
		{status: models.OrderStatusConfirmed},
		{status: models.OrderStatusClaimed},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	policy := MonitorPolicy{Interval: time.Millisecond, MaxAttempts: 5, StrictConfirmation: true}
	status, err := svc.MonitorOrder(context.Background(), "sub-1", policy)

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClaimed, status)
	assert.Equal(t, 3, source.calls, "monitoring should stop at the terminal state")
}

func TestMonitorOrderIgnoresRegression(t *testing.T) {
	// A source that reports an earlier state after a later one must not
	// move the order backwards.
	source := &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusConfirmed},
		{status: models.OrderStatusSent},
		{status: models.OrderStatusClaimed},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	policy := MonitorPolicy{Interval: time.Millisecond, MaxAttempts: 5, StrictConfirmation: true}
	status, err := svc.MonitorOrder(context.Background(), "sub-2", policy)

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClaimed, status)
}

func TestMonitorOrderFailedOrder(t *testing.T) {
	source := &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusSent},
		{status: models.OrderStatusFailed},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	policy := MonitorPolicy{Interval: time.Millisecond, MaxAttempts: 5, StrictConfirmation: true}
	status, err := svc.MonitorOrder(context.Background(), "sub-3", policy)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrderFailed))
	assert.Equal(t, models.OrderStatusFailed, status)
}

func TestMonitorOrderStrictExhaustionIsUnconfirmed(t *testing.T) {
	source := &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusSent},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	policy := MonitorPolicy{Interval: time.Millisecond, MaxAttempts: 3, StrictConfirmation: true}
	status, err := svc.MonitorOrder(context.Background(), "sub-4", policy)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMonitorTimeout))
	assert.Equal(t, models.OrderStatusUnconfirmed, status)
	assert.Equal(t, 3, source.calls, "exactly MaxAttempts polls")
}

func TestMonitorOrderLenientExhaustionSettles(t *testing.T) {
	source := &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusSent},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	policy := MonitorPolicy{Interval: time.Millisecond, MaxAttempts: 2, StrictConfirmation: false}
	status, err := svc.MonitorOrder(context.Background(), "sub-5", policy)

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClaimed, status)
}

func TestMonitorOrderRetriesTransientErrors(t *testing.T) {
	source := &scriptedStatusSource{results: []scriptedResult{
		{err: errors.New("connection reset")},
		{status: models.OrderStatusClaimed},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	policy := MonitorPolicy{Interval: time.Millisecond, MaxAttempts: 5, StrictConfirmation: true}
	status, err := svc.MonitorOrder(context.Background(), "sub-6", policy)

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClaimed, status)
}

func TestMonitorOrderHonorsContextCancellation(t *testing.T) {
	source := &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusSent},
	}}
	svc := NewBridgeService(newTestConfig(), source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := MonitorPolicy{Interval: time.Hour, MaxAttempts: 10, StrictConfirmation: true}
	_, err := svc.MonitorOrder(ctx, "sub-7", policy)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
