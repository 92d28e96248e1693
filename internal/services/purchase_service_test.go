// internal/services/purchase_service_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenly/ipvault-backend/internal/chains"
	"github.com/provenly/ipvault-backend/internal/models"
)

type fakeStore struct {
	mtx          sync.Mutex
	records      map[string]*models.LicensePurchase
	missingAsset bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.LicensePurchase)}
}

func (s *fakeStore) create(_ context.Context, record *models.LicensePurchase) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if existing, ok := s.records[record.OrderID]; ok {
		*record = *existing
		return false, nil
	}
	record.LicenseID = "lic_" + uuid.New().String()
	clone := *record
	s.records[record.OrderID] = &clone
	return true, nil
}

func (s *fakeStore) updateStatus(_ context.Context, orderID string, status models.PurchaseStatus, txHash string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.records[orderID]
	if !ok {
		return fmt.Errorf("purchase record not found for order %s", orderID)
	}
	record.Status = status
	if txHash != "" {
		record.TransactionHash = txHash
	}
	return nil
}

func (s *fakeStore) findByOrderID(_ context.Context, orderID string) (*models.LicensePurchase, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	record, ok := s.records[orderID]
	if !ok {
		return nil, fmt.Errorf("purchase record not found for order %s", orderID)
	}
	clone := *record
	return &clone, nil
}

func (s *fakeStore) assetExists(context.Context, uuid.UUID) (bool, error) {
	return !s.missingAsset, nil
}

func (s *fakeStore) only() *models.LicensePurchase {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, record := range s.records {
		return record
	}
	return nil
}

type fakeWallet struct {
	chainID     int64
	switchErr   error
	sendErr     error
	reverted    bool
	sentPayload *TransactionPayload
}

func (w *fakeWallet) Accounts(context.Context) ([]string, error) {
	return []string{"0x1111111111111111111111111111111111111111"}, nil
}

func (w *fakeWallet) ChainID(context.Context) (int64, error) {
	return w.chainID, nil
}

func (w *fakeWallet) SwitchChain(_ context.Context, chainID int64) error {
	if w.switchErr != nil {
		return w.switchErr
	}
	w.chainID = chainID
	return nil
}

func (w *fakeWallet) SendTransaction(_ context.Context, payload TransactionPayload) (string, error) {
	if w.sendErr != nil {
		return "", w.sendErr
	}
	w.sentPayload = &payload
	return "0xabc123", nil
}

func (w *fakeWallet) WaitForReceipt(_ context.Context, txHash string) (*TransactionReceipt, error) {
	return &TransactionReceipt{Hash: txHash, ChainID: w.chainID, BlockNumber: 100, Success: !w.reverted}, nil
}

func newTestPurchaseService(store purchaseStore, wallet WalletProvider, source OrderStatusSource) *PurchaseService {
	cfg := newTestConfig()
	return &PurchaseService{
		store:  store,
		bridge: NewBridgeService(cfg, source),
		wallet: wallet,
		locks:  NewMemoryPurchaseLock(),
		events: NoopEventPublisher{},
		config: cfg,
	}
}

func claimedSource() *scriptedStatusSource {
	return &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusClaimed},
	}}
}

func TestPurchaseHappyPath(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia}
	svc := newTestPurchaseService(store, wallet, claimedSource())

	result, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusClaimed, result.FinalStatus)
	assert.Equal(t, "0xabc123", result.TransactionHash)
	assert.NotEmpty(t, result.SubmissionID)

	record := store.only()
	require.NotNil(t, record)
	assert.Equal(t, models.PurchaseStatusConfirmed, record.Status)
	assert.Equal(t, result.SubmissionID, record.OrderID)
	assert.Equal(t, "0xabc123", record.TransactionHash)

	require.NotNil(t, wallet.sentPayload)
	assert.Equal(t, chains.ChainIDSepolia, wallet.sentPayload.ChainID)
}

func TestPurchaseRejectsUnknownTier(t *testing.T) {
	svc := newTestPurchaseService(newFakeStore(), &fakeWallet{chainID: chains.ChainIDSepolia}, claimedSource())

	req := newTestRequest()
	req.LicenseTier = "PREMIUM"

	_, err := svc.Purchase(context.Background(), nil, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLicenseTier))
}

func TestPurchaseInFlightLock(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia}
	svc := newTestPurchaseService(store, wallet, claimedSource())
	req := newTestRequest()

	acquired, err := svc.locks.Acquire(context.Background(), req.AssetID.String(), req.BuyerAddress)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = svc.Purchase(context.Background(), nil, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPurchaseInFlight))
	assert.Nil(t, store.only(), "no record for a rejected purchase")
}

func TestPurchaseReleasesLockAfterFlow(t *testing.T) {
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia}
	svc := newTestPurchaseService(newFakeStore(), wallet, &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusClaimed},
	}})
	req := newTestRequest()

	_, err := svc.Purchase(context.Background(), nil, req)
	require.NoError(t, err)

	// The lock must be free again for a follow-up purchase.
	acquired, err := svc.locks.Acquire(context.Background(), req.AssetID.String(), req.BuyerAddress)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestPurchaseSwitchesNetwork(t *testing.T) {
	wallet := &fakeWallet{chainID: chains.ChainIDEthereum}
	svc := newTestPurchaseService(newFakeStore(), wallet, claimedSource())

	_, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.NoError(t, err)
	assert.Equal(t, chains.ChainIDSepolia, wallet.chainID, "wallet should have been switched")
}

func TestPurchaseWrongNetwork(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDEthereum, switchErr: errors.New("user declined switch")}
	svc := newTestPurchaseService(store, wallet, claimedSource())

	_, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongNetwork))
	assert.Nil(t, store.only())
}

func TestPurchaseWalletRejected(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia, sendErr: ErrWalletRejected}
	svc := newTestPurchaseService(store, wallet, claimedSource())

	_, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWalletRejected))
	assert.Nil(t, store.only(), "nothing recorded before a transaction exists")
}

func TestPurchaseRevertedTransaction(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia, reverted: true}
	svc := newTestPurchaseService(store, wallet, claimedSource())

	_, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransactionReverted))
}

func TestPurchaseFailedOrderMarksRecord(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia}
	svc := newTestPurchaseService(store, wallet, &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusFailed},
	}})

	result, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrderFailed))
	require.NotNil(t, result)
	assert.Equal(t, models.OrderStatusFailed, result.FinalStatus)

	record := store.only()
	require.NotNil(t, record)
	assert.Equal(t, models.PurchaseStatusFailed, record.Status)
}

func TestPurchaseStrictTimeoutLeavesRecordPending(t *testing.T) {
	store := newFakeStore()
	wallet := &fakeWallet{chainID: chains.ChainIDSepolia}
	svc := newTestPurchaseService(store, wallet, &scriptedStatusSource{results: []scriptedResult{
		{status: models.OrderStatusSent},
	}})
	// Shrink the poll interval so exhaustion is fast.
	svc.config.Bridge.MonitorIntervalSeconds = 0
	svc.config.Bridge.MonitorMaxAttempts = 2

	result, err := svc.Purchase(context.Background(), nil, newTestRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMonitorTimeout))
	require.NotNil(t, result)
	assert.Equal(t, models.OrderStatusUnconfirmed, result.FinalStatus)

	// Timeout is never promoted to success; the record stays pending for
	// manual status checks.
	record := store.only()
	require.NotNil(t, record)
	assert.Equal(t, models.PurchaseStatusPending, record.Status)
}

func newTestRecordRequest() *CreatePurchaseRecordRequest {
	return &CreatePurchaseRecordRequest{
		AssetID:        uuid.New(),
		LicenseTier:    models.LicenseTierCommercial,
		BuyerAddress:   "0x1111111111111111111111111111111111111111",
		CreatorAddress: "0x2222222222222222222222222222222222222222",
		OrderID:        "order-rec-1",
		PaymentAmount:  "10.001",
		PaymentToken:   "ETH",
		SourceChainID:  chains.ChainIDSepolia,
		DestChainID:    chains.ChainIDStoryAeneid,
	}
}

func TestCreatePurchaseRecordIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestPurchaseService(store, &fakeWallet{chainID: chains.ChainIDSepolia}, claimedSource())

	req := newTestRecordRequest()
	first, created, err := svc.CreatePurchaseRecord(context.Background(), nil, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PurchaseStatusPending, first.Status)
	assert.NotEmpty(t, first.LicenseID)

	// Replaying the same order ID must return the existing record, not a
	// duplicate, even when other fields differ.
	replay := newTestRecordRequest()
	replay.PaymentAmount = "99"
	second, created, err := svc.CreatePurchaseRecord(context.Background(), nil, replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.PaymentAmount, second.PaymentAmount)

	store.mtx.Lock()
	assert.Len(t, store.records, 1)
	store.mtx.Unlock()
}

func TestCreatePurchaseRecordUnknownAsset(t *testing.T) {
	store := newFakeStore()
	store.missingAsset = true
	svc := newTestPurchaseService(store, &fakeWallet{chainID: chains.ChainIDSepolia}, claimedSource())

	_, _, err := svc.CreatePurchaseRecord(context.Background(), nil, newTestRecordRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssetNotFound))
}
