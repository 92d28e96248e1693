// internal/services/bridge_status.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
)

// BridgeStatusClient queries the bridge explorer API for order status.
// This is the production status source.
type BridgeStatusClient struct {
	baseURL    string
	httpClient *http.Client
}

type orderStatusResponse struct {
	Status        string `json:"status"`
	Confirmations int    `json:"confirmations"`
}

func NewBridgeStatusClient(cfg *config.Config) *BridgeStatusClient {
	return &BridgeStatusClient{
		baseURL: cfg.Bridge.StatusOracleURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *BridgeStatusClient) GetOrderStatus(ctx context.Context, submissionID string) (models.OrderStatus, int, error) {
	url := fmt.Sprintf("%s/Orders/%s/status", c.baseURL, submissionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("order status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("order status request returned %d", resp.StatusCode)
	}

	var body orderStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("failed to decode order status: %w", err)
	}

	status, err := parseOrderStatus(body.Status)
	if err != nil {
		return "", 0, err
	}

	return status, body.Confirmations, nil
}

func parseOrderStatus(raw string) (models.OrderStatus, error) {
	switch models.OrderStatus(raw) {
	case models.OrderStatusCreated, models.OrderStatusSent, models.OrderStatusConfirmed,
		models.OrderStatusClaimed, models.OrderStatusFailed:
		return models.OrderStatus(raw), nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// SimulatedStatusSource derives a status purely from wall-clock time
// since order creation. It exists for demo and testnet parity where no
// bridge indexer is reachable, and is rejected by config validation in
// production.
type SimulatedStatusSource struct {
	mtx     sync.Mutex
	created map[string]time.Time
	now     func() time.Time
}

func NewSimulatedStatusSource() *SimulatedStatusSource {
	return &SimulatedStatusSource{
		created: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Register records the creation instant of a submission ID, the anchor
// for the elapsed-time schedule.
func (s *SimulatedStatusSource) Register(submissionID string, createdAt time.Time) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.created[submissionID] = createdAt
}

func (s *SimulatedStatusSource) GetOrderStatus(_ context.Context, submissionID string) (models.OrderStatus, int, error) {
	s.mtx.Lock()
	createdAt, ok := s.created[submissionID]
	s.mtx.Unlock()

	if !ok {
		return "", 0, fmt.Errorf("unknown submission id %q", submissionID)
	}

	elapsed := s.now().Sub(createdAt)
	switch {
	case elapsed < 30*time.Second:
		return models.OrderStatusSent, 0, nil
	case elapsed < 120*time.Second:
		return models.OrderStatusConfirmed, 3, nil
	default:
		return models.OrderStatusClaimed, 12, nil
	}
}
