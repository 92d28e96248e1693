// internal/services/bridge_status_test.go
package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
)

func TestSimulatedStatusSchedule(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	source := NewSimulatedStatusSource()
	source.Register("sub-1", createdAt)

	cases := []struct {
		elapsed time.Duration
		want    models.OrderStatus
	}{
		{0, models.OrderStatusSent},
		{29 * time.Second, models.OrderStatusSent},
		{30 * time.Second, models.OrderStatusConfirmed},
		{119 * time.Second, models.OrderStatusConfirmed},
		{120 * time.Second, models.OrderStatusClaimed},
		{time.Hour, models.OrderStatusClaimed},
	}

	for _, tc := range cases {
		source.now = func() time.Time { return createdAt.Add(tc.elapsed) }

		status, _, err := source.GetOrderStatus(context.Background(), "sub-1")
		require.NoError(t, err)
		assert.Equal(t, tc.want, status, "elapsed %s", tc.elapsed)
	}
}

func TestSimulatedStatusUnknownSubmission(t *testing.T) {
	source := NewSimulatedStatusSource()

	_, _, err := source.GetOrderStatus(context.Background(), "never-registered")
	require.Error(t, err)
}

func TestBridgeStatusClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Orders/sub-42/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"Confirmed","confirmations":7}`))
	}))
	defer srv.Close()

	cfg := &config.Config{Bridge: config.BridgeConfig{StatusOracleURL: srv.URL}}
	client := NewBridgeStatusClient(cfg)

	status, confirmations, err := client.GetOrderStatus(context.Background(), "sub-42")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, status)
	assert.Equal(t, 7, confirmations)
}

func TestBridgeStatusClientRejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Fulfilled","confirmations":1}`))
	}))
	defer srv.Close()

	cfg := &config.Config{Bridge: config.BridgeConfig{StatusOracleURL: srv.URL}}
	client := NewBridgeStatusClient(cfg)

	_, _, err := client.GetOrderStatus(context.Background(), "sub-43")
	require.Error(t, err)
}

func TestBridgeStatusClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := &config.Config{Bridge: config.BridgeConfig{StatusOracleURL: srv.URL}}
	client := NewBridgeStatusClient(cfg)

	_, _, err := client.GetOrderStatus(context.Background(), "sub-44")
	require.Error(t, err)
}
