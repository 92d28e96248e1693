// internal/handlers/license_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/services"
)

type LicenseHandlerTestSuite struct {
	suite.Suite
	router *gin.Engine
}

func (suite *LicenseHandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Bridge: config.BridgeConfig{
			StrictConfirmation:     true,
			MonitorIntervalSeconds: 1,
			MonitorMaxAttempts:     3,
			ProcessingBuffer:       60,
			HighFinalityThreshold:  20,
			HighFinalityPenalty:    120,
		},
		Payment: config.PaymentConfig{PlatformFeePercent: 10.0},
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

	bridgeService := services.NewBridgeService(cfg, services.NewSimulatedStatusSource())
	purchaseService := services.NewPurchaseService(nil, bridgeService, nil,
		services.NewMemoryPurchaseLock(), services.NoopEventPublisher{}, cfg)
	handler := NewLicenseHandler(bridgeService, purchaseService)

	suite.router = gin.New()
	licenses := suite.router.Group("/v1/licenses")
	{
		licenses.POST("/estimate", handler.EstimatePayment)
		licenses.POST("/orders", handler.CreateOrder)
		licenses.GET("/orders/:submissionId/status", handler.GetOrderStatus)
	}
}

func (suite *LicenseHandlerTestSuite) postJSON(path string, body map[string]interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *LicenseHandlerTestSuite) validRequest() map[string]interface{} {
	return map[string]interface{}{
		"asset_id":        "7b0f3f6e-9a47-4c5e-b6db-07a8ab1588db",
		"license_tier":    "COMMERCIAL",
		"buyer_address":   "0x1111111111111111111111111111111111111111",
		"creator_address": "0x2222222222222222222222222222222222222222",
		"source_chain_id": 11155111,
		"dest_chain_id":   1315,
	}
}

func (suite *LicenseHandlerTestSuite) TestEstimate() {
	w := suite.postJSON("/v1/licenses/estimate", suite.validRequest())

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Estimate struct {
				LicensePriceUSD      string `json:"license_price_usd"`
				TotalCostNative      string `json:"total_cost_native"`
				Currency             string `json:"currency"`
				EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
			} `json:"estimate"`
		} `json:"data"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response.Success)
	assert.Equal(suite.T(), "10", response.Data.Estimate.LicensePriceUSD)
	assert.Equal(suite.T(), "10.001", response.Data.Estimate.TotalCostNative)
	assert.Equal(suite.T(), "ETH", response.Data.Estimate.Currency)
	assert.Equal(suite.T(), 240, response.Data.Estimate.EstimatedTimeSeconds)
}

func (suite *LicenseHandlerTestSuite) TestEstimateRejectsBadAddress() {
	body := suite.validRequest()
	body["buyer_address"] = "not-an-address"

	w := suite.postJSON("/v1/licenses/estimate", body)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *LicenseHandlerTestSuite) TestEstimateRejectsUnsupportedChain() {
	body := suite.validRequest()
	body["source_chain_id"] = 137

	w := suite.postJSON("/v1/licenses/estimate", body)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *LicenseHandlerTestSuite) TestCreateOrder() {
	w := suite.postJSON("/v1/licenses/orders", suite.validRequest())

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Order struct {
				SubmissionID       string `json:"submission_id"`
				Status             string `json:"status"`
				CreatorShareNative string `json:"creator_share_native"`
				PlatformFeeNative  string `json:"platform_fee_native"`
			} `json:"order"`
		} `json:"data"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response.Success)
	assert.NotEmpty(suite.T(), response.Data.Order.SubmissionID)
	assert.Equal(suite.T(), "Created", response.Data.Order.Status)
	assert.Equal(suite.T(), "9", response.Data.Order.CreatorShareNative)
	assert.Equal(suite.T(), "1", response.Data.Order.PlatformFeeNative)
}

func (suite *LicenseHandlerTestSuite) TestGetOrderStatus() {
	w := suite.postJSON("/v1/licenses/orders", suite.validRequest())
	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var createResp struct {
		Data struct {
			Order struct {
				SubmissionID string `json:"submission_id"`
			} `json:"order"`
		} `json:"data"`
	}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &createResp))

	req, _ := http.NewRequest("GET", "/v1/licenses/orders/"+createResp.Data.Order.SubmissionID+"/status", nil)
	sw := httptest.NewRecorder()
	suite.router.ServeHTTP(sw, req)

	assert.Equal(suite.T(), http.StatusOK, sw.Code)

	var statusResp struct {
		Success bool `json:"success"`
		Data    struct {
			SubmissionID  string `json:"submission_id"`
			Status        string `json:"status"`
			Confirmations *int   `json:"confirmations"`
		} `json:"data"`
	}
	assert.NoError(suite.T(), json.Unmarshal(sw.Body.Bytes(), &statusResp))
	assert.True(suite.T(), statusResp.Success)
	assert.Equal(suite.T(), createResp.Data.Order.SubmissionID, statusResp.Data.SubmissionID)
	assert.Equal(suite.T(), "Sent", statusResp.Data.Status)
	assert.NotNil(suite.T(), statusResp.Data.Confirmations)
}

func TestLicenseHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(LicenseHandlerTestSuite))
}
