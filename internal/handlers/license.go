// internal/handlers/license.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/provenly/ipvault-backend/internal/chains"
	"github.com/provenly/ipvault-backend/internal/models"
	"github.com/provenly/ipvault-backend/internal/services"
	"github.com/provenly/ipvault-backend/internal/utils"
)

type LicenseHandler struct {
	bridgeService   *services.BridgeService
	purchaseService *services.PurchaseService
}

func NewLicenseHandler(bridgeService *services.BridgeService, purchaseService *services.PurchaseService) *LicenseHandler {
	return &LicenseHandler{
		bridgeService:   bridgeService,
		purchaseService: purchaseService,
	}
}

// POST /licenses/estimate
func (h *LicenseHandler) EstimatePayment(c *gin.Context) {
	var req services.LicensePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	estimate, err := h.bridgeService.EstimatePayment(&req)
	if err != nil {
		h.purchaseError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"estimate": estimate,
	})
}

// POST /licenses/orders
// Builds a signed-payload order without executing it; the caller's
// wallet submits the transaction itself.
func (h *LicenseHandler) CreateOrder(c *gin.Context) {
	var req services.LicensePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	estimate, err := h.bridgeService.EstimatePayment(&req)
	if err != nil {
		h.purchaseError(c, err)
		return
	}

	order, err := h.bridgeService.CreateOrder(&req, estimate)
	if err != nil {
		h.purchaseError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"order":    order,
		"estimate": estimate,
	})
}

// POST /licenses/checkout
// Runs the full server-driven purchase flow through the configured
// wallet provider.
func (h *LicenseHandler) Purchase(c *gin.Context) {
	var req services.LicensePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	buyerID := h.buyerID(c)

	result, err := h.purchaseService.Purchase(c.Request.Context(), buyerID, &req)
	if err != nil {
		if result != nil {
			// The transaction was sent; report the terminal state
			// alongside the error instead of masking it.
			utils.SuccessResponse(c, gin.H{
				"result": result,
				"error":  err.Error(),
			})
			return
		}
		h.purchaseError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"result": result,
	})
}

// POST /licenses/purchase
// Idempotent by order_id: replays return the existing record.
func (h *LicenseHandler) CreatePurchaseRecord(c *gin.Context) {
	var req services.CreatePurchaseRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	record, created, err := h.purchaseService.CreatePurchaseRecord(c.Request.Context(), h.buyerID(c), &req)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			utils.NotFoundResponse(c, "Asset")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	if created {
		utils.CreatedResponse(c, gin.H{"purchase": record})
		return
	}
	utils.SuccessResponse(c, gin.H{"purchase": record})
}

// PUT /licenses/:orderId/status
func (h *LicenseHandler) UpdatePurchaseStatus(c *gin.Context) {
	var req struct {
		Status          models.PurchaseStatus `json:"status" binding:"required"`
		TransactionHash string                `json:"transaction_hash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	record, err := h.purchaseService.UpdatePurchaseStatus(c.Request.Context(), c.Param("orderId"), req.Status, req.TransactionHash)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"purchase": record})
}

// GET /licenses/orders/:submissionId/status
func (h *LicenseHandler) GetOrderStatus(c *gin.Context) {
	status, confirmations, err := h.purchaseService.OrderStatus(c.Request.Context(), c.Param("submissionId"))
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"submission_id": c.Param("submissionId"),
		"status":        status,
		"confirmations": confirmations,
	})
}

// GET /licenses/mine
func (h *LicenseHandler) GetMyLicenses(c *gin.Context) {
	wallet, exists := utils.GetWalletFromContext(c)
	if !exists || wallet == "" {
		utils.BadRequestResponse(c, "No wallet address associated with account", nil)
		return
	}

	params := utils.GetPaginationParams(c)
	purchases, total, err := h.purchaseService.GetBuyerPurchases(wallet, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(purchases, total, params))
}

func (h *LicenseHandler) buyerID(c *gin.Context) *uuid.UUID {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		return nil
	}
	id, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil
	}
	return &id
}

func (h *LicenseHandler) purchaseError(c *gin.Context, err error) {
	var unsupported *chains.UnsupportedChainError
	if errors.As(err, &unsupported) {
		utils.BadRequestResponse(c, unsupported.Error(), nil)
		return
	}

	switch {
	case errors.Is(err, services.ErrUnknownLicenseTier):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrPurchaseInFlight):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrWalletRejected),
		errors.Is(err, services.ErrWrongNetwork),
		errors.Is(err, services.ErrTransactionReverted):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrAssetNotFound):
		utils.NotFoundResponse(c, "Asset")
	default:
		utils.BadRequestResponse(c, err.Error(), nil)
	}
}
