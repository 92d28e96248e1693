// internal/handlers/asset.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/provenly/ipvault-backend/internal/models"
	"github.com/provenly/ipvault-backend/internal/services"
	"github.com/provenly/ipvault-backend/internal/utils"
)

type AssetHandler struct {
	assetService        *services.AssetService
	verificationService *services.VerificationService
}

func NewAssetHandler(assetService *services.AssetService, verificationService *services.VerificationService) *AssetHandler {
	return &AssetHandler{
		assetService:        assetService,
		verificationService: verificationService,
	}
}

// POST /assets
// Multipart upload with form fields: file, title, description,
// license_tier, tags (comma separated), metadata (JSON object).
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "Invalid user identity")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "Asset file is required", err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to open uploaded file", err.Error())
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to read uploaded file")
		return
	}

	req := services.CreateAssetRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		LicenseTier: c.PostForm("license_tier"),
	}
	if tags := c.PostForm("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.Tags = append(req.Tags, t)
			}
		}
	}
	if meta := c.PostForm("metadata"); meta != "" {
		if err := json.Unmarshal([]byte(meta), &req.Metadata); err != nil {
			utils.BadRequestResponse(c, "Invalid metadata JSON", err.Error())
			return
		}
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	asset, err := h.assetService.CreateAsset(c.Request.Context(), userID, &req,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileData)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"asset": asset,
	})
}

// GET /assets
func (h *AssetHandler) ListAssets(c *gin.Context) {
	params := h.searchParams(c)

	result, err := h.assetService.ListAssets(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /assets/:id
func (h *AssetHandler) GetAsset(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	asset, err := h.assetService.GetAsset(id)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			utils.NotFoundResponse(c, "Asset")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"asset": asset,
	})
}

// GET /assets/:id/download
func (h *AssetHandler) GetDownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	url, err := h.assetService.DownloadURL(id)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			utils.NotFoundResponse(c, "Asset")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"download_url": url,
	})
}

// GET /assets/:id/verification
func (h *AssetHandler) GetVerification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	check, err := h.verificationService.GetResult(c.Request.Context(), id)
	if err != nil {
		utils.NotFoundResponse(c, "Verification check")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"verification": check,
	})
}

// GET /search/assets
func (h *AssetHandler) SearchAssets(c *gin.Context) {
	params := h.searchParams(c)
	params.Query = c.Query("q")

	result, err := h.assetService.SearchAssets(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

func (h *AssetHandler) searchParams(c *gin.Context) *services.AssetSearchParams {
	params := &services.AssetSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if category := c.Query("category"); category != "" {
		cat := models.AssetCategory(category)
		params.Category = &cat
	}
	if creator := c.Query("creator_id"); creator != "" {
		if id, err := uuid.Parse(creator); err == nil {
			params.CreatorID = &id
		}
	}
	if status := c.Query("verification_status"); status != "" {
		vs := models.VerificationStatus(status)
		params.VerificationStatus = &vs
	}
	if tags := c.Query("tags"); tags != "" {
		params.Tags = strings.Split(tags, ",")
	}

	return params
}
