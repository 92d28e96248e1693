// internal/services/asset_classifier.go
package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/provenly/ipvault-backend/internal/models"
)

// Size limits per asset category, in bytes.
var categorySizeLimits = map[models.AssetCategory]int64{
	models.AssetCategoryImage:    25 * 1024 * 1024,
	models.AssetCategoryAudio:    100 * 1024 * 1024,
	models.AssetCategoryVideo:    500 * 1024 * 1024,
	models.AssetCategoryDocument: 50 * 1024 * 1024,
	models.AssetCategoryModel3D:  250 * 1024 * 1024,
	models.AssetCategoryDataset:  250 * 1024 * 1024,
	models.AssetCategoryCode:     50 * 1024 * 1024,
	models.AssetCategoryOther:    25 * 1024 * 1024,
}

var extensionCategories = map[string]models.AssetCategory{
	".jpg": models.AssetCategoryImage, ".jpeg": models.AssetCategoryImage,
	".png": models.AssetCategoryImage, ".gif": models.AssetCategoryImage,
	".webp": models.AssetCategoryImage, ".svg": models.AssetCategoryImage,

	".mp3": models.AssetCategoryAudio, ".wav": models.AssetCategoryAudio,
	".flac": models.AssetCategoryAudio, ".ogg": models.AssetCategoryAudio,

	".mp4": models.AssetCategoryVideo, ".mov": models.AssetCategoryVideo,
	".webm": models.AssetCategoryVideo, ".mkv": models.AssetCategoryVideo,

	".pdf": models.AssetCategoryDocument, ".doc": models.AssetCategoryDocument,
	".docx": models.AssetCategoryDocument, ".txt": models.AssetCategoryDocument,
	".md": models.AssetCategoryDocument,

	".glb": models.AssetCategoryModel3D, ".gltf": models.AssetCategoryModel3D,
	".obj": models.AssetCategoryModel3D, ".fbx": models.AssetCategoryModel3D,
	".stl": models.AssetCategoryModel3D,

	".csv": models.AssetCategoryDataset, ".json": models.AssetCategoryDataset,
	".parquet": models.AssetCategoryDataset, ".xlsx": models.AssetCategoryDataset,

	".go": models.AssetCategoryCode, ".py": models.AssetCategoryCode,
	".js": models.AssetCategoryCode, ".ts": models.AssetCategoryCode,
	".sol": models.AssetCategoryCode, ".zip": models.AssetCategoryCode,
}

var mimeCategories = map[string]models.AssetCategory{
	"image":             models.AssetCategoryImage,
	"audio":             models.AssetCategoryAudio,
	"video":             models.AssetCategoryVideo,
	"application/pdf":   models.AssetCategoryDocument,
	"text/plain":        models.AssetCategoryDocument,
	"text/csv":          models.AssetCategoryDataset,
	"application/json":  models.AssetCategoryDataset,
	"model/gltf-binary": models.AssetCategoryModel3D,
}

// ClassifyAsset maps a filename and MIME type to an asset category.
// The extension wins when both are known; MIME is the fallback.
func ClassifyAsset(filename, mimeType string) models.AssetCategory {
	ext := strings.ToLower(filepath.Ext(filename))
	if category, ok := extensionCategories[ext]; ok {
		return category
	}

	if category, ok := mimeCategories[mimeType]; ok {
		return category
	}
	if idx := strings.Index(mimeType, "/"); idx > 0 {
		if category, ok := mimeCategories[mimeType[:idx]]; ok {
			return category
		}
	}

	return models.AssetCategoryOther
}

// ValidateAssetFile classifies a file and enforces its category's size
// limit.
func ValidateAssetFile(filename, mimeType string, size int64) (models.AssetCategory, error) {
	category := ClassifyAsset(filename, mimeType)

	if category == models.AssetCategoryOther {
		ext := strings.ToLower(filepath.Ext(filename))
		if ext == "" || ext == ".exe" || ext == ".bin" {
			return category, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFileType, filename, mimeType)
		}
	}

	limit := categorySizeLimits[category]
	if size > limit {
		return category, fmt.Errorf("%w: %d bytes exceeds %d byte limit for %s",
			ErrFileTooLarge, size, limit, category)
	}

	return category, nil
}
