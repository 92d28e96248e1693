// internal/services/storage_service_test.go
package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenly/ipvault-backend/internal/config"
)

// Without AWS credentials the service runs in local mode: objects get
// server-relative URLs and remote operations degrade gracefully.
func newLocalStorage(t *testing.T) *StorageService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = "8080"

	svc, err := NewStorageService(cfg)
	require.NoError(t, err)
	return svc
}

func TestStoreAssetLocalMode(t *testing.T) {
	svc := newLocalStorage(t)

	res, err := svc.StoreAsset([]byte("raw bytes"), "artwork.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "assets/"))
	assert.True(t, strings.HasSuffix(res.Key, ".jpg"))
	assert.Equal(t, "http://localhost:8080/uploads/"+res.Key, res.URL)
	assert.Equal(t, int64(9), res.Size)
	assert.Equal(t, "image/jpeg", res.MimeType)
}

func TestStoreThumbnailAlwaysPNG(t *testing.T) {
	svc := newLocalStorage(t)

	res, err := svc.StoreThumbnail([]byte("png bytes"), "artwork.jpg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "thumbnails/"))
	assert.True(t, strings.HasSuffix(res.Key, ".png"))
	assert.Equal(t, "image/png", res.MimeType)
}

func TestDeleteObjectLocalModeNoop(t *testing.T) {
	svc := newLocalStorage(t)
	assert.NoError(t, svc.DeleteObject("assets/20260829_deadbeef.jpg"))
}

func TestGeneratePresignedURLRequiresS3(t *testing.T) {
	svc := newLocalStorage(t)
	_, err := svc.GeneratePresignedURL("assets/20260829_deadbeef.jpg", 15*time.Minute)
	assert.Error(t, err)
}
