// internal/services/pinning_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/provenly/ipvault-backend/internal/config"
)

// PinningService uploads asset bytes and metadata JSON to the IPFS
// pinning provider and returns content IDs.
type PinningService struct {
	baseURL    string
	apiKey     string
	gatewayURL string
	httpClient *http.Client
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func NewPinningService(cfg *config.Config) *PinningService {
	return &PinningService{
		baseURL:    cfg.Pinning.BaseURL,
		apiKey:     cfg.Pinning.APIKey,
		gatewayURL: cfg.Pinning.GatewayURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // large files
		},
	}
}

// PinFile pins raw file bytes and returns the CID.
func (s *PinningService) PinFile(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/pinning/pinFileToIPFS", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return s.doPin(req)
}

// PinJSON pins a JSON document (asset metadata) and returns the CID.
func (s *PinningService) PinJSON(ctx context.Context, content interface{}) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"pinataContent": content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return s.doPin(req)
}

func (s *PinningService) doPin(req *http.Request) (string, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("pin request returned %d: %s", resp.StatusCode, string(body))
	}

	var result pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if result.IpfsHash == "" {
		return "", fmt.Errorf("pin response missing content id")
	}

	return result.IpfsHash, nil
}

// GatewayURL returns a fetchable URL for a pinned CID.
func (s *PinningService) GatewayURL(cid string) string {
	return fmt.Sprintf("%s/%s", s.gatewayURL, cid)
}
