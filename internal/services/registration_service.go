// internal/services/registration_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/provenly/ipvault-backend/internal/config"
	"github.com/provenly/ipvault-backend/internal/models"
)

// RegistrationService registers assets as IP on the on-chain registry
// and attaches license terms to the registered IP.
type RegistrationService struct {
	baseURL     string
	apiKey      string
	spgContract string
	chainID     int64
	httpClient  *http.Client
}

type IPRegistration struct {
	IPID            string `json:"ip_id"`
	TokenID         string `json:"token_id"`
	TransactionHash string `json:"transaction_hash"`
}

type registerIPRequest struct {
	SPGContract string `json:"spg_nft_contract"`
	ChainID     int64  `json:"chain_id"`
	MetadataURI string `json:"metadata_uri"`
	MetadataCID string `json:"metadata_cid"`
	Recipient   string `json:"recipient"`
	ExternalRef string `json:"external_ref"`
}

type attachTermsRequest struct {
	IPID         string `json:"ip_id"`
	LicenseTier  string `json:"license_tier"`
	Commercial   bool   `json:"commercial_use"`
	Transferable bool   `json:"transferable"`
}

func NewRegistrationService(cfg *config.Config) *RegistrationService {
	return &RegistrationService{
		baseURL:     cfg.Registration.APIBaseURL,
		apiKey:      cfg.Registration.APIKey,
		spgContract: cfg.Registration.SPGContract,
		chainID:     cfg.Registration.ChainID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// RegisterIP mints and registers an asset as IP, returning the on-chain
// registration identifiers.
func (s *RegistrationService) RegisterIP(ctx context.Context, assetID uuid.UUID, metadataCID, metadataURI, creatorAddress string) (*IPRegistration, error) {
	payload := registerIPRequest{
		SPGContract: s.spgContract,
		ChainID:     s.chainID,
		MetadataURI: metadataURI,
		MetadataCID: metadataCID,
		Recipient:   creatorAddress,
		ExternalRef: assetID.String(),
	}

	var result IPRegistration
	if err := s.post(ctx, "/ip/register", payload, &result); err != nil {
		return nil, err
	}
	if result.IPID == "" {
		return nil, fmt.Errorf("registration response missing ip id")
	}
	return &result, nil
}

// AttachLicenseTerms attaches tier-specific license terms to a
// registered IP.
func (s *RegistrationService) AttachLicenseTerms(ctx context.Context, ipID string, tier models.LicenseTier) error {
	payload := attachTermsRequest{
		IPID:         ipID,
		LicenseTier:  string(tier),
		Commercial:   tier != models.LicenseTierBasic,
		Transferable: tier == models.LicenseTierExclusive,
	}
	return s.post(ctx, "/ip/license-terms", payload, nil)
}

func (s *RegistrationService) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("registration request returned %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode registration response: %w", err)
		}
	}
	return nil
}
