// internal/chains/chains.go
package chains

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ChainConfig describes one supported chain. Protocol fees are fixed
// configured amounts in the chain's native currency, not live quotes.
type ChainConfig struct {
	ChainID          int64
	Name             string
	Currency         string
	NativeFee        decimal.Decimal
	FinalityDepth    int
	BlockTimeSeconds int
	RPCURL           string
}

// UnsupportedChainError is returned when a chain ID has no configuration.
type UnsupportedChainError struct {
	ChainID int64
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("unsupported chain id %d", e.ChainID)
}

const (
	ChainIDEthereum    int64 = 1
	ChainIDStory       int64 = 1514
	ChainIDSepolia     int64 = 11155111
	ChainIDStoryAeneid int64 = 1315
)

var registry = map[int64]ChainConfig{
	ChainIDEthereum: {
		ChainID:          ChainIDEthereum,
		Name:             "Ethereum",
		Currency:         "ETH",
		NativeFee:        decimal.RequireFromString("0.001"),
		FinalityDepth:    12,
		BlockTimeSeconds: 15,
		RPCURL:           "https://eth.llamarpc.com",
	},
	ChainIDStory: {
		ChainID:          ChainIDStory,
		Name:             "Story",
		Currency:         "IP",
		NativeFee:        decimal.RequireFromString("0.01"),
		FinalityDepth:    8,
		BlockTimeSeconds: 3,
		RPCURL:           "https://mainnet.storyrpc.io",
	},
	ChainIDSepolia: {
		ChainID:          ChainIDSepolia,
		Name:             "Sepolia",
		Currency:         "ETH",
		NativeFee:        decimal.RequireFromString("0.001"),
		FinalityDepth:    12,
		BlockTimeSeconds: 15,
		RPCURL:           "https://rpc.sepolia.org",
	},
	ChainIDStoryAeneid: {
		ChainID:          ChainIDStoryAeneid,
		Name:             "Story Aeneid",
		Currency:         "IP",
		NativeFee:        decimal.RequireFromString("0.01"),
		FinalityDepth:    8,
		BlockTimeSeconds: 3,
		RPCURL:           "https://aeneid.storyrpc.io",
	},
}

// Get resolves a chain configuration by ID.
func Get(chainID int64) (ChainConfig, error) {
	cfg, ok := registry[chainID]
	if !ok {
		return ChainConfig{}, &UnsupportedChainError{ChainID: chainID}
	}
	return cfg, nil
}

// Supported reports whether a chain ID is configured.
func Supported(chainID int64) bool {
	_, ok := registry[chainID]
	return ok
}

// All returns the configured chains, for the public chain-listing endpoint.
func All() []ChainConfig {
	out := make([]ChainConfig, 0, len(registry))
	for _, cfg := range registry {
		out = append(out, cfg)
	}
	return out
}
