// internal/chains/chains_test.go
package chains

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownChain(t *testing.T) {
	cfg, err := Get(ChainIDSepolia)
	require.NoError(t, err)

	assert.Equal(t, int64(11155111), cfg.ChainID)
	assert.Equal(t, "Sepolia", cfg.Name)
	assert.Equal(t, "ETH", cfg.Currency)
	assert.True(t, cfg.NativeFee.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, 12, cfg.FinalityDepth)
}

func TestGetUnknownChain(t *testing.T) {
	_, err := Get(999)
	require.Error(t, err)

	var unsupported *UnsupportedChainError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, int64(999), unsupported.ChainID)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(ChainIDEthereum))
	assert.True(t, Supported(ChainIDStory))
	assert.True(t, Supported(ChainIDSepolia))
	assert.True(t, Supported(ChainIDStoryAeneid))
	assert.False(t, Supported(0))
	assert.False(t, Supported(137))
}

func TestAll(t *testing.T) {
	all := All()
	require.Len(t, all, 4)

	seen := make(map[int64]bool)
	for _, cfg := range all {
		seen[cfg.ChainID] = true
		assert.NotEmpty(t, cfg.Name)
		assert.NotEmpty(t, cfg.Currency)
		assert.True(t, cfg.NativeFee.IsPositive())
		assert.Greater(t, cfg.BlockTimeSeconds, 0)
	}
	assert.True(t, seen[ChainIDEthereum])
	assert.True(t, seen[ChainIDStoryAeneid])
}
