package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNetworksFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNetworksAppliesDefaults(t *testing.T) {
	path := writeNetworksFile(t, `
networks:
  - name: base
    rpc_urls:
      - https://mainnet.base.org
    chain_id: 8453
    settlement_contract: "0x0000000000000000000000000000000000000001"
`)

	networks, err := LoadNetworks(path)
	require.NoError(t, err)
	require.Len(t, networks, 1)

	n := networks[0]
	assert.Equal(t, "base", n.Name)
	assert.Equal(t, int64(8453), n.ChainID)
	assert.Equal(t, 5, n.ConnectAttempts)
	assert.Equal(t, 500*time.Millisecond, n.ConnectBaseDelay())
	assert.Equal(t, 30*time.Second, n.ConnectMaxDelay())
	assert.Equal(t, 10*time.Second, n.RPCTimeout())
	assert.Equal(t, uint64(100), n.ChunkSize)
	assert.Equal(t, uint64(12), n.FinalityOffset)
}

func TestLoadNetworksExplicitValuesWin(t *testing.T) {
	path := writeNetworksFile(t, `
networks:
  - name: arbitrum
    rpc_urls:
      - https://arb1.arbitrum.io/rpc
      - https://arbitrum.drpc.org
    chain_id: 42161
    connect_attempts: 3
    connect_base_delay_ms: 250
    rpc_timeout_ms: 5000
    finality_offset: 20
    chunk_size: 500
    tokens:
      - symbol: USDC
        name: USD Coin
        address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
        decimals: 6
`)

	networks, err := LoadNetworks(path)
	require.NoError(t, err)
	require.Len(t, networks, 1)

	n := networks[0]
	assert.Len(t, n.RpcURLs, 2)
	assert.Equal(t, 3, n.ConnectAttempts)
	assert.Equal(t, 250*time.Millisecond, n.ConnectBaseDelay())
	assert.Equal(t, 5*time.Second, n.RPCTimeout())
	assert.Equal(t, uint64(20), n.FinalityOffset)
	assert.Equal(t, uint64(500), n.ChunkSize)
	require.Len(t, n.Tokens, 1)
	assert.Equal(t, 6, n.Tokens[0].Decimals)
}

func TestLoadNetworksRejectsIncompleteEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "networks:\n  - rpc_urls: [\"https://x\"]\n    chain_id: 1\n"},
		{"missing rpc urls", "networks:\n  - name: base\n    chain_id: 1\n"},
		{"missing chain id", "networks:\n  - name: base\n    rpc_urls: [\"https://x\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNetworks(writeNetworksFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadNetworksMissingFile(t *testing.T) {
	_, err := LoadNetworks(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSigningKeyReadsEnv(t *testing.T) {
	n := NetworkConfig{SigningKeyEnv: "TEST_SIGNING_KEY_BASE"}
	t.Setenv("TEST_SIGNING_KEY_BASE", "deadbeef")
	assert.Equal(t, "deadbeef", n.SigningKey())

	unset := NetworkConfig{}
	assert.Empty(t, unset.SigningKey())
}
