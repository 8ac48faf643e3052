package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
production: true
db_path: /tmp/oracle-test
poll_interval: 30s
chains:
  - id: "11155111"
    name: sepolia
    rpc_url: https://sepolia.example.org
    contract_address: "0x2AB9f26E18B64848cd349582ca3B55c2d06f507d"
timeouts:
  batch_timeout: 2s
endpoints:
  - id: "0x0000000000000000000000000000000000000000000000000000000000000001"
    url: https://api.example.org/price
    method: GET
    parameters:
      currency: usd
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(MnemonicEnvVar, "achieve climb couple wait accident symbol spy blouse reduce foil echo label")

	c, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.True(t, c.Production)
	assert.Equal(t, 30*time.Second, c.PollInterval)
	assert.Equal(t, DefaultNodeApiAddress, c.NodeApiIpPortAddress)
	assert.Equal(t, DefaultBatchAttempts, c.Timeouts.BatchAttempts)
	assert.Equal(t, 2*time.Second, c.Timeouts.BatchTimeout)
	assert.Equal(t, DefaultSubmissionTimeout, c.Timeouts.SubmissionTimeout)
	assert.Equal(t, DefaultApiCallTimeout, c.Timeouts.ApiCallTimeout)

	require.Len(t, c.Chains, 1)
	chain := c.Chains[0]
	assert.Equal(t, uint64(DefaultBlockHistoryLimit), chain.BlockHistoryLimit)
	assert.Equal(t, uint64(DefaultFulfillGasLimit), chain.FulfillGasLimit)
	assert.Equal(t, "11155111", chain.ChainID().String())
	_, ok := chain.ProviderHash()
	assert.False(t, ok)

	require.NoError(t, c.RequireMnemonic())
	assert.Equal(t, "usd", c.Endpoints[0].Parameters["currency"])
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no chains", "db_path: /tmp/x\n"},
		{"bad contract", `
chains:
  - id: "1"
    rpc_url: https://rpc.example.org
    contract_address: nope
`},
		{"bad provider id", `
chains:
  - id: "1"
    rpc_url: https://rpc.example.org
    contract_address: "0x2AB9f26E18B64848cd349582ca3B55c2d06f507d"
    provider_id: "0x1234"
`},
		{"duplicate chain", `
chains:
  - id: "1"
    rpc_url: https://rpc.example.org
    contract_address: "0x2AB9f26E18B64848cd349582ca3B55c2d06f507d"
  - id: "1"
    rpc_url: https://rpc2.example.org
    contract_address: "0x2AB9f26E18B64848cd349582ca3B55c2d06f507d"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRequireMnemonic(t *testing.T) {
	c := &NodeConfig{}
	assert.ErrorIs(t, c.RequireMnemonic(), ErrMissingMnemonic)
}

func TestBatchRetry(t *testing.T) {
	opts := Timeouts{BatchAttempts: 2, BatchTimeout: 4 * time.Second}.BatchRetry()
	assert.Equal(t, 2, opts.Attempts)
	assert.Equal(t, []time.Duration{4 * time.Second}, opts.Timeouts)
}
