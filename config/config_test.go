package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
networks:
  default: development
  dev_networks:
    - development
    - ganache-local
  development:
    is_publish_source: false
  ganache-local:
    host: http://127.0.0.1:8545
    chain_id: 1337
    price_feed_address: ""
  sepolia:
    host: ${TEST_SEPOLIA_RPC_URL}
    backup_hosts:
      - https://backup.example.com
    chain_id: 11155111
    price_feed_address: "0x694AA1769357215DE4FAC081bf1f309aDC325306"
    is_publish_source: true
    explorer:
      url: https://api-sepolia.etherscan.io/api
      api_key: ${TEST_ETHERSCAN_TOKEN}
lottery:
  usd_entrance_fee: 75
wallets:
  from_key: ${TEST_PRIVATE_KEY}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	fp := filepath.Join(t.TempDir(), "lottery-config.yaml")
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o600))

	return fp
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_SEPOLIA_RPC_URL", "https://sepolia.example.com")
	t.Setenv("TEST_ETHERSCAN_TOKEN", "token")
	t.Setenv("TEST_PRIVATE_KEY", "abc123")

	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{"development": {}, "ganache-local": {}}, cfg.DevNetworks())
	assert.True(t, cfg.IsDevNetwork("ganache-local"))
	assert.False(t, cfg.IsDevNetwork("sepolia"))
	assert.Equal(t, "development", cfg.DefaultNetwork())
	assert.Equal(t, "abc123", cfg.DeployerKey())
	assert.Equal(t, int64(75), cfg.USDEntranceFee(50))

	nc, err := cfg.Network("sepolia")
	require.NoError(t, err)
	assert.Equal(t, NetworkConfig{
		Host:             "https://sepolia.example.com",
		BackupHosts:      []string{"https://backup.example.com"},
		ChainID:          11155111,
		PriceFeedAddress: "0x694AA1769357215DE4FAC081bf1f309aDC325306",
		IsPublishSource:  true,
		Explorer: ExplorerConfig{
			URL:    "https://api-sepolia.etherscan.io/api",
			APIKey: "token",
		},
	}, nc)
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "deadbeef")
	t.Setenv("LOTTERY_NETWORK", "sepolia")
	t.Setenv("LOTTERY_USD_ENTRANCE_FEE", "20")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "deadbeef", cfg.DeployerKey())
	assert.Equal(t, "sepolia", cfg.DefaultNetwork())
	assert.Equal(t, int64(20), cfg.USDEntranceFee(50))
	assert.Empty(t, cfg.DevNetworks())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("LOTTERY_WALLETS_FROM_KEY", "override")
	t.Setenv("PRIVATE_KEY", "legacy")

	cfg, err := Load(writeConfig(t, "wallets:\n  from_key: fromfile\n"))
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.DeployerKey())
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "networks: [unclosed"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfig_Lookups(t *testing.T) {
	cfg, err := LoadBytes([]byte(testConfigYAML))
	require.NoError(t, err)

	tests := []struct {
		name          string
		network       string
		wantFeed      string
		wantErr       error
		wantPublish   bool
		wantNetErr    error
		wantNetworkOK bool
	}{
		{
			name:          "live network with feed",
			network:       "sepolia",
			wantFeed:      "0x694AA1769357215DE4FAC081bf1f309aDC325306",
			wantPublish:   true,
			wantNetworkOK: true,
		},
		{
			name:          "explicitly empty feed",
			network:       "ganache-local",
			wantFeed:      "",
			wantNetworkOK: true,
		},
		{
			name:          "missing feed key",
			network:       "development",
			wantErr:       ErrKeyNotFound,
			wantNetworkOK: true,
		},
		{
			name:       "unknown network",
			network:    "mainnet",
			wantErr:    ErrKeyNotFound,
			wantNetErr: ErrNetworkNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := cfg.PriceFeedAddress(tt.network)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFeed, feed)
			}

			assert.Equal(t, tt.wantPublish, cfg.IsPublishSource(tt.network))

			_, err = cfg.Network(tt.network)
			if tt.wantNetworkOK {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantNetErr)
			}
		})
	}
}

func TestConfig_USDEntranceFeeDefault(t *testing.T) {
	cfg, err := LoadBytes([]byte("networks:\n  default: development\n"))
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.USDEntranceFee(50))
	assert.Equal(t, int64(10), cfg.USDEntranceFee(10))
}

func TestConfig_DefaultNetworkFallback(t *testing.T) {
	cfg, err := LoadBytes([]byte("lottery:\n  usd_entrance_fee: 50\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultNetworkName, cfg.DefaultNetwork())
}

func TestLoadBytes_ExpandsOnlyBracedEnvRefs(t *testing.T) {
	t.Setenv("TEST_EXPLORER_URL", "https://api-sepolia.etherscan.io/api")
	t.Setenv("TEST_TOKEN", "expanded")

	cfg, err := LoadBytes([]byte(`
networks:
  sepolia:
    explorer:
      url: ${TEST_EXPLORER_URL}
      api_key: "pa$TEST_TOKEN$$word"
    price_feed_address: "${TEST_UNSET_FEED}"
`))
	require.NoError(t, err)

	nc, err := cfg.Network("sepolia")
	require.NoError(t, err)
	assert.Equal(t, "https://api-sepolia.etherscan.io/api", nc.Explorer.URL)
	assert.Equal(t, "pa$TEST_TOKEN$$word", nc.Explorer.APIKey)
	assert.Empty(t, nc.PriceFeedAddress)
}
