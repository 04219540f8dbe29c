package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"

	"github.com/spf13/viper"
)

// DefaultNetworkName is the network used when neither the caller nor the config selects one.
const DefaultNetworkName = "development"

var (
	// ErrKeyNotFound is returned when a required configuration key is absent.
	ErrKeyNotFound = errors.New("config key not found")
	// ErrNetworkNotFound is returned when a network has no section in the config.
	ErrNetworkNotFound = errors.New("network not found in config")
)

// ExplorerConfig is the block explorer used to publish contract sources.
//
// WARNING: This data type contains sensitive fields and should not be logged.
type ExplorerConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"` // Secret: explorer API token
}

// NetworkConfig is the typed view of a single `networks.<name>` section.
type NetworkConfig struct {
	Host             string         `mapstructure:"host" yaml:"host"`
	BackupHosts      []string       `mapstructure:"backup_hosts" yaml:"backup_hosts"`
	ChainID          uint64         `mapstructure:"chain_id" yaml:"chain_id"`
	PriceFeedAddress string         `mapstructure:"price_feed_address" yaml:"price_feed_address"`
	IsPublishSource  bool           `mapstructure:"is_publish_source" yaml:"is_publish_source"`
	Explorer         ExplorerConfig `mapstructure:"explorer" yaml:"explorer"`
}

// Config wraps the project configuration. Lookups mirror the layout of the YAML file so a
// missing key can be told apart from an empty one.
type Config struct {
	v *viper.Viper
}

var (
	// envBindings maps config keys to the environment variables that can provide them. The
	// first variable listed that is set wins.
	envBindings = map[string][]string{
		"wallets.from_key":         {"LOTTERY_WALLETS_FROM_KEY", "PRIVATE_KEY"},
		"networks.default":         {"LOTTERY_NETWORK"},
		"lottery.usd_entrance_fee": {"LOTTERY_USD_ENTRANCE_FEE"},
	}
)

// Load loads the config from the file path, falling back to env vars if the file does not
// exist. `${VAR}` references in the file are expanded from the environment before parsing.
// Env vars listed in the bindings override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// env vars only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := v.ReadConfig(bytes.NewReader(expandEnv(data))); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
	}

	return &Config{v: v}, nil
}

// LoadBytes parses YAML config content. It is used by tests and embedded configs.
func LoadBytes(data []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if err := v.ReadConfig(bytes.NewReader(expandEnv(data))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &Config{v: v}, nil
}

// envRef matches a ${VAR} reference. A bare $ is left alone so keys and passwords may
// contain it.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces the ${VAR} references in data with the value of VAR, empty when unset.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(ref)[1])))
	})
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return fmt.Errorf("failed to bind env vars for %s: %w", key, err)
		}
	}

	return nil
}

// DevNetworks returns the set of networks which are treated as development networks.
func (c *Config) DevNetworks() map[string]struct{} {
	set := make(map[string]struct{})
	for _, n := range c.v.GetStringSlice("networks.dev_networks") {
		set[n] = struct{}{}
	}

	return set
}

// IsDevNetwork reports whether network is listed in the development networks.
func (c *Config) IsDevNetwork(network string) bool {
	_, ok := c.DevNetworks()[network]

	return ok
}

// IsPublishSource reports whether contract sources should be published for network.
func (c *Config) IsPublishSource(network string) bool {
	return c.v.GetBool(networkKey(network, "is_publish_source"))
}

// PriceFeedAddress returns the configured price feed address for network. It returns
// ErrKeyNotFound when the network has no price_feed_address entry.
func (c *Config) PriceFeedAddress(network string) (string, error) {
	key := networkKey(network, "price_feed_address")
	if !c.v.IsSet(key) {
		return "", fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}

	return c.v.GetString(key), nil
}

// USDEntranceFee returns the lottery entrance fee in USD, or def when unset.
func (c *Config) USDEntranceFee(def int64) int64 {
	if !c.v.IsSet("lottery.usd_entrance_fee") {
		return def
	}

	return c.v.GetInt64("lottery.usd_entrance_fee")
}

// DefaultNetwork returns `networks.default`, or DefaultNetworkName when unset.
func (c *Config) DefaultNetwork() string {
	if n := c.v.GetString("networks.default"); n != "" {
		return n
	}

	return DefaultNetworkName
}

// Network returns the typed section of network.
func (c *Config) Network(name string) (NetworkConfig, error) {
	sub := c.v.Sub("networks." + name)
	if sub == nil {
		return NetworkConfig{}, fmt.Errorf("%s: %w", name, ErrNetworkNotFound)
	}

	var nc NetworkConfig
	if err := sub.Unmarshal(&nc); err != nil {
		return NetworkConfig{}, fmt.Errorf("failed to decode network %s: %w", name, err)
	}

	return nc, nil
}

// DeployerKey returns the hex encoded private key of the deploying wallet.
func (c *Config) DeployerKey() string {
	return c.v.GetString("wallets.from_key")
}

func networkKey(network, field string) string {
	return "networks." + network + "." + field
}
