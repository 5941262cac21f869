package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/smartwallet/pkg/constants"
	"github.com/sigweihq/smartwallet/pkg/delegation"
	"github.com/sigweihq/smartwallet/pkg/network"
	"github.com/sigweihq/smartwallet/pkg/smartaccount"
	"github.com/sigweihq/smartwallet/pkg/types"
	"github.com/sigweihq/smartwallet/pkg/utils"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SMARTWALLET_NETWORK_TYPE
const EnvPrefix = "SMARTWALLET"

// Config is the file and environment configuration of the wallet tooling
type Config struct {
	Network    NetworkConfig    `mapstructure:"network"`
	Delegation DelegationConfig `mapstructure:"delegation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type NetworkConfig struct {
	Type           string        `mapstructure:"type"`
	ChainID        *int64        `mapstructure:"chain_id"` // required for solo and custom networks; 0 is a valid id
	NodeURL        string        `mapstructure:"node_url"`
	FallbackNodes  []string      `mapstructure:"fallback_nodes"` // tried in order when node_url is unhealthy
	HealthTimeout  time.Duration `mapstructure:"health_timeout"`
	FactoryAddress string        `mapstructure:"factory_address"`
	Expiration     uint32        `mapstructure:"expiration"` // blocks a transaction stays valid after its block ref
}

type DelegationConfig struct {
	Type         string `mapstructure:"type"` // NONE, URL, ACCOUNT, GENERIC
	URL          string `mapstructure:"url"`
	GenericURL   string `mapstructure:"generic_url"`
	Token        string `mapstructure:"token"`
	TokenAddress string `mapstructure:"token_address"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network.type", constants.NetworkTestnet)
	v.SetDefault("network.node_url", "")
	v.SetDefault("network.fallback_nodes", []string{})
	v.SetDefault("network.health_timeout", 3*time.Second)
	v.SetDefault("network.factory_address", "")
	v.SetDefault("network.expiration", constants.DefaultExpiration)

	v.SetDefault("delegation.type", string(types.DelegationNone))
	v.SetDefault("delegation.url", "")
	v.SetDefault("delegation.generic_url", "")
	v.SetDefault("delegation.token", constants.TokenVTHO)
	v.SetDefault("delegation.token_address", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads the YAML file at path, then applies SMARTWALLET_* environment overrides.
// An empty path looks for smartwallet.yaml in the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// chain_id has no default so that an unset id stays nil; bind it for env overrides
	_ = v.BindEnv("network.chain_id")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("smartwallet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if !network.IsKnown(c.Network.Type) {
		return types.NewWalletError(types.ErrorTypeUnknownNetwork, "unsupported network: "+c.Network.Type, nil)
	}
	if _, err := network.ChainID(c.Network.Type, c.ChainIDOverride()); err != nil {
		return err
	}
	if c.Network.FactoryAddress != "" && !common.IsHexAddress(c.Network.FactoryAddress) {
		return fmt.Errorf("invalid factory address: %s", c.Network.FactoryAddress)
	}
	if c.Network.Expiration == 0 {
		return errors.New("network.expiration must be at least one block")
	}
	if c.Network.HealthTimeout <= 0 {
		return errors.New("network.health_timeout must be positive")
	}

	switch types.DelegationType(c.Delegation.Type) {
	case types.DelegationNone, types.DelegationAccount:
	case types.DelegationURL:
		if err := utils.ValidateDelegatorURL(c.Delegation.URL); err != nil {
			return fmt.Errorf("delegation.url: %w", err)
		}
	case types.DelegationGeneric:
		if err := utils.ValidateDelegatorURL(c.Delegation.GenericURL); err != nil {
			return fmt.Errorf("delegation.generic_url: %w", err)
		}
		if _, err := c.TokenAddress(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported delegation type: %s", c.Delegation.Type)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}
	return nil
}

// ChainIDOverride returns a copy of the configured chain id, or nil when none is set
func (c *Config) ChainIDOverride() *int64 {
	if c.Network.ChainID == nil {
		return nil
	}
	id := *c.Network.ChainID
	return &id
}

// NodeURLs returns the node endpoints in the order they should be tried
func (c *Config) NodeURLs() []string {
	urls := make([]string, 0, 1+len(c.Network.FallbackNodes))
	if c.Network.NodeURL != "" {
		urls = append(urls, c.Network.NodeURL)
	}
	for _, u := range c.Network.FallbackNodes {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// FactoryAddress returns the configured factory or the network's default
func (c *Config) FactoryAddress() string {
	if c.Network.FactoryAddress != "" {
		return c.Network.FactoryAddress
	}
	return smartaccount.DefaultFactoryAddress(c.Network.Type)
}

// TokenAddress returns the contract of the generic delegation fee token, empty for VET
func (c *Config) TokenAddress() (string, error) {
	if c.Delegation.TokenAddress != "" {
		if !common.IsHexAddress(c.Delegation.TokenAddress) {
			return "", fmt.Errorf("invalid token address: %s", c.Delegation.TokenAddress)
		}
		return c.Delegation.TokenAddress, nil
	}
	switch c.Delegation.Token {
	case constants.TokenVET:
		return "", nil
	case constants.TokenVTHO:
		return constants.VTHOAddress, nil
	case constants.TokenB3TR:
		if c.Network.Type == constants.NetworkMainnet {
			return constants.B3TRAddressMainnet, nil
		}
		return "", fmt.Errorf("delegation.token_address is required for %s on %s", c.Delegation.Token, c.Network.Type)
	default:
		return "", fmt.Errorf("unsupported delegation token: %s", c.Delegation.Token)
	}
}

// DelegationOptions converts the delegation section. Generic fee details are filled in
// by the caller once the delegator has quoted a fee.
func (c *Config) DelegationOptions() delegation.Options {
	opts := delegation.Options{Type: types.DelegationType(c.Delegation.Type)}
	switch opts.Type {
	case types.DelegationURL:
		opts.URL = c.Delegation.URL
	case types.DelegationGeneric:
		tokenAddress, _ := c.TokenAddress()
		opts.Generic = &delegation.GenericOptions{
			BaseURL: c.Delegation.GenericURL,
			Details: types.GenericDelegationDetails{
				Token:        c.Delegation.Token,
				TokenAddress: tokenAddress,
			},
		}
	}
	return opts
}

// NewLogger builds a slog logger writing to w in the configured format and level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
