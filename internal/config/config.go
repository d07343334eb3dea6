// Package config loads runtime settings from the environment (prefix DAPP_)
// with defaults for the local hardhat deployment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const envPrefix = "DAPP"

// Config holds all application configuration.
type Config struct {
	Chain   ChainConfig   `mapstructure:"chain"`
	Events  EventsConfig  `mapstructure:"events"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// ChainConfig selects the node and the two contracts.
type ChainConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
	// PrivateKey signs locally when set; otherwise the node's unlocked
	// accounts are used.
	PrivateKey          string        `mapstructure:"private_key"`
	ExpectedChainID     int64         `mapstructure:"expected_chain_id"`
	TokenAddress        string        `mapstructure:"token_address"`
	NFTAddress          string        `mapstructure:"nft_address"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
}

type EventsConfig struct {
	LogCapacity  int `mapstructure:"log_capacity"`
	URICacheSize int `mapstructure:"uri_cache_size"`
}

// KafkaConfig enables the Kafka sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig enables the Redis pub/sub sink when Address is set.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// FeedConfig enables the WebSocket feed when Addr is set.
type FeedConfig struct {
	Addr      string        `mapstructure:"addr"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// MetricsConfig enables the metrics server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewViper returns a viper instance with defaults registered and
// environment overrides enabled. Callers may bind flags before Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("chain.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.expected_chain_id", 31337)
	v.SetDefault("chain.token_address", "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
	v.SetDefault("chain.nft_address", "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0")
	v.SetDefault("chain.poll_interval", 2*time.Second)
	v.SetDefault("chain.receipt_poll_interval", 2*time.Second)
	v.SetDefault("events.log_capacity", 200)
	v.SetDefault("events.uri_cache_size", 256)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "dapp-events")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "dapp:events")
	v.SetDefault("feed.addr", "")
	v.SetDefault("feed.jwt_secret", "")
	v.SetDefault("feed.token_ttl", 24*time.Hour)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	return FromViper(NewViper())
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	c.Kafka.Brokers = splitList(c.Kafka.Brokers)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain RPC URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(c.Chain.RPCURL); err != nil {
		return fmt.Errorf("invalid chain RPC URL %q: %w", c.Chain.RPCURL, err)
	}
	if !common.IsHexAddress(c.Chain.TokenAddress) {
		return fmt.Errorf("invalid token address: %q", c.Chain.TokenAddress)
	}
	if !common.IsHexAddress(c.Chain.NFTAddress) {
		return fmt.Errorf("invalid NFT address: %q", c.Chain.NFTAddress)
	}
	if key := strings.TrimPrefix(c.Chain.PrivateKey, "0x"); key != "" && len(key) != 64 {
		return fmt.Errorf("private key must be 32 bytes of hex")
	}
	if c.Chain.PollInterval <= 0 || c.Chain.ReceiptPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.Events.LogCapacity <= 0 {
		return fmt.Errorf("event log capacity must be positive, got: %d", c.Events.LogCapacity)
	}
	if c.Events.URICacheSize <= 0 {
		return fmt.Errorf("URI cache size must be positive, got: %d", c.Events.URICacheSize)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	if c.Redis.Address != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis channel is required when redis address is set")
	}
	if c.Feed.Addr != "" && c.Feed.JWTSecret == "" {
		return fmt.Errorf("feed JWT secret is required when the feed is enabled")
	}
	return nil
}

// TokenAddress returns the configured token contract address.
func (c *Config) TokenAddress() common.Address { return common.HexToAddress(c.Chain.TokenAddress) }

// NFTAddress returns the configured NFT contract address.
func (c *Config) NFTAddress() common.Address { return common.HexToAddress(c.Chain.NFTAddress) }

// splitList flattens comma-separated entries, as produced by a single env var.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
