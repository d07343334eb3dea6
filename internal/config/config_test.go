package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.Chain.RPCURL)
	assert.Equal(t, int64(31337), cfg.Chain.ExpectedChainID)
	assert.Equal(t, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", cfg.TokenAddress().Hex())
	assert.Equal(t, "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0", cfg.NFTAddress().Hex())
	assert.Equal(t, 2*time.Second, cfg.Chain.PollInterval)
	assert.Equal(t, 200, cfg.Events.LogCapacity)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DAPP_CHAIN_RPC_URL", "http://node:8545")
	t.Setenv("DAPP_EVENTS_LOG_CAPACITY", "50")
	t.Setenv("DAPP_CHAIN_POLL_INTERVAL", "500ms")
	t.Setenv("DAPP_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DAPP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://node:8545", cfg.Chain.RPCURL)
	assert.Equal(t, 50, cfg.Events.LogCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.PollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFromViperFlagOverride(t *testing.T) {
	v := NewViper()
	v.Set("chain.rpc_url", "http://flag:8545")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8545", cfg.Chain.RPCURL)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load()
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty rpc", func(c *Config) { c.Chain.RPCURL = "" }},
		{"bad rpc", func(c *Config) { c.Chain.RPCURL = "not a url" }},
		{"bad token address", func(c *Config) { c.Chain.TokenAddress = "0x123" }},
		{"bad nft address", func(c *Config) { c.Chain.NFTAddress = "nft" }},
		{"short private key", func(c *Config) { c.Chain.PrivateKey = "0xabcd" }},
		{"zero poll interval", func(c *Config) { c.Chain.PollInterval = 0 }},
		{"zero capacity", func(c *Config) { c.Events.LogCapacity = 0 }},
		{"zero cache", func(c *Config) { c.Events.URICacheSize = 0 }},
		{"kafka without topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }},
		{"redis without channel", func(c *Config) { c.Redis.Address = "localhost:6379"; c.Redis.Channel = "" }},
		{"feed without secret", func(c *Config) { c.Feed.Addr = ":8081" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := valid()
	assert.NoError(t, c.Validate())
}
