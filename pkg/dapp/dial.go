package dapp

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/chain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/emitter"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/sim"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/config"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
)

// Dial connects to the node in cfg and builds a client for the configured
// contracts. Events are always logged; Kafka and Redis sinks are added when
// configured.
func Dial(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (*Client, error) {
	provider, err := chain.NewEthereumProvider(ctx, chain.Config{
		RPCURL:              cfg.Chain.RPCURL,
		PrivateKey:          cfg.Chain.PrivateKey,
		PollInterval:        cfg.Chain.PollInterval,
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval,
	}, log.With().Str("component", "provider").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	token, err := chain.NewToken(provider.Client(), cfg.TokenAddress(), cfg.Chain.PollInterval, log)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to bind token contract: %w", err)
	}
	nft, err := chain.NewNFT(provider.Client(), cfg.NFTAddress(), cfg.Chain.PollInterval, log)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to bind NFT contract: %w", err)
	}

	sinks, err := newSinks(ctx, cfg, m, log)
	if err != nil {
		provider.Close()
		return nil, err
	}

	client, err := New(Options{
		Provider:         provider,
		Token:            token,
		NFT:              nft,
		EventLogCapacity: cfg.Events.LogCapacity,
		ExpectedChainID:  big.NewInt(cfg.Chain.ExpectedChainID),
		URICacheSize:     cfg.Events.URICacheSize,
		Emitter:          sinks,
		Metrics:          m,
		Logger:           log,
		OnClose:          provider.Close,
	})
	if err != nil {
		_ = sinks.Close()
		provider.Close()
		return nil, err
	}
	return client, nil
}

// NewSimulated builds a client backed by an in-memory chain.
func NewSimulated(c *sim.Chain, opts Options) (*Client, error) {
	opts.Provider = c.Wallet()
	opts.Token = c.Token()
	opts.NFT = c.NFT()
	return New(opts)
}

func newSinks(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (*emitter.Multi, error) {
	sinks := emitter.NewMulti(m)
	sinks.Add("log", emitter.NewLogEmitter(log))

	if len(cfg.Kafka.Brokers) > 0 {
		sinks.Add("kafka", emitter.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, log))
	}
	if cfg.Redis.Address != "" {
		r, err := emitter.NewRedisEmitter(ctx, emitter.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, log)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("failed to create redis sink: %w", err)
		}
		sinks.Add("redis", r)
	}
	return sinks, nil
}
