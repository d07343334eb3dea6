package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
)

// Config configures an EthereumProvider.
type Config struct {
	RPCURL string
	// PrivateKey selects a local key signer. When empty the node's own
	// accounts sign through eth_sendTransaction.
	PrivateKey string
	// PollInterval paces account/chain change detection and log polling.
	PollInterval time.Duration
	// ReceiptPollInterval paces confirmation polling.
	ReceiptPollInterval time.Duration
}

// EthereumProvider implements domain.WalletProvider over JSON-RPC. Account
// and chain switches are detected by polling eth_accounts and eth_chainId.
type EthereumProvider struct {
	rpc    *rpc.Client
	client *ethclient.Client
	log    zerolog.Logger

	privateKey *ecdsa.PrivateKey
	keyAddress common.Address

	pollInterval    time.Duration
	receiptInterval time.Duration

	accountsFeed event.Feed
	chainFeed    event.Feed
	scope        event.SubscriptionScope

	mu           sync.Mutex
	lastAccounts []common.Address
	lastChain    *big.Int
}

// NewEthereumProvider connects to cfg.RPCURL.
func NewEthereumProvider(ctx context.Context, cfg Config, log zerolog.Logger) (*EthereumProvider, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("%w: no RPC endpoint configured", domain.ErrProviderUnavailable)
	}

	p := &EthereumProvider{
		log:             log,
		pollInterval:    cfg.PollInterval,
		receiptInterval: cfg.ReceiptPollInterval,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 2 * time.Second
	}
	if p.receiptInterval <= 0 {
		p.receiptInterval = 2 * time.Second
	}

	if cfg.PrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("failed to derive public key")
		}
		p.privateKey = privateKey
		p.keyAddress = crypto.PubkeyToAddress(*publicKeyECDSA)
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RPC: %v", domain.ErrProviderUnavailable, err)
	}
	p.rpc = rpcClient
	p.client = ethclient.NewClient(rpcClient)
	return p, nil
}

// Client exposes the underlying ethclient for contract bindings.
func (p *EthereumProvider) Client() *ethclient.Client { return p.client }

// ReceiptPollInterval is the interval used when waiting for confirmations.
func (p *EthereumProvider) ReceiptPollInterval() time.Duration { return p.receiptInterval }

// Close unsubscribes all listeners and closes the connection.
func (p *EthereumProvider) Close() {
	p.scope.Close()
	if p.client != nil {
		p.client.Close()
	}
}

// RequestAccounts asks the node for account access. With a local key the
// key's address is the only account.
func (p *EthereumProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if p.privateKey != nil {
		if _, err := p.client.ChainID(ctx); err != nil {
			return nil, mapError(err)
		}
		return []common.Address{p.keyAddress}, nil
	}

	var accounts []common.Address
	err := p.rpc.CallContext(ctx, &accounts, "eth_requestAccounts")
	if isMethodNotFound(err) {
		err = p.rpc.CallContext(ctx, &accounts, "eth_accounts")
	}
	if err != nil {
		return nil, mapError(err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts authorized", domain.ErrUserRejected)
	}
	return accounts, nil
}

// Signer returns a signer for the selected account.
func (p *EthereumProvider) Signer(ctx context.Context) (domain.Signer, error) {
	if p.privateKey != nil {
		chainID, err := p.client.ChainID(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return &KeySigner{
			client:          p.client,
			privateKey:      p.privateKey,
			address:         p.keyAddress,
			chainID:         chainID,
			receiptInterval: p.receiptInterval,
		}, nil
	}

	accounts, err := p.accounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts authorized", domain.ErrUserRejected)
	}
	return &NodeSigner{
		rpc:             p.rpc,
		client:          p.client,
		address:         accounts[0],
		receiptInterval: p.receiptInterval,
	}, nil
}

// Network reads the chain id and names it.
func (p *EthereumProvider) Network(ctx context.Context) (domain.NetworkInfo, error) {
	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return domain.NetworkInfo{}, mapError(err)
	}
	return domain.NetworkInfo{Name: NetworkName(chainID), ChainID: chainID}, nil
}

// SubscribeAccountsChanged delivers account list changes seen by Watch.
func (p *EthereumProvider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return p.scope.Track(p.accountsFeed.Subscribe(ch))
}

// SubscribeChainChanged delivers chain id changes seen by Watch.
func (p *EthereumProvider) SubscribeChainChanged(ch chan<- struct{}) event.Subscription {
	return p.scope.Track(p.chainFeed.Subscribe(ch))
}

// Watch polls for account and chain changes until ctx is done. The first
// poll only records a baseline.
func (p *EthereumProvider) Watch(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.poll(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, false)
		}
	}
}

func (p *EthereumProvider) poll(ctx context.Context, baseline bool) {
	accounts, err := p.accounts(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("Failed to poll accounts")
	} else {
		p.mu.Lock()
		changed := !baseline && !slices.Equal(accounts, p.lastAccounts)
		p.lastAccounts = accounts
		p.mu.Unlock()
		if changed {
			p.log.Info().Int("count", len(accounts)).Msg("Accounts changed")
			p.accountsFeed.Send(append([]common.Address(nil), accounts...))
		}
	}

	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("Failed to poll chain id")
		return
	}
	p.mu.Lock()
	changed := !baseline && p.lastChain != nil && p.lastChain.Cmp(chainID) != 0
	p.lastChain = chainID
	p.mu.Unlock()
	if changed {
		p.log.Info().Str("chain_id", chainID.String()).Msg("Chain changed")
		p.chainFeed.Send(struct{}{})
	}
}

func (p *EthereumProvider) accounts(ctx context.Context) ([]common.Address, error) {
	if p.privateKey != nil {
		return []common.Address{p.keyAddress}, nil
	}
	var accounts []common.Address
	if err := p.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, mapError(err)
	}
	return accounts, nil
}

// userRejectedCode is the EIP-1193 "user rejected request" error code.
const userRejectedCode = 4001

// methodNotFoundCode is the JSON-RPC "method not found" error code.
const methodNotFoundCode = -32601

// mapError classifies JSON-RPC failures into the domain error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == userRejectedCode {
			return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
		}
		return err
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) || errors.Is(err, rpc.ErrClientQuit) {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return err
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFoundCode
}
