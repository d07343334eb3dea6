// Package dapp wires the wallet session, contract data loader, event
// reconciler and transaction orchestrator into a single client.
package dapp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/service"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
)

// Options configures a Client.
type Options struct {
	Provider domain.WalletProvider
	Token    domain.TokenContract
	NFT      domain.NFTContract

	// EventLogCapacity bounds the in-memory event log. Zero selects the
	// store default.
	EventLogCapacity int
	// ExpectedChainID flags any other network as wrong. Nil disables the check.
	ExpectedChainID *big.Int
	URICacheSize    int

	// Emitter receives every accepted event. It is closed by Stop.
	Emitter domain.EventEmitter
	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// OnClose runs last during Stop, after the emitter is closed.
	OnClose func()
}

// watcher is implemented by providers that must be driven to detect
// account and chain switches.
type watcher interface {
	Watch(ctx context.Context)
}

// Client is a running dApp session against one token and one NFT contract.
type Client struct {
	provider     domain.WalletProvider
	store        *state.Store
	loader       *service.Loader
	session      *service.Session
	reconciler   *service.Reconciler
	orchestrator *service.Orchestrator
	emitter      domain.EventEmitter
	onClose      func()
	log          zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a client. Nothing touches the chain until Connect or Start.
func New(opts Options) (*Client, error) {
	if opts.Token == nil || opts.NFT == nil {
		return nil, fmt.Errorf("token and NFT contracts are required")
	}

	log := opts.Logger
	store := state.NewStore(state.Options{
		EventLogCapacity: opts.EventLogCapacity,
		ExpectedChainID:  opts.ExpectedChainID,
	})
	loader := service.NewLoader(opts.Token, opts.NFT, store, opts.Metrics, log)

	reconciler, err := service.NewReconciler(opts.Token, opts.NFT, store, service.ReconcilerConfig{
		Emitter:      opts.Emitter,
		URICacheSize: opts.URICacheSize,
		Metrics:      opts.Metrics,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	return &Client{
		provider:     opts.Provider,
		store:        store,
		loader:       loader,
		session:      service.NewSession(opts.Provider, store, loader, opts.Metrics, log),
		reconciler:   reconciler,
		orchestrator: service.NewOrchestrator(opts.Provider, opts.Token, opts.NFT, store, loader, opts.Metrics, log),
		emitter:      opts.Emitter,
		onClose:      opts.OnClose,
		log:          log.With().Str("component", "client").Logger(),
	}, nil
}

// Store exposes the shared state, e.g. for a feed server.
func (c *Client) Store() *state.Store { return c.store }

// Snapshot returns a copy of the current state.
func (c *Client) Snapshot() state.View { return c.store.Snapshot() }

// Connect requests wallet access and loads contract data once.
func (c *Client) Connect(ctx context.Context) (domain.Identity, error) {
	return c.session.Connect(ctx)
}

// Disconnect clears the account. Event subscriptions stay attached.
func (c *Client) Disconnect() { c.session.Disconnect() }

// Start connects, subscribes to contract events and begins following
// account and chain switches.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("client is already running")
	}

	if _, err := c.session.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect wallet: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := c.reconciler.Subscribe(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to contract events: %w", err)
	}

	if w, ok := c.provider.(watcher); ok {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			w.Watch(runCtx)
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.session.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error().Err(err).Msg("Wallet notifications stopped")
		}
	}()

	c.cancel = cancel
	c.running = true
	c.log.Info().Msg("Client started")
	return nil
}

// Stop detaches all listeners and closes the event sinks. It is safe to
// call on a client that was never started.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.running = false
		c.cancel()
		c.reconciler.Unsubscribe()
		c.wg.Wait()
	}

	var err error
	if c.emitter != nil {
		if cerr := c.emitter.Close(); cerr != nil {
			err = fmt.Errorf("failed to close event sinks: %w", cerr)
		}
		c.emitter = nil
	}
	if c.onClose != nil {
		c.onClose()
		c.onClose = nil
	}

	c.log.Info().Msg("Client stopped")
	return err
}

// Running reports whether Start has succeeded and Stop has not been called.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Run starts the client and blocks until ctx is done or SIGINT/SIGTERM
// arrives, then stops it. Sinks are released even when Start fails.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		_ = c.Stop()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
	case sig := <-sigChan:
		c.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}
	return c.Stop()
}

// SetTransferForm records pending transfer inputs.
func (c *Client) SetTransferForm(recipient, amount string) {
	c.store.SetForm(domain.TransferForm{Recipient: recipient, Amount: amount})
}

// SubmitTransfer transfers using the recorded form inputs.
func (c *Client) SubmitTransfer(ctx context.Context) (domain.TxResult, error) {
	return c.orchestrator.SubmitTransferForm(ctx)
}

// TransferTokens sends amount (decimal, 18 places) to recipient.
func (c *Client) TransferTokens(ctx context.Context, recipient, amount string) (domain.TxResult, error) {
	return c.orchestrator.TransferTokens(ctx, recipient, amount)
}

// MintNFT approves the fee if needed and mints one token.
func (c *Client) MintNFT(ctx context.Context) (domain.MintResult, error) {
	return c.orchestrator.MintNFT(ctx)
}

// OwnerOf reads the current owner of tokenID.
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	return c.orchestrator.OwnerOf(ctx, tokenID)
}
