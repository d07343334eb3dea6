package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
)

// DataLoader reloads contract state for an account.
type DataLoader interface {
	Load(ctx context.Context, account common.Address)
	RefreshBalance(ctx context.Context, account common.Address)
}

// Session tracks the wallet connection and reacts to provider notifications.
type Session struct {
	provider domain.WalletProvider
	store    *state.Store
	loader   DataLoader
	metrics  *metrics.Metrics
	log      zerolog.Logger

	// mu serializes identity changes; reloads run outside it.
	mu sync.Mutex
}

// NewSession creates a Session. provider may be nil, in which case Connect
// fails with domain.ErrProviderUnavailable.
func NewSession(provider domain.WalletProvider, store *state.Store, loader DataLoader, m *metrics.Metrics, log zerolog.Logger) *Session {
	return &Session{
		provider: provider,
		store:    store,
		loader:   loader,
		metrics:  m,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// State returns the current session status.
func (s *Session) State() domain.SessionStatus {
	return s.store.Status()
}

// Connect requests account access and loads contract data for the selected
// account. A failed connect leaves the session Disconnected.
func (s *Session) Connect(ctx context.Context) (domain.Identity, error) {
	if s.provider == nil {
		return domain.Identity{}, domain.ErrProviderUnavailable
	}

	s.mu.Lock()
	s.store.BeginConnect()
	s.metrics.SessionTransition(string(domain.StatusConnecting))

	id, err := s.requestIdentity(ctx)
	if err != nil {
		s.store.Disconnect()
		s.metrics.SessionTransition(string(domain.StatusDisconnected))
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Failed to connect wallet")
		return domain.Identity{}, err
	}

	sessionID := s.store.Connect(id)
	s.metrics.SessionTransition(string(domain.StatusConnected))
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", sessionID).
		Str("account", id.Account.Hex()).
		Str("network", id.Network.Name).
		Msg("Wallet connected")
	s.checkNetwork()

	s.loader.Load(ctx, id.Account)
	return id, nil
}

func (s *Session) requestIdentity(ctx context.Context) (domain.Identity, error) {
	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return domain.Identity{}, fmt.Errorf("failed to request accounts: %w", domain.ErrUserRejected)
	}

	network, err := s.provider.Network(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to read network: %w", err)
	}
	return domain.Identity{Account: accounts[0], Network: network}, nil
}

// Disconnect drops the session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *Session) disconnectLocked() {
	if s.store.Status() == domain.StatusDisconnected {
		return
	}
	s.store.Disconnect()
	s.metrics.SessionTransition(string(domain.StatusDisconnected))
	s.log.Info().Msg("Wallet disconnected")
}

// OnAccountsChanged handles an accountsChanged notification. An empty list
// always disconnects. A different first account is resolved through the
// provider's signer and reloaded; the same account is a no-op.
func (s *Session) OnAccountsChanged(ctx context.Context, accounts []common.Address) {
	s.mu.Lock()
	if len(accounts) == 0 {
		s.disconnectLocked()
		s.mu.Unlock()
		return
	}
	if s.store.Status() != domain.StatusConnected {
		s.mu.Unlock()
		s.log.Debug().Msg("Ignoring account change while not connected")
		return
	}
	current, _ := s.store.Account()
	if accounts[0] == current {
		s.mu.Unlock()
		return
	}

	signer, err := s.provider.Signer(ctx)
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Failed to resolve new account")
		return
	}
	account := signer.Address()
	if account == current {
		s.mu.Unlock()
		return
	}
	s.store.SetAccount(account)
	s.metrics.SessionTransition(string(domain.StatusConnected))
	s.mu.Unlock()

	s.log.Info().Str("account", account.Hex()).Msg("Account changed")
	s.loader.Load(ctx, account)
}

// OnChainChanged re-reads the network identity and reloads data when an
// account is set.
func (s *Session) OnChainChanged(ctx context.Context) {
	s.mu.Lock()
	network, err := s.provider.Network(ctx)
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Failed to read network after chain change")
		return
	}
	s.store.SetNetwork(network)
	account, ok := s.store.Account()
	s.mu.Unlock()

	chainID := ""
	if network.ChainID != nil {
		chainID = network.ChainID.String()
	}
	s.log.Info().Str("network", network.Name).Str("chain_id", chainID).Msg("Chain changed")
	s.checkNetwork()

	if ok {
		s.loader.Load(ctx, account)
	}
}

func (s *Session) checkNetwork() {
	if s.store.WrongNetwork() {
		s.log.Warn().Str("network", s.store.Network().Name).Msg("Connected to an unexpected network")
	}
}

// Run dispatches provider notifications to the handlers until ctx is done
// or a subscription fails.
func (s *Session) Run(ctx context.Context) error {
	if s.provider == nil {
		return domain.ErrProviderUnavailable
	}

	accountsCh := make(chan []common.Address, 16)
	chainCh := make(chan struct{}, 16)

	accountsSub := s.provider.SubscribeAccountsChanged(accountsCh)
	defer accountsSub.Unsubscribe()
	chainSub := s.provider.SubscribeChainChanged(chainCh)
	defer chainSub.Unsubscribe()

	for {
		select {
		case accounts := <-accountsCh:
			s.OnAccountsChanged(ctx, accounts)
		case <-chainCh:
			s.OnChainChanged(ctx)
		case err := <-accountsSub.Err():
			if err != nil {
				return fmt.Errorf("accounts subscription failed: %w", err)
			}
			return nil
		case err := <-chainSub.Err():
			if err != nil {
				return fmt.Errorf("chain subscription failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
