// Package state owns the session-scope view state shared by the session,
// loader, reconciler and orchestrator.
//
// The store's lock only protects memory. Components do not get transactional
// isolation from each other: concurrent writers to the same field resolve as
// last-writer-wins.
package state

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
)

// Change names the part of the store that was mutated.
type Change string

const (
	ChangeSession  Change = "session"
	ChangeToken    Change = "token"
	ChangeNFT      Change = "nft"
	ChangeEvents   Change = "events"
	ChangeForm     Change = "form"
	ChangeLastMint Change = "last_mint"
)

// Options configures a Store.
type Options struct {
	EventLogCapacity int
	// ExpectedChainID marks any other network as wrong. Nil disables the check.
	ExpectedChainID *big.Int
}

// View is an immutable copy of the store.
type View struct {
	SessionID    string               `json:"session_id,omitempty"`
	Status       domain.SessionStatus `json:"status"`
	Account      *common.Address      `json:"account,omitempty"`
	Network      domain.NetworkInfo   `json:"network"`
	WrongNetwork bool                 `json:"wrong_network"`
	Token        domain.TokenSnapshot `json:"token"`
	NFT          domain.NFTSnapshot   `json:"nft"`
	LastMint     domain.LastMint      `json:"last_mint"`
	Form         domain.TransferForm  `json:"form"`
	Events       []domain.EventRecord `json:"events"`
}

// Store holds all state for one client.
type Store struct {
	mu       sync.RWMutex
	expected *big.Int

	sessionID string
	status    domain.SessionStatus
	account   common.Address
	network   domain.NetworkInfo
	token     domain.TokenSnapshot
	nft       domain.NFTSnapshot
	lastMint  domain.LastMint
	form      domain.TransferForm
	events    *EventLog

	subMu  sync.Mutex
	subSeq int
	subs   map[int]chan<- Change
}

// NewStore creates a disconnected store.
func NewStore(opts Options) *Store {
	return &Store{
		expected: opts.ExpectedChainID,
		status:   domain.StatusDisconnected,
		events:   NewEventLog(opts.EventLogCapacity),
		subs:     make(map[int]chan<- Change),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		SessionID:    s.sessionID,
		Status:       s.status,
		Network:      s.network,
		WrongNetwork: s.wrongNetworkLocked(),
		Token:        s.token,
		NFT:          s.nft,
		LastMint:     s.lastMint,
		Form:         s.form,
		Events:       s.events.Records(),
	}
	if s.account != (common.Address{}) {
		acct := s.account
		v.Account = &acct
	}
	return v
}

// Status returns the session status.
func (s *Store) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Account returns the current account and whether one is set.
func (s *Store) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.account != (common.Address{})
}

// Network returns the current network identity.
func (s *Store) Network() domain.NetworkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

// WrongNetwork reports whether the current chain differs from the expected one.
func (s *Store) WrongNetwork() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wrongNetworkLocked()
}

func (s *Store) wrongNetworkLocked() bool {
	if s.expected == nil || s.network.ChainID == nil {
		return false
	}
	return s.network.ChainID.Cmp(s.expected) != 0
}

// BeginConnect moves the session to Connecting.
func (s *Store) BeginConnect() {
	s.mu.Lock()
	s.status = domain.StatusConnecting
	s.mu.Unlock()
	s.notify(ChangeSession)
}

// Connect starts a new session for id.
func (s *Store) Connect(id domain.Identity) string {
	s.mu.Lock()
	s.sessionID = uuid.NewString()
	s.status = domain.StatusConnected
	s.account = id.Account
	s.network = id.Network
	sessionID := s.sessionID
	s.mu.Unlock()
	s.notify(ChangeSession)
	return sessionID
}

// Disconnect discards all session entities. The network identity and the
// event log are not session-scoped and survive.
func (s *Store) Disconnect() {
	s.mu.Lock()
	s.sessionID = ""
	s.status = domain.StatusDisconnected
	s.account = common.Address{}
	s.token = domain.TokenSnapshot{}
	s.nft = domain.NFTSnapshot{}
	s.lastMint = domain.LastMint{}
	s.form = domain.TransferForm{}
	s.mu.Unlock()
	s.notify(ChangeSession)
}

// SetAccount replaces the current account.
func (s *Store) SetAccount(acct common.Address) {
	s.mu.Lock()
	s.account = acct
	s.mu.Unlock()
	s.notify(ChangeSession)
}

// SetNetwork replaces the network identity.
func (s *Store) SetNetwork(n domain.NetworkInfo) {
	s.mu.Lock()
	s.network = n
	s.mu.Unlock()
	s.notify(ChangeSession)
}

// ApplyToken replaces the token snapshot as a unit.
func (s *Store) ApplyToken(t domain.TokenSnapshot) {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
	s.notify(ChangeToken)
}

// ApplyNFT replaces the NFT snapshot as a unit.
func (s *Store) ApplyNFT(n domain.NFTSnapshot) {
	s.mu.Lock()
	s.nft = n
	s.mu.Unlock()
	s.notify(ChangeNFT)
}

// SetBalance replaces only the token balance.
func (s *Store) SetBalance(balance string) {
	s.mu.Lock()
	s.token.Balance = balance
	s.mu.Unlock()
	s.notify(ChangeToken)
}

// Token returns the token snapshot.
func (s *Store) Token() domain.TokenSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// NFT returns the NFT snapshot.
func (s *Store) NFT() domain.NFTSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nft
}

// SetForm replaces the transfer inputs.
func (s *Store) SetForm(f domain.TransferForm) {
	s.mu.Lock()
	s.form = f
	s.mu.Unlock()
	s.notify(ChangeForm)
}

// ClearForm empties the transfer inputs.
func (s *Store) ClearForm() {
	s.SetForm(domain.TransferForm{})
}

// Form returns the transfer inputs.
func (s *Store) Form() domain.TransferForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// RecordMint sets the last minted token and clears its URI.
func (s *Store) RecordMint(tokenID string) {
	s.mu.Lock()
	s.lastMint = domain.LastMint{TokenID: tokenID}
	s.mu.Unlock()
	s.notify(ChangeLastMint)
}

// SetMintURI sets the URI of the last mint if it is still tokenID.
func (s *Store) SetMintURI(tokenID, uri string) {
	s.mu.Lock()
	if s.lastMint.TokenID != tokenID {
		s.mu.Unlock()
		return
	}
	s.lastMint.TokenURI = uri
	s.mu.Unlock()
	s.notify(ChangeLastMint)
}

// LastMint returns the last observed mint.
func (s *Store) LastMint() domain.LastMint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMint
}

// PrependEvent inserts r at the head of the event log.
func (s *Store) PrependEvent(r domain.EventRecord) {
	s.mu.Lock()
	s.events.Prepend(r)
	s.mu.Unlock()
	s.notify(ChangeEvents)
}

// PatchMintURI fills in the URI of a logged mint event.
func (s *Store) PatchMintURI(id domain.EventIdentity, uri string) bool {
	s.mu.Lock()
	ok := s.events.Update(id, func(e domain.DomainEvent) domain.DomainEvent {
		if m, isMint := e.(domain.NFTMint); isMint {
			m.TokenURI = uri
			return m
		}
		return e
	})
	s.mu.Unlock()
	if ok {
		s.notify(ChangeEvents)
	}
	return ok
}

// Events returns the event log, most recent first.
func (s *Store) Events() []domain.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Records()
}

// SubscribeChanges registers ch for change notifications. Sends never block:
// a full channel drops the notification, so receivers should re-read the
// snapshot rather than count changes.
func (s *Store) SubscribeChanges(ch chan<- Change) event.Subscription {
	s.subMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = ch
	s.subMu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
		return nil
	})
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
