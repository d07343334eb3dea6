package service

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/sim"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
)

var (
	alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	chain        *sim.Chain
	store        *state.Store
	loader       *Loader
	session      *Session
	reconciler   *Reconciler
	orchestrator *Orchestrator
	emitter      *recordingEmitter
}

func newHarness(t *testing.T, capacity int) *harness {
	t.Helper()

	chain := sim.New(sim.DefaultOptions())
	store := state.NewStore(state.Options{EventLogCapacity: capacity, ExpectedChainID: big.NewInt(31337)})
	log := zerolog.Nop()
	emitter := &recordingEmitter{}

	loader := NewLoader(chain.Token(), chain.NFT(), store, nil, log)
	reconciler, err := NewReconciler(chain.Token(), chain.NFT(), store, ReconcilerConfig{Emitter: emitter}, log)
	require.NoError(t, err)
	t.Cleanup(reconciler.Unsubscribe)

	return &harness{
		chain:        chain,
		store:        store,
		loader:       loader,
		session:      NewSession(chain.Wallet(), store, loader, nil, log),
		reconciler:   reconciler,
		orchestrator: NewOrchestrator(chain.Wallet(), chain.Token(), chain.NFT(), store, loader, nil, log),
		emitter:      emitter,
	}
}

func (h *harness) connect(t *testing.T) domain.Identity {
	t.Helper()
	id, err := h.session.Connect(context.Background())
	require.NoError(t, err)
	h.chain.ResetCalls()
	return id
}

func (h *harness) subscribe(t *testing.T) {
	t.Helper()
	require.NoError(t, h.reconciler.Subscribe(context.Background()))
}

func (h *harness) waitEvents(t *testing.T, n int) []domain.EventRecord {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.store.Events()) == n }, waitFor, tick)
	return h.store.Events()
}

type recordingEmitter struct {
	mu      sync.Mutex
	records []domain.EventRecord
}

func (e *recordingEmitter) Emit(ctx context.Context, record domain.EventRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, record)
	return nil
}

func (e *recordingEmitter) Close() error { return nil }

func (e *recordingEmitter) Records() []domain.EventRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.EventRecord(nil), e.records...)
}

func logIndex(i uint) *uint { return &i }
