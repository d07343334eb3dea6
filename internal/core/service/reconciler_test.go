package service

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/sim"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

func tokenLog(txHash string, index uint, amount int64) *domain.TokensTransferredLog {
	return &domain.TokensTransferredLog{
		From:   alice,
		To:     bob,
		Amount: units.Ether(amount),
		Meta:   domain.LogMeta{TxHash: txHash, Index: logIndex(index)},
	}
}

func TestDuplicateNotificationsAppendOnce(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 50))
	h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 50))
	h.chain.EmitTokensTransferred(tokenLog("0x02", 0, 1))

	events := h.waitEvents(t, 2)
	assert.Equal(t, domain.EventIdentity("token_0x02_0"), events[0].ID)
	assert.Equal(t, domain.EventIdentity("token_0x01_0"), events[1].ID)

	transfer, ok := events[1].Event.(domain.TokenTransfer)
	require.True(t, ok)
	assert.Equal(t, "50", transfer.Amount)
	assert.Equal(t, alice, transfer.From)
	require.Eventually(t, func() bool { return len(h.emitter.Records()) == 2 }, waitFor, tick)
}

func TestMintIdentityAndDuplicate(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	mint := &domain.NFTMintedLog{Owner: alice, TokenID: big.NewInt(7), Meta: domain.LogMeta{TxHash: "0xabc"}}
	h.chain.EmitNFTMinted(mint)
	events := h.waitEvents(t, 1)
	assert.Equal(t, domain.EventIdentity("mint_0xabc_7"), events[0].ID)

	h.chain.EmitNFTMinted(mint)
	h.chain.EmitNFTMinted(&domain.NFTMintedLog{Owner: alice, TokenID: big.NewInt(8), Meta: domain.LogMeta{TxHash: "0xabd"}})
	events = h.waitEvents(t, 2)
	assert.Equal(t, domain.EventIdentity("mint_0xabd_8"), events[0].ID)
	assert.Equal(t, domain.EventIdentity("mint_0xabc_7"), events[1].ID)
}

func TestMintEnrichmentFailureKeepsEvent(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	// token 7 was never minted on the simulated chain, so tokenURI fails.
	h.chain.EmitNFTMinted(&domain.NFTMintedLog{Owner: alice, TokenID: big.NewInt(7), Meta: domain.LogMeta{TxHash: "0xabc"}})
	events := h.waitEvents(t, 1)

	mint, ok := events[0].Event.(domain.NFTMint)
	require.True(t, ok)
	assert.Equal(t, "7", mint.TokenID)
	assert.Empty(t, mint.TokenURI)

	require.Eventually(t, func() bool { return len(h.emitter.Records()) == 1 }, waitFor, tick)
	assert.Equal(t, domain.LastMint{TokenID: "7"}, h.store.LastMint())
	assert.Equal(t, 1, h.chain.Calls(sim.CallTokenURI))
}

func TestMintEnrichmentPatchesURI(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	h.chain.SetAllowance(alice, sim.DefaultNFTAddress, units.Ether(10))
	_, err := h.chain.NFT().Mint(context.Background(), sim.NewSigner(h.chain, alice))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.store.LastMint().TokenURI == "ipfs://metadata/1"
	}, waitFor, tick)

	events := h.store.Events()
	require.Len(t, events, 1)
	mint := events[0].Event.(domain.NFTMint)
	assert.Equal(t, "1", mint.TokenID)
	assert.Equal(t, "ipfs://metadata/1", mint.TokenURI)

	require.Eventually(t, func() bool { return len(h.emitter.Records()) == 1 }, waitFor, tick)
	emitted := h.emitter.Records()[0].Event.(domain.NFTMint)
	assert.Equal(t, "ipfs://metadata/1", emitted.TokenURI)
}

func TestNFTTransferIdentity(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	h.chain.EmitNFTTransferred(&domain.NFTTransferredLog{From: alice, To: bob, TokenID: big.NewInt(3), Meta: domain.LogMeta{TxHash: "0xdef"}})
	events := h.waitEvents(t, 1)
	assert.Equal(t, domain.EventIdentity("transfer_0xdef_3"), events[0].ID)
	assert.Equal(t, domain.KindNFTTransfer, events[0].Event.Kind())
}

func TestMissingIndexUsesLocalID(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	for i := 0; i < 2; i++ {
		h.chain.EmitTokensTransferred(&domain.TokensTransferredLog{From: alice, To: bob, Amount: big.NewInt(1)})
	}
	events := h.waitEvents(t, 2)
	assert.Equal(t, domain.EventIdentity("token__local-2"), events[0].ID)
	assert.Equal(t, domain.EventIdentity("token__local-1"), events[1].ID)
}

func TestEventLogIsBounded(t *testing.T) {
	h := newHarness(t, 3)
	h.subscribe(t)

	for i := uint(0); i < 5; i++ {
		h.chain.EmitTokensTransferred(tokenLog("0x01", i, 1))
	}
	require.Eventually(t, func() bool { return len(h.emitter.Records()) == 5 }, waitFor, tick)

	events := h.store.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventIdentity("token_0x01_4"), events[0].ID)
	assert.Equal(t, domain.EventIdentity("token_0x01_2"), events[2].ID)
}

func TestResubscribeClearsSeenSet(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)

	h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 1))
	h.waitEvents(t, 1)

	// Subscribe while subscribed resubscribes.
	h.subscribe(t)
	assert.True(t, h.reconciler.Subscribed())

	h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 1))
	h.waitEvents(t, 2)
}

func TestUnsubscribeDetachesListeners(t *testing.T) {
	h := newHarness(t, 0)
	h.subscribe(t)
	h.reconciler.Unsubscribe()
	h.reconciler.Unsubscribe()

	assert.False(t, h.reconciler.Subscribed())
	assert.Zero(t, h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 1)))
	assert.Zero(t, h.chain.EmitNFTMinted(&domain.NFTMintedLog{TokenID: big.NewInt(1)}))
	assert.Zero(t, h.chain.EmitNFTTransferred(&domain.NFTTransferredLog{TokenID: big.NewInt(1)}))
	assert.Empty(t, h.store.Events())
}

func TestEventsUseInjectedClock(t *testing.T) {
	h := newHarness(t, 0)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r, err := NewReconciler(h.chain.Token(), h.chain.NFT(), h.store, ReconcilerConfig{Now: func() time.Time { return fixed }}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(context.Background()))
	defer r.Unsubscribe()

	h.chain.EmitTokensTransferred(tokenLog("0x09", 1, 1))
	events := h.waitEvents(t, 1)
	assert.Equal(t, fixed, events[0].Event.ObservedAt())
}

type stallingEmitter struct {
	release chan struct{}
	calls   atomic.Int32
}

func (e *stallingEmitter) Emit(ctx context.Context, record domain.EventRecord) error {
	e.calls.Add(1)
	select {
	case <-e.release:
	case <-ctx.Done():
	}
	return nil
}

func (e *stallingEmitter) Close() error { return nil }

func TestStalledSinkDoesNotBlockLog(t *testing.T) {
	h := newHarness(t, 0)
	sink := &stallingEmitter{release: make(chan struct{})}
	r, err := NewReconciler(h.chain.Token(), h.chain.NFT(), h.store, ReconcilerConfig{Emitter: sink}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(context.Background()))
	defer r.Unsubscribe()
	defer close(sink.release)

	h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 1))
	h.chain.EmitTokensTransferred(tokenLog("0x02", 0, 1))

	events := h.waitEvents(t, 2)
	assert.Equal(t, domain.EventIdentity("token_0x02_0"), events[0].ID)
	require.Eventually(t, func() bool { return sink.calls.Load() == 1 }, waitFor, tick)
}

func TestFullSinkQueueKeepsLogging(t *testing.T) {
	h := newHarness(t, 0)
	sink := &stallingEmitter{release: make(chan struct{})}
	r, err := NewReconciler(h.chain.Token(), h.chain.NFT(), h.store, ReconcilerConfig{Emitter: sink, EmitQueueSize: 1}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(context.Background()))
	defer r.Unsubscribe()
	defer close(sink.release)

	for _, tx := range []string{"0x01", "0x02", "0x03", "0x04"} {
		h.chain.EmitTokensTransferred(tokenLog(tx, 0, 1))
	}
	h.waitEvents(t, 4)
}

func TestUnsubscribeReleasesStalledSink(t *testing.T) {
	h := newHarness(t, 0)
	sink := &stallingEmitter{release: make(chan struct{})}
	r, err := NewReconciler(h.chain.Token(), h.chain.NFT(), h.store, ReconcilerConfig{Emitter: sink}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(context.Background()))

	h.chain.EmitTokensTransferred(tokenLog("0x01", 0, 1))
	require.Eventually(t, func() bool { return sink.calls.Load() == 1 }, waitFor, tick)

	done := make(chan struct{})
	go func() {
		r.Unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Unsubscribe blocked on a stalled sink")
	}
}
