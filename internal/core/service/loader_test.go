package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/sim"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

var (
	loadedToken = domain.TokenSnapshot{Name: "XToken", Symbol: "XT", Balance: "1000"}
	loadedNFT   = domain.NFTSnapshot{Name: "XNonFunToken", Symbol: "XNFT", MintFee: "10"}
)

func TestLoadBatchFailureKeepsPreviousValues(t *testing.T) {
	tests := []struct {
		name      string
		fail      string
		wantToken domain.TokenSnapshot
		wantNFT   domain.NFTSnapshot
	}{
		{
			name:      "nft batch fails",
			fail:      sim.CallMintFee,
			wantToken: domain.TokenSnapshot{Name: "XToken", Symbol: "XT", Balance: "900"},
			wantNFT:   loadedNFT,
		},
		{
			name:      "token batch fails",
			fail:      sim.CallTokenSymbol,
			wantToken: loadedToken,
			wantNFT:   loadedNFT,
		},
		{
			name:      "balance fails",
			fail:      sim.CallBalanceOf,
			wantToken: loadedToken,
			wantNFT:   loadedNFT,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := sim.New(sim.DefaultOptions())
			store := state.NewStore(state.Options{})
			loader := NewLoader(chain.Token(), chain.NFT(), store, metrics.New(prometheus.NewRegistry()), zerolog.Nop())

			loader.Load(context.Background(), alice)
			assert.Equal(t, loadedToken, store.Token())
			assert.Equal(t, loadedNFT, store.NFT())

			chain.SetBalance(alice, units.Ether(900))
			chain.Fail(tt.fail, errors.New("execution reverted"))
			loader.Load(context.Background(), alice)

			assert.Equal(t, tt.wantToken, store.Token())
			assert.Equal(t, tt.wantNFT, store.NFT())
		})
	}
}

func TestLoadFirstFailureLeavesEmpty(t *testing.T) {
	chain := sim.New(sim.DefaultOptions())
	chain.Fail(sim.CallNFTName, errors.New("no code at address"))
	store := state.NewStore(state.Options{})

	NewLoader(chain.Token(), chain.NFT(), store, nil, zerolog.Nop()).Load(context.Background(), alice)

	assert.Equal(t, loadedToken, store.Token())
	assert.Equal(t, domain.NFTSnapshot{}, store.NFT())
}

func TestRefreshBalance(t *testing.T) {
	chain := sim.New(sim.DefaultOptions())
	store := state.NewStore(state.Options{})
	loader := NewLoader(chain.Token(), chain.NFT(), store, nil, zerolog.Nop())
	loader.Load(context.Background(), alice)
	chain.ResetCalls()

	chain.SetBalance(alice, units.Ether(42))
	loader.RefreshBalance(context.Background(), alice)
	assert.Equal(t, domain.TokenSnapshot{Name: "XToken", Symbol: "XT", Balance: "42"}, store.Token())
	assert.Equal(t, 1, chain.Calls(sim.CallBalanceOf))
	assert.Zero(t, chain.Calls(sim.CallTokenName))

	chain.Fail(sim.CallBalanceOf, errors.New("timeout"))
	chain.SetBalance(alice, units.Ether(1))
	loader.RefreshBalance(context.Background(), alice)
	assert.Equal(t, "42", store.Token().Balance)
}
