package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

// Loader reads token and NFT state for an account. Each batch is applied to
// the store only when every call in it succeeded; a failed batch leaves the
// previously displayed values in place.
type Loader struct {
	token   domain.TokenContract
	nft     domain.NFTContract
	store   *state.Store
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewLoader creates a Loader.
func NewLoader(token domain.TokenContract, nft domain.NFTContract, store *state.Store, m *metrics.Metrics, log zerolog.Logger) *Loader {
	return &Loader{
		token:   token,
		nft:     nft,
		store:   store,
		metrics: m,
		log:     log.With().Str("component", "loader").Logger(),
	}
}

// Load runs the token and NFT batches in parallel and waits for both.
// Failures are logged, never returned.
func (l *Loader) Load(ctx context.Context, account common.Address) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.loadToken(ctx, account)
	}()
	go func() {
		defer wg.Done()
		l.loadNFT(ctx, account)
	}()
	wg.Wait()
}

// RefreshBalance re-reads only the token balance.
func (l *Loader) RefreshBalance(ctx context.Context, account common.Address) {
	balance, err := l.token.BalanceOf(ctx, account)
	if err != nil {
		l.readFailed("balance", &domain.ReadError{Op: "balanceOf", Err: err})
		return
	}
	l.store.SetBalance(units.FormatUnits(balance))
	l.metrics.BatchLoaded("balance", true)
}

func (l *Loader) loadToken(ctx context.Context, account common.Address) {
	var (
		name, symbol string
		balance      *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		name, err = l.token.Name(gctx)
		return wrapRead("token.name", err)
	})
	g.Go(func() (err error) {
		symbol, err = l.token.Symbol(gctx)
		return wrapRead("token.symbol", err)
	})
	g.Go(func() (err error) {
		balance, err = l.token.BalanceOf(gctx, account)
		return wrapRead("token.balanceOf", err)
	})
	if err := g.Wait(); err != nil {
		l.readFailed("token", err)
		return
	}

	l.store.ApplyToken(domain.TokenSnapshot{
		Name:    name,
		Symbol:  symbol,
		Balance: units.FormatUnits(balance),
	})
	l.metrics.BatchLoaded("token", true)
}

func (l *Loader) loadNFT(ctx context.Context, account common.Address) {
	var (
		name, symbol string
		fee          *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		name, err = l.nft.Name(gctx)
		return wrapRead("nft.name", err)
	})
	g.Go(func() (err error) {
		symbol, err = l.nft.Symbol(gctx)
		return wrapRead("nft.symbol", err)
	})
	g.Go(func() (err error) {
		fee, err = l.nft.MintFee(gctx)
		return wrapRead("nft.mintFee", err)
	})
	if err := g.Wait(); err != nil {
		l.readFailed("nft", err)
		return
	}

	l.store.ApplyNFT(domain.NFTSnapshot{
		Name:    name,
		Symbol:  symbol,
		MintFee: units.FormatUnits(fee),
	})
	l.metrics.BatchLoaded("nft", true)
}

func (l *Loader) readFailed(batch string, err error) {
	l.metrics.BatchLoaded(batch, false)
	l.log.Error().Err(err).Str("batch", batch).Msg("Failed to load contract data, keeping previous values")
}

func wrapRead(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.ReadError{Op: op, Err: err}
}
