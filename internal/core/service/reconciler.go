package service

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

const (
	DefaultURICacheSize = 256
	// DefaultEmitQueueSize bounds the events waiting for the sink.
	DefaultEmitQueueSize = 256
	streamBuffer         = 64
)

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// Emitter receives every accepted event. Optional.
	Emitter domain.EventEmitter
	// URICacheSize bounds the tokenURI cache. Zero means DefaultURICacheSize.
	URICacheSize int
	// EmitQueueSize bounds the sink hand-off queue. When it is full, new
	// events still reach the log but are not forwarded. Zero means
	// DefaultEmitQueueSize.
	EmitQueueSize int
	// Now stamps normalized events. Defaults to time.Now.
	Now     func() time.Time
	Metrics *metrics.Metrics
}

// Reconciler turns the three contract event streams into a deduplicated,
// bounded event log in the store.
type Reconciler struct {
	token   domain.TokenContract
	nft     domain.NFTContract
	store   *state.Store
	emitter domain.EventEmitter
	queue   int
	uris    *lru.Cache[string, string]
	now     func() time.Time
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu  sync.Mutex
	sub *subscription
}

// subscription holds everything scoped to one subscribe/unsubscribe cycle,
// including the seen-identity set.
type subscription struct {
	mu   sync.Mutex
	seen map[domain.EventIdentity]struct{}
	seq  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	subs   []event.Subscription
	wg     sync.WaitGroup

	// outbox decouples sink delivery from the stream goroutines.
	outbox  chan domain.EventRecord
	drained sync.WaitGroup
}

// markSeen records id and reports whether it was new.
func (s *subscription) markSeen(id domain.EventIdentity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *subscription) localID() string {
	return fmt.Sprintf("local-%d", s.seq.Add(1))
}

// localIDIfNil returns the log index, or a local id when the provider did
// not report one.
func (s *subscription) localIDIfNil(index *uint) string {
	if index == nil {
		return s.localID()
	}
	return strconv.FormatUint(uint64(*index), 10)
}

// NewReconciler creates a Reconciler.
func NewReconciler(token domain.TokenContract, nft domain.NFTContract, store *state.Store, cfg ReconcilerConfig, log zerolog.Logger) (*Reconciler, error) {
	size := cfg.URICacheSize
	if size <= 0 {
		size = DefaultURICacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create token URI cache: %w", err)
	}
	queue := cfg.EmitQueueSize
	if queue <= 0 {
		queue = DefaultEmitQueueSize
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		token:   token,
		nft:     nft,
		store:   store,
		emitter: cfg.Emitter,
		queue:   queue,
		uris:    cache,
		now:     now,
		metrics: cfg.Metrics,
		log:     log.With().Str("component", "reconciler").Logger(),
	}, nil
}

// Subscribed reports whether the event streams are attached.
func (r *Reconciler) Subscribed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub != nil
}

// Subscribe attaches to all three event streams. Calling it while already
// subscribed resubscribes, which also resets the seen-identity set.
func (r *Reconciler) Subscribe(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		seen:   make(map[domain.EventIdentity]struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	transfers := make(chan *domain.TokensTransferredLog, streamBuffer)
	mints := make(chan *domain.NFTMintedLog, streamBuffer)
	nftTransfers := make(chan *domain.NFTTransferredLog, streamBuffer)

	transferSub, err := r.token.WatchTokensTransferred(subCtx, transfers)
	if err != nil {
		sub.close()
		return fmt.Errorf("failed to watch TokensTransferred: %w", err)
	}
	sub.subs = append(sub.subs, transferSub)

	mintSub, err := r.nft.WatchNFTMinted(subCtx, mints)
	if err != nil {
		sub.close()
		return fmt.Errorf("failed to watch NFTMinted: %w", err)
	}
	sub.subs = append(sub.subs, mintSub)

	nftTransferSub, err := r.nft.WatchNFTTransferred(subCtx, nftTransfers)
	if err != nil {
		sub.close()
		return fmt.Errorf("failed to watch NFTTransferred: %w", err)
	}
	sub.subs = append(sub.subs, nftTransferSub)

	if r.emitter != nil {
		sub.outbox = make(chan domain.EventRecord, r.queue)
		sub.drained.Add(1)
		go r.drain(sub)
	}

	sub.wg.Add(3)
	go consume(sub, transfers, transferSub, r.log, func(l *domain.TokensTransferredLog) {
		r.handleTokenTransfer(sub, l)
	})
	go consume(sub, mints, mintSub, r.log, func(l *domain.NFTMintedLog) {
		r.handleMint(sub, l)
	})
	go consume(sub, nftTransfers, nftTransferSub, r.log, func(l *domain.NFTTransferredLog) {
		r.handleNFTTransfer(sub, l)
	})

	r.sub = sub
	r.log.Info().Msg("Subscribed to contract events")
	return nil
}

// Unsubscribe detaches all listeners and discards the seen-identity set.
// It waits for in-progress handlers to return.
func (r *Reconciler) Unsubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked()
}

func (r *Reconciler) unsubscribeLocked() {
	if r.sub == nil {
		return
	}
	r.sub.close()
	r.sub = nil
	r.log.Info().Msg("Unsubscribed from contract events")
}

func (s *subscription) close() {
	s.cancel()
	for _, es := range s.subs {
		es.Unsubscribe()
	}
	s.wg.Wait()
	if s.outbox != nil {
		close(s.outbox)
		s.drained.Wait()
	}
	s.mu.Lock()
	s.seen = nil
	s.mu.Unlock()
}

func consume[T any](sub *subscription, ch <-chan T, es event.Subscription, log zerolog.Logger, handle func(T)) {
	defer sub.wg.Done()
	for {
		select {
		case v := <-ch:
			handle(v)
		case err := <-es.Err():
			if err != nil {
				log.Error().Err(err).Msg("Event stream failed")
			}
			return
		case <-sub.ctx.Done():
			return
		}
	}
}

// accept deduplicates id and reports whether the notification is new.
func (r *Reconciler) accept(sub *subscription, id domain.EventIdentity, kind domain.EventKind) bool {
	if !sub.markSeen(id) {
		r.metrics.EventDuplicate(string(kind))
		r.log.Debug().Str("id", string(id)).Msg("Dropping duplicate event")
		return false
	}
	r.metrics.EventAccepted(string(kind))
	return true
}

func (r *Reconciler) handleTokenTransfer(sub *subscription, l *domain.TokensTransferredLog) {
	secondary := sub.localIDIfNil(l.Meta.Index)
	id := domain.NewEventIdentity(domain.CategoryToken, l.Meta.TxHash, secondary)
	if !r.accept(sub, id, domain.KindTokenTransfer) {
		return
	}

	record := domain.EventRecord{
		ID: id,
		Event: domain.TokenTransfer{
			From:      l.From,
			To:        l.To,
			Amount:    units.FormatUnits(l.Amount),
			TxHash:    l.Meta.TxHash,
			Timestamp: r.now(),
		},
	}
	r.store.PrependEvent(record)
	r.enqueue(sub, record)
}

func (r *Reconciler) handleNFTTransfer(sub *subscription, l *domain.NFTTransferredLog) {
	tokenID := tokenIDOrLocal(sub, l.TokenID)
	id := domain.NewEventIdentity(domain.CategoryTransfer, l.Meta.TxHash, tokenID)
	if !r.accept(sub, id, domain.KindNFTTransfer) {
		return
	}

	record := domain.EventRecord{
		ID: id,
		Event: domain.NFTTransfer{
			From:      l.From,
			To:        l.To,
			TokenID:   tokenIDString(l.TokenID),
			TxHash:    l.Meta.TxHash,
			Timestamp: r.now(),
		},
	}
	r.store.PrependEvent(record)
	r.enqueue(sub, record)
}

// handleMint inserts the mint immediately with an empty URI and fills the
// URI in once the enrichment fetch returns.
func (r *Reconciler) handleMint(sub *subscription, l *domain.NFTMintedLog) {
	id := domain.NewEventIdentity(domain.CategoryMint, l.Meta.TxHash, tokenIDOrLocal(sub, l.TokenID))
	if !r.accept(sub, id, domain.KindNFTMint) {
		return
	}

	tokenID := tokenIDString(l.TokenID)
	mint := domain.NFTMint{
		Owner:     l.Owner,
		TokenID:   tokenID,
		TxHash:    l.Meta.TxHash,
		Timestamp: r.now(),
	}
	r.store.PrependEvent(domain.EventRecord{ID: id, Event: mint})
	if l.TokenID == nil {
		r.enqueue(sub, domain.EventRecord{ID: id, Event: mint})
		return
	}
	r.store.RecordMint(tokenID)

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		uri, err := r.tokenURI(sub.ctx, l.TokenID)
		if err != nil {
			if sub.ctx.Err() != nil {
				return
			}
			r.metrics.EnrichmentFailed()
			r.log.Error().Err(&domain.EnrichmentError{TokenID: tokenID, Err: err}).Msg("Failed to enrich mint")
		} else {
			mint.TokenURI = uri
			r.store.PatchMintURI(id, uri)
			r.store.SetMintURI(tokenID, uri)
		}
		r.enqueue(sub, domain.EventRecord{ID: id, Event: mint})
	}()
}

func (r *Reconciler) tokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	key := tokenID.String()
	if uri, ok := r.uris.Get(key); ok {
		return uri, nil
	}
	uri, err := r.nft.TokenURI(ctx, tokenID)
	if err != nil {
		return "", err
	}
	r.uris.Add(key, uri)
	return uri, nil
}

// enqueue hands record to the sink goroutine without blocking the stream.
func (r *Reconciler) enqueue(sub *subscription, record domain.EventRecord) {
	if sub.outbox == nil {
		return
	}
	select {
	case sub.outbox <- record:
	default:
		r.metrics.EmitFailed("queue")
		r.log.Warn().Str("id", string(record.ID)).Msg("Sink queue full, event not forwarded")
	}
}

// drain forwards queued events until the subscription closes the outbox.
func (r *Reconciler) drain(sub *subscription) {
	defer sub.drained.Done()
	for record := range sub.outbox {
		if err := r.emitter.Emit(sub.ctx, record); err != nil {
			r.log.Error().Err(err).Str("id", string(record.ID)).Msg("Failed to forward event")
		}
	}
}

func tokenIDOrLocal(sub *subscription, tokenID *big.Int) string {
	if tokenID == nil {
		return sub.localID()
	}
	return tokenID.String()
}

func tokenIDString(tokenID *big.Int) string {
	if tokenID == nil {
		return ""
	}
	return tokenID.String()
}
