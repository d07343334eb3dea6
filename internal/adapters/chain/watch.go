package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// watchDecoded subscribes to eventName logs and forwards each decoded log to
// sink. Logs that fail to decode are skipped.
func watchDecoded[T any](ctx context.Context, b *boundContract, eventName string, sink chan<- *T, decode func(types.Log) (*T, error)) (event.Subscription, error) {
	logs := make(chan types.Log, 64)
	sub, err := b.watchLogs(ctx, eventName, logs)
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				if l.Removed {
					continue
				}
				ev, err := decode(l)
				if err != nil {
					b.log.Warn().Err(err).Str("event", eventName).Str("tx", l.TxHash.Hex()).Msg("Skipping undecodable log")
					continue
				}
				select {
				case sink <- ev:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// watchLogs opens a log subscription, falling back to polling eth_getLogs
// when the transport has no notification support (plain HTTP).
func (b *boundContract) watchLogs(ctx context.Context, eventName string, sink chan<- types.Log) (event.Subscription, error) {
	ev, ok := b.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("event %s not in ABI", eventName)
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{b.address},
		Topics:    [][]common.Hash{{ev.ID}},
	}

	sub, err := b.client.SubscribeFilterLogs(ctx, query, sink)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventName, mapError(err))
	}

	head, err := b.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", mapError(err))
	}
	b.log.Debug().Str("event", eventName).Uint64("from", head+1).Msg("Polling logs over HTTP")
	return b.pollLogs(query, head+1, sink), nil
}

// pollLogs delivers logs from block from onwards. Poll failures are logged
// and the same range is asked for again on the next tick.
func (b *boundContract) pollLogs(query ethereum.FilterQuery, from uint64, sink chan<- types.Log) event.Subscription {
	interval := b.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-quit
			cancel()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			head, err := b.client.BlockNumber(ctx)
			if err != nil {
				b.log.Debug().Err(err).Msg("Failed to poll block number")
				continue
			}
			if head < from {
				continue
			}

			q := query
			q.FromBlock = new(big.Int).SetUint64(from)
			q.ToBlock = new(big.Int).SetUint64(head)
			logs, err := b.client.FilterLogs(ctx, q)
			if err != nil {
				b.log.Debug().Err(err).Msg("Failed to poll logs")
				continue
			}
			for _, l := range logs {
				select {
				case sink <- l:
				case <-quit:
					return nil
				}
			}
			from = head + 1
		}
	})
}
