package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
)

var mintRecord = domain.EventRecord{
	ID: domain.NewEventIdentity(domain.CategoryMint, "0xabc", "7"),
	Event: domain.NFTMint{
		Owner:     common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		TokenID:   "7",
		TokenURI:  "ipfs://metadata/7",
		TxHash:    "0xabc",
		Timestamp: time.Unix(1700000000, 0).UTC(),
	},
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaEmitter(t *testing.T) {
	w := &fakeWriter{}
	k := newKafkaEmitter(w, zerolog.Nop())

	require.NoError(t, k.Emit(context.Background(), mintRecord))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "mint_0xabc_7", string(w.msgs[0].Key))
	assert.Equal(t, "nft_mint", string(w.msgs[0].Headers[0].Value))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, "mint_0xabc_7", body["id"])
	assert.Equal(t, "nft_mint", body["type"])
	assert.Equal(t, "ipfs://metadata/7", body["data"].(map[string]interface{})["token_uri"])

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
	assert.Error(t, k.Emit(context.Background(), mintRecord))
	assert.NoError(t, k.Close())
}

func TestKafkaEmitterWriteError(t *testing.T) {
	k := newKafkaEmitter(&fakeWriter{err: errors.New("leader not available")}, zerolog.Nop())
	assert.ErrorContains(t, k.Emit(context.Background(), mintRecord), "leader not available")
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	p.channel = channel
	p.payload = message.([]byte)
	cmd.SetVal(1)
	return cmd
}

func (p *fakePublisher) Close() error { return nil }

func TestRedisEmitter(t *testing.T) {
	p := &fakePublisher{}
	r := newRedisEmitter(p, "dapp:events", zerolog.Nop())

	require.NoError(t, r.Emit(context.Background(), mintRecord))
	assert.Equal(t, "dapp:events", p.channel)
	assert.Contains(t, string(p.payload), `"id":"mint_0xabc_7"`)

	p.err = errors.New("connection refused")
	assert.ErrorContains(t, r.Emit(context.Background(), mintRecord), "connection refused")
}

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(zerolog.New(&buf))

	require.NoError(t, l.Emit(context.Background(), mintRecord))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "mint_0xabc_7", line["id"])
	assert.Equal(t, "7", line["token_id"])
	assert.Equal(t, "events", line["component"])
}

type failingEmitter struct{ calls int }

func (f *failingEmitter) Emit(ctx context.Context, record domain.EventRecord) error {
	f.calls++
	return errors.New("sink down")
}

func (f *failingEmitter) Close() error { return errors.New("close failed") }

func TestMultiContinuesPastFailures(t *testing.T) {
	failing := &failingEmitter{}
	w := &fakeWriter{}
	m := NewMulti(metrics.New(prometheus.NewRegistry()))
	m.Add("broken", failing)
	m.Add("kafka", newKafkaEmitter(w, zerolog.Nop()))
	assert.Equal(t, 2, m.Len())

	err := m.Emit(context.Background(), mintRecord)
	assert.ErrorContains(t, err, "broken: sink down")
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, w.msgs, 1)

	assert.ErrorContains(t, m.Close(), "failed to close broken")
	assert.True(t, w.closed)
}

func TestEmptyMulti(t *testing.T) {
	m := NewMulti(nil)
	assert.NoError(t, m.Emit(context.Background(), mintRecord))
	assert.NoError(t, m.Close())
}
