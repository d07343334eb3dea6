package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionTransition("connected")
	m.BatchLoaded("token", true)
	m.EventAccepted("nft_mint")
	m.EventDuplicate("nft_mint")
	m.EnrichmentFailed()
	m.Transaction("mint", false)
	m.EmitFailed("kafka")
	m.FeedClientConnected()
	m.FeedClientDisconnected()
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventAccepted("nft_mint")
	m.EventDuplicate("nft_mint")
	m.EventDuplicate("nft_mint")
	m.BatchLoaded("nft", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsAccepted.WithLabelValues("nft_mint")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsDuplicate.WithLabelValues("nft_mint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("nft", "error")))
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Transaction("transfer", true)

	srv := httptest.NewServer(NewServer(":0", reg, zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `dappsync_transactions_total{op="transfer",result="ok"} 1`)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
