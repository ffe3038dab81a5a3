package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Event("push", "NewMessage")
		m.Change("chats", "append")
		m.Error("PARSE")
		m.SetPending(3)
		m.SetConnected(true)
		m.SetQueueDepth(1)
		m.ObserveFetch(time.Second)
		m.ObserveCommit(time.Millisecond)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Event("push", "NewMessage")
	m.Event("push", "NewMessage")
	m.Event("local", "SendDirect")
	m.Change("groups", "supersede")
	m.Error("TRANSPORT")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("push", "NewMessage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("local", "SendDirect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes.WithLabelValues("groups", "supersede")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("TRANSPORT")))
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()

	m.SetPending(4)
	m.SetConnected(true)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))

	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connected))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Event("snapshot", "Snapshot")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `chatsync_events_total{source="snapshot",tag="Snapshot"} 1`))
}
