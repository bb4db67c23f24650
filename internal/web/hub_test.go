package web

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGauge struct {
	mu sync.Mutex
	v  float64
}

func (g *fakeGauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = v
}

func (g *fakeGauge) Add(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v += v
}

func (g *fakeGauge) value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.v
}

func TestHub_StartStopIdempotent(t *testing.T) {
	gauge := &fakeGauge{v: 3}
	h := NewHub(gauge)

	h.Start()
	h.Start()
	h.Stop()
	h.Stop()

	assert.Equal(t, 0, h.Clients())
	assert.Equal(t, 0.0, gauge.value())
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	h := NewHub(nil)

	// not started, so nothing drains the queue
	for i := 0; i < cap(h.broadcastChannel)+10; i++ {
		h.Publish(PredictionEvent{Label: "Basilar-type aura"})
	}
	assert.Len(t, h.broadcastChannel, cap(h.broadcastChannel))

	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	if assert.NotNil(t, h.last) {
		assert.Equal(t, "Basilar-type aura", h.last.Label)
	}
}

func TestHub_DropsStalledClient(t *testing.T) {
	gauge := &fakeGauge{}
	h := NewHub(gauge)
	h.Start()

	ts := httptest.NewServer(h)
	defer ts.Close()

	// stalled never reads, so the server side fills the socket buffers
	stalled, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer stalled.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, gauge.value())

	big := PredictionEvent{ID: "flood", Label: strings.Repeat("x", 64<<10)}
	require.Eventually(t, func() bool {
		h.Publish(big)
		return h.Clients() == 0
	}, 10*time.Second, time.Millisecond, "stalled client was never dropped")
	assert.Equal(t, 0.0, gauge.value())

	// a healthy client still gets events after the stalled one is gone
	healthy, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer healthy.Close()
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Publish(PredictionEvent{ID: "after", Label: "Sporadic hemiplegic migraine"})
	healthy.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var event PredictionEvent
		require.NoError(t, healthy.ReadJSON(&event))
		if event.ID == "after" {
			assert.Equal(t, "Sporadic hemiplegic migraine", event.Label)
			break
		}
	}

	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a websocket client")
	}
}
