package ws

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHub(logger)
}

func TestNotifyStatusDeliversToConnectedClients(t *testing.T) {
	h := newTestHub()
	c := &client{send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.NotifyStatus("req-1", "accepted", "")
	require.Equal(t, 1, h.ClientCount())

	raw := <-c.send
	var ev StatusEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, "accepted", ev.Status)
	assert.NotZero(t, ev.Timestamp)
}

func TestNotifyStatusDropsSlowClient(t *testing.T) {
	h := newTestHub()

	// One-slot buffer with no reader: the second broadcast cannot be
	// delivered and must evict the client.
	slow := &client{send: make(chan []byte, 1)}
	h.mu.Lock()
	h.clients[slow] = struct{}{}
	h.mu.Unlock()

	h.NotifyStatus("req-1", "accepted", "")
	require.Equal(t, 1, h.ClientCount())

	h.NotifyStatus("req-2", "submitted", "")
	assert.Equal(t, 0, h.ClientCount())

	// Eviction closes the send channel so the write pump shuts the
	// connection down.
	<-slow.send // buffered message from the first broadcast
	_, open := <-slow.send
	assert.False(t, open)

	// A later broadcast must not panic on the evicted client.
	h.NotifyStatus("req-3", "confirmed", "")
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := &client{send: make(chan []byte, 1)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.remove(c)
	h.remove(c)
	assert.Equal(t, 0, h.ClientCount())
}
