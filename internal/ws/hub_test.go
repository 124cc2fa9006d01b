package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietshop/posterm/internal/payment"
)

func TestHubRegisterUnregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	c := &client{hub: h, send: make(chan []byte, 1)}
	h.register <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	h.unregister <- c
	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)

	_, open := <-c.send
	assert.False(t, open, "send channel must be closed on unregister")
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	a := &client{hub: h, send: make(chan []byte, 4)}
	b := &client{hub: h, send: make(chan []byte, 4)}
	h.register <- a
	h.register <- b
	require.Eventually(t, func() bool { return h.ClientCount() == 2 },
		time.Second, 5*time.Millisecond)

	h.Publish(payment.Event{Type: payment.EventPaid, OrderID: 42})

	for _, c := range []*client{a, b} {
		select {
		case msg := <-c.send:
			var ev payment.Event
			require.NoError(t, json.Unmarshal(msg, &ev))
			assert.Equal(t, payment.EventPaid, ev.Type)
			assert.Equal(t, int64(42), ev.OrderID)
		case <-time.After(time.Second):
			t.Fatal("client never received broadcast")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	slow := &client{hub: h, send: make(chan []byte)} // no buffer, never drained
	h.register <- slow
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	h.Publish(payment.Event{Type: payment.EventTabChanged})

	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestServeDeliversEventsOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.Serve))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	h.Publish(payment.Event{Type: payment.EventAbandoned, OrderID: 7})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev payment.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, payment.EventAbandoned, ev.Type)
	assert.Equal(t, int64(7), ev.OrderID)
}
