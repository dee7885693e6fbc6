package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/log"
)

func init() {
	log.Discard()
}

// fakeConn feeds scripted inbound frames and records outbound ones.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		f.written = append(f.written, append([]byte(nil), data...))
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, w := range f.written {
		out[i] = string(w)
	}
	return out
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := startHub(t)

	a, b := newFakeConn(), newFakeConn()
	ca := NewClient(h, a, nil)
	cb := NewClient(h, b, nil)
	require.NotNil(t, ca)
	require.NotNil(t, cb)
	go ca.Run()
	go cb.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"eventType": "ar_ready", "message": "ok"}))

	for _, c := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(c.messages()) == 1 }, time.Second, time.Millisecond)
		assert.JSONEq(t, `{"eventType":"ar_ready","message":"ok"}`, c.messages()[0])
	}

	close(a.inbound)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
	close(b.inbound)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_DropsEmptyPayloads(t *testing.T) {
	h := startHub(t)
	conn := newFakeConn()
	c := NewClient(h, conn, nil)
	go c.Run()
	defer close(conn.inbound)

	h.Broadcast(NewJSONMessage([]byte("{}")))
	h.Broadcast(NewJSONMessage(nil))
	require.NoError(t, h.BroadcastJSON(map[string]string{}))
	assert.False(t, c.Send(NewJSONMessage([]byte(" {} "))))

	h.Broadcast(NewJSONMessage([]byte(`{"n":1}`)))
	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, `{"n":1}`, conn.messages()[0])
}

func TestClient_HandlerAndDirectReply(t *testing.T) {
	h := startHub(t)
	conn := newFakeConn()

	c := NewClient(h, conn, func(c *Client, data []byte) {
		c.Send(NewJSONMessage(append([]byte(`{"echo":`), append(data, '}')...)))
	})
	go c.Run()
	defer close(conn.inbound)

	conn.inbound <- []byte(`"hi"`)
	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, `{"echo":"hi"}`, conn.messages()[0])
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := New("shutdown")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := newFakeConn()
	c := NewClient(h, conn, nil)
	require.NotNil(t, c)
	go c.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-h.Done()
	assert.False(t, h.IsRunning())
	assert.Equal(t, 0, h.ClientCount())
	assert.False(t, c.Send(NewJSONMessage([]byte(`{"late":true}`))))

	// Registration after shutdown fails instead of blocking.
	assert.Nil(t, NewClient(h, newFakeConn(), nil))

	close(conn.inbound)
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.closed
	}, time.Second, time.Millisecond)
}

func TestMessage_Empty(t *testing.T) {
	assert.True(t, Message{}.Empty())
	assert.True(t, NewJSONMessage([]byte("null")).Empty())
	assert.False(t, NewJSONMessage([]byte(`{"a":1}`)).Empty())
}
