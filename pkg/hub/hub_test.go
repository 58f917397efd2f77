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

	"github.com/teslashibe/go-sophia/internal/log"
)

type frame struct {
	typ  int
	data []byte
}

// fakeConn blocks reads until closed and records writes.
type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(typ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame{typ, data})
	return nil
}

func (c *fakeConn) written() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h, cancel
}

func serve(h *Hub, conn Conn) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.Serve(conn) }()
	return done
}

func TestHubBroadcast(t *testing.T) {
	h, _ := runHub(t)
	a, b := newFakeConn(), newFakeConn()
	serve(h, a)
	serve(h, b)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"session_id": "s1"}))
	h.BroadcastBinary([]byte{1, 2, 3})

	for _, c := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(c.written()) == 2 }, time.Second, time.Millisecond)
		got := c.written()
		assert.Equal(t, websocket.TextMessage, got[0].typ)
		assert.JSONEq(t, `{"session_id":"s1"}`, string(got[0].data))
		assert.Equal(t, websocket.BinaryMessage, got[1].typ)
		assert.Equal(t, []byte{1, 2, 3}, got[1].data)
	}
}

func TestHubClientDisconnect(t *testing.T) {
	h, _ := runHub(t)
	conn := newFakeConn()
	done := serve(h, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	h, cancel := runHub(t)
	conn := newFakeConn()
	done := serve(h, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after hub stopped")
	}
	<-h.Done()
	assert.False(t, h.IsRunning())
	assert.Equal(t, 0, h.ClientCount())

	frames := conn.written()
	require.NotEmpty(t, frames)
	assert.Equal(t, websocket.CloseMessage, frames[len(frames)-1].typ)

	assert.ErrorIs(t, h.Serve(newFakeConn()), ErrHubStopped)
}

func TestHubBroadcastWithoutRunDrops(t *testing.T) {
	h := New("idle", log.Discard())
	for i := 0; i < sendBuffer+10; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	assert.Len(t, h.broadcast, sendBuffer)
}

func TestHubBroadcastJSONError(t *testing.T) {
	h := New("idle", log.Discard())
	assert.Error(t, h.BroadcastJSON(make(chan int)))
}
