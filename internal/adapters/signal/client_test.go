package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Peer/internal/core"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsServer struct {
	*httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
	recv  chan string
}

// newEchoServer accepts websocket connections, records every text frame and echoes it back.
func newEchoServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{recv: make(chan string, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, ws)
		s.mu.Unlock()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			s.recv <- string(data)
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
}

func TestClientSendAndReceive(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(ClientConfig{URL: srv.url(), ReadLimit: 1 << 16, PingPeriod: 50 * time.Millisecond})

	received := make(chan string, 4)
	c.OnMessage(func(_ context.Context, data []byte) { received <- string(data) })

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Disconnect)
	require.True(t, c.Connected())

	require.NoError(t, c.Send(ctx, core.Frame(`{"type":"userJoined","userId":"alice"}`)))
	require.NoError(t, c.Send(ctx, core.Frame(`second`)))

	require.Equal(t, `{"type":"userJoined","userId":"alice"}`, <-srv.recv)
	require.Equal(t, "second", <-srv.recv)
	require.Equal(t, `{"type":"userJoined","userId":"alice"}`, <-received)
	require.Equal(t, "second", <-received)
}

func TestClientSendWhenNotConnected(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://127.0.0.1:1"})
	err := c.Send(context.Background(), core.Frame("x"))
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, err, core.ErrTransport)
}

func TestClientDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	err := c.Connect(context.Background())
	require.ErrorIs(t, err, core.ErrTransport)
	require.False(t, c.Connected())
}

func TestClientDisconnectFiresOnce(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(ClientConfig{URL: srv.url()})
	var fired atomic.Int32
	c.OnDisconnect(func() { fired.Inc() })

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	c.Disconnect()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
	require.False(t, c.Connected())
	require.ErrorIs(t, c.Send(context.Background(), core.Frame("x")), ErrNotConnected)
}

func TestClientRemoteCloseAndReconnect(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(ClientConfig{URL: srv.url()})
	var fired atomic.Int32
	c.OnDisconnect(func() { fired.Inc() })
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background()))
	srv.kick()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, c.Connected())

	require.NoError(t, c.Connect(context.Background()))
	require.True(t, c.Connected())
	srv.kick()
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestClientBackpressure(t *testing.T) {
	wc := &wsConn{send: make(chan core.Frame, 1), cancel: func() {}}
	require.NoError(t, wc.TrySend(core.Frame("a")))
	require.ErrorIs(t, wc.TrySend(core.Frame("b")), ErrBackpressure)
}
