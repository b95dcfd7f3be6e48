package signal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Peer/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected     = fmt.Errorf("%w: not connected", core.ErrTransport)
	ErrBackpressure     = fmt.Errorf("%w: backpressure", core.ErrTransport)
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", core.ErrTransport)
)

var _ core.SignalTransport = (*Client)(nil)

type ClientConfig struct {
	URL    string
	Header http.Header
	// ReadLimit caps a single inbound frame in bytes. Zero means unlimited.
	ReadLimit int64
	// PingPeriod enables keepalive pings; the peer must answer within two periods.
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

// Client is the websocket signaling transport. Inbound frames are delivered
// to the message handler in arrival order, one at a time.
type Client struct {
	cfg    ClientConfig
	dialer *websocket.Dialer

	mu           sync.RWMutex
	conn         *wsConn
	onMessage    func(ctx context.Context, data []byte)
	onDisconnect func()
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
	}
}

func (c *Client) OnMessage(fn func(ctx context.Context, data []byte)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnDisconnect registers fn to run once whenever a live connection ends.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

type wsConn struct {
	conn   *websocket.Conn
	send   chan core.Frame
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func (wc *wsConn) TrySend(f core.Frame) error {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	if wc.closed {
		return ErrConnectionClosed
	}
	select {
	case wc.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (wc *wsConn) Close() {
	wc.mu.Lock()
	if wc.closed {
		wc.mu.Unlock()
		return
	}
	wc.closed = true
	close(wc.send)
	wc.cancel()
	_ = wc.conn.Close()
	wc.mu.Unlock()
}

// Connect dials the signaling server. ctx bounds both the dial and the
// lifetime of the resulting connection. Connecting twice is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", core.ErrTransport, c.cfg.URL, err)
	}
	if c.cfg.ReadLimit > 0 {
		ws.SetReadLimit(c.cfg.ReadLimit)
	}
	if c.cfg.PingPeriod > 0 {
		pongWait := 2 * c.cfg.PingPeriod
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	connCtx, cancel := context.WithCancel(ctx)
	wc := &wsConn{
		conn:   ws,
		send:   make(chan core.Frame, c.cfg.SendBuffer),
		cancel: cancel,
	}
	c.conn = wc
	log.Info().Str("module", "signal.client").Str("url", c.cfg.URL).Msg("connected")

	go c.writePump(connCtx, wc)
	go c.readPump(connCtx, wc)
	return nil
}

// Disconnect closes the current connection, if any. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.RLock()
	wc := c.conn
	c.mu.RUnlock()
	if wc == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = wc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
	c.drop(wc, nil)
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Send queues f for the write pump without waiting for it to hit the wire.
func (c *Client) Send(ctx context.Context, f core.Frame) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	c.mu.RLock()
	wc := c.conn
	c.mu.RUnlock()
	if wc == nil {
		return ErrNotConnected
	}
	return wc.TrySend(f)
}

// drop tears wc down and reports the disconnect exactly once per connection.
func (c *Client) drop(wc *wsConn, cause error) {
	wc.once.Do(func() {
		wc.Close()

		c.mu.Lock()
		if c.conn == wc {
			c.conn = nil
		}
		fn := c.onDisconnect
		c.mu.Unlock()

		ev := log.Info()
		if cause != nil {
			ev = log.Warn().Err(cause)
		}
		ev.Str("module", "signal.client").Msg("disconnected")
		if fn != nil {
			fn()
		}
	})
}

func (c *Client) writePump(ctx context.Context, wc *wsConn) {
	var tick <-chan time.Time
	if c.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			c.drop(wc, nil)
			return
		case data, ok := <-wc.send:
			if !ok {
				return
			}
			if err := wc.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.drop(wc, err)
				return
			}
			if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.drop(wc, err)
				return
			}
		case <-tick:
			if err := wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.drop(wc, err)
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, wc *wsConn) {
	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.drop(wc, err)
			return
		}
		c.mu.RLock()
		fn := c.onMessage
		c.mu.RUnlock()
		if fn != nil {
			fn(ctx, data)
		}
	}
}
