// Package transport connects the interpreter to the game server over a
// websocket. Emits are correlated with their replies by request ID;
// anything else the server sends is handed to a push callback.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-version"

	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/logging"
)

var (
	// ErrOffline is the reply error for emits made while disconnected.
	ErrOffline = errors.New("not connected to server")
	// ErrDisconnected is the reply error for emits still waiting when
	// the connection drops.
	ErrDisconnected = errors.New("connection to server lost")
	// ErrTimeout is the reply error for emits the server never answers.
	ErrTimeout = errors.New("server did not reply in time")
	// ErrVersionMismatch is returned when the server protocol version
	// does not satisfy the configured constraint.
	ErrVersionMismatch = errors.New("unsupported server version")
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReplyTimeout     = 30 * time.Second
	DefaultReconnectDelay   = time.Second
	DefaultMaxReconnect     = 30 * time.Second

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Config configures a Client.
type Config struct {
	URL string
	// VersionConstraint is checked against the server's hello, e.g.
	// ">= 1.0, < 2.0". Empty accepts any server.
	VersionConstraint string
	Header            http.Header

	HandshakeTimeout time.Duration
	ReplyTimeout     time.Duration
	// ReconnectDelay is the first retry delay; it doubles up to
	// MaxReconnectDelay while the server stays unreachable.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// OnPush receives server pushes, in the order they arrive.
	OnPush func(event string, payload json.RawMessage)
	// OnStatus is told whenever the client goes online or offline.
	OnStatus func(online bool)
}

// Client is a reconnecting websocket client. It implements the
// interpreter's Transport port.
type Client struct {
	cfg        Config
	constraint version.Constraints
	dialer     *websocket.Dialer
	logger     *logging.Logger

	online    atomic.Bool
	reconnect chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]*pending
	writeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

type pending struct {
	event   string
	onReply func(commands.Reply)
	timer   *time.Timer
}

// New creates a client. Nothing is dialed until Start.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ReplyTimeout == 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = DefaultMaxReconnect
	}

	c := &Client{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger:    logging.GetLogger("transport"),
		reconnect: make(chan struct{}, 1),
		pending:   make(map[string]*pending),
	}

	if cfg.VersionConstraint != "" {
		constraint, err := version.NewConstraint(cfg.VersionConstraint)
		if err != nil {
			return nil, fmt.Errorf("invalid version constraint %q: %w", cfg.VersionConstraint, err)
		}
		c.constraint = constraint
	}
	return c, nil
}

// SetPushHandler replaces the push callback. Call it before Start.
func (c *Client) SetPushHandler(fn func(event string, payload json.RawMessage)) {
	c.cfg.OnPush = fn
}

// Start launches the connection loop and returns immediately. The
// client keeps reconnecting until Stop.
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
	c.logger.Info("Connecting to %s", c.cfg.URL)
	return nil
}

// Stop closes the connection and waits for the connection loop to exit.
func (c *Client) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.closeConn()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for transport to stop: %w", ctx.Err())
	}
}

// Name implements lifecycle.Component.
func (c *Client) Name() string {
	return "Transport"
}

// Online reports whether the client is connected.
func (c *Client) Online() bool {
	return c.online.Load()
}

// Reconnect drops the current connection, if any, and dials again
// without waiting for the retry delay.
func (c *Client) Reconnect() {
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
	c.closeConn()
}

// Emit sends event to the server. When onReply is set it is called
// exactly once with the server's reply or a transport error.
func (c *Client) Emit(event string, payload any, onReply func(commands.Reply)) {
	fail := func(err error) {
		if onReply != nil {
			go onReply(commands.Reply{Err: err})
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to encode payload of %q: %v", event, err)
		fail(fmt.Errorf("failed to encode %s: %w", event, err))
		return
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.logger.Debug("dropping %q while offline", event)
		fail(ErrOffline)
		return
	}

	id := uuid.NewString()
	if onReply != nil {
		c.track(id, event, onReply)
	}

	env := Envelope{Type: TypeEmit, ID: id, Event: event, Payload: raw}
	if err := c.write(conn, env); err != nil {
		c.logger.Warn("Failed to send %q: %v", event, err)
		if p := c.untrack(id); p != nil {
			go p.onReply(commands.Reply{Err: ErrDisconnected})
		}
		return
	}
	c.logger.DebugWithFields("emitted",
		logging.Field("event", event),
		logging.Field("id", id))
}

func (c *Client) track(id, event string, onReply func(commands.Reply)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = &pending{
		event:   event,
		onReply: onReply,
		timer: time.AfterFunc(c.cfg.ReplyTimeout, func() {
			if p := c.untrack(id); p != nil {
				c.logger.Warn("No reply to %q within %s", event, c.cfg.ReplyTimeout)
				p.onReply(commands.Reply{Err: ErrTimeout})
			}
		}),
	}
}

// untrack removes and returns the pending request id, or nil when it
// was already answered.
func (c *Client) untrack(id string) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	p.timer.Stop()
	return p
}

func (c *Client) write(conn *websocket.Conn, env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(env)
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	delay := c.cfg.ReconnectDelay
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			delay = c.cfg.ReconnectDelay
			c.serve(ctx, conn)
		} else if ctx.Err() == nil {
			c.logger.Warn("Failed to connect to %s: %v (retrying in %s)", c.cfg.URL, err, delay)
		}

		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-c.reconnect:
			c.logger.Info("Reconnecting to %s", c.cfg.URL)
		case <-time.After(delay):
			delay = min(delay*2, c.cfg.MaxReconnectDelay)
		}
	}
}

// dial connects and completes the hello handshake.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout)); err != nil {
		return err
	}

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if env.Type != TypeHello {
		return fmt.Errorf("expected hello, got %q", env.Type)
	}

	var hello Hello
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return fmt.Errorf("invalid hello: %w", err)
	}

	if c.constraint != nil {
		v, err := version.NewVersion(hello.Version)
		if err != nil {
			return fmt.Errorf("%w: %q is not a version", ErrVersionMismatch, hello.Version)
		}
		if !c.constraint.Check(v) {
			return fmt.Errorf("%w: %s does not satisfy %s", ErrVersionMismatch, v, c.constraint)
		}
	}

	c.logger.InfoWithFields("Connected",
		logging.Field("url", c.cfg.URL),
		logging.Field("server_version", hello.Version))
	return nil
}

// serve reads from conn until it fails, then fails every outstanding
// request.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setOnline(true)

	stopPing := make(chan struct{})
	defer func() {
		close(stopPing)
		c.closeConn()
		c.setOnline(false)
		c.failPending(ErrDisconnected)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.ping(conn, stopPing)

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Connection lost: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.receive(env)
	}
}

func (c *Client) receive(env Envelope) {
	switch env.Type {
	case TypeReply:
		p := c.untrack(env.ID)
		if p == nil {
			c.logger.Debug("reply to unknown request %s", env.ID)
			return
		}
		p.onReply(reply(p.event, env))

	case TypePush:
		if c.cfg.OnPush != nil {
			c.cfg.OnPush(env.Event, env.Payload)
		}

	default:
		c.logger.Debug("ignoring %q frame", env.Type)
	}
}

func reply(event string, env Envelope) commands.Reply {
	if env.Error != "" {
		return commands.Reply{Err: &RemoteError{Event: event, Message: env.Error}}
	}

	data := map[string]any{}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, &data); err != nil {
			return commands.Reply{Err: fmt.Errorf("invalid reply to %s: %w", event, err)}
		}
	}
	return commands.Reply{Data: data}
}

func (c *Client) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ping failed: %v", err)
				return
			}
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	failed := c.pending
	c.pending = make(map[string]*pending)
	c.mu.Unlock()

	for id, p := range failed {
		p.timer.Stop()
		c.logger.Debug("failing request %s (%s): %v", id, p.event, err)
		p.onReply(commands.Reply{Err: err})
	}
}

func (c *Client) setOnline(online bool) {
	if c.online.Swap(online) == online {
		return
	}
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(online)
	}
}
