package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/config"
)

// Connection defaults.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultInitialDelay     = time.Second
	defaultMaxDelay         = time.Minute
	defaultRequestTimeout   = 30 * time.Second
)

// FeedWriter receives the device state read from Home Assistant.
// feed.Store implements it.
type FeedWriter interface {
	Replace(feed grid.Feed)
	Apply(entityID string, rec grid.StateRecord) bool
	Remove(entityID string)
}

// Logger is the logging interface used by the client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Client.
type Options struct {
	URL              string
	Token            string
	InitialDelay     time.Duration // first reconnect delay
	MaxDelay         time.Duration // reconnect delay cap
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

// OptionsFromConfig converts the home_assistant config section.
func OptionsFromConfig(cfg config.HomeAssistantConfig) Options {
	return Options{
		URL:          cfg.URL,
		Token:        cfg.Token,
		InitialDelay: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		MaxDelay:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = defaultInitialDelay
	}
	if o.MaxDelay < o.InitialDelay {
		o.MaxDelay = max(defaultMaxDelay, o.InitialDelay)
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	return o
}

// Client is a Home Assistant WebSocket API client.
//
// It keeps the feed in sync (get_states, then state_changed events) and
// implements grid.Transport for reconnect service calls over the same
// connection. Run owns the connection and re-establishes it with
// exponential backoff.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Run must be called once.
type Client struct {
	opts   Options
	feed   FeedWriter
	dialer *websocket.Dialer
	logger Logger

	nextID atomic.Int64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[int64]func(inbound)
	version string

	writeMu sync.Mutex
}

// New creates a client. It does not connect; call Run.
func New(opts Options, feed FeedWriter) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts: opts,
		feed: feed,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger:  noopLogger{},
		pending: make(map[int64]func(inbound)),
	}
}

// SetLogger sets the logger. Call before Run.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Available reports whether an authenticated connection is up.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Version returns the Home Assistant version reported at authentication.
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// HealthCheck returns ErrNotConnected when no session is up.
func (c *Client) HealthCheck(context.Context) error {
	if !c.Available() {
		return ErrNotConnected
	}
	return nil
}

// Run connects, synchronises the feed and keeps the session alive until
// ctx is cancelled. Dropped sessions are retried with exponential backoff
// between Options.InitialDelay and Options.MaxDelay; the delay resets after
// a session that synchronised successfully.
//
// Returns:
//   - nil: ctx was cancelled
//   - error: wrapping ErrAuthFailed when the token is rejected
func (c *Client) Run(ctx context.Context) error {
	delay := c.opts.InitialDelay
	for {
		synced, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		if synced {
			delay = c.opts.InitialDelay
		}

		c.logger.Warn("home assistant connection lost, retrying",
			"error", err,
			"retry_in", delay.String(),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, c.opts.MaxDelay)
	}
}

// session runs one connection from dial to failure.
func (c *Client) session(ctx context.Context) (synced bool, err error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}
	defer conn.Close()

	version, err := c.authenticate(conn)
	if err != nil {
		return false, err
	}

	c.attach(conn, version)
	defer c.detach()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn) }()

	if err := c.subscribeStateChanges(ctx); err != nil {
		return false, err
	}
	count, err := c.loadStates(ctx)
	if err != nil {
		return false, err
	}
	c.logger.Info("home assistant feed synchronised",
		"ha_version", version,
		"entities", count,
	)

	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-readErr:
			return true, err
		case <-ctx.Done():
			return true, ctx.Err()
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, c.opts.PingInterval)
			_, err := c.request(pctx, command{Type: typePing})
			cancel()
			if err != nil {
				conn.Close()
				return true, fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// authenticate performs the auth_required, auth, auth_ok exchange.
func (c *Client) authenticate(conn *websocket.Conn) (string, error) {
	// Deadline errors surface on the following read or write.
	deadline := time.Now().Add(c.opts.HandshakeTimeout)
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)
	defer func() {
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
	}()

	var msg inbound
	if err := conn.ReadJSON(&msg); err != nil {
		return "", fmt.Errorf("%w: reading auth_required: %w", ErrProtocol, err)
	}
	if msg.Type != typeAuthRequired {
		return "", fmt.Errorf("%w: expected %s, got %q", ErrProtocol, typeAuthRequired, msg.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: typeAuth, AccessToken: c.opts.Token}); err != nil {
		return "", fmt.Errorf("%w: sending auth: %w", ErrProtocol, err)
	}

	msg = inbound{}
	if err := conn.ReadJSON(&msg); err != nil {
		return "", fmt.Errorf("%w: reading auth result: %w", ErrProtocol, err)
	}
	switch msg.Type {
	case typeAuthOK:
		return msg.HAVersion, nil
	case typeAuthInvalid:
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, msg.Message)
	default:
		return "", fmt.Errorf("%w: unexpected %q during auth", ErrProtocol, msg.Type)
	}
}

func (c *Client) attach(conn *websocket.Conn, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.version = version
}

// detach drops the connection and fails every waiting request.
func (c *Client) detach() {
	c.mu.Lock()
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]func(inbound))
	c.mu.Unlock()

	for _, fn := range pending {
		fn(inbound{Type: typeResult, Error: &apiError{Code: "disconnected", Message: ErrNotConnected.Error()}})
	}
}

// readLoop dispatches messages until the connection fails.
// Result callbacks run on this goroutine, so a get_states result and the
// events that follow it are applied in order.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("reading message: %w", err)
		}

		switch msg.Type {
		case typeEvent:
			c.handleEvent(msg.Event)
		case typeResult, typePong:
			c.mu.Lock()
			fn, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				fn(msg)
			}
		default:
			c.logger.Debug("ignoring home assistant message", "type", msg.Type)
		}
	}
}

func (c *Client) handleEvent(ev *event) {
	if ev == nil || ev.EventType != eventStateChanged {
		return
	}
	id := ev.Data.EntityID
	if ev.Data.NewState == nil {
		c.feed.Remove(id)
		return
	}
	c.feed.Apply(id, ev.Data.NewState.Record())
}

// send writes a command with a fresh id and registers fn for its reply.
func (c *Client) send(cmd command, fn func(inbound)) (int64, error) {
	cmd.ID = c.nextID.Add(1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return 0, ErrNotConnected
	}
	c.pending[cmd.ID] = fn
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(cmd)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(cmd.ID)
		return 0, fmt.Errorf("%w: writing %s: %w", ErrNotConnected, cmd.Type, err)
	}
	return cmd.ID, nil
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// request sends cmd and waits for its reply or ctx.
func (c *Client) request(ctx context.Context, cmd command) (inbound, error) {
	return c.requestWith(ctx, cmd, nil)
}

// requestWith is request with an extra callback run on the read goroutine
// before the reply is handed back.
func (c *Client) requestWith(ctx context.Context, cmd command, onReply func(inbound)) (inbound, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	done := make(chan inbound, 1)
	id, err := c.send(cmd, func(msg inbound) {
		if onReply != nil && msg.Error == nil {
			onReply(msg)
		}
		done <- msg
	})
	if err != nil {
		return inbound{}, err
	}

	select {
	case msg := <-done:
		if msg.Type == typePong {
			return msg, nil
		}
		if msg.Success == nil || !*msg.Success {
			return msg, commandError(msg)
		}
		return msg, nil
	case <-ctx.Done():
		c.forget(id)
		return inbound{}, ctx.Err()
	}
}

func commandError(msg inbound) error {
	if msg.Error == nil {
		return fmt.Errorf("%w: no result", ErrCommandFailed)
	}
	if msg.Error.Code == "disconnected" {
		return ErrNotConnected
	}
	return fmt.Errorf("%w: %s: %s", ErrCommandFailed, msg.Error.Code, msg.Error.Message)
}

func (c *Client) subscribeStateChanges(ctx context.Context) error {
	_, err := c.request(ctx, command{Type: typeSubscribeEvents, EventType: eventStateChanged})
	if err != nil {
		return fmt.Errorf("subscribing to state_changed: %w", err)
	}
	return nil
}

// loadStates fetches every entity and replaces the feed with the result.
func (c *Client) loadStates(ctx context.Context) (int, error) {
	var count int
	var decodeErr error
	_, err := c.requestWith(ctx, command{Type: typeGetStates}, func(msg inbound) {
		var states []State
		if err := json.Unmarshal(msg.Result, &states); err != nil {
			decodeErr = fmt.Errorf("%w: decoding get_states: %w", ErrProtocol, err)
			return
		}
		count = len(states)
		c.feed.Replace(feedFromStates(states))
	})
	if err != nil {
		return 0, fmt.Errorf("fetching states: %w", err)
	}
	return count, decodeErr
}

// CallService invokes a Home Assistant service and waits for its result.
// It implements grid.Transport.
//
// Parameters:
//   - ctx: Bounds the wait for the result
//   - domain: Service domain (e.g. "tplink_omada")
//   - service: Service name (e.g. "reconnect_client")
//   - data: service_data payload
//
// Returns:
//   - error: ErrNotConnected, a context error, or wrapping ErrCommandFailed
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	_, err := c.request(ctx, command{
		Type:        typeCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	})
	return err
}

// Close drops the current connection. Run reconnects unless its context is
// cancelled, so cancel that first on shutdown.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

var _ grid.Transport = (*Client)(nil)
