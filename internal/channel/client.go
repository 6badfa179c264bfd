// Package channel keeps the websocket link with the playlist server: it
// decodes inbound commands and delivers status events, retrying across
// disconnections.
package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/genricoloni/karaplayer/internal/intake"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultReconnectInterval = 5 * time.Second
	handshakeTimeout         = 10 * time.Second
	writeTimeout             = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the client uses
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens websocket connections
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
}

// NewDialer returns a gorilla websocket dialer
func NewDialer() Dialer {
	return &wsDialer{dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}}
}

func (d *wsDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return &deadlineConn{conn: conn}, nil
}

// deadlineConn bounds every write so a stalled server cannot block delivery
type deadlineConn struct {
	conn *websocket.Conn
}

func (c *deadlineConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *deadlineConn) WriteMessage(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *deadlineConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Options of the client
type Options struct {
	// URL of the websocket endpoint
	URL               string
	ReconnectInterval time.Duration
	// Ready reports whether the player can take an entry. A connection
	// only announces ready while it returns true; nil means always.
	Ready func() bool
}

// Client is the single logical connection to the server
type Client struct {
	logger *zap.Logger
	dialer Dialer
	auth   *Authenticator
	opts   Options

	commands *intake.Queue[domain.Command]
	outbox   *Outbox
	wake     chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client; auth may be nil for anonymous servers
func NewClient(logger *zap.Logger, dialer Dialer, auth *Authenticator, opts Options) *Client {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}
	return &Client{
		logger:   logger,
		dialer:   dialer,
		auth:     auth,
		opts:     opts,
		commands: intake.New[domain.Command](),
		outbox:   NewOutbox(),
		wake:     make(chan struct{}, 1),
	}
}

// Commands returns decoded inbound commands
func (c *Client) Commands() <-chan domain.Command {
	return c.commands.Out()
}

// Send queues a status event; delivery happens on the connection goroutine
func (c *Client) Send(event domain.StatusEvent) {
	c.outbox.Push(event)
	c.notify()
}

// RequestEntry tells the server the player can take an entry
func (c *Client) RequestEntry() {
	c.Send(domain.StatusEvent{Kind: domain.StatusReady, Time: time.Now()})
}

func (c *Client) ready() bool {
	return c.opts.Ready == nil || c.opts.Ready()
}

func (c *Client) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Start launches the connection loop. It returns immediately: the server
// being unreachable does not prevent local playback.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("Channel starting...", zap.String("url", c.opts.URL))

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(loopCtx)
	return nil
}

// Stop closes the connection and waits for its goroutines
func (c *Client) Stop(ctx context.Context) error {
	c.logger.Info("Channel stopping...", zap.Int("undelivered", c.outbox.Len()))
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("channel did not stop: %w", ctx.Err())
	}
	c.commands.Close()
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		conn, err := c.connect(ctx)
		if err == nil {
			c.logger.Info("Connected to server")
			if c.ready() {
				c.RequestEntry()
			}
			err = c.serve(ctx, conn)
		}

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Server unreachable, retrying",
			zap.Duration("interval", c.opts.ReconnectInterval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectInterval):
		}
	}
}

func (c *Client) connect(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if c.auth != nil {
		h, err := c.auth.Header(ctx)
		if err != nil {
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
		header = h
	}

	conn, err := c.dialer.Dial(ctx, c.opts.URL, header)
	if err != nil {
		if c.auth != nil {
			c.auth.Reset()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDisconnected, err)
	}
	return conn, nil
}

// serve runs one connection until it breaks or ctx is done
func (c *Client) serve(ctx context.Context, conn Conn) error {
	readErr := make(chan error, 1)
	var reader sync.WaitGroup
	reader.Add(1)
	go func() {
		defer reader.Done()
		readErr <- c.read(conn)
	}()
	defer reader.Wait()

	for {
		if err := c.flush(conn); err != nil {
			conn.Close()
			return err
		}

		select {
		case <-ctx.Done():
			conn.Close()
			return ctx.Err()
		case err := <-readErr:
			conn.Close()
			return err
		case <-c.wake:
		}
	}
}

// flush writes queued events in order; an event is only removed once written
func (c *Client) flush(conn Conn) error {
	for {
		seq, ev, ok := c.outbox.Peek()
		if !ok {
			return nil
		}

		if ev.Kind == domain.StatusReady && !c.ready() {
			c.logger.Debug("Dropping stale ready, an entry is already queued")
			c.outbox.Ack(seq)
			continue
		}

		raw, err := encode(ev)
		if err != nil {
			c.logger.Error("Dropping undeliverable event", zap.String("event", string(ev.Kind)), zap.Error(err))
			c.outbox.Ack(seq)
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrDisconnected, err)
		}
		c.outbox.Ack(seq)

		c.logger.Debug("Status sent",
			zap.String("event", string(ev.Kind)),
			zap.Int("entry", ev.EntryID))
	}
}

func (c *Client) read(conn Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("%w: closed by server", domain.ErrDisconnected)
			}
			return fmt.Errorf("%w: %v", domain.ErrDisconnected, err)
		}

		cmd, err := decode(raw)
		if err != nil {
			c.logger.Warn("Ignoring invalid message", zap.Error(err))
			continue
		}
		c.logger.Debug("Command received", zap.String("command", string(cmd.Kind)))
		c.commands.Push(cmd)
	}
}
