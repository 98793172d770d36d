package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbBench/rpc/common"
	"github.com/ValentinKolb/dbBench/rpc/skyhash"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("rpc/client")

// ErrClosed is returned for calls on a closed client.
var ErrClosed = errors.New("skyhash client closed")

// NetError wraps failures of the underlying connection (dial, read, write or
// a desynchronized stream). The connection is dropped when it occurs.
type NetError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *NetError) Error() string {
	return fmt.Sprintf("skyhash %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }

// IsNetError reports whether err is a connection level failure.
func IsNetError(err error) bool {
	var ne *NetError
	return errors.As(err, &ne) || errors.Is(err, ErrClosed)
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client is a Skyhash client over a single TCP connection. Queries are sent
// one at a time in request/response order.
//
// A failed round trip drops the connection and returns a *NetError. The
// next call dials again; the failed query itself is never retried. Server
// side session state (the active table) does not survive a reconnect, see
// Generation.
//
// Thread-safety: all methods are safe for concurrent use.
type Client struct {
	config     common.ClientConfig
	mu         sync.Mutex
	conn       net.Conn
	reader     *bufio.Reader
	writer     *bufio.Writer
	closed     bool
	generation atomic.Uint64
}

// Dial connects to config.Endpoint.
func Dial(ctx context.Context, config common.ClientConfig) (*Client, error) {
	c := &Client{config: config}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Endpoint returns the server address.
func (c *Client) Endpoint() string { return c.config.Endpoint }

// Generation is incremented on every successful (re)connect.
func (c *Client) Generation() uint64 { return c.generation.Load() }

// Run sends q and reads the response element. Response codes are returned
// as elements; callers use Element.Err to turn them into errors.
func (c *Client) Run(ctx context.Context, q *skyhash.Query) (skyhash.Element, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return skyhash.Element{}, ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return skyhash.Element{}, err
		}
	}

	// interrupt blocking I/O when the context is canceled
	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := conn.SetDeadline(c.deadline(ctx)); err != nil {
		return skyhash.Element{}, c.fail("deadline", err)
	}

	if err := skyhash.WriteQuery(c.writer, q); err != nil {
		if errors.Is(err, skyhash.ErrProtocol) && c.writer.Buffered() == 0 {
			return skyhash.Element{}, err
		}
		return skyhash.Element{}, c.fail("write", contextErr(ctx, err))
	}

	el, err := skyhash.ReadResponse(c.reader)
	if err != nil {
		return skyhash.Element{}, c.fail("read", contextErr(ctx, err))
	}
	Logger.Debugf("%s -> %s", q.Action(), el.Kind)
	return el, nil
}

// Reconnect drops the current connection and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return c.connect(ctx)
}

// Close closes the connection. Further calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// connect dials the endpoint. Must be called with mu held.
func (c *Client) connect(ctx context.Context) error {
	dialer := net.Dialer{
		Timeout: time.Duration(c.config.DialTimeoutSecond) * time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Endpoint)
	if err != nil {
		return &NetError{Op: "dial", Endpoint: c.config.Endpoint, Err: err}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(c.config.TCPNoDelay); err != nil {
			return &NetError{Op: "dial", Endpoint: c.config.Endpoint, Err: multierr.Append(err, conn.Close())}
		}
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = bufio.NewWriter(conn)
	gen := c.generation.Add(1)
	Logger.Infof("Connected to %s (generation %d)", c.config.Endpoint, gen)
	return nil
}

// fail drops the connection after an I/O error. Must be called with mu held.
func (c *Client) fail(op string, err error) error {
	Logger.Warningf("Dropping connection to %s after %s error: %v", c.config.Endpoint, op, err)
	err = multierr.Append(err, c.conn.Close())
	c.conn = nil
	return &NetError{Op: op, Endpoint: c.config.Endpoint, Err: err}
}

// deadline returns the earlier of the context deadline and the configured timeout.
func (c *Client) deadline(ctx context.Context) time.Time {
	var d time.Time
	if c.config.TimeoutSecond > 0 {
		d = time.Now().Add(time.Duration(c.config.TimeoutSecond) * time.Second)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// contextErr prefers the context error over the resulting I/O timeout.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
