package httpx

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Connection is a client transport connection carrying HTTP/1.x messages.
type Connection interface {
	Reader() *bufio.Reader
	Writer() *bufio.Writer
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	// SupportsPersistence reports whether the connection can go back to a
	// pool after a complete exchange.
	SupportsPersistence() bool
	// IsRecycled reports whether the connection already carried an exchange.
	IsRecycled() bool
	// Recycle hands the connection back to its pool, or closes it when it
	// has none.
	Recycle() error
	// Abort closes the transport so blocked reads and writes return.
	Abort() error
	Close() error
}

// recyclable is implemented by connections a ConnectionManager can pool.
type recyclable interface {
	markRecycled(at time.Time)
}

// timeoutConn sets a fresh deadline before every read and write.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	n, err := c.Conn.Read(p)
	return n, mapTimeout(err)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	n, err := c.Conn.Write(p)
	return n, mapTimeout(err)
}

func mapTimeout(err error) error {
	var ne net.Error
	if err != nil && errors.As(err, &ne) && ne.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return err
}

type pooledConnection struct {
	conn    *timeoutConn
	br      *bufio.Reader
	bw      *bufio.Writer
	manager *ConnectionManager

	mu       sync.Mutex
	recycled bool
	at       time.Time
	closed   atomic.Bool
}

func newPooledConnection(c net.Conn, ioTimeout time.Duration, manager *ConnectionManager) *pooledConnection {
	tc := &timeoutConn{Conn: c, timeout: ioTimeout}
	return &pooledConnection{
		conn:    tc,
		br:      bufio.NewReader(tc),
		bw:      bufio.NewWriter(tc),
		manager: manager,
	}
}

func (c *pooledConnection) Reader() *bufio.Reader { return c.br }
func (c *pooledConnection) Writer() *bufio.Writer { return c.bw }
func (c *pooledConnection) LocalAddr() net.Addr   { return c.conn.LocalAddr() }
func (c *pooledConnection) RemoteAddr() net.Addr  { return c.conn.RemoteAddr() }

func (c *pooledConnection) SupportsPersistence() bool { return c.manager != nil }

func (c *pooledConnection) IsRecycled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recycled
}

func (c *pooledConnection) markRecycled(at time.Time) {
	c.mu.Lock()
	c.recycled, c.at = true, at
	c.mu.Unlock()
}

func (c *pooledConnection) Recycle() error {
	if c.closed.Load() {
		return errors.WithStack(ErrInvalidState)
	}
	if c.manager == nil {
		return c.Close()
	}
	return c.manager.Recycle(c)
}

func (c *pooledConnection) Abort() error { return c.Close() }

func (c *pooledConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
