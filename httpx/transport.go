package httpx

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"dqx0.com/go/portkit/httpx/internal/http1"
	"dqx0.com/go/portkit/internal/obs"
	"dqx0.com/go/portkit/uri"
)

// Connector opens connections for a client. With reuse set a pooled
// connection to the same address may be returned.
type Connector interface {
	Connect(ctx context.Context, u uri.URL, proxy *ProxyAddress, reuse bool) (Connection, error)
}

// TCPConnector dials plain TCP connections. When Manager is set the
// connections it returns can be pooled and reused.
type TCPConnector struct {
	ConnectionTimeout   time.Duration
	IOTimeout           time.Duration
	NameResolverTimeout time.Duration
	Manager             *ConnectionManager
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver

	Logger obs.Logger
}

func NewTCPConnector(manager *ConnectionManager) *TCPConnector {
	return &TCPConnector{
		ConnectionTimeout:   DefaultConnectionTimeout,
		IOTimeout:           DefaultIOTimeout,
		NameResolverTimeout: DefaultNameResolverTimeout,
		Manager:             manager,
	}
}

func (t *TCPConnector) Connect(ctx context.Context, u uri.URL, proxy *ProxyAddress, reuse bool) (Connection, error) {
	if u.SchemeID() != uri.SchemeHTTP {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme())
	}
	host, port := u.Host(), u.Port()
	if proxy != nil {
		host, port = proxy.Host, proxy.Port
	}
	if host == "" || port == uri.InvalidPort {
		return nil, errors.Wrapf(ErrInvalidParameters, "address %q port %d", host, port)
	}

	resolver := t.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	rctx := ctx
	if t.NameResolverTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, t.NameResolverTimeout)
		defer cancel()
	}
	addrs, err := resolver.LookupIPAddr(rctx, host)
	if err != nil {
		return nil, errors.Wrapf(mapTimeout(err), "resolve %s", host)
	}
	if len(addrs) == 0 {
		return nil, errors.Wrapf(ErrNoSuchItem, "resolve %s", host)
	}
	addr := net.JoinHostPort(addrs[0].String(), strconv.Itoa(int(port)))

	if reuse && t.Manager != nil {
		if conn, ok := t.Manager.FindConnection(addr); ok {
			return conn, nil
		}
	}
	d := net.Dialer{Timeout: t.ConnectionTimeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(mapTimeout(err), "connect %s", addr)
	}
	obs.OrNop(t.Logger).Logf(obs.Fine, "connected to %s", addr)
	return newPooledConnection(c, t.IOTimeout, t.Manager), nil
}

// WriteRequest sends the request head and body and flushes w. Host and
// Content-* headers are filled in from the URL and entity unless already
// present. useProxy selects the absolute request target.
func WriteRequest(w *bufio.Writer, req *Request, shouldPersist, useProxy bool) error {
	if !shouldPersist {
		req.Headers.SetHeader(HeaderConnection, ConnectionClose, false)
	}
	host := req.URL.Host()
	if req.URL.Port() != req.URL.DefaultPort() {
		host = net.JoinHostPort(host, strconv.Itoa(int(req.URL.Port())))
	}
	req.Headers.SetHeader(HeaderHost, host, false)

	e := req.Entity
	if e != nil {
		if n, ok := e.ContentLength(); ok && !e.IsChunked() {
			req.Headers.SetHeader(HeaderContentLength, strconv.FormatInt(n, 10), false)
		}
		if v := e.ContentType(); v != "" {
			req.Headers.SetHeader(HeaderContentType, v, false)
		}
		if v := e.ContentEncoding(); v != "" {
			req.Headers.SetHeader(HeaderContentEncoding, v, false)
		}
		if v := e.TransferEncoding(); v != "" {
			req.Headers.SetHeader(HeaderTransferEncoding, v, false)
		}
	}

	var head bytes.Buffer
	if err := req.Emit(&head, useProxy && req.URL.SchemeID() == uri.SchemeHTTP); err != nil {
		return err
	}
	if _, err := w.Write(head.Bytes()); err != nil {
		return err
	}
	if e != nil {
		if err := writeEntity(w, e); err != nil {
			return err
		}
	}
	return w.Flush()
}

// writeEntity copies the entity's stream to w, chunk-encoding it when the
// transfer encoding says so. A known content length bounds the copy.
func writeEntity(w io.Writer, e *Entity) error {
	body, err := e.Body()
	if errors.Is(err, ErrNoBody) {
		return nil
	}
	var cw *http1.ChunkedWriter
	if e.IsChunked() {
		cw = http1.NewChunkedWriter(w)
		w = cw
	}
	if n, ok := e.ContentLength(); ok {
		if _, err := io.CopyN(w, body, n); err != nil {
			return errors.Wrap(err, "write body")
		}
	} else if _, err := io.Copy(w, body); err != nil {
		return errors.Wrap(err, "write body")
	}
	if cw != nil {
		return cw.Terminate()
	}
	return nil
}

// ReadResponse reads the response to a request written on conn. Interim
// 1xx responses are skipped. When expectEntity is set the response entity
// streams from conn; reading it to the end releases conn. Otherwise conn is
// released before ReadResponse returns.
func (c *Client) ReadResponse(conn Connection, shouldPersist, expectEntity bool) (*Response, error) {
	br := conn.Reader()
	var resp *Response
	for range MaxInterimResponses {
		r, err := ParseResponse(br)
		if err != nil {
			return nil, err
		}
		if !http1.IsInterim(r.StatusCode) {
			resp = r
			break
		}
		c.logf(obs.Fine, "skipping interim response %d", r.StatusCode)
	}
	if resp == nil {
		return nil, errors.WithStack(ErrTooManyReconnects)
	}

	connection := strings.TrimSpace(resp.Headers.Get(HeaderConnection))
	var keepAlive bool
	if resp.Protocol == Protocol11 {
		keepAlive = !strings.EqualFold(connection, ConnectionClose)
	} else {
		keepAlive = strings.EqualFold(connection, ConnectionKeepAlive)
	}
	persist := shouldPersist && keepAlive
	release := func(keep bool) { c.release(conn, keep) }

	e := NewEntityFromHeaders(&resp.Headers)
	resp.Entity = e
	if !expectEntity || noResponseBody(resp.StatusCode, "") {
		release(persist)
		return resp, nil
	}
	switch n, known := e.ContentLength(); {
	case e.IsChunked():
		e.SetTransferEncoding("")
		e.SetInputStream(newEntityBody(http1.NewChunkedReader(br), persist, release), false)
	case known && n == 0:
		release(persist)
		e.SetInputStream(strings.NewReader(""), false)
	case known:
		e.SetInputStream(newEntityBody(http1.NewLimitedBody(br, n), persist, release), false)
	default:
		// read until the peer closes
		e.SetInputStream(newEntityBody(br, false, release), false)
	}
	return resp, nil
}

// release hands conn back after an exchange: to its pool when keep is set,
// closed otherwise.
func (c *Client) release(conn Connection, keep bool) {
	c.canceller.Untrack(conn)
	if !keep {
		_ = conn.Close()
		return
	}
	if err := conn.Recycle(); err != nil {
		c.logf(obs.Debug, "recycle %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
	}
}
