package httpx

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"dqx0.com/go/portkit/internal/obs"
	"dqx0.com/go/portkit/uri"
)

// ClientConfig tunes a Client.
type ClientConfig struct {
	ConnectionTimeout   time.Duration
	IOTimeout           time.Duration
	NameResolverTimeout time.Duration
	// MaxRedirects of 0 disables redirect handling.
	MaxRedirects int
	UserAgent    string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectionTimeout:   DefaultConnectionTimeout,
		IOTimeout:           DefaultIOTimeout,
		NameResolverTimeout: DefaultNameResolverTimeout,
		MaxRedirects:        DefaultMaxRedirects,
		UserAgent:           DefaultUserAgent,
	}
}

// ProxySelectorEnv names the environment switch that makes NewClient use an
// EnvProxySelector when no selector is given.
const ProxySelectorEnv = "PORTKIT_HTTP_PROXY_SELECTOR"

type ClientOption func(*Client)

func WithConfig(cfg ClientConfig) ClientOption {
	return func(c *Client) { c.cfg = cfg }
}

func WithProxySelector(s ProxySelector) ClientOption {
	return func(c *Client) { c.proxySelector = s }
}

func WithCanceller(cc *ConnectionCanceller) ClientOption {
	return func(c *Client) { c.canceller = cc }
}

func WithLogger(l obs.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func WithMeter(m obs.Meter) ClientOption {
	return func(c *Client) { c.meter = m }
}

// Client sends requests over connections obtained from a Connector,
// following redirects and retrying on stale pooled connections.
// A Client runs one SendRequest at a time; Abort may be called from any
// goroutine.
type Client struct {
	id            uint64
	cfg           ClientConfig
	connector     Connector
	tcp           *TCPConnector      // set when the client built its own connector
	manager       *ConnectionManager // owned, closed by Close
	proxySelector ProxySelector
	canceller     *ConnectionCanceller
	logger        obs.Logger
	meter         obs.Meter

	mu      sync.Mutex
	aborted bool
}

// NewClient returns a client using connector. A nil connector makes the
// client dial plain TCP with its own connection pool.
func NewClient(connector Connector, opts ...ClientOption) *Client {
	c := &Client{id: nextClientID(), cfg: DefaultClientConfig(), connector: connector}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = obs.Named(c.logger, "portkit.http.client")
	if c.canceller == nil {
		c.canceller = NewConnectionCanceller()
	}
	if c.proxySelector == nil && strings.EqualFold(os.Getenv(ProxySelectorEnv), "env") {
		c.proxySelector = NewEnvProxySelector()
	}
	if c.connector == nil {
		mc := DefaultConnectionManagerConfig()
		mc.Logger, mc.Meter = c.logger, c.meter
		c.manager = NewConnectionManager(mc)
		c.manager.Start()
		c.tcp = NewTCPConnector(c.manager)
		c.tcp.Logger = c.logger
		c.applyTimeouts()
		c.connector = c.tcp
	}
	return c
}

func (c *Client) applyTimeouts() {
	if c.tcp == nil {
		return
	}
	c.tcp.ConnectionTimeout = c.cfg.ConnectionTimeout
	c.tcp.IOTimeout = c.cfg.IOTimeout
	c.tcp.NameResolverTimeout = c.cfg.NameResolverTimeout
}

func (c *Client) Config() ClientConfig { return c.cfg }

// ID identifies the client's connections in its canceller.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Abort interrupts the request in progress by closing its connections.
// Aborting is best effort: a read already in flight may still complete.
func (c *Client) Abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	n := c.canceller.AbortConnections(c.id)
	c.logf(obs.Debug, "aborted %d connection(s)", n)
}

// Close aborts any request in progress and closes the client's own
// connection pool.
func (c *Client) Close() error {
	c.Abort()
	if c.manager != nil {
		return c.manager.Close()
	}
	return nil
}

// SendRequest sends req and follows redirects for GET and HEAD requests.
// Cancelling ctx aborts the exchange. The caller closes the response.
func (c *Client) SendRequest(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	c.aborted = false
	c.mu.Unlock()

	if req.Method == MethodGet && req.Entity != nil {
		return nil, errors.Wrap(ErrInvalidRequest, "GET request with a body")
	}
	stop := context.AfterFunc(ctx, c.Abort)
	defer stop()

	watchdog := c.cfg.MaxRedirects + 1
	for {
		resp, err := c.SendRequestOnce(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "send request")
			}
			return nil, err
		}
		c.metricCounter("portkit_client_requests_total", 1,
			obs.Label{Key: "method", Value: req.Method}, obs.Label{Key: "status", Value: statusClass(resp.StatusCode)})

		follow := false
		if c.cfg.MaxRedirects > 0 && (req.Method == MethodGet || req.Method == MethodHead) && isRedirect(resp.StatusCode) {
			if loc, ok := resp.Headers.GetHeaderValue(HeaderLocation); ok {
				if err := followLocation(req, loc); err != nil {
					_ = resp.Close()
					return nil, err
				}
				follow = true
			}
		}
		if !follow {
			return resp, nil
		}
		_ = resp.Close()
		c.logf(obs.Debug, "redirected to %s", req.URL.ToString(false))
		c.metricCounter("portkit_client_redirects_total", 1)

		watchdog--
		if watchdog == 0 {
			return nil, errors.WithStack(ErrTooManyRedirects)
		}
		if c.isAborted() {
			return nil, errors.WithStack(ErrAborted)
		}
	}
}

func isRedirect(code int) bool {
	return code == 301 || code == 302 || code == 303 || code == 307
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// followLocation points req at the redirect target loc.
func followLocation(req *Request, loc string) error {
	switch {
	case strings.HasPrefix(loc, "/"):
		return req.URL.ParsePathPlus(loc)
	case !isAbsoluteURL(loc):
		dir := req.URL.Path()
		if i := strings.LastIndexByte(dir, '/'); i >= 0 {
			dir = dir[:i+1]
		} else {
			dir = "/"
		}
		return req.URL.ParsePathPlus(dir + loc)
	default:
		u, err := uri.ParseURL(loc)
		if err != nil {
			return errors.Wrapf(err, "redirect location %q", loc)
		}
		req.URL = u
		_ = req.Headers.RemoveHeader(HeaderHost)
		return nil
	}
}

func isAbsoluteURL(s string) bool {
	i := strings.Index(s, "://")
	return i > 0 && !strings.ContainsAny(s[:i], "/?#")
}

// SendRequestOnce sends req once, without following redirects. A failure
// on a reused pooled connection is retried on another connection when the
// request body can be rewound.
func (c *Client) SendRequestOnce(ctx context.Context, req *Request) (*Response, error) {
	var proxy *ProxyAddress
	if c.proxySelector != nil {
		p, err := c.proxySelector.ProxyForURL(req.URL)
		switch {
		case err == nil:
			proxy = &p
		case errors.Is(err, ErrNoProxy):
		default:
			return nil, errors.Wrap(err, "select proxy")
		}
	}
	http11 := req.Protocol == Protocol11
	reuse := http11

	for watchdog := MaxReconnects; watchdog > 0; watchdog-- {
		if c.isAborted() {
			return nil, errors.WithStack(ErrAborted)
		}
		conn, err := c.connector.Connect(ctx, req.URL, proxy, reuse)
		if err != nil {
			return nil, err
		}
		reconnect := conn.IsRecycled()
		if c.isAborted() {
			_ = conn.Close()
			return nil, errors.WithStack(ErrAborted)
		}
		c.canceller.Track(c.id, conn)

		if reconnect {
			if err := req.Entity.rewind(); err != nil {
				// a stale pooled connection could not be retried
				c.release(conn, false)
				reuse = false
				continue
			}
		}

		shouldPersist := http11 && conn.SupportsPersistence() &&
			!strings.EqualFold(strings.TrimSpace(req.Headers.Get(HeaderConnection)), ConnectionClose)
		req.Headers.SetHeader(HeaderUserAgent, c.cfg.UserAgent, false)

		err = WriteRequest(conn.Writer(), req, shouldPersist, proxy != nil)
		var resp *Response
		if err == nil {
			resp, err = c.ReadResponse(conn, shouldPersist, req.Method != MethodHead)
		}
		if err == nil {
			return resp, nil
		}
		c.release(conn, false)
		if !reconnect || c.isAborted() {
			return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.ToString(false))
		}
		c.logf(obs.Debug, "retrying on a new connection after %v", err)
		c.metricCounter("portkit_client_reconnects_total", 1)
		if err := req.Entity.rewind(); err != nil {
			return nil, errors.WithStack(ErrCannotResendBody)
		}
	}
	return nil, errors.WithStack(ErrTooManyReconnects)
}

// Client property names.
const (
	PropertyUserAgent         = "user-agent"
	PropertyMaxRedirects      = "max-redirects"
	PropertyConnectionTimeout = "connection-timeout"
	PropertyIOTimeout         = "io-timeout"
)

// SetProperty updates a configuration value by name. Timeouts are integer
// milliseconds. It must not be called while a request is in progress.
func (c *Client) SetProperty(name string, value PropertyValue) error {
	switch name {
	case PropertyUserAgent:
		s, ok := value.String()
		if !ok {
			return errors.Wrapf(ErrInvalidParameters, "%s wants a string", name)
		}
		c.cfg.UserAgent = s
		return nil
	case PropertyMaxRedirects, PropertyConnectionTimeout, PropertyIOTimeout:
		n, ok := value.Integer()
		if !ok || n < 0 {
			return errors.Wrapf(ErrInvalidParameters, "%s wants a non-negative integer", name)
		}
		switch name {
		case PropertyMaxRedirects:
			c.cfg.MaxRedirects = n
		case PropertyConnectionTimeout:
			c.cfg.ConnectionTimeout = time.Duration(n) * time.Millisecond
		default:
			c.cfg.IOTimeout = time.Duration(n) * time.Millisecond
		}
		c.applyTimeouts()
		return nil
	}
	return errors.Wrapf(ErrNoSuchProperty, "%q", name)
}

func (c *Client) GetProperty(name string) (PropertyValue, error) {
	switch name {
	case PropertyUserAgent:
		return StringProperty(c.cfg.UserAgent), nil
	case PropertyMaxRedirects:
		return IntegerProperty(c.cfg.MaxRedirects), nil
	case PropertyConnectionTimeout:
		return IntegerProperty(int(c.cfg.ConnectionTimeout / time.Millisecond)), nil
	case PropertyIOTimeout:
		return IntegerProperty(int(c.cfg.IOTimeout / time.Millisecond)), nil
	}
	return PropertyValue{}, errors.Wrapf(ErrNoSuchProperty, "%q", name)
}

var _ Configurable = (*Client)(nil)

func (c *Client) logf(level obs.Level, format string, args ...interface{}) {
	obs.OrNop(c.logger).Logf(level, format, args...)
}

func (c *Client) metricCounter(name string, value float64, labels ...obs.Label) {
	obs.OrNopMeter(c.meter).Counter(name, value, labels...)
}
