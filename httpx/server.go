package httpx

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"dqx0.com/go/portkit/container"
	"dqx0.com/go/portkit/internal/obs"
	"dqx0.com/go/portkit/uri"
)

// ServerConfig tunes a Server.
type ServerConfig struct {
	// ListenAddress is the interface to bind; empty means all.
	ListenAddress string
	// ListenPort 0 binds any free port.
	ListenPort uint16
	// ConnectionTimeout bounds the wait for a client; 0 waits forever.
	ConnectionTimeout time.Duration
	IOTimeout         time.Duration
	ReuseAddress      bool
	// MaxWorkers bounds concurrent connections under Serve.
	MaxWorkers int
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ConnectionTimeout: DefaultServerConnectionTimeout,
		IOTimeout:         DefaultServerIOTimeout,
		ReuseAddress:      true,
		MaxWorkers:        DefaultServerMaxWorkers,
	}
}

type ServerOption func(*Server)

func WithServerLogger(l obs.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

func WithServerMeter(m obs.Meter) ServerOption {
	return func(s *Server) { s.meter = m }
}

type handlerEntry struct {
	handler         RequestHandler
	path            string
	includeChildren bool
}

// Server accepts HTTP/1.x connections and answers one request per
// connection with the handler registered for the request path.
type Server struct {
	cfg          ServerConfig
	serverHeader string
	logger       obs.Logger
	meter        obs.Meter

	hmu      sync.RWMutex
	handlers container.List[*handlerEntry]

	mu   sync.Mutex
	ln   net.Listener
	port uint16

	terminate atomic.Bool
	aborted   atomic.Bool
	wg        sync.WaitGroup
}

func NewServer(cfg ServerConfig, opts ...ServerOption) *Server {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultServerMaxWorkers
	}
	s := &Server{cfg: cfg, serverHeader: DefaultServerHeader}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = obs.Named(s.logger, "portkit.http.server")
	return s
}

// Bind opens the listening socket if it is not open yet.
func (s *Server) Bind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	if s.aborted.Load() {
		return errors.WithStack(ErrTerminated)
	}
	lc := net.ListenConfig{}
	if s.cfg.ReuseAddress {
		lc.Control = reuseAddrControl
	}
	addr := net.JoinHostPort(s.cfg.ListenAddress, strconv.Itoa(int(s.cfg.ListenPort)))
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	s.ln = ln
	if ta, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = uint16(ta.Port)
	}
	s.logf(obs.Info, "listening on %s", ln.Addr())
	return nil
}

// Port reports the bound port, or 0 before Bind.
func (s *Server) Port() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Addr reports the listener address, or nil before Bind.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) SetServerHeader(v string) { s.serverHeader = v }

// AddRequestHandler registers h for path. With includeChildren set, h also
// serves every path below it.
func (s *Server) AddRequestHandler(h RequestHandler, path string, includeChildren bool) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.handlers.Add(&handlerEntry{handler: h, path: path, includeChildren: includeChildren})
}

// FindRequestHandler returns the first handler matching the decoded
// request path, or nil.
func (s *Server) FindRequestHandler(req *Request) RequestHandler {
	path := uri.PercentDecode(req.URL.Path())
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	it := s.handlers.Find(func(e *handlerEntry) bool {
		if e.includeChildren {
			return strings.HasPrefix(path, e.path)
		}
		return path == e.path
	}, 0)
	if !it.Valid() {
		return nil
	}
	return it.Value().handler
}

// FindRequestHandlers returns every handler matching the raw request path,
// exact matches first.
func (s *Server) FindRequestHandlers(req *Request) []RequestHandler {
	path := req.URL.Path()
	var matches container.List[*handlerEntry]
	s.hmu.RLock()
	for e := range s.handlers.All() {
		switch {
		case e.path == path:
			matches.Insert(matches.First(), e)
		case e.includeChildren && strings.HasPrefix(path, e.path):
			matches.Add(e)
		}
	}
	s.hmu.RUnlock()
	out := make([]RequestHandler, 0, matches.Len())
	for e := range matches.All() {
		out = append(out, e.handler)
	}
	return out
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// WaitForNewClient accepts the next connection. It fails with ErrTimeout
// when ConnectionTimeout passes and with ErrTerminated once the server has
// been aborted. The returned connection applies IOTimeout to every read and
// write.
func (s *Server) WaitForNewClient(ctx context.Context) (net.Conn, *RequestContext, error) {
	if err := s.Bind(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	dl, _ := ln.(deadliner)
	if dl != nil {
		var t time.Time
		if s.cfg.ConnectionTimeout > 0 {
			t = time.Now().Add(s.cfg.ConnectionTimeout)
		}
		_ = dl.SetDeadline(t)
		stop := context.AfterFunc(ctx, func() { _ = dl.SetDeadline(time.Unix(1, 0)) })
		defer stop()
	}
	c, err := ln.Accept()
	if err != nil {
		if s.aborted.Load() || errors.Is(err, net.ErrClosed) {
			return nil, nil, errors.WithStack(ErrTerminated)
		}
		if ctx.Err() != nil {
			return nil, nil, errors.WithStack(ctx.Err())
		}
		return nil, nil, mapTimeout(err)
	}
	rc := &RequestContext{LocalAddress: c.LocalAddr(), RemoteAddress: c.RemoteAddr()}
	return &timeoutConn{Conn: c, timeout: s.cfg.IOTimeout}, rc, nil
}

// Loop accepts and answers clients one at a time until Terminate or Abort
// is called, a handler returns ErrTerminated or ctx is done.
func (s *Server) Loop(ctx context.Context) error {
	return s.run(ctx, func(conn net.Conn, rc *RequestContext) {
		if err := s.RespondToClient(ctx, conn, rc); err != nil {
			s.logf(obs.Debug, "respond to %s: %v", rc.RemoteAddress, err)
		}
	})
}

// Serve is Loop with up to MaxWorkers connections answered concurrently.
// It returns once every in-flight response is done.
func (s *Server) Serve(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(s.cfg.MaxWorkers))
	defer s.wg.Wait()
	return s.run(ctx, func(conn net.Conn, rc *RequestContext) {
		if err := sem.Acquire(ctx, 1); err != nil {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer sem.Release(1)
			if err := s.RespondToClient(ctx, conn, rc); err != nil {
				s.logf(obs.Debug, "respond to %s: %v", rc.RemoteAddress, err)
			}
		}()
	})
}

func (s *Server) run(ctx context.Context, handle func(net.Conn, *RequestContext)) error {
	if err := s.Bind(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.Abort)
	defer stop()
	for !s.terminate.Load() {
		conn, rc, err := s.WaitForNewClient(ctx)
		if err != nil {
			if errors.Is(err, ErrTerminated) || s.aborted.Load() || ctx.Err() != nil {
				break
			}
			if errors.Is(err, ErrTimeout) {
				continue
			}
			s.logf(obs.Warn, "accept: %v", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		handle(conn, rc)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Terminate makes Loop and Serve return after the client being answered.
func (s *Server) Terminate() { s.terminate.Store(true) }

// Abort closes the listener, unblocking a pending accept.
func (s *Server) Abort() {
	s.aborted.Store(true)
	s.terminate.Store(true)
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}

// Close aborts the server and waits for responses in progress.
func (s *Server) Close() error {
	s.Abort()
	s.wg.Wait()
	return nil
}

func (s *Server) logf(level obs.Level, format string, args ...interface{}) {
	obs.OrNop(s.logger).Logf(level, format, args...)
}

func (s *Server) metricCounter(name string, value float64, labels ...obs.Label) {
	obs.OrNopMeter(s.meter).Counter(name, value, labels...)
}

func (s *Server) metricHistogram(name string, value float64, labels ...obs.Label) {
	obs.OrNopMeter(s.meter).Histogram(name, value, labels...)
}
