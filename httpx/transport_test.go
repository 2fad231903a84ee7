package httpx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/nettest"

	"dqx0.com/go/portkit/httpx/internal/http1"
	"dqx0.com/go/portkit/internal/obs"
	"dqx0.com/go/portkit/uri"
)

// scriptServer answers each request with the raw response returned by
// respond. An empty response leaves the client waiting.
type scriptServer struct {
	ln      net.Listener
	respond func(n int, req *Request) (raw string, closeAfter bool)

	mu       sync.Mutex
	requests []*Request
	bodies   []string
	conns    int
	wg       sync.WaitGroup
}

func startScriptServer(t *testing.T, respond func(n int, req *Request) (string, bool)) *scriptServer {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp4")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &scriptServer{ln: ln, respond: respond}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *scriptServer) url(path string) string { return "http://" + s.ln.Addr().String() + path }

func (s *scriptServer) acceptLoop() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *scriptServer) serve(c net.Conn) {
	defer s.wg.Done()
	defer c.Close()
	br := bufio.NewReader(c)
	for {
		req, err := ParseRequest(br, c.LocalAddr())
		if err != nil {
			return
		}
		var body []byte
		if strings.EqualFold(req.Headers.Get(HeaderTransferEncoding), TransferEncodingChunked) {
			body, _ = io.ReadAll(http1.NewChunkedReader(br))
		} else if n, _ := strconv.Atoi(req.Headers.Get(HeaderContentLength)); n > 0 {
			body = make([]byte, n)
			if _, err := io.ReadFull(br, body); err != nil {
				return
			}
		}
		s.mu.Lock()
		n := len(s.requests)
		s.requests = append(s.requests, req)
		s.bodies = append(s.bodies, string(body))
		s.mu.Unlock()

		raw, closeAfter := s.respond(n, req)
		if raw == "" {
			_, _ = io.Copy(io.Discard, br)
			return
		}
		if _, err := io.WriteString(c, raw); err != nil || closeAfter {
			return
		}
	}
}

func (s *scriptServer) stats() (requests, conns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests), s.conns
}

func (s *scriptServer) request(i int) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func ok(body string) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
}

func mustRequest(t *testing.T, method, rawURL, protocol string) *Request {
	t.Helper()
	req, err := NewRequestFromString(method, rawURL)
	if err != nil {
		t.Fatalf("request %s: %v", rawURL, err)
	}
	req.Protocol = protocol
	return req
}

func readBody(t *testing.T, resp *Response) string {
	t.Helper()
	b, err := resp.Entity.Load()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestClient_KeepAliveReusesConnection(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return ok("hello"), false
	})
	meter := obs.NewMemoryMeter()
	c := NewClient(nil, WithMeter(meter))
	defer c.Close()

	for i := 0; i < 2; i++ {
		resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/a"), Protocol11))
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if got := readBody(t, resp); got != "hello" {
			t.Fatalf("body=%q", got)
		}
		_ = resp.Close()
	}
	requests, conns := srv.stats()
	if requests != 2 || conns != 1 {
		t.Fatalf("requests=%d conns=%d", requests, conns)
	}
	if got := meter.Total("portkit_pool_reused_total"); got != 1 {
		t.Fatalf("reused=%v", got)
	}
	first := srv.request(0)
	if first.Headers.Get(HeaderHost) != srv.ln.Addr().String() || first.Headers.Get(HeaderUserAgent) != DefaultUserAgent {
		t.Fatalf("host=%q ua=%q", first.Headers.Get(HeaderHost), first.Headers.Get(HeaderUserAgent))
	}
	if first.Headers.GetHeader(HeaderConnection) != nil {
		t.Fatalf("persistent request sent Connection: %q", first.Headers.Get(HeaderConnection))
	}
}

func TestClient_HTTP10ClosesConnection(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return "HTTP/1.0 200 OK\r\n\r\nuntil close", true
	})
	c := NewClient(nil)
	defer c.Close()

	resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/"), Protocol10))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Close()
	if got := readBody(t, resp); got != "until close" {
		t.Fatalf("body=%q", got)
	}
	if got := srv.request(0).Headers.Get(HeaderConnection); got != ConnectionClose {
		t.Fatalf("Connection=%q", got)
	}
	if c.manager.Len() != 0 {
		t.Fatalf("pooled %d connections", c.manager.Len())
	}
}

func TestClient_ChunkedResponse(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n", false
	})
	c := NewClient(nil)
	defer c.Close()

	resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/"), Protocol11))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Close()
	if resp.Entity.IsChunked() {
		t.Fatal("entity still reports chunked after decoding")
	}
	if got := readBody(t, resp); got != "hello world" {
		t.Fatalf("body=%q", got)
	}
	if c.manager.Len() != 1 {
		t.Fatalf("connection not recycled after full read: %d", c.manager.Len())
	}
}

func TestClient_PostBody(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return ok("done"), false
	})
	c := NewClient(nil)
	defer c.Close()

	req := mustRequest(t, MethodPost, srv.url("/upload"), Protocol11)
	e := NewEntity()
	e.SetInputString("payload")
	e.SetContentType("text/plain")
	req.SetEntity(e)
	resp, err := c.SendRequest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Close()

	chunked := mustRequest(t, MethodPut, srv.url("/upload"), Protocol11)
	ce := NewEntity()
	ce.SetInputStream(strings.NewReader("streamed"), false)
	ce.SetTransferEncoding(TransferEncodingChunked)
	chunked.SetEntity(ce)
	resp, err = c.SendRequest(context.Background(), chunked)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Close()

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.bodies[0] != "payload" || srv.bodies[1] != "streamed" {
		t.Fatalf("bodies=%q", srv.bodies)
	}
	if got := srv.requests[0].Headers.Get(HeaderContentType); got != "text/plain" {
		t.Fatalf("Content-Type=%q", got)
	}
}

func TestClient_GetWithBodyIsInvalid(t *testing.T) {
	c := NewClient(nil)
	defer c.Close()
	req := mustRequest(t, MethodGet, "http://127.0.0.1:1/", Protocol10)
	req.SetEntity(NewEntity())
	if _, err := c.SendRequest(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err=%v", err)
	}
}

func TestClient_FollowsRedirects(t *testing.T) {
	var srv *scriptServer
	srv = startScriptServer(t, func(n int, req *Request) (string, bool) {
		switch req.URL.Path() {
		case "/docs/start":
			return "HTTP/1.1 302 Found\r\nLocation: next?x=1\r\nContent-Length: 0\r\n\r\n", false
		case "/docs/next":
			return "HTTP/1.1 301 Moved Permanently\r\nLocation: /abs\r\nContent-Length: 3\r\n\r\nbye", false
		case "/abs":
			return "HTTP/1.1 307 Temporary Redirect\r\nLocation: " + srv.url("/final") + "\r\nContent-Length: 0\r\n\r\n", false
		}
		return ok("landed"), false
	})
	meter := obs.NewMemoryMeter()
	c := NewClient(nil, WithMeter(meter))
	defer c.Close()

	req := mustRequest(t, MethodGet, srv.url("/docs/start"), Protocol11)
	resp, err := c.SendRequest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Close()
	if resp.StatusCode != 200 || readBody(t, resp) != "landed" {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if got := srv.request(1).URL.ToRequestString(false); got != "/docs/next?x=1" {
		t.Fatalf("relative redirect went to %q", got)
	}
	if got := req.URL.Path(); got != "/final" {
		t.Fatalf("final path=%q", got)
	}
	if got := meter.Total("portkit_client_redirects_total"); got != 3 {
		t.Fatalf("redirects=%v", got)
	}
}

func TestClient_TooManyRedirects(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return "HTTP/1.1 302 Found\r\nLocation: /loop\r\nContent-Length: 0\r\n\r\n", false
	})
	c := NewClient(nil)
	defer c.Close()

	_, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/loop"), Protocol11))
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("err=%v", err)
	}
	if requests, _ := srv.stats(); requests != DefaultMaxRedirects+1 {
		t.Fatalf("requests=%d", requests)
	}
}

func TestClient_RedirectsOnlyForGetAndHead(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return "HTTP/1.1 302 Found\r\nLocation: /elsewhere\r\nContent-Length: 0\r\n\r\n", false
	})
	c := NewClient(nil)
	defer c.Close()

	req := mustRequest(t, MethodPost, srv.url("/form"), Protocol11)
	resp, err := c.SendRequest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Close()
	if resp.StatusCode != 302 {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	cfg := DefaultClientConfig()
	cfg.MaxRedirects = 0
	c2 := NewClient(nil, WithConfig(cfg))
	defer c2.Close()
	resp2, err := c2.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/a"), Protocol11))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Close()
	if resp2.StatusCode != 302 {
		t.Fatalf("redirect followed with MaxRedirects 0: %d", resp2.StatusCode)
	}
}

func TestClient_RetriesStaleConnection(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		// advertise keep-alive but hang up anyway
		return ok(strconv.Itoa(n)), true
	})
	meter := obs.NewMemoryMeter()
	c := NewClient(nil, WithMeter(meter))
	defer c.Close()

	for i := 0; i < 2; i++ {
		resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/"), Protocol11))
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if got := readBody(t, resp); got != strconv.Itoa(i) {
			t.Fatalf("send %d: body=%q", i, got)
		}
		_ = resp.Close()
		time.Sleep(20 * time.Millisecond)
	}
	if _, conns := srv.stats(); conns != 2 {
		t.Fatalf("conns=%d", conns)
	}
	if got := meter.Total("portkit_client_reconnects_total"); got != 1 {
		t.Fatalf("reconnects=%v", got)
	}
}

func TestClient_OneShotBodySkipsPooledConnection(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return ok("fine"), false
	})
	meter := obs.NewMemoryMeter()
	c := NewClient(nil, WithMeter(meter))
	defer c.Close()

	resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/prime"), Protocol11))
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	_ = resp.Close()
	if c.manager.Len() != 1 {
		t.Fatalf("pooled=%d", c.manager.Len())
	}

	const payload = "can only be read once"
	req := mustRequest(t, MethodPost, srv.url("/upload"), Protocol11)
	e := NewEntity()
	e.SetInputStream(struct{ io.Reader }{strings.NewReader(payload)}, false)
	e.SetContentLength(int64(len(payload)))
	req.SetEntity(e)
	resp, err = c.SendRequest(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got := readBody(t, resp); got != "fine" {
		t.Fatalf("body=%q", got)
	}
	_ = resp.Close()

	requests, conns := srv.stats()
	if requests != 2 || conns != 2 {
		t.Fatalf("requests=%d conns=%d", requests, conns)
	}
	srv.mu.Lock()
	body := srv.bodies[1]
	srv.mu.Unlock()
	if body != payload {
		t.Fatalf("server got %q", body)
	}
	if got := meter.Total("portkit_pool_reused_total"); got != 1 {
		t.Fatalf("reused=%v", got)
	}
}

func TestClient_SkipsInterimResponses(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		if req.URL.Path() == "/many" {
			return strings.Repeat("HTTP/1.1 100 Continue\r\n\r\n", MaxInterimResponses+1), true
		}
		return "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 102 Processing\r\n\r\n" + ok("ok"), false
	})
	c := NewClient(nil)
	defer c.Close()

	resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/"), Protocol11))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 || readBody(t, resp) != "ok" {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	_ = resp.Close()

	_, err = c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/many"), Protocol10))
	if !errors.Is(err, ErrTooManyReconnects) {
		t.Fatalf("err=%v", err)
	}
}

func TestClient_HeadHasNoBody(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		if n == 0 {
			return "HTTP/1.1 200 OK\r\nContent-Length: 42\r\n\r\n", false
		}
		return ok("next"), false
	})
	c := NewClient(nil)
	defer c.Close()

	resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodHead, srv.url("/"), Protocol11))
	if err != nil {
		t.Fatal(err)
	}
	if n, known := resp.Entity.ContentLength(); !known || n != 42 {
		t.Fatalf("length=%d,%v", n, known)
	}
	if _, err := resp.Entity.Body(); !errors.Is(err, ErrNoBody) {
		t.Fatalf("HEAD body: %v", err)
	}
	_ = resp.Close()

	resp, err = c.SendRequest(context.Background(), mustRequest(t, MethodGet, srv.url("/"), Protocol11))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Close()
	if got := readBody(t, resp); got != "next" {
		t.Fatalf("body after HEAD=%q", got)
	}
}

func TestClient_ContextCancelAborts(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) { return "", false })
	c := NewClient(nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.SendRequest(ctx, mustRequest(t, MethodGet, srv.url("/"), Protocol11))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("abort did not interrupt the read")
	}
	if c.canceller.Tracked(c.ID()) != 0 {
		t.Fatalf("connections still tracked: %d", c.canceller.Tracked(c.ID()))
	}
}

func TestClient_UsesProxy(t *testing.T) {
	srv := startScriptServer(t, func(n int, req *Request) (string, bool) {
		return ok("via proxy"), false
	})
	port := uint16(srv.ln.Addr().(*net.TCPAddr).Port)
	c := NewClient(nil, WithProxySelector(StaticProxySelector{HTTP: ProxyAddress{Host: "127.0.0.1", Port: port}}))
	defer c.Close()

	resp, err := c.SendRequest(context.Background(), mustRequest(t, MethodGet, "http://origin.invalid:8080/x?y=1", Protocol10))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Close()
	if got := readBody(t, resp); got != "via proxy" {
		t.Fatalf("body=%q", got)
	}
	req := srv.request(0)
	if req.URL.Host() != "origin.invalid" || req.URL.Port() != 8080 || req.URL.ToRequestString(false) != "/x?y=1" {
		t.Fatalf("proxy saw %s", req.URL.ToString(false))
	}
	if got := req.Headers.Get(HeaderHost); got != "origin.invalid:8080" {
		t.Fatalf("Host=%q", got)
	}
}

func TestTCPConnector_RejectsHTTPS(t *testing.T) {
	u, _ := uri.ParseURL("https://example.com/")
	_, err := NewTCPConnector(nil).Connect(context.Background(), u, nil, false)
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("err=%v", err)
	}
}

func TestEnvProxySelector(t *testing.T) {
	for _, k := range []string{"HTTP_PROXY", "http_proxy", "HTTPS_PROXY", "https_proxy", "NO_PROXY", "no_proxy", "ALL_PROXY", "all_proxy", "REQUEST_METHOD"} {
		t.Setenv(k, "")
	}
	t.Setenv("HTTP_PROXY", "http://proxy.example:3128")
	t.Setenv("NO_PROXY", "skip.example")

	sel := NewEnvProxySelector()
	target, _ := uri.ParseURL("http://target.example/")
	p, err := sel.ProxyForURL(target)
	if err != nil || p != (ProxyAddress{Host: "proxy.example", Port: 3128}) {
		t.Fatalf("proxy=%v err=%v", p, err)
	}
	skip, _ := uri.ParseURL("http://skip.example/")
	if _, err := sel.ProxyForURL(skip); !errors.Is(err, ErrNoProxy) {
		t.Fatalf("NO_PROXY: %v", err)
	}

	t.Setenv("HTTP_PROXY", "")
	t.Setenv("ALL_PROXY", "fallback.example")
	p, err = NewEnvProxySelector().ProxyForURL(target)
	if err != nil || p != (ProxyAddress{Host: "fallback.example", Port: 80}) {
		t.Fatalf("ALL_PROXY: proxy=%v err=%v", p, err)
	}
}

func TestNewClient_ProxySelectorSwitch(t *testing.T) {
	t.Setenv(ProxySelectorEnv, "env")
	c := NewClient(nil)
	defer c.Close()
	if _, ok := c.proxySelector.(*EnvProxySelector); !ok {
		t.Fatalf("selector=%T", c.proxySelector)
	}

	t.Setenv(ProxySelectorEnv, "")
	c2 := NewClient(nil)
	defer c2.Close()
	if c2.proxySelector != nil {
		t.Fatalf("selector=%T", c2.proxySelector)
	}
}

func TestStaticProxySelector(t *testing.T) {
	sel := StaticProxySelector{HTTP: ProxyAddress{Host: "p", Port: 8080}}
	u, _ := uri.ParseURL("http://x/")
	if p, err := sel.ProxyForURL(u); err != nil || p.String() != "p:8080" {
		t.Fatalf("http: %v %v", p, err)
	}
	s, _ := uri.ParseURL("https://x/")
	if _, err := sel.ProxyForURL(s); !errors.Is(err, ErrNoProxy) {
		t.Fatalf("https: %v", err)
	}
}
