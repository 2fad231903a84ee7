package httpx

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/pkg/errors"

	"dqx0.com/go/portkit/uri"
)

func TestParseRequest_OriginForm(t *testing.T) {
	br := newBR("GET /foo HTTP/1.1\r\nHost: x\r\n\r\n")
	req, err := ParseRequest(br, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Method != "GET" || req.URL.Path() != "/foo" || req.Protocol != "HTTP/1.1" || req.Headers.Len() != 1 {
		t.Fatalf("got %s %s %s headers=%d", req.Method, req.URL.Path(), req.Protocol, req.Headers.Len())
	}
	if req.URL.Host() != "x" || req.URL.Port() != 80 || req.URL.Scheme() != "http" {
		t.Fatalf("url=%s", req.URL.ToString(true))
	}
}

func TestParseRequest_Endpoint(t *testing.T) {
	ep := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 8080}

	req, err := ParseRequest(newBR("\r\n\r\nHEAD /a?b=1 HTTP/1.0\r\n\r\n"), ep)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := req.URL.ToString(false); got != "http://10.0.0.1:8080/a?b=1" {
		t.Fatalf("no Host header: %q", got)
	}

	req, err = ParseRequest(newBR("GET / HTTP/1.1\r\nHost: site.example\r\n\r\n"), ep)
	if err != nil {
		t.Fatal(err)
	}
	if req.URL.Host() != "site.example" || req.URL.Port() != 8080 {
		t.Fatalf("host=%q port=%d", req.URL.Host(), req.URL.Port())
	}

	req, err = ParseRequest(newBR("GET / HTTP/1.0\r\n\r\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.URL.Host() != "localhost" {
		t.Fatalf("host=%q", req.URL.Host())
	}
}

func TestParseRequest_ProxyForm(t *testing.T) {
	req, err := ParseRequest(newBR("GET HTTP://origin.example:81/x HTTP/1.1\r\nHost: other\r\n\r\n"), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.URL.Host() != "origin.example" || req.URL.Port() != 81 || req.URL.Path() != "/x" {
		t.Fatalf("url=%s", req.URL.ToString(true))
	}
}

func TestParseRequest_Errors(t *testing.T) {
	for _, in := range []string{
		"GET\r\n\r\n",
		"GET /only\r\n\r\n",
		"G(T / HTTP/1.0\r\n\r\n",
		"GET http://x:99999/ HTTP/1.0\r\n\r\n",
	} {
		if _, err := ParseRequest(newBR(in), nil); !errors.Is(err, ErrInvalidRequestLine) {
			t.Fatalf("%q: err=%v", in, err)
		}
	}
	if _, err := ParseRequest(newBR(""), nil); !errors.Is(err, io.EOF) {
		t.Fatalf("empty: %v", err)
	}
}

func TestRequest_Emit(t *testing.T) {
	u, err := uri.ParseURL("http://example.com:8080/p%20q?x=1#frag")
	if err != nil {
		t.Fatal(err)
	}
	req := NewRequest(MethodGet, u, Protocol11)
	req.Headers.AddHeader("Host", "example.com:8080")

	var buf bytes.Buffer
	if err := req.Emit(&buf, false); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "GET /p%20q?x=1 HTTP/1.1\r\nHost: example.com:8080\r\n\r\n" {
		t.Fatalf("origin form=%q", got)
	}
	buf.Reset()
	if err := req.Emit(&buf, true); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "GET http://example.com:8080/p%20q?x=1 HTTP/1.1\r\nHost: example.com:8080\r\n\r\n" {
		t.Fatalf("proxy form=%q", got)
	}
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		in     string
		code   int
		reason string
	}{
		{"HTTP/1.1 200 OK\r\n\r\n", 200, "OK"},
		{"HTTP/1.0 404 Not Found\r\nServer: s\r\n\r\n", 404, "Not Found"},
		{"HTTP/1.1 204\r\n\r\n", 204, ""},
		{"HTTP/1.1 204 \r\n\r\n", 204, ""},
	}
	for _, c := range cases {
		resp, err := ParseResponse(newBR(c.in))
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if resp.StatusCode != c.code || resp.ReasonPhrase != c.reason {
			t.Fatalf("%q: got %d %q", c.in, resp.StatusCode, resp.ReasonPhrase)
		}
	}
	for _, in := range []string{
		"HTTP/1.1 20 OK\r\n\r\n",
		"HTTP/1.1 2000 OK\r\n\r\n",
		"HTTP/1.1 abc OK\r\n\r\n",
		"garbage\r\n\r\n",
		"HTTP/1.1 2000\r\n\r\n",
		// twelve bytes, but the first space is not followed by a three digit code
		"HTTP/1.10 20\r\n\r\n",
		"ICY/1.0.0 12\r\n\r\n",
		"H 2000000000\r\n\r\n",
	} {
		if _, err := ParseResponse(newBR(in)); !errors.Is(err, ErrInvalidResponseLine) {
			t.Fatalf("%q: err=%v", in, err)
		}
	}
}

func TestResponse_EmitDefaultReason(t *testing.T) {
	resp := NewResponse(404, "", Protocol11)
	resp.Headers.AddHeader("Content-Length", "0")
	var buf bytes.Buffer
	if err := resp.Emit(&buf); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n" {
		t.Fatalf("emit=%q", got)
	}
	if StatusText(206) != "Partial Content" || StatusText(999) != "" {
		t.Fatalf("StatusText mismatch")
	}
}
