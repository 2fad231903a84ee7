package httpx

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"

	"dqx0.com/go/portkit/httpx/internal/http1"
	"dqx0.com/go/portkit/uri"
)

// Request is an HTTP request message. A Request must not be copied after
// first use.
type Request struct {
	Method   string
	URL      uri.URL
	Protocol string
	Headers  Headers
	// Entity is the optional body.
	Entity *Entity

	ctx context.Context
}

// Context returns the request's context. On the server side it carries the
// RequestContext of the connection.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

func NewRequest(method string, u uri.URL, protocol string) *Request {
	if protocol == "" {
		protocol = Protocol10
	}
	return &Request{Method: method, URL: u, Protocol: protocol}
}

// NewRequestFromString parses rawURL and builds an HTTP/1.0 request.
func NewRequestFromString(method, rawURL string) (*Request, error) {
	u, err := uri.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", rawURL)
	}
	return NewRequest(method, u, Protocol10), nil
}

// SetURL replaces the target URL by parsing rawURL.
func (r *Request) SetURL(rawURL string) error {
	u, err := uri.ParseURL(rawURL)
	if err != nil {
		return errors.Wrapf(err, "parse %q", rawURL)
	}
	r.URL = u
	return nil
}

// ParseRequest reads a request line and headers from br. endpoint is the
// local address the request arrived on and fills in the URL authority of
// origin-form requests; it may be nil.
func ParseRequest(br *bufio.Reader, endpoint net.Addr) (*Request, error) {
	var line string
	for line == "" {
		var err error
		if line, err = http1.ReadLine(br, MaxLineLength); err != nil {
			return nil, err
		}
	}
	first := strings.IndexByte(line, ' ')
	if first < 0 {
		return nil, errors.Wrapf(ErrInvalidRequestLine, "%q", line)
	}
	second := strings.IndexByte(line[first+1:], ' ')
	if second < 0 {
		return nil, errors.Wrapf(ErrInvalidRequestLine, "%q", line)
	}
	second += first + 1
	method, target, protocol := line[:first], line[first+1:second], line[second+1:]
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, errors.Wrapf(ErrInvalidRequestLine, "bad method %q", method)
	}

	req := &Request{Method: method, Protocol: protocol}
	proxyStyle := len(target) >= 7 && strings.EqualFold(target[:7], "http://")
	if proxyStyle {
		if err := req.URL.Parse(target, 0); err != nil {
			return nil, errors.Wrapf(ErrInvalidRequestLine, "target %q", target)
		}
	}
	if err := req.Headers.Parse(br); err != nil {
		return nil, err
	}
	if !proxyStyle {
		req.URL.SetScheme("http")
		_ = req.URL.ParsePathPlus(target)
		req.URL.SetPort(uri.DefaultHTTPPort)
		host, port := splitEndpoint(endpoint)
		if h, ok := req.Headers.GetHeaderValue(HeaderHost); ok {
			req.URL.SetHost(h)
			if endpoint != nil {
				req.URL.SetPort(port)
			}
		} else if endpoint != nil {
			req.URL.SetHost(host)
			req.URL.SetPort(port)
		} else {
			req.URL.SetHost("localhost")
		}
	}
	return req, nil
}

func splitEndpoint(a net.Addr) (string, uint16) {
	if a == nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String(), 0
	}
	p, _ := strconv.ParseUint(port, 10, 16)
	return host, uint16(p)
}

// Emit writes the request line and headers, ending with the empty line.
// The absolute URL is used as target when useProxy is set.
func (r *Request) Emit(w io.Writer, useProxy bool) error {
	var b bytes.Buffer
	b.WriteString(r.Method)
	b.WriteByte(' ')
	if useProxy {
		b.WriteString(r.URL.ToString(false))
	} else {
		b.WriteString(r.URL.ToRequestString(false))
	}
	b.WriteByte(' ')
	b.WriteString(r.Protocol)
	b.WriteString("\r\n")
	if err := r.Headers.Emit(&b); err != nil {
		return err
	}
	b.WriteString("\r\n")
	_, err := w.Write(b.Bytes())
	return err
}

// SetEntity attaches e, closing any previous body.
func (r *Request) SetEntity(e *Entity) {
	if r.Entity != nil && r.Entity != e {
		_ = r.Entity.Close()
	}
	r.Entity = e
}
