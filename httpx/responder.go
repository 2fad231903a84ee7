package httpx

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"dqx0.com/go/portkit/httpx/internal/http1"
	"dqx0.com/go/portkit/internal/obs"
)

const (
	html403 = "<html><head><title>403 Forbidden</title></head><body><h1>Forbidden</h1><p>Access to this URL is forbidden.</p></body></html>"
	html404 = "<html><head><title>404 Not Found</title></head><body><h1>Not Found</h1><p>The requested URL was not found on this server.</p></body></html>"
	html500 = "<html><head><title>500 Internal Error</title></head><body><h1>Internal Error</h1><p>The server encountered an unexpected condition which prevented it from fulfilling the request.</p></body></html>"
)

// Responder reads one request from a client stream and writes the
// response back.
type Responder struct {
	br *bufio.Reader
	bw *bufio.Writer
}

func NewResponder(rw io.ReadWriter) *Responder {
	return &Responder{br: bufio.NewReader(rw), bw: bufio.NewWriter(rw)}
}

// ParseRequest reads the request head and attaches the request body, if
// any, as the request entity. An HTTP/1.1 request expecting 100-continue
// gets the interim response right away.
func (r *Responder) ParseRequest(endpoint net.Addr) (*Request, error) {
	req, err := ParseRequest(r.br, endpoint)
	if err != nil {
		return nil, err
	}
	e := NewEntityFromHeaders(&req.Headers)
	switch n, known := e.ContentLength(); {
	case req.Method == MethodGet || req.Method == MethodHead || req.Method == MethodTrace:
	case e.IsChunked():
		e.SetTransferEncoding("")
		e.SetInputStream(http1.NewChunkedReader(r.br), false)
		req.Entity = e
	case known:
		e.SetInputStream(http1.NewLimitedBody(r.br, n), false)
		req.Entity = e
	default:
		// no framing: the body runs until the client closes its side
		e.SetInputStream(r.br, false)
		req.Entity = e
	}
	if req.Protocol == Protocol11 && strings.EqualFold(req.Headers.Get(HeaderExpect), "100-continue") {
		if err := http1.WriteContinue(r.bw); err != nil {
			return nil, err
		}
		if err := r.bw.Flush(); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// SendResponseHeaders writes the status line and headers, deriving the
// Content-* and Connection headers from the entity.
func (r *Responder) SendResponseHeaders(resp *Response) error {
	if resp.Protocol == Protocol10 {
		resp.Headers.SetHeader(HeaderConnection, ConnectionClose, false)
	}
	if e := resp.Entity; e != nil {
		if v := e.ContentType(); v != "" {
			resp.Headers.SetHeader(HeaderContentType, v, false)
		}
		if v := e.ContentEncoding(); v != "" {
			resp.Headers.SetHeader(HeaderContentEncoding, v, false)
		}
		if v := e.TransferEncoding(); v != "" {
			resp.Headers.SetHeader(HeaderTransferEncoding, v, false)
		}
		if n, ok := e.ContentLength(); ok {
			resp.Headers.SetHeader(HeaderContentLength, strconv.FormatInt(n, 10), false)
		} else if !e.IsChunked() {
			resp.Headers.SetHeader(HeaderConnection, ConnectionClose, true)
		}
	} else {
		resp.Headers.SetHeader(HeaderContentLength, "0", false)
	}
	return resp.Emit(r.bw)
}

// SendResponseBody writes the response entity.
func (r *Responder) SendResponseBody(resp *Response) error {
	return DefaultSendResponseBody(resp, r.bw)
}

func (r *Responder) Writer() *bufio.Writer { return r.bw }

func (r *Responder) Flush() error { return r.bw.Flush() }

// DefaultSendResponseBody copies the response entity to w, chunk-encoding
// it when its transfer encoding is chunked, and flushes w when it buffers.
func DefaultSendResponseBody(resp *Response, w io.Writer) error {
	if resp.Entity == nil {
		return nil
	}
	if err := writeEntity(w, resp.Entity); err != nil {
		return err
	}
	return flush(w)
}

// RespondToClient answers a single request on conn and closes it.
func (s *Server) RespondToClient(ctx context.Context, conn net.Conn, rc *RequestContext) error {
	defer conn.Close()
	start := time.Now()

	responder := NewResponder(conn)
	req, err := responder.ParseRequest(rc.LocalAddress)
	if err != nil {
		return errors.Wrap(err, "read request")
	}
	req.ctx = WithRequestContext(ctx, rc)
	s.logf(obs.Fine, "%s %s from %s", req.Method, req.URL.ToRequestString(false), rc.RemoteAddress)

	resp := NewResponse(200, "", Protocol10)
	resp.SetEntity(NewEntity())
	defer resp.Close()

	handler := s.FindRequestHandler(req)
	var result error
	if handler == nil {
		result = ErrNoSuchItem
	} else {
		result = handler.SetupResponse(req, rc, resp)
	}
	switch {
	case result == nil:
	case errors.Is(result, ErrNoSuchItem):
		setErrorPage(resp, 404, html404)
	case errors.Is(result, ErrPermissionDenied):
		setErrorPage(resp, 403, html403)
	case errors.Is(result, ErrTerminated):
		s.logf(obs.Info, "handler requested termination")
		s.Terminate()
	default:
		s.logf(obs.Warn, "handler for %s: %v", req.URL.Path(), result)
		setErrorPage(resp, 500, html500)
	}
	resp.Headers.SetHeader(HeaderServer, s.serverHeader, false)

	if err := responder.SendResponseHeaders(resp); err != nil {
		return errors.Wrap(err, "send response headers")
	}
	if req.Method != MethodHead {
		if bs, ok := handler.(BodySender); ok && result == nil {
			err = bs.SendResponseBody(rc, resp, responder.Writer())
		} else {
			err = responder.SendResponseBody(resp)
		}
		if err != nil {
			return errors.Wrap(err, "send response body")
		}
	}
	if err := responder.Flush(); err != nil {
		return err
	}
	code := strconv.Itoa(resp.StatusCode)
	s.metricCounter("portkit_server_responses_total", 1, obs.Label{Key: "status", Value: code})
	s.metricHistogram("portkit_server_request_duration_ms", float64(time.Since(start).Milliseconds()),
		obs.Label{Key: "method", Value: req.Method}, obs.Label{Key: "status", Value: code})
	return nil
}

func setErrorPage(resp *Response, code int, page string) {
	resp.SetStatus(code, "")
	e := NewEntity()
	e.SetInputString(page)
	e.SetContentType("text/html")
	resp.SetEntity(e)
}
