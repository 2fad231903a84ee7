package httpx

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"dqx0.com/go/portkit/httpx/internal/http1"
)

// Response is an HTTP response message.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	Protocol     string
	Headers      Headers
	// Entity is the optional body. For client responses it streams from
	// the connection and must be closed.
	Entity *Entity
}

// NewResponse builds a response. An empty reason uses the standard phrase.
func NewResponse(code int, reason, protocol string) *Response {
	r := &Response{Protocol: protocol}
	r.SetStatus(code, reason)
	if r.Protocol == "" {
		r.Protocol = Protocol10
	}
	return r
}

func (r *Response) SetStatus(code int, reason string) {
	if reason == "" {
		reason = StatusText(code)
	}
	r.StatusCode, r.ReasonPhrase = code, reason
}

// StatusText returns the standard reason phrase for code, or "".
func StatusText(code int) string { return http1.ReasonPhrase(code) }

// ParseResponse reads a status line and headers from br.
func ParseResponse(br *bufio.Reader) (*Response, error) {
	line, err := http1.ReadLine(br, MaxLineLength)
	if err != nil {
		return nil, err
	}
	first := strings.IndexByte(line, ' ')
	if first < 1 {
		return nil, errors.Wrapf(ErrInvalidResponseLine, "%q", line)
	}
	second := strings.IndexByte(line[first+1:], ' ')
	if second < 0 {
		// some servers leave out the space before an empty reason
		if len(line) != 12 || first+4 != len(line) {
			return nil, errors.Wrapf(ErrInvalidResponseLine, "%q", line)
		}
	} else if second != 3 {
		return nil, errors.Wrapf(ErrInvalidResponseLine, "%q", line)
	}
	code, err := strconv.Atoi(line[first+1 : first+4])
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidResponseLine, "status %q", line[first+1:first+4])
	}
	resp := &Response{StatusCode: code, Protocol: line[:first]}
	if len(line) > first+5 {
		resp.ReasonPhrase = line[first+5:]
	}
	if err := resp.Headers.Parse(br); err != nil {
		return nil, err
	}
	return resp, nil
}

// Emit writes the status line and headers, ending with the empty line.
func (r *Response) Emit(w io.Writer) error {
	var b bytes.Buffer
	b.WriteString(r.Protocol)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.StatusCode))
	b.WriteByte(' ')
	b.WriteString(r.ReasonPhrase)
	b.WriteString("\r\n")
	if err := r.Headers.Emit(&b); err != nil {
		return err
	}
	b.WriteString("\r\n")
	_, err := w.Write(b.Bytes())
	return err
}

// SetEntity attaches e, closing any previous body.
func (r *Response) SetEntity(e *Entity) {
	if r.Entity != nil && r.Entity != e {
		_ = r.Entity.Close()
	}
	r.Entity = e
}

// Close releases the body and, through it, the connection.
func (r *Response) Close() error {
	if r == nil || r.Entity == nil {
		return nil
	}
	return r.Entity.Close()
}

func noResponseBody(status int, method string) bool {
	if method == MethodHead {
		return true
	}
	if http1.IsInterim(status) {
		return true
	}
	return status == 204 || status == 304
}
