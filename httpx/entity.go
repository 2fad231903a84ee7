package httpx

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Entity is a message body together with its content metadata.
type Entity struct {
	input            io.Reader
	contentLength    int64
	lengthKnown      bool
	contentType      string
	contentEncoding  string
	transferEncoding string
}

func NewEntity() *Entity { return &Entity{} }

// NewEntityFromHeaders returns an entity whose metadata comes from h.
func NewEntityFromHeaders(h *Headers) *Entity {
	e := &Entity{}
	e.SetHeaders(h)
	return e
}

// SetHeaders copies Content-Length, Content-Type, Content-Encoding and
// Transfer-Encoding from h. An unparsable length counts as a known 0.
func (e *Entity) SetHeaders(h *Headers) {
	if v, ok := h.GetHeaderValue(HeaderContentLength); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			n = 0
		}
		e.contentLength, e.lengthKnown = n, true
	}
	if v, ok := h.GetHeaderValue(HeaderContentType); ok {
		e.contentType = v
	}
	if v, ok := h.GetHeaderValue(HeaderContentEncoding); ok {
		e.contentEncoding = v
	}
	if v, ok := h.GetHeaderValue(HeaderTransferEncoding); ok {
		e.transferEncoding = v
	}
}

// SetInputStream attaches r as the body. With updateLength set the
// content length is taken from r when r can report it.
func (e *Entity) SetInputStream(r io.Reader, updateLength bool) {
	e.input = r
	if !updateLength {
		return
	}
	if n, ok := streamSize(r); ok {
		e.SetContentLength(n)
	}
}

func (e *Entity) SetInputBytes(b []byte) {
	e.SetInputStream(bytes.NewReader(b), false)
	e.SetContentLength(int64(len(b)))
}

func (e *Entity) SetInputString(s string) {
	e.SetInputStream(strings.NewReader(s), false)
	e.SetContentLength(int64(len(s)))
}

// Body returns the attached stream.
func (e *Entity) Body() (io.Reader, error) {
	if e.input == nil {
		return nil, ErrNoBody
	}
	return e.input, nil
}

// Load reads the whole body, stopping at the content length when known.
func (e *Entity) Load() ([]byte, error) {
	if e.input == nil {
		return nil, errors.WithStack(ErrInvalidState)
	}
	r := e.input
	if e.lengthKnown {
		r = io.LimitReader(r, e.contentLength)
	}
	return io.ReadAll(r)
}

// Close closes the body stream when it is closable.
func (e *Entity) Close() error {
	if c, ok := e.input.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Entity) ContentLength() (int64, bool) { return e.contentLength, e.lengthKnown }

func (e *Entity) SetContentLength(n int64) {
	e.contentLength, e.lengthKnown = n, true
}

// ClearContentLength marks the length as unknown.
func (e *Entity) ClearContentLength() {
	e.contentLength, e.lengthKnown = 0, false
}

func (e *Entity) ContentType() string          { return e.contentType }
func (e *Entity) SetContentType(v string)      { e.contentType = v }
func (e *Entity) ContentEncoding() string      { return e.contentEncoding }
func (e *Entity) SetContentEncoding(v string)  { e.contentEncoding = v }
func (e *Entity) TransferEncoding() string     { return e.transferEncoding }
func (e *Entity) SetTransferEncoding(v string) { e.transferEncoding = v }

// IsChunked reports whether the transfer encoding is chunked.
func (e *Entity) IsChunked() bool {
	return strings.EqualFold(strings.TrimSpace(e.transferEncoding), TransferEncodingChunked)
}

// rewind seeks the body back to its start so it can be sent again.
func (e *Entity) rewind() error {
	if e == nil || e.input == nil {
		return nil
	}
	s, ok := e.input.(io.Seeker)
	if !ok {
		return ErrCannotResendBody
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(ErrCannotResendBody, err.Error())
	}
	return nil
}

// streamSize reports the bytes left in r when r exposes them.
func streamSize(r io.Reader) (int64, bool) {
	switch s := r.(type) {
	case interface{ Len() int }:
		return int64(s.Len()), true
	case *os.File:
		fi, err := s.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return 0, false
		}
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		return fi.Size() - pos, true
	case io.Seeker:
		cur, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		end, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false
		}
		if _, err := s.Seek(cur, io.SeekStart); err != nil {
			return 0, false
		}
		return end - cur, true
	}
	return 0, false
}
