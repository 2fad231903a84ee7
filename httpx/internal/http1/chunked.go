package http1

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ChunkedReader decodes a Transfer-Encoding: chunked body. Trailers are
// read and discarded.
type ChunkedReader struct {
	br      *bufio.Reader
	remain  int64 // bytes left in the current chunk
	eos     bool
	maxLine int
}

func NewChunkedReader(br *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{br: br, maxLine: MaxLineLength}
}

func (c *ChunkedReader) Read(p []byte) (int, error) {
	if c.eos {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if c.remain == 0 {
		size, err := c.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			if err := c.readTrailers(); err != nil {
				return 0, err
			}
			c.eos = true
			return 0, io.EOF
		}
		c.remain = size
	}
	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.br.Read(p)
	c.remain -= int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}
	if c.remain == 0 {
		if err := c.expectCRLF(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Seek always fails: a chunked stream cannot be repositioned.
func (c *ChunkedReader) Seek(offset int64, whence int) (int64, error) {
	return 0, ErrNotSupported
}

// Close drains the stream up to the terminating chunk.
func (c *ChunkedReader) Close() error {
	_, err := io.Copy(io.Discard, c)
	return err
}

func (c *ChunkedReader) readChunkSize() (int64, error) {
	line, err := ReadLine(c.br, c.maxLine)
	if err != nil {
		return 0, err
	}
	if line == "" {
		return 0, errors.Wrap(ErrChunkFormat, "empty chunk size line")
	}
	var size int64
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == ' ' || ch == ';' || ch == '\r' || ch == '\n' {
			break
		}
		nib, ok := hexNibble(ch)
		if !ok || size >= 1<<59 {
			return 0, errors.Wrapf(ErrChunkFormat, "chunk size %q", line)
		}
		size = size<<4 | int64(nib)
	}
	return size, nil
}

func (c *ChunkedReader) expectCRLF() error {
	var crlf [2]byte
	if _, err := io.ReadFull(c.br, crlf[:]); err != nil {
		return err
	}
	if crlf[0] != '\r' || crlf[1] != '\n' {
		return errors.Wrapf(ErrChunkFormat, "expected CRLF after chunk, got %q", crlf[:])
	}
	return nil
}

func (c *ChunkedReader) readTrailers() error {
	for {
		line, err := ReadLine(c.br, c.maxLine)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ChunkedWriter frames every Write as one chunk. The terminating zero-size
// chunk is only written by Terminate.
type ChunkedWriter struct {
	w io.Writer
}

func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

func (c *ChunkedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := fmt.Fprintf(c.w, "%X\r\n", len(p)); err != nil {
		return 0, err
	}
	if _, err := c.w.Write(p); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(c.w, "\r\n"); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush flushes the destination when it buffers.
func (c *ChunkedWriter) Flush() error {
	if f, ok := c.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Terminate writes the last-chunk marker and an empty trailer section.
func (c *ChunkedWriter) Terminate() error {
	_, err := io.WriteString(c.w, "0\r\n\r\n")
	return err
}
