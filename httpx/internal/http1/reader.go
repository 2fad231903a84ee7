package http1

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// MaxLineLength bounds request, status, header and chunk-size lines.
const MaxLineLength = 8192

// ReadLine reads one line terminated by LF, dropping CR bytes. Lines longer
// than limit fail with ErrLineTooLong; limit <= 0 disables the check.
// A final unterminated line is returned with a nil error; io.EOF is only
// reported when nothing was read.
func ReadLine(br *bufio.Reader, limit int) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		if b == '\n' {
			break
		}
		if b != '\r' {
			sb.WriteByte(b)
		}
		if limit > 0 && sb.Len() > limit {
			return "", errors.WithStack(ErrLineTooLong)
		}
	}
	return sb.String(), nil
}

// LimitedBody reads at most N bytes from R and drains the rest on Close so
// the underlying connection can carry another message.
type LimitedBody struct {
	lr *io.LimitedReader
}

func NewLimitedBody(r io.Reader, n int64) *LimitedBody {
	return &LimitedBody{lr: &io.LimitedReader{R: r, N: n}}
}

func (b *LimitedBody) Read(p []byte) (int, error) {
	n, err := b.lr.Read(p)
	if err == io.EOF && b.lr.N > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Remaining reports how many body bytes are still unread.
func (b *LimitedBody) Remaining() int64 { return b.lr.N }

func (b *LimitedBody) Close() error {
	buf := make([]byte, 1024)
	for b.lr.N > 0 {
		n := int64(len(buf))
		if n > b.lr.N {
			n = b.lr.N
		}
		if _, err := io.ReadFull(b.lr, buf[:n]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}
