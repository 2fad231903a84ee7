package httpx

import (
	"bufio"
	"io"

	"dqx0.com/go/portkit/httpx/internal/http1"
)

type (
	// ChunkedReader decodes a chunked body and returns io.EOF after the
	// trailers of the last chunk.
	ChunkedReader = http1.ChunkedReader
	// ChunkedWriter frames each Write as one chunk. Terminate writes the
	// final empty chunk and must be called once the body is complete.
	ChunkedWriter = http1.ChunkedWriter
)

func NewChunkedReader(br *bufio.Reader) *ChunkedReader { return http1.NewChunkedReader(br) }

func NewChunkedWriter(w io.Writer) *ChunkedWriter { return http1.NewChunkedWriter(w) }
