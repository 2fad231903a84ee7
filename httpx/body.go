package httpx

import "io"

// entityBody streams a response body off a connection. Once the body is
// read to the end the connection goes back to its pool when persist is set;
// otherwise it is closed.
type entityBody struct {
	r       io.Reader
	persist bool
	release func(keep bool)
	done    bool
}

func newEntityBody(r io.Reader, persist bool, release func(keep bool)) *entityBody {
	return &entityBody{r: r, persist: persist, release: release}
}

func (b *entityBody) finish(keep bool) {
	if !b.done {
		b.done = true
		b.release(keep)
	}
}

func (b *entityBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	n, err := b.r.Read(p)
	switch {
	case err == io.EOF:
		b.finish(b.persist)
	case err != nil:
		b.finish(false)
	}
	return n, err
}

// Close drains a small remainder so the connection can be reused; larger
// or unbounded remainders close the connection.
func (b *entityBody) Close() error {
	if b.done {
		return nil
	}
	if !b.persist {
		b.finish(false)
		return nil
	}
	n, err := io.CopyN(io.Discard, b.r, maxDrainOnClose+1)
	b.finish(err == io.EOF && n <= maxDrainOnClose)
	return nil
}
