package httpx

// Flusher is implemented by writers that buffer output. Body senders that
// stream can flush between writes.
type Flusher interface {
	Flush() error
}

func flush(w any) error {
	if f, ok := w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
