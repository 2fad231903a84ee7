package http1

import (
	"io"
)

// IsInterim reports whether code is a 1xx informational status.
func IsInterim(code int) bool { return code >= 100 && code < 200 }

// WriteContinue writes an interim 100 Continue response.
func WriteContinue(w io.Writer) error {
	_, err := io.WriteString(w, "HTTP/1.1 100 Continue\r\n\r\n")
	return err
}
