package httpx

import (
	"github.com/pkg/errors"

	"dqx0.com/go/portkit/container"
	"dqx0.com/go/portkit/httpx/internal/http1"
	"dqx0.com/go/portkit/uri"
)

var (
	ErrInvalidRequestLine  = errors.New("httpx: invalid request line")
	ErrInvalidResponseLine = errors.New("httpx: invalid response line")
	ErrInvalidRequest      = errors.New("httpx: invalid request")
	ErrInvalidState        = errors.New("httpx: invalid state")
	ErrTooManyHeaders      = errors.New("httpx: too many headers")
	ErrTooManyRedirects    = errors.New("httpx: too many redirects")
	ErrTooManyReconnects   = errors.New("httpx: too many reconnects")
	ErrCannotResendBody    = errors.New("httpx: cannot resend body")
	ErrNoProxy             = errors.New("httpx: no proxy")
	ErrUnsupportedScheme   = errors.New("httpx: unsupported scheme")
	ErrPermissionDenied    = errors.New("httpx: permission denied")
	ErrTerminated          = errors.New("httpx: terminated")
	ErrAborted             = errors.New("httpx: aborted")
	ErrTimeout             = errors.New("httpx: timeout")
	ErrNoBody              = errors.New("httpx: no body")
	ErrNoSuchProperty      = errors.New("httpx: no such property")
)

// Errors shared with the lower layers, re-exported so callers only need
// this package for errors.Is checks.
var (
	ErrNoSuchItem        = container.ErrNoSuchItem
	ErrInvalidParameters = uri.ErrInvalidParameters
	ErrInvalidSyntax     = uri.ErrInvalidSyntax
	ErrLineTooLong       = http1.ErrLineTooLong
	ErrChunkFormat       = http1.ErrChunkFormat
	ErrNotSupported      = http1.ErrNotSupported
)
