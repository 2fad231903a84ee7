package httpx

import (
	"time"

	"dqx0.com/go/portkit/httpx/internal/http1"
)

// Version is reported in the default User-Agent and Server headers.
const Version = "1.0"

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodOptions = "OPTIONS"
	MethodDelete  = "DELETE"
	MethodTrace   = "TRACE"
)

const (
	Protocol10 = "HTTP/1.0"
	Protocol11 = "HTTP/1.1"
)

const (
	HeaderHost             = "Host"
	HeaderConnection       = "Connection"
	HeaderUserAgent        = "User-Agent"
	HeaderServer           = "Server"
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderContentEncoding  = "Content-Encoding"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderLocation         = "Location"
	HeaderRange            = "Range"
	HeaderContentRange     = "Content-Range"
	HeaderAcceptRanges     = "Accept-Ranges"
	HeaderCookie           = "Cookie"
	HeaderAuthorization    = "Authorization"
	HeaderExpect           = "Expect"
)

const (
	TransferEncodingChunked = "chunked"
	ConnectionClose         = "close"
	ConnectionKeepAlive     = "keep-alive"
)

// Client defaults.
const (
	DefaultConnectionTimeout   = 30 * time.Second
	DefaultIOTimeout           = 30 * time.Second
	DefaultNameResolverTimeout = 60 * time.Second
	DefaultMaxRedirects        = 20
	DefaultUserAgent           = "portkit/" + Version
)

// Server defaults. A zero connection timeout waits forever for clients.
const (
	DefaultServerConnectionTimeout time.Duration = 0
	DefaultServerIOTimeout                       = 60 * time.Second
	DefaultServerHeader                          = "portkit/" + Version
	DefaultServerMaxWorkers                      = 16
)

// Connection pool defaults.
const (
	DefaultMaxConnections   = 5
	DefaultMaxConnectionAge = 50 * time.Second
	DefaultCleanupInterval  = 5 * time.Second
)

// Protocol limits.
const (
	MaxReconnects       = 10
	MaxInterimResponses = 10
	MaxHeaderCount      = 100
	MaxLineLength       = http1.MaxLineLength
	maxDrainOnClose     = 256 << 10
)
