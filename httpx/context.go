package httpx

import (
	"context"
	"net"
)

// RequestContext describes the connection a request arrived on.
type RequestContext struct {
	LocalAddress  net.Addr
	RemoteAddress net.Addr
}

type ctxKey int

const ctxKeyRequestContext ctxKey = iota

// WithRequestContext returns a new context that carries rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKeyRequestContext, rc)
}

// RequestContextFrom extracts the request context from ctx.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	v := ctx.Value(ctxKeyRequestContext)
	if v == nil {
		return nil, false
	}
	rc, ok := v.(*RequestContext)
	return rc, ok && rc != nil
}
