package httpx

import (
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpproxy"

	"dqx0.com/go/portkit/uri"
)

// ProxyAddress is the host and port of an HTTP proxy.
type ProxyAddress struct {
	Host string
	Port uint16
}

func (p ProxyAddress) String() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
}

// ProxySelector picks the proxy for a target URL. It returns ErrNoProxy
// when the URL should be reached directly.
type ProxySelector interface {
	ProxyForURL(u uri.URL) (ProxyAddress, error)
}

// StaticProxySelector always returns the same proxy per scheme. A zero
// address means no proxy for that scheme.
type StaticProxySelector struct {
	HTTP  ProxyAddress
	HTTPS ProxyAddress
}

func (s StaticProxySelector) ProxyForURL(u uri.URL) (ProxyAddress, error) {
	p := s.HTTP
	if u.SchemeID() == uri.SchemeHTTPS {
		p = s.HTTPS
	}
	if p.Host == "" {
		return ProxyAddress{}, ErrNoProxy
	}
	return p, nil
}

// EnvProxySelector reads HTTP_PROXY, HTTPS_PROXY and NO_PROXY (and their
// lowercase forms), falling back to ALL_PROXY. The environment is read
// once, when the selector is created. Loopback targets never use a proxy.
type EnvProxySelector struct {
	proxy    func(*url.URL) (*url.URL, error)
	fallback func(*url.URL) (*url.URL, error)
}

func NewEnvProxySelector() *EnvProxySelector {
	cfg := httpproxy.FromEnvironment()
	s := &EnvProxySelector{proxy: cfg.ProxyFunc()}
	if all := firstEnv("ALL_PROXY", "all_proxy"); all != "" {
		fb := &httpproxy.Config{HTTPProxy: all, HTTPSProxy: all, NoProxy: cfg.NoProxy}
		s.fallback = fb.ProxyFunc()
	}
	return s
}

func (s *EnvProxySelector) ProxyForURL(u uri.URL) (ProxyAddress, error) {
	target := &url.URL{Scheme: u.Scheme(), Host: net.JoinHostPort(u.Host(), strconv.Itoa(int(u.Port())))}
	p, err := s.proxy(target)
	if err != nil {
		return ProxyAddress{}, errors.Wrap(err, "proxy from environment")
	}
	if p == nil && s.fallback != nil {
		if p, err = s.fallback(target); err != nil {
			return ProxyAddress{}, errors.Wrap(err, "proxy from environment")
		}
	}
	if p == nil || p.Hostname() == "" {
		return ProxyAddress{}, ErrNoProxy
	}
	port := uri.DefaultHTTPPort
	if p.Scheme == "https" {
		port = uri.DefaultHTTPSPort
	}
	if ps := p.Port(); ps != "" {
		n, err := strconv.ParseUint(ps, 10, 16)
		if err != nil {
			return ProxyAddress{}, errors.Wrapf(ErrInvalidSyntax, "proxy port %q", ps)
		}
		port = uint16(n)
	}
	return ProxyAddress{Host: p.Hostname(), Port: port}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
