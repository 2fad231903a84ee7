package uri

import (
	"strconv"
	"strings"
)

// SchemeID classifies the schemes the HTTP layer knows about.
type SchemeID int

const (
	SchemeUnknown SchemeID = iota
	SchemeHTTP
	SchemeHTTPS
)

const (
	DefaultHTTPPort  uint16 = 80
	DefaultHTTPSPort uint16 = 443
	InvalidPort      uint16 = 0
)

// URL is a hierarchical URL of the form scheme://host:port/path?query#fragment.
// Path, query and fragment are stored percent-encoded.
type URL struct {
	scheme      string
	schemeID    SchemeID
	host        string
	port        uint16
	path        string
	query       string
	hasQuery    bool
	fragment    string
	hasFragment bool
}

// ParseURL parses s, falling back to the scheme's default port.
func ParseURL(s string) (URL, error) {
	var u URL
	if err := u.Parse(s, 0); err != nil {
		return URL{}, err
	}
	return u, nil
}

// NewURL builds a URL from parts. Path, query and fragment must already be
// encoded; empty query or fragment means absent.
func NewURL(scheme, host string, port uint16, path, query, fragment string) URL {
	u := URL{host: host, port: port, path: path}
	u.SetScheme(scheme)
	u.query, u.hasQuery = query, query != ""
	u.fragment, u.hasFragment = fragment, fragment != ""
	return u
}

func (u *URL) Scheme() string     { return u.scheme }
func (u *URL) SchemeID() SchemeID { return u.schemeID }
func (u *URL) Host() string       { return u.host }
func (u *URL) Port() uint16       { return u.port }
func (u *URL) Path() string       { return u.path }
func (u *URL) Query() string      { return u.query }
func (u *URL) Fragment() string   { return u.fragment }
func (u *URL) HasQuery() bool     { return u.hasQuery }
func (u *URL) HasFragment() bool  { return u.hasFragment }

// DefaultPort is the well-known port of the scheme, or 0.
func (u *URL) DefaultPort() uint16 {
	switch u.schemeID {
	case SchemeHTTP:
		return DefaultHTTPPort
	case SchemeHTTPS:
		return DefaultHTTPSPort
	}
	return InvalidPort
}

// Reset clears everything but the scheme.
func (u *URL) Reset() {
	scheme, id := u.scheme, u.schemeID
	*u = URL{scheme: scheme, schemeID: id}
}

// IsValid reports whether an http(s) URL has a host and a port, or any other
// URL has a scheme.
func (u *URL) IsValid() bool {
	switch u.schemeID {
	case SchemeHTTP, SchemeHTTPS:
		return u.port != InvalidPort && u.host != ""
	}
	return u.scheme != ""
}

func (u *URL) SetScheme(scheme string) {
	u.scheme = strings.ToLower(scheme)
	switch u.scheme {
	case "http":
		u.schemeID = SchemeHTTP
	case "https":
		u.schemeID = SchemeHTTPS
	default:
		u.schemeID = SchemeUnknown
	}
}

// setSchemeFrom sets the scheme from the prefix of s up to ':' and returns
// the offset of the scheme-specific part.
func (u *URL) setSchemeFrom(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ':':
			u.SetScheme(s[:i])
			return i + 1, nil
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '+' || c == '.' || c == '-':
			continue
		}
		break
	}
	return 0, ErrInvalidSyntax
}

type parseState int

const (
	stateStart parseState = iota
	stateLeadingSlash
	stateHost
	statePort
	statePath
	stateQuery
)

// Parse replaces u with the parse of s. A non-zero defaultPort overrides the
// scheme's well-known port when s carries none. On error the URL is reset.
func (u *URL) Parse(s string, defaultPort uint16) error {
	*u = URL{}
	err := u.parse(s, defaultPort)
	if err != nil {
		u.Reset()
	}
	return err
}

func (u *URL) parse(s string, defaultPort uint16) error {
	off, err := u.setSchemeFrom(s)
	if err != nil {
		return err
	}
	if defaultPort != 0 {
		u.port = defaultPort
	} else {
		u.port = u.DefaultPort()
	}
	s = s[off:]

	state := stateStart
	mark := 0
	for i := 0; i <= len(s); i++ {
		end := i == len(s)
		var c byte
		if !end {
			c = s[i]
		}
		switch state {
		case stateStart:
			if c != '/' {
				return ErrInvalidSyntax
			}
			state = stateLeadingSlash
		case stateLeadingSlash:
			if c != '/' {
				return ErrInvalidSyntax
			}
			state = stateHost
			mark = i + 1
		case stateHost:
			if end || c == ':' || c == '/' || c == '?' || c == '#' {
				u.host = s[mark:i]
				if c == ':' {
					u.port = 0
					state = statePort
				} else {
					return u.parsePathFrom(s[i:])
				}
			}
		case statePort:
			switch {
			case c >= '0' && c <= '9':
				v := uint32(u.port)*10 + uint32(c-'0')
				if v > 65535 {
					u.port = InvalidPort
					return ErrInvalidSyntax
				}
				u.port = uint16(v)
			case end || c == '/':
				return u.parsePathFrom(s[i:])
			default:
				u.port = InvalidPort
				return ErrInvalidSyntax
			}
		}
	}
	return nil
}

func (u *URL) parsePathFrom(rest string) error {
	if rest == "" {
		u.path = "/"
		return nil
	}
	return u.ParsePathPlus(rest)
}

// ParsePathPlus replaces path, query and fragment with the parse of an
// encoded "path?query#fragment" string.
func (u *URL) ParsePathPlus(s string) error {
	u.path, u.query, u.fragment = "", "", ""
	u.hasQuery, u.hasFragment = false, false
	end := strings.IndexAny(s, "?#")
	if end < 0 {
		u.path = s
		return nil
	}
	u.path = s[:end]
	if s[end] == '?' {
		u.hasQuery = true
		rest := s[end+1:]
		if j := strings.IndexByte(rest, '#'); j >= 0 {
			u.query = rest[:j]
			u.hasFragment = true
			u.fragment = rest[j+1:]
		} else {
			u.query = rest
		}
		return nil
	}
	u.hasFragment = true
	u.fragment = s[end+1:]
	return nil
}

// SetHost sets the host from "host" or "host:port".
func (u *URL) SetHost(host string) {
	i := strings.IndexByte(host, ':')
	if i < 0 {
		u.host = host
		return
	}
	u.host = host[:i]
	if p, err := strconv.ParseUint(host[i+1:], 10, 16); err == nil {
		u.port = uint16(p)
	}
}

func (u *URL) SetPort(port uint16) { u.port = port }

func (u *URL) SetPath(path string, encoded bool) {
	if !encoded {
		path = PercentEncode(path, PathCharsToEncode, false)
	}
	u.path = path
}

func (u *URL) SetQuery(query string, encoded bool) {
	if !encoded {
		query = PercentEncode(query, QueryCharsToEncode, false)
	}
	u.query = query
	u.hasQuery = query != ""
}

func (u *URL) SetFragment(fragment string, encoded bool) {
	if !encoded {
		fragment = PercentEncode(fragment, FragmentCharsToEncode, false)
	}
	u.fragment = fragment
	u.hasFragment = true
}

// ToRequestString renders the request target: path (at least "/"),
// query and optionally the fragment.
func (u *URL) ToRequestString(withFragment bool) string {
	var b strings.Builder
	if u.path == "" {
		b.WriteByte('/')
	} else {
		b.WriteString(u.path)
	}
	if u.hasQuery {
		b.WriteByte('?')
		b.WriteString(u.query)
	}
	if withFragment && u.hasFragment {
		b.WriteByte('#')
		b.WriteString(u.fragment)
	}
	return b.String()
}

// ToStringWithDefaultPort renders the absolute URL, leaving out the port
// when it equals defaultPort.
func (u *URL) ToStringWithDefaultPort(defaultPort uint16, withFragment bool) string {
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.host)
	if u.port != defaultPort {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(u.port)))
	}
	b.WriteString(u.ToRequestString(withFragment))
	return b.String()
}

// ToString renders the absolute URL without the scheme's default port.
func (u *URL) ToString(withFragment bool) string {
	return u.ToStringWithDefaultPort(u.DefaultPort(), withFragment)
}

func (u URL) String() string { return u.ToString(true) }
