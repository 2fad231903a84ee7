package uri

import (
	"strings"

	"dqx0.com/go/portkit/container"
)

type mimeState int

const (
	mimeNeedName mimeState = iota
	mimeInName
	mimeNeedEquals
	mimeNeedValue
	mimeInQuotedValue
	mimeInValue
	mimeNeedSeparator
)

// ParseMimeParameters parses the parameter section of a MIME header value,
// e.g. `charset=utf-8; name="a \"b\""`. Unquoted CR and LF are ignored.
func ParseMimeParameters(s string) (*container.Map[string, string], error) {
	params := container.NewMap[string, string]()
	var name, value strings.Builder
	commit := func() {
		params.Put(strings.TrimRight(name.String(), " \t\r\n"), strings.TrimRight(value.String(), " \t\r\n"))
		name.Reset()
		value.Reset()
	}

	state := mimeNeedName
	quoted := false
	for i := 0; i <= len(s); i++ {
		end := i == len(s)
		var c byte
		if !end {
			c = s[i]
		}
		if !quoted && (c == '\n' || c == '\r') {
			continue
		}
		switch state {
		case mimeNeedName:
			if end || c == ' ' || c == '\t' {
				continue
			}
			if c < ' ' {
				return nil, ErrInvalidSyntax
			}
			name.WriteByte(c)
			state = mimeInName

		case mimeInName:
			switch {
			case c < ' ':
				return nil, ErrInvalidSyntax
			case c == ' ':
				state = mimeNeedEquals
			case c == '=':
				state = mimeNeedValue
			default:
				name.WriteByte(c)
			}

		case mimeNeedEquals:
			if c < ' ' || (c != ' ' && c != '=') {
				return nil, ErrInvalidSyntax
			}
			if c == '=' {
				state = mimeNeedValue
			}

		case mimeNeedValue:
			switch {
			case c < ' ':
				return nil, ErrInvalidSyntax
			case c == ' ':
			case c == '"':
				state = mimeInQuotedValue
			default:
				value.WriteByte(c)
				state = mimeInValue
			}

		case mimeInQuotedValue:
			switch {
			case quoted:
				quoted = false
				if end {
					return nil, ErrInvalidSyntax
				}
				value.WriteByte(c)
			case c == '\\':
				quoted = true
			case c == '"':
				commit()
				state = mimeNeedSeparator
			case c < ' ':
				return nil, ErrInvalidSyntax
			default:
				value.WriteByte(c)
			}

		case mimeInValue:
			switch {
			case end || c == ';':
				commit()
				state = mimeNeedName
			case c < ' ':
				return nil, ErrInvalidSyntax
			default:
				value.WriteByte(c)
			}

		case mimeNeedSeparator:
			switch {
			case end, c == ' ', c == '\t':
			case c < ' ' || c != ';':
				return nil, ErrInvalidSyntax
			default:
				state = mimeNeedName
			}
		}
	}
	return params, nil
}
