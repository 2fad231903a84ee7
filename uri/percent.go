package uri

import "strings"

// Character sets passed to PercentEncode.
const (
	UnsafeCharsToEncode   = " !\"<>\\^`{|}"
	PathCharsToEncode     = UnsafeCharsToEncode + "?#[]"
	QueryCharsToEncode    = UnsafeCharsToEncode + "#[]"
	FragmentCharsToEncode = UnsafeCharsToEncode + "[]"
)

const upperHex = "0123456789ABCDEF"

// PercentEncode escapes every byte outside the printable ASCII range, every
// byte listed in chars, and '%' itself when encodePercents is set.
func PercentEncode(s, chars string, encodePercents bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7E || (c == '%' && encodePercents) || strings.IndexByte(chars, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0F])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// PercentDecode reverses PercentEncode. Malformed escapes are kept literally.
func PercentDecode(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
