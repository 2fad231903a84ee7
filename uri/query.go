package uri

import (
	"strings"

	"dqx0.com/go/portkit/container"
)

// RFC 2396 reserved characters followed by other unsafe ones.
const queryFieldCharsToEncode = ";/?:@&=+$," + "\"#<>\\^`{|}"

// UrlEncode form-encodes s: reserved and unsafe bytes are escaped and
// spaces become '+'.
func UrlEncode(s string, encodePercents bool) string {
	return strings.ReplaceAll(PercentEncode(s, queryFieldCharsToEncode, encodePercents), " ", "+")
}

// UrlDecode reverses UrlEncode.
func UrlDecode(s string) string {
	return strings.ReplaceAll(PercentDecode(s), "+", " ")
}

type queryField struct {
	name  string
	value string
}

// Query is an ordered list of encoded name=value fields. Names may repeat.
type Query struct {
	fields container.List[*queryField]
}

// ParseQuery splits an encoded query string on '&' and the first '=' of
// each field. Fields with an empty name are dropped.
func ParseQuery(s string) *Query {
	q := &Query{}
	for _, part := range strings.Split(s, "&") {
		name, value, _ := strings.Cut(part, "=")
		if name == "" {
			continue
		}
		q.AddField(name, value, true)
	}
	return q
}

func (q *Query) Len() int { return q.fields.Len() }

func (q *Query) AddField(name, value string, encoded bool) {
	if !encoded {
		name, value = UrlEncode(name, true), UrlEncode(value, true)
	}
	q.fields.Add(&queryField{name: name, value: value})
}

// SetField replaces the value of the first field called name, or adds it.
func (q *Query) SetField(name, value string, encoded bool) {
	ename, evalue := name, value
	if !encoded {
		ename, evalue = UrlEncode(name, true), UrlEncode(value, true)
	}
	it := q.fields.Find(func(f *queryField) bool { return f.name == ename }, 0)
	if it.Valid() {
		it.Value().value = evalue
		return
	}
	q.fields.Add(&queryField{name: ename, value: evalue})
}

// GetField returns the still-encoded value of the first field whose name
// matches the encoding of name.
func (q *Query) GetField(name string) (string, bool) {
	ename := UrlEncode(name, true)
	it := q.fields.Find(func(f *queryField) bool { return f.name == ename }, 0)
	if !it.Valid() {
		return "", false
	}
	return it.Value().value, true
}

func (q *Query) String() string {
	var b strings.Builder
	for f := range q.fields.All() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		b.WriteString(f.value)
	}
	return b.String()
}
