package httpx

import "strconv"

// PropertyKind tags the value held by a PropertyValue.
type PropertyKind int

const (
	PropertyUnknown PropertyKind = iota
	PropertyInteger
	PropertyString
)

func (k PropertyKind) String() string {
	switch k {
	case PropertyInteger:
		return "integer"
	case PropertyString:
		return "string"
	}
	return "unknown"
}

// PropertyValue is an integer or a string. The zero value is unknown.
type PropertyValue struct {
	kind PropertyKind
	i    int
	s    string
}

func IntegerProperty(v int) PropertyValue   { return PropertyValue{kind: PropertyInteger, i: v} }
func StringProperty(v string) PropertyValue { return PropertyValue{kind: PropertyString, s: v} }

func (v PropertyValue) Kind() PropertyKind { return v.kind }

func (v PropertyValue) Integer() (int, bool) { return v.i, v.kind == PropertyInteger }

// String returns the string payload. It does not format integers; use
// Text for display.
func (v PropertyValue) String() (string, bool) { return v.s, v.kind == PropertyString }

// Text renders the value for display.
func (v PropertyValue) Text() string {
	switch v.kind {
	case PropertyInteger:
		return strconv.Itoa(v.i)
	case PropertyString:
		return v.s
	}
	return "<unknown>"
}

// Configurable is implemented by components with named runtime properties.
type Configurable interface {
	SetProperty(name string, value PropertyValue) error
	GetProperty(name string) (PropertyValue, error)
}
