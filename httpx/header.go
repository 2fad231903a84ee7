package httpx

import (
	"bufio"
	"io"
	"iter"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"

	"dqx0.com/go/portkit/container"
	"dqx0.com/go/portkit/httpx/internal/http1"
)

// Header is one name/value field. Names keep the case they were added with.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header collection. Lookups compare names
// case-insensitively; duplicates are kept in arrival order.
// The zero value is empty and ready to use.
type Headers struct {
	list container.List[*Header]
}

func (h *Headers) Len() int { return h.list.Len() }

// All iterates headers in order.
func (h *Headers) All() iter.Seq[*Header] { return h.list.All() }

func (h *Headers) find(name string) container.Iterator[*Header] {
	return h.list.Find(func(x *Header) bool { return strings.EqualFold(x.Name, name) }, 0)
}

// GetHeader returns the first header called name, or nil.
func (h *Headers) GetHeader(name string) *Header {
	if it := h.find(name); it.Valid() {
		return it.Value()
	}
	return nil
}

func (h *Headers) GetHeaderValue(name string) (string, bool) {
	if x := h.GetHeader(name); x != nil {
		return x.Value, true
	}
	return "", false
}

// Get returns the value of the first header called name, or "".
func (h *Headers) Get(name string) string {
	v, _ := h.GetHeaderValue(name)
	return v
}

func (h *Headers) AddHeader(name, value string) {
	h.list.Add(&Header{Name: name, Value: value})
}

// SetHeader updates the first header called name when replace is set and
// adds the header when none exists.
func (h *Headers) SetHeader(name, value string, replace bool) {
	if x := h.GetHeader(name); x != nil {
		if replace {
			x.Value = value
		}
		return
	}
	h.AddHeader(name, value)
}

// RemoveHeader drops every header called name.
func (h *Headers) RemoveHeader(name string) error {
	removed := false
	for x := range h.list.All() {
		if strings.EqualFold(x.Name, name) {
			_ = h.list.Remove(x, false)
			removed = true
		}
	}
	if !removed {
		return ErrNoSuchItem
	}
	return nil
}

func (h *Headers) Clear() { h.list.Clear() }

// Parse reads header lines up to and including the empty line. Folded
// continuation lines are joined to the previous value. Lines without a
// valid name or value are skipped.
func (h *Headers) Parse(br *bufio.Reader) error {
	var name, value string
	pending := false
	flush := func() {
		if !pending {
			return
		}
		pending = false
		value = strings.Trim(value, " \t")
		if httpguts.ValidHeaderFieldValue(value) {
			h.AddHeader(name, value)
		}
	}
	for {
		line, err := http1.ReadLine(br, MaxLineLength)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		if pending && (line[0] == ' ' || line[0] == '\t') {
			value += line[1:]
			continue
		}
		flush()
		if h.Len() >= MaxHeaderCount {
			return errors.WithStack(ErrTooManyHeaders)
		}
		colon := strings.IndexByte(line, ':')
		if colon < 1 || !httpguts.ValidHeaderFieldName(line[:colon]) {
			continue
		}
		name = line[:colon]
		value = strings.TrimLeft(line[colon+1:], " \t")
		pending = true
	}
	flush()
	return nil
}

// Emit writes every header as "Name: Value\r\n". Values are stripped of
// control characters so a header can never inject another line.
func (h *Headers) Emit(w io.Writer) error {
	for x := range h.list.All() {
		if _, err := io.WriteString(w, x.Name+": "+http1.SanitizeHeaderValue(x.Value)+"\r\n"); err != nil {
			return err
		}
	}
	return nil
}
