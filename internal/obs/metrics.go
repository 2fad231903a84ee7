package obs

import (
	"sort"
	"strings"
	"sync"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// OrNopMeter returns m, or a NopMeter when m is nil.
func OrNopMeter(m Meter) Meter {
	if m == nil {
		return NopMeter{}
	}
	return m
}

// MemoryMeter sums measurements in memory, keyed by name and labels.
// Histograms record the sum of observations under the same key.
type MemoryMeter struct {
	mu     sync.Mutex
	values map[string]float64
}

func NewMemoryMeter() *MemoryMeter {
	return &MemoryMeter{values: make(map[string]float64)}
}

func (m *MemoryMeter) Counter(name string, value float64, labels ...Label) {
	m.add(name, value, labels)
}

func (m *MemoryMeter) Histogram(name string, value float64, labels ...Label) {
	m.add(name, value, labels)
}

func (m *MemoryMeter) add(name string, value float64, labels []Label) {
	k := key(name, labels)
	m.mu.Lock()
	m.values[k] += value
	m.mu.Unlock()
}

// Value returns the accumulated value for name and labels.
func (m *MemoryMeter) Value(name string, labels ...Label) float64 {
	k := key(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[k]
}

// Total sums every series of name regardless of labels.
func (m *MemoryMeter) Total(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for k, v := range m.values {
		if k == name || strings.HasPrefix(k, name+"{") {
			sum += v
		}
	}
	return sum
}

// Snapshot returns the series keys in sorted order with their values.
func (m *MemoryMeter) Snapshot() ([]string, map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.values))
	keys := make([]string, 0, len(m.values))
	for k, v := range m.values {
		out[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, out
}

func key(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}
	ls := make([]string, 0, len(labels))
	for _, l := range labels {
		ls = append(ls, l.Key+"="+l.Value)
	}
	sort.Strings(ls)
	return name + "{" + strings.Join(ls, ",") + "}"
}
