package obs

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestStdLogger_MinLevelAndName(t *testing.T) {
	var buf bytes.Buffer
	l := Named(StdLogger{L: log.New(&buf, "", 0), Min: Info}, "portkit.test")
	l.Logf(Debug, "hidden %d", 1)
	l.Logf(Warn, "shown %d", 2)
	if got := buf.String(); got != "[WARN] portkit.test: shown 2\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("PORTKIT_TEST_LEVEL", "warning")
	if got := LevelFromEnv("PORTKIT_TEST_LEVEL", Info); got != Warn {
		t.Fatalf("got %v", got)
	}
	t.Setenv("PORTKIT_TEST_LEVEL", "bogus")
	if got := LevelFromEnv("PORTKIT_TEST_LEVEL", Error); got != Error {
		t.Fatalf("got %v", got)
	}
}

func TestMemoryMeter(t *testing.T) {
	m := NewMemoryMeter()
	m.Counter("reqs", 1, Label{Key: "method", Value: "GET"})
	m.Counter("reqs", 2, Label{Key: "method", Value: "GET"})
	m.Counter("reqs", 1, Label{Key: "method", Value: "HEAD"})
	m.Histogram("lat", 5)
	if got := m.Value("reqs", Label{Key: "method", Value: "GET"}); got != 3 {
		t.Fatalf("GET=%v", got)
	}
	if got := m.Total("reqs"); got != 4 {
		t.Fatalf("total=%v", got)
	}
	keys, _ := m.Snapshot()
	if len(keys) != 3 || !strings.HasPrefix(keys[0], "lat") {
		t.Fatalf("keys=%v", keys)
	}
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatal("OrNop(nil) is not a NopLogger")
	}
}
