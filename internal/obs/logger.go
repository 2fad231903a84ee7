package obs

import (
	"log"
	"os"
	"strings"
)

type Level int

const (
	Fine Level = iota
	Debug
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Fine:
		return "FINE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FINE", "FINEST", "FINER", "ALL":
		return Fine, true
	case "DEBUG":
		return Debug, true
	case "INFO":
		return Info, true
	case "WARN", "WARNING":
		return Warn, true
	case "ERROR", "SEVERE":
		return Error, true
	}
	return Info, false
}

// LevelFromEnv reads a level name from the environment variable key,
// returning def when it is unset or unknown.
func LevelFromEnv(key string, def Level) Level {
	if l, ok := ParseLevel(os.Getenv(key)); ok {
		return l
	}
	return def
}

// Logger is a minimal logging interface for observability.
type Logger interface {
	Logf(level Level, format string, args ...interface{})
}

// NopLogger discards all logs.
type NopLogger struct{}

func (NopLogger) Logf(level Level, format string, args ...interface{}) {}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// StdLogger adapts the standard library logger.
type StdLogger struct {
	L    *log.Logger
	Min  Level
	Pref string // optional prefix per log line
}

func (s StdLogger) Logf(level Level, format string, args ...interface{}) {
	if s.L == nil {
		return
	}
	if level < s.Min {
		return
	}
	if s.Pref != "" {
		s.L.Printf("%s[%s] "+format, append([]interface{}{s.Pref, level.String()}, args...)...)
	} else {
		s.L.Printf("[%s] "+format, append([]interface{}{level.String()}, args...)...)
	}
}

type namedLogger struct {
	l    Logger
	name string
}

// Named tags every line written through l with a channel name such as
// "portkit.http.client".
func Named(l Logger, name string) Logger {
	if l == nil {
		return NopLogger{}
	}
	if _, ok := l.(NopLogger); ok {
		return l
	}
	return namedLogger{l: l, name: name}
}

func (n namedLogger) Logf(level Level, format string, args ...interface{}) {
	n.l.Logf(level, n.name+": "+format, args...)
}
