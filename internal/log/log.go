package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, false, zerolog.InfoLevel)
)

func newLogger(w io.Writer, console bool, lvl zerolog.Level) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Setup replaces the global logger. level accepts debug/info/warn/error
// (case-insensitive); console switches to the human-readable writer.
func Setup(level string, console bool) {
	SetOutput(os.Stderr, console)
	SetLevel(ParseLevel(level))
}

// SetOutput redirects the global logger, keeping its current level.
func SetOutput(w io.Writer, console bool) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, console, logger.GetLevel())
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(toZerolog(l))
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug(msg string, kv ...any) {
	write(current().Debug(), msg, kv...)
}

func Info(msg string, kv ...any) {
	write(current().Info(), msg, kv...)
}

func Warn(msg string, kv ...any) {
	write(current().Warn(), msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	write(current().Error().Err(err), msg, kv...)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

func write(ev *zerolog.Event, msg string, kv ...any) {
	// Disabled levels return a nil event.
	if ev == nil {
		return
	}
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = field(ev, key, kv[i+1])
	}
	// If odd number of args, last one is ignored.
	ev.Msg(msg)
}

func field(ev *zerolog.Event, key string, v any) *zerolog.Event {
	switch val := v.(type) {
	case string:
		return ev.Str(key, val)
	case int:
		return ev.Int(key, val)
	case bool:
		return ev.Bool(key, val)
	case time.Duration:
		return ev.Dur(key, val)
	case time.Time:
		return ev.Time(key, val)
	case error:
		return ev.AnErr(key, val)
	case fmt.Stringer:
		return ev.Str(key, val.String())
	default:
		return ev.Interface(key, val)
	}
}
