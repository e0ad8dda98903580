package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level orders log severities.
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts the level names case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

var (
	minLevel atomic.Int32
	outMu    sync.Mutex
	out      = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

func init() {
	minLevel.Store(int32(INFO))
}

// SetLevel sets the global minimum level.
func SetLevel(l Level) { minLevel.Store(int32(l)) }

// GetLevel returns the global minimum level.
func GetLevel() Level { return Level(minLevel.Load()) }

// SetOutput redirects every logger.
func SetOutput(w io.Writer) {
	outMu.Lock()
	out.SetOutput(w)
	outMu.Unlock()
}

// Logger prefixes messages with a component name.
type Logger struct {
	component string
}

// New returns a logger for component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Enabled(level Level) bool { return level >= GetLevel() }

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	outMu.Lock()
	out.Printf("[%s] %s: %s", level, l.component, msg)
	outMu.Unlock()
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(ERROR, format, args...) }
