// Package logger provides the process-wide leveled logger. Deliberately
// minimal: timestamped printf-style lines with a severity filter, safe for
// concurrent use. The filesystem core logs only on cold paths (mount,
// format, transaction retries, orphan purges), never on per-operation hits.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level tag used in output lines.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	mu      sync.Mutex
	level   = LevelInfo
	output  io.Writer = os.Stdout
	timeFmt           = "2006-01-02 15:04:05.000"
)

// SetLevel sets the minimum severity that is emitted. Unknown names keep
// the current level.
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToUpper(name) {
	case "DEBUG":
		level = LevelDebug
	case "INFO":
		level = LevelInfo
	case "WARN":
		level = LevelWarn
	case "ERROR":
		level = LevelError
	}
}

// SetOutput redirects log output. The default is stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func emit(l Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	fmt.Fprintf(output, "[%s] [%s] %s\n",
		time.Now().Format(timeFmt), l, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level.
func Debug(format string, args ...any) { emit(LevelDebug, format, args...) }

// Info logs at INFO level.
func Info(format string, args ...any) { emit(LevelInfo, format, args...) }

// Warn logs at WARN level.
func Warn(format string, args ...any) { emit(LevelWarn, format, args...) }

// Error logs at ERROR level.
func Error(format string, args ...any) { emit(LevelError, format, args...) }
