// Package logger provides leveled logging for sercha-ingest.
// Errors are always printed. With --verbose every level down to debug is
// printed to stderr, which traces each document through the pipeline.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

var (
	mu        sync.RWMutex
	threshold           = LevelError
	output    io.Writer = os.Stderr
)

// SetLevel sets the lowest level that is printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	threshold = l
}

// CurrentLevel returns the lowest level that is printed.
func CurrentLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return threshold
}

// SetVerbose prints every level when v is true and only errors otherwise.
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
		return
	}
	SetLevel(LevelError)
}

// SetOutput sets the writer log lines go to. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < threshold {
		return
	}
	fmt.Fprintf(output, "["+l.String()+"] "+format+"\n", args...)
}

// Debug logs per-page and per-stage detail.
func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

// Info logs per-document progress.
func Info(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warn logs recoverable problems, such as a page that failed to render.
func Warn(format string, args ...any) { logf(LevelWarn, format, args...) }

// Error logs failures. It is printed at every level.
func Error(format string, args ...any) { logf(LevelError, format, args...) }

// Timed logs the duration of a step at debug level when the returned func is called.
//
//	defer logger.Timed("layout page %d", n)()
func Timed(format string, args ...any) func() {
	start := time.Now()
	return func() {
		Debug(format+" took %s", append(args, time.Since(start).Round(time.Millisecond))...)
	}
}
