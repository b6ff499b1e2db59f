// Package command runs external binaries (pdftoppm, tesseract) behind a
// stubbable interface.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// maxStderr caps how much stderr is echoed into logs and errors.
const maxStderr = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	// Run executes name with args. env entries (KEY=VALUE) are added to the process environment.
	Run(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	logger.Debug("exec: %s", strings.Join(append([]string{name}, args...), " "))

	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		logger.Warn("exec %s failed after %s: %v: %s", name, dur.Round(time.Millisecond), err, Truncate(errb.String(), maxStderr))
		return out.Bytes(), errb.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	logger.Debug("exec %s ok in %s (stdout %d bytes)", name, dur.Round(time.Millisecond), out.Len())
	return out.Bytes(), errb.Bytes(), nil
}

// Require checks that a binary is on PATH, wrapping unavailable as the given sentinel.
func Require(name string, unavailable error) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found on PATH", unavailable, name)
	}
	return path, nil
}

// Truncate shortens s to max bytes with a marker.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
