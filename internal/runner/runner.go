// Package runner invokes external tools with bounded output capture.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/metrics"
)

// OutputLimit caps how many bytes of stdout and stderr are kept per invocation.
const OutputLimit = 64 << 10

// ErrNotFound is returned when the tool binary is not on PATH.
var ErrNotFound = errors.New("executable not found")

// ExitError describes a tool that ran but failed.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("%s failed (exit %d): %v", e.Tool, e.Code, e.Err)
	}
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.Code, msg)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Result holds the captured, possibly truncated, process output.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Run executes name with args and waits for it. Output beyond OutputLimit is discarded.
func Run(ctx context.Context, name string, args ...string) (Result, error) {
	tool := baseName(name)
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	stdout := &limitedBuffer{max: OutputLimit}
	stderr := &limitedBuffer{max: OutputLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	dur := time.Since(start)

	if err != nil {
		metrics.ObserveProcess(tool, "error", dur)
		if errors.Is(err, exec.ErrNotFound) {
			return res, fmt.Errorf("%s: %w", tool, ErrNotFound)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s: %w", tool, ctxErr)
		}
		code := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		}
		log.Debug().Str("tool", tool).Int("exit_code", code).Dur("took", dur).Msg("external tool failed")
		return res, &ExitError{Tool: tool, Code: code, Stderr: string(res.Stderr), Err: err}
	}

	metrics.ObserveProcess(tool, "ok", dur)
	if stdout.truncated || stderr.truncated {
		log.Debug().Str("tool", tool).Int("limit", OutputLimit).Msg("tool output truncated")
	}
	log.Debug().Str("tool", tool).Strs("args", args).Dur("took", dur).Msg("external tool finished")
	return res, nil
}

// Resolve returns the executable Run would start for name.
func Resolve(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", baseName(name), err)
	}
	return path, nil
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// limitedBuffer keeps the first max bytes written and silently drops the rest.
type limitedBuffer struct {
	buf       []byte
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
			b.truncated = true
		} else {
			b.buf = append(b.buf, p...)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte { return b.buf }
