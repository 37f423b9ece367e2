// Package extractor drives the external tool that unpacks animation
// archives into model directories.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gfres/internal/apperr"
)

// waitDelay bounds how long output is drained after the extractor exits or
// is killed. Processes it left behind may hold its output open.
const waitDelay = 2 * time.Second

type Runner interface {
	Extract(ctx context.Context, dir string) (*Result, error)
}

type Result struct {
	ExitCode int
	Lines    []string
	Duration time.Duration
}

// ExecRunner runs Command with Args followed by the archive directory. The
// tool waits for a keypress before exiting, so a newline is written to its
// stdin. On timeout or cancellation its whole process group is killed.
type ExecRunner struct {
	Command string
	Args    []string
	Timeout time.Duration
	Logger  *zap.Logger
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) Extract(ctx context.Context, dir string) (*Result, error) {
	unit := filepath.Base(dir)
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var (
		mu    sync.Mutex
		lines []string
	)
	emit := func(stream, line string) {
		logger.Info(line, zap.String("unit", unit), zap.String("stream", stream))
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	}
	stdout := &lineWriter{stream: "stdout", emit: emit}
	stderr := &lineWriter{stream: "stderr", emit: emit}

	args := append(append([]string{}, r.Args...), dir)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Stdin = strings.NewReader("\n")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, apperr.ExternalTool(unit, "starting extractor", err)
	}
	logger.Debug("extractor started", zap.String("unit", unit), zap.Int("pid", cmd.Process.Pid))

	waitErr := cmd.Wait()
	stdout.flush()
	stderr.flush()

	mu.Lock()
	result := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Lines:    lines,
		Duration: time.Since(start),
	}
	mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, apperr.ExternalTool(unit, fmt.Sprintf("extractor timed out after %s", r.Timeout), ctxErr)
		}
		return result, apperr.ExternalTool(unit, "extractor cancelled", ctxErr)
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// The extractor itself exited cleanly.
		logger.Warn("extractor left processes holding its output",
			zap.String("unit", unit),
			zap.Duration("wait_delay", waitDelay),
		)
		waitErr = nil
	}
	if waitErr != nil {
		return result, apperr.ExternalTool(unit, "extractor failed", waitErr)
	}

	logger.Info("extractor finished",
		zap.String("unit", unit),
		zap.Duration("duration", result.Duration),
		zap.Int("lines", len(result.Lines)),
	)
	return result, nil
}

// lineWriter splits a child's output stream into lines.
type lineWriter struct {
	stream string
	emit   func(stream, line string)
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.stream, strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// flush emits a trailing line that had no newline.
func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.stream, strings.TrimRight(string(w.buf), "\r"))
		w.buf = nil
	}
}
