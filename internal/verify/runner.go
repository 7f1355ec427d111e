package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// RunOpts configures one command execution.
type RunOpts struct {
	Dir     string
	Env     []string // full environment; nil inherits the parent's
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration
}

// CmdResult is the outcome of a command that started. A non-zero exit is
// a result, not an error.
type CmdResult struct {
	ExitCode int
	Output   string // combined stdout and stderr, truncated to maxCapture
	TimedOut bool
}

// Runner executes stage commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error)
}

const (
	maxCapture   = 256 * 1024
	defaultGrace = 5 * time.Second
)

// ExecRunner runs commands with os/exec. On timeout the child gets
// SIGTERM, then SIGKILL once Grace has passed.
type ExecRunner struct {
	Grace time.Duration
}

// Run starts name with args and waits for it. The returned error is
// non-nil only when the command could not be started or ctx was
// cancelled by the caller.
func (r ExecRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.Grace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultGrace
	}

	// os/exec copies each pipe on its own goroutine; one lock serialises
	// both streams into the capture and the caller's writers.
	capture := &limitedBuffer{max: maxCapture}
	mu := &sync.Mutex{}
	cmd.Stdout = &lockedWriter{mu: mu, w: io.MultiWriter(writerOrDiscard(opts.Stdout), capture)}
	cmd.Stderr = &lockedWriter{mu: mu, w: io.MultiWriter(writerOrDiscard(opts.Stderr), capture)}

	err := cmd.Run()
	res := CmdResult{Output: capture.String()}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, nil
	}
	return res, fmt.Errorf("starting %s: %w", name, err)
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// limitedBuffer keeps the first max bytes written to it and drops the rest.
type limitedBuffer struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	remain := b.max - b.buf.Len()
	if remain > 0 {
		if remain > len(p) {
			remain = len(p)
		}
		b.buf.Write(p[:remain])
	}
	if len(p) > remain {
		b.truncated = true
	}
	return n, nil
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
