// Package toolexec runs the external programs that some probes depend on
// (an auditor, a link checker, a site builder) and reports how they ended.
//
// A program that starts and exits non-zero is a normal outcome, reported in
// Result.ExitCode. Only a program that cannot be started or does not finish
// in time is an error.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrToolMissing is returned when the program is not installed.
	ErrToolMissing = errors.New("toolexec: tool not found")

	// ErrTimeout is returned when the program outlives its timeout. It is
	// always joined with context.DeadlineExceeded.
	ErrTimeout = errors.New("toolexec: tool timed out")

	// ErrEmptyCommand is returned for a Command without a Name.
	ErrEmptyCommand = errors.New("toolexec: empty command")
)

// DefaultMaxOutput is the number of bytes kept from each of stdout and stderr.
const DefaultMaxOutput = 1 << 20

// Command describes one invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Timeout time.Duration

	// MaxOutput caps each captured stream. Default: DefaultMaxOutput.
	MaxOutput int

	// WaitDelay overrides Runner.WaitDelay for this invocation.
	WaitDelay time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds what a finished program produced.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Truncated bool
}

// Success reports whether the program exited zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner starts programs. The zero value is ready to use.
type Runner struct {
	// WaitDelay bounds how long Run waits for output pipes after the program
	// is killed, since browsers spawned by an auditor may hold them open.
	// Default: 2s.
	WaitDelay time.Duration
}

// NewRunner returns a Runner with defaults.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes cmd. On ErrTimeout the partial Result is returned with the error.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, ErrEmptyCommand
	}
	if _, err := exec.LookPath(cmd.Name); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrToolMissing, cmd.Name, err)
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	limit := cmd.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.WaitDelay = r.WaitDelay
	if cmd.WaitDelay > 0 {
		c.WaitDelay = cmd.WaitDelay
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = 2 * time.Second
	}
	stdout := &capped{limit: limit}
	stderr := &capped{limit: limit}
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}

	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, errors.Join(fmt.Errorf("%w after %s: %s", ErrTimeout, cmd.Timeout, cmd), context.DeadlineExceeded)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s: %w", ErrToolMissing, cmd.Name, err)
	}
	return res, fmt.Errorf("toolexec: run %s: %w", cmd, err)
}

// capped is a buffer that silently drops bytes past limit.
type capped struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (c *capped) Write(p []byte) (int, error) {
	room := c.limit - c.Buffer.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.Buffer.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	return c.Buffer.Write(p)
}
