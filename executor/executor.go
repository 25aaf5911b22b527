// Package executor runs external programs on behalf of the mirror. It is the
// process-spawn abstraction behind the recovery fallback: a command runs in a
// chosen working directory, its output is captured and its exit status is
// reported as data rather than interpreted.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"
)

// Result holds the output and exit status of one command execution.
type Result struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// Success reports whether the command ran and exited with status zero.
func (r *Result) Success() bool {
	return r != nil && r.Err == nil && r.ExitCode == 0
}

// Executor runs a fully configured command.
type Executor interface {
	Execute(ctx context.Context, opts ...Option) (*Result, error)
}

// Options configures command execution.
type Options struct {
	// WorkingDir is the directory the command runs in. Empty means the
	// current process directory.
	WorkingDir string

	// Env holds variables appended to the current process environment.
	Env map[string]string

	// MaxRetries is the number of additional attempts after a failure.
	MaxRetries int
	RetryDelay time.Duration

	// Stdout and Stderr receive a copy of the output while it is captured.
	Stdout io.Writer
	Stderr io.Writer
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		RetryDelay: time.Second,
		Env:        make(map[string]string),
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithOutput tees stdout and stderr to the given writers. Nil writers are
// ignored.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Options) {
		o.Stdout = stdout
		o.Stderr = stderr
	}
}

// Command is a single program invocation.
type Command struct {
	program string
	args    []string
	options Options
}

// New creates a Command for program with args.
func New(program string, args ...string) *Command {
	return &Command{
		program: program,
		args:    args,
		options: *DefaultOptions(),
	}
}

// Execute runs the command. A non-zero exit is reported both in the Result
// and as a returned error wrapping *exec.ExitError.
func (c *Command) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	options := c.options
	options.Env = make(map[string]string, len(c.options.Env))
	for k, v := range c.options.Env {
		options.Env[k] = v
	}
	for _, opt := range opts {
		opt(&options)
	}

	var (
		result *Result
		err    error
	)
	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(options.RetryDelay):
			}
		}

		result, err = c.run(ctx, &options)
		if err == nil {
			return result, nil
		}
	}

	return result, err
}

func (c *Command) run(ctx context.Context, options *Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.program, c.args...)
	cmd.Dir = options.WorkingDir
	if len(options.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(options.Env)...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, options.Stdout)
	cmd.Stderr = tee(&stderr, options.Stderr)

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Args:     append([]string{c.program}, c.args...),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	if err != nil {
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// WrappedExecutor runs a fixed program with per-call arguments.
type WrappedExecutor struct {
	program string
	options []Option
}

// NewWrappedExecutor creates an executor for a specific program. The given
// options apply to every invocation and may be overridden per call.
func NewWrappedExecutor(program string, opts ...Option) *WrappedExecutor {
	return &WrappedExecutor{
		program: program,
		options: opts,
	}
}

// Program returns the wrapped program name.
func (w *WrappedExecutor) Program() string {
	return w.program
}

// Command creates a Command for the wrapped program with specific arguments.
func (w *WrappedExecutor) Command(args ...string) *Command {
	cmd := New(w.program, args...)
	for _, opt := range w.options {
		opt(&cmd.options)
	}
	return cmd
}

// Execute runs the wrapped program with args.
func (w *WrappedExecutor) Execute(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	result, err := w.Command(args...).Execute(ctx, opts...)
	if err != nil {
		return result, fmt.Errorf("failed to execute %s %v: %w", w.program, args, err)
	}
	return result, nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
