package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/resolver"
)

// Result is the outcome of one task invocation.
type Result struct {
	TaskName  string
	Succeeded bool
	Output    string
	ExitCode  int
	// Err is a *TaskExecutionError when Succeeded is false.
	Err error
}

// Runner invokes hooks from a loaded HookSet.
type Runner struct {
	hooks  *extension.HookSet
	cfg    *resolver.ResolvedConfig
	root   string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets where hook output is streamed. It is captured into
// Result.Output regardless.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithStdin sets the reader handed to interactive hooks.
func WithStdin(stdin io.Reader) Option {
	return func(r *Runner) { r.stdin = stdin }
}

// WithLogger sets the structured logger passed to hooks.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRoot sets the project directory hooks resolve relative paths against.
func WithRoot(dir string) Option {
	return func(r *Runner) { r.root = dir }
}

// NewRunner creates a Runner over a loaded hook set.
func NewRunner(hooks *extension.HookSet, cfg *resolver.ResolvedConfig, opts ...Option) *Runner {
	r := &Runner{
		hooks:  hooks,
		cfg:    cfg,
		root:   ".",
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tasks returns the registered task names in sorted order.
func (r *Runner) Tasks() []string { return r.hooks.Tasks() }

// Run invokes the hook registered for name. It returns *UnknownTaskError
// when there is none; any failure inside the hook is reported through the
// Result instead of the error.
func (r *Runner) Run(ctx context.Context, name string, args []string) (*Result, error) {
	hook, ok := r.hooks.Lookup(name)
	if !ok {
		return nil, &UnknownTaskError{Name: name, Known: r.hooks.Tasks()}
	}

	var captured syncBuffer
	env := &extension.Env{
		Config: r.cfg,
		Root:   r.root,
		Stdin:  r.stdin,
		Stdout: io.MultiWriter(r.stdout, &captured),
		Stderr: io.MultiWriter(r.stderr, &captured),
		Logger: r.logger.With(zap.String("task", name)),
		Tasks:  r.hooks.Tasks,
	}
	stack := []string{name}
	env.Invoke = func(ctx context.Context, sub string, subArgs []string) error {
		return r.invokeNested(ctx, env, &stack, sub, subArgs)
	}

	env.Logger.Debug("task started",
		zap.String("extension", r.hooks.Owner(name)),
		zap.Strings("args", args))
	start := time.Now()

	err := call(ctx, hook, env, args)

	result := &Result{
		TaskName:  name,
		Succeeded: err == nil,
		Output:    captured.String(),
	}
	if err != nil {
		result.ExitCode = exitCodeOf(err)
		result.Err = &TaskExecutionError{Task: name, ExitCode: result.ExitCode, Err: err}
		env.Logger.Debug("task failed",
			zap.Int("exit_code", result.ExitCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return result, nil
	}

	env.Logger.Debug("task finished", zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// invokeNested runs sub within the same Env. A task that ends up invoking
// itself is rejected rather than recursing forever.
func (r *Runner) invokeNested(ctx context.Context, env *extension.Env, stack *[]string, sub string, args []string) error {
	hook, ok := r.hooks.Lookup(sub)
	if !ok {
		return &UnknownTaskError{Name: sub, Known: r.hooks.Tasks()}
	}
	if slices.Contains(*stack, sub) {
		return fmt.Errorf("task cycle: %s -> %s", strings.Join(*stack, " -> "), sub)
	}

	*stack = append(*stack, sub)
	defer func() { *stack = (*stack)[:len(*stack)-1] }()

	env.Logger.Debug("subtask started", zap.String("subtask", sub))
	return call(ctx, hook, env, args)
}

// call invokes hook and converts a panic into an error.
func call(ctx context.Context, hook extension.Hook, env *extension.Env, args []string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()
	return hook(ctx, env, args)
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes os/exec makes
// when a child's stdout and stderr are both captured.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
