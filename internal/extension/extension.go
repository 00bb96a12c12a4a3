package extension

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/taskforge-labs/taskforge/internal/resolver"
)

// Hook is the callable an extension registers under a task name. Any error
// it returns (or panic it raises) is captured by the task runner as a failed
// result.
type Hook func(ctx context.Context, env *Env, args []string) error

// Extension is a loaded unit of optional functionality.
type Extension struct {
	ID          string
	Description string
	Hooks       map[string]Hook
}

// Factory initializes an extension against the resolved configuration.
type Factory func(cfg *resolver.ResolvedConfig) (*Extension, error)

// Env is everything a hook may touch while it runs. The task runner builds
// one per invocation; hooks never reach for process-wide state.
type Env struct {
	Config *resolver.ResolvedConfig
	// Root is the project directory (the one holding the project file).
	Root   string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger

	// Invoke runs another registered task with the same Env, e.g. "test"
	// compiling first. Set by the task runner.
	Invoke func(ctx context.Context, task string, args []string) error
	// Tasks lists every registered task name. Set by the task runner.
	Tasks func() []string
}

// Log returns the hook logger, never nil.
func (e *Env) Log() *zap.Logger {
	if e == nil || e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
